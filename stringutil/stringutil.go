package stringutil

import "fmt"

const ShortenLogLength = 16

// ShortenLog keeps the head and tail of a wallet address for log lines.
// System and short values are returned as is.
func ShortenLog(addr string) string {
	indexCut := ShortenLogLength / 2
	if len(addr) <= ShortenLogLength {
		return addr
	}
	return fmt.Sprintf("%s...%s", addr[:indexCut], addr[len(addr)-indexCut:])
}
