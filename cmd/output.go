package cmd

import (
	"os"

	"github.com/mezonai/credits/jsonx"
)

func printJSON(v interface{}) error {
	enc := jsonx.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
