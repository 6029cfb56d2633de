package store

import "fmt"

// Declare database key prefix for objects
const (
	PrefixAccount = "acct:"

	PrefixTx            = "tx:"
	PrefixTxIdempotency = "txidem:"
	PrefixTxSeq         = "txseq:"
	PrefixTxAccount     = "txacct:"
)

// seqWidth zero-pads sequence numbers so byte order equals numeric order
const seqWidth = 20

func accountKey(addr string) []byte {
	return []byte(PrefixAccount + addr)
}

func txKey(id string) []byte {
	return []byte(PrefixTx + id)
}

func idempotencyKey(key string) []byte {
	return []byte(PrefixTxIdempotency + key)
}

func seqKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%0*d", PrefixTxSeq, seqWidth, seq))
}

func accountTxPrefix(addr string) []byte {
	return []byte(PrefixTxAccount + addr + ":")
}

func accountTxKey(addr string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%0*d", PrefixTxAccount, addr, seqWidth, seq))
}

// seqFromKey parses the trailing sequence number of an index key
func seqFromKey(key []byte) (uint64, error) {
	if len(key) < seqWidth {
		return 0, fmt.Errorf("index key %q too short", key)
	}
	var seq uint64
	if _, err := fmt.Sscanf(string(key[len(key)-seqWidth:]), "%d", &seq); err != nil {
		return 0, fmt.Errorf("index key %q: %w", key, err)
	}
	return seq, nil
}
