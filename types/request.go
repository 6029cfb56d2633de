package types

// TransferRequest is what the wallet UI submits for a send. Amount is a
// decimal string of minor units.
type TransferRequest struct {
	Sender         string
	Receiver       string
	Amount         string
	IdempotencyKey string
	Memo           string
}

// MintRequest credits Receiver from the system address
type MintRequest struct {
	Receiver       string
	Amount         string
	IdempotencyKey string
	Memo           string
}

// HistoryRequest asks for one newest-first page. Limit 0 means the default.
type HistoryRequest struct {
	Address string
	Cursor  string
	Limit   int
}

type HealthStatus struct {
	Status    string
	Store     string
	LastSeq   uint64
	Timestamp int64
	Uptime    int64
	Version   string
	Error     string
}

const (
	HealthServing    = "SERVING"
	HealthNotServing = "NOT_SERVING"
)
