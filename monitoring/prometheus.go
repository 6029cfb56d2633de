package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type TransferResult string

var (
	TransferCommitted         TransferResult = "committed"
	TransferReplayed          TransferResult = "replayed"
	TransferInsufficientFunds TransferResult = "insufficient_funds"
	TransferSenderNotFound    TransferResult = "sender_not_found"
	TransferInvalid           TransferResult = "invalid"
	TransferBusy              TransferResult = "busy"
	TransferError             TransferResult = "error"
)

type ledgerPromMetrics struct {
	upUnixSeconds   prometheus.Gauge
	transferCount   *prometheus.CounterVec
	transferLatency prometheus.Histogram
	casConflicts    prometheus.Counter
	retriesExceeded prometheus.Counter
	mintedAmount    prometheus.Counter
	mintCount       prometheus.Counter
	accountsOpened  prometheus.Counter
	eventsDropped   *prometheus.CounterVec
	panicCount      prometheus.Counter
}

func newLedgerPromMetrics() *ledgerPromMetrics {
	return &ledgerPromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "credits_ledger_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the ledger process start",
			},
		),
		transferCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credits_ledger_transfer_count",
				Help: "The total number of transfer requests by outcome",
			},
			[]string{"result"},
		),
		transferLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "credits_ledger_transfer_latency_seconds",
				Help:    "Latency from receiving a transfer until its terminal outcome",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
		casConflicts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credits_ledger_cas_conflict_count",
				Help: "Conditional writes rejected because an account or transaction changed",
			},
		),
		retriesExceeded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credits_ledger_retries_exceeded_count",
				Help: "Transfers that returned busy after exhausting the retry bound",
			},
		),
		mintedAmount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credits_ledger_minted_amount",
				Help: "Total minor units created by mint operations",
			},
		),
		mintCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credits_ledger_mint_count",
				Help: "The total number of committed mints",
			},
		),
		accountsOpened: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credits_ledger_accounts_opened_count",
				Help: "Accounts created explicitly or implicitly",
			},
		),
		eventsDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credits_ledger_events_dropped_count",
				Help: "Events not delivered to a subscriber or sink",
			},
			[]string{"sink"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credits_ledger_panic_count",
				Help: "Recovered panics in background goroutines",
			},
		),
	}
}

var ledgerMetrics = newLedgerPromMetrics()

func InitMetrics() {
	ledgerMetrics.upUnixSeconds.SetToCurrentTime()
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordTransfer(result TransferResult, duration time.Duration) {
	ledgerMetrics.transferCount.With(prometheus.Labels{
		"result": string(result),
	}).Inc()
	ledgerMetrics.transferLatency.Observe(duration.Seconds())
}

func IncreaseCASConflict() {
	ledgerMetrics.casConflicts.Inc()
}

func IncreaseRetriesExceeded() {
	ledgerMetrics.retriesExceeded.Inc()
}

func RecordMint(amount float64) {
	ledgerMetrics.mintCount.Inc()
	ledgerMetrics.mintedAmount.Add(amount)
}

func IncreaseAccountsOpened() {
	ledgerMetrics.accountsOpened.Inc()
}

func IncreaseEventsDropped(sink string) {
	ledgerMetrics.eventsDropped.With(prometheus.Labels{
		"sink": sink,
	}).Inc()
}

func IncreasePanicCount() {
	ledgerMetrics.panicCount.Inc()
}
