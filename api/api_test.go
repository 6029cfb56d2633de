package api

import (
	"crypto/sha256"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mezonai/credits/db"
	lerrors "github.com/mezonai/credits/errors"
	"github.com/mezonai/credits/events"
	"github.com/mezonai/credits/jsonrpc"
	"github.com/mezonai/credits/jsonx"
	"github.com/mezonai/credits/ledger"
	"github.com/mezonai/credits/retry"
	"github.com/mezonai/credits/service"
	"github.com/mezonai/credits/store"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(name string) string {
	sum := sha256.Sum256([]byte(name))
	return base58.Encode(sum[:])
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	policy := retry.Policy{MaxAttempts: 20, BaseDelay: 50 * time.Microsecond, MaxDelay: time.Millisecond}
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	stores, err := store.NewStores(provider, policy)
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	router := events.NewEventRouter(events.NewEventBus())
	engine := ledger.NewEngine(stores.Accounts, stores.Txs, stores, router, policy)
	ledgerSvc := service.NewLedgerService(engine, stores.Accounts, stores.Txs, router, service.DefaultHistoryConfig())
	healthSvc := service.NewHealthService(provider, stores.Txs, "memory")

	ts := httptest.NewServer(NewAPIServer("", ledgerSvc, healthSvc, jsonrpc.DefaultCORSConfig()).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, jsonx.NewDecoder(resp.Body).Decode(v))
}

func errorCode(t *testing.T, resp *http.Response) lerrors.LedgerErrorCode {
	t.Helper()
	var body errorBody
	decode(t, resp, &body)
	return body.Error.Code
}

func TestTransferFlow(t *testing.T) {
	ts := newTestAPI(t)
	alice, bob := addr("alice"), addr("bob")

	resp := do(t, http.MethodPost, ts.URL+"/v1/mint", `{"receiver":"`+alice+`","amount":"100"}`, map[string]string{IdempotencyKeyHeader: "m1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	transfer := `{"sender":"` + alice + `","receiver":"` + bob + `","amount":"25"}`
	resp = do(t, http.MethodPost, ts.URL+"/v1/transfers", transfer, map[string]string{IdempotencyKeyHeader: "t1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(ReplayedHeader))
	var receipt jsonrpc.ReceiptResult
	decode(t, resp, &receipt)
	assert.Equal(t, "75", receipt.SenderBalance)
	assert.Equal(t, "25", receipt.ReceiverBalance)

	resp = do(t, http.MethodPost, ts.URL+"/v1/transfers", transfer, map[string]string{IdempotencyKeyHeader: "t1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get(ReplayedHeader))
	var replay jsonrpc.ReceiptResult
	decode(t, resp, &replay)
	assert.Equal(t, receipt.TransactionID, replay.TransactionID)

	resp = do(t, http.MethodGet, ts.URL+"/v1/accounts/"+bob, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var bal jsonrpc.BalanceResult
	decode(t, resp, &bal)
	assert.Equal(t, "25", bal.Balance)
	assert.Equal(t, bob, bal.Address)

	resp = do(t, http.MethodGet, ts.URL+"/v1/accounts/"+alice+"/transactions?limit=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page jsonrpc.HistoryResult
	decode(t, resp, &page)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, receipt.TransactionID, page.Transactions[0].ID)
	require.NotEmpty(t, page.NextCursor)

	resp = do(t, http.MethodGet, ts.URL+"/v1/accounts/"+alice+"/transactions?limit=1&cursor="+page.NextCursor, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var older jsonrpc.HistoryResult
	decode(t, resp, &older)
	require.Len(t, older.Transactions, 1)
	assert.Equal(t, "mint", older.Transactions[0].Type)

	resp = do(t, http.MethodGet, ts.URL+"/v1/transactions/"+receipt.TransactionID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorStatuses(t *testing.T) {
	ts := newTestAPI(t)
	alice, bob := addr("alice"), addr("bob")
	do(t, http.MethodPost, ts.URL+"/v1/mint", `{"receiver":"`+alice+`","amount":"10","idempotency_key":"m1"}`, nil)

	resp := do(t, http.MethodPost, ts.URL+"/v1/transfers", `{"sender":"`+alice+`","receiver":"`+bob+`","amount":"11","idempotency_key":"t1"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, lerrors.ErrCodeInsufficientFunds, errorCode(t, resp))

	resp = do(t, http.MethodPost, ts.URL+"/v1/transfers", `{"sender":"`+alice+`","receiver":"`+bob+`","amount":"1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/v1/transfers", `{"sender":"`+alice+`","receiver":"`+bob+`","amount":"1","idempotency_key":"a"}`, map[string]string{IdempotencyKeyHeader: "b"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, ts.URL+"/v1/transfers", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/v1/accounts/"+bob, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, lerrors.ErrCodeNotFound, errorCode(t, resp))

	resp = do(t, http.MethodGet, ts.URL+"/v1/accounts/"+alice+"/transactions?limit=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/v1/transactions/nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOpenAccountAndOps(t *testing.T) {
	ts := newTestAPI(t)
	carol := addr("carol")

	resp := do(t, http.MethodPost, ts.URL+"/v1/accounts", `{"address":"`+carol+`"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = do(t, http.MethodPost, ts.URL+"/v1/accounts", `{"address":"`+carol+`"}`, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health jsonrpc.HealthResult
	decode(t, resp, &health)
	assert.Equal(t, "SERVING", health.Status)

	resp = do(t, http.MethodGet, ts.URL+"/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodOptions, ts.URL+"/v1/transfers", "", map[string]string{"Origin": "https://wallet.example"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(lerrors.ErrCodeInvalidOperation))
	assert.Equal(t, http.StatusNotFound, StatusFor(lerrors.ErrCodeNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(lerrors.ErrCodeInsufficientFunds))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(lerrors.ErrCodeBusy))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(lerrors.ErrCodeConflict))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(lerrors.ErrCodeInternal))
}

func TestBusyCarriesRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	(&APIServer{}).writeError(rec, lerrors.ErrBusy)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}
