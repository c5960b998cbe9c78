package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"solbox/core/state"
	"solbox/core/types"
	"solbox/native/giftcard"
	"solbox/storage"
)

const testToken = "test-token"

func newTestServer(t *testing.T) (*Server, *state.Manager, *httptest.Server) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	engine := giftcard.NewEngine()
	engine.SetState(manager)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })

	server := NewServer(engine, manager)
	server.SetAuthToken(testToken)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return server, manager, ts
}

func testPrincipalHex(fill byte) string {
	var p giftcard.Principal
	for i := range p {
		p[i] = fill
	}
	return p.Hex()
}

func call(t *testing.T, ts *httptest.Server, token, method string, params interface{}) *RPCResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  []json.RawMessage{raw},
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var rpcResp RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpcResp))
	return &rpcResp
}

func initializeLedger(t *testing.T, ts *httptest.Server, owner string) {
	t.Helper()
	resp := call(t, ts, testToken, "giftcard_initialize", initializeParams{Caller: owner})
	require.Nil(t, resp.Error, "initialize failed: %+v", resp.Error)
}

func fundPrincipal(t *testing.T, manager *state.Manager, hex string, amount uint64) {
	t.Helper()
	p, err := giftcard.ParsePrincipal(hex)
	require.NoError(t, err)
	require.NoError(t, manager.PutAccount([32]byte(p), &types.Account{Balance: new(big.Int).SetUint64(amount)}))
}

func TestAdminMethodsRequireBearerToken(t *testing.T) {
	_, _, ts := newTestServer(t)
	owner := testPrincipalHex(0x01)

	resp := call(t, ts, "", "giftcard_initialize", initializeParams{Caller: owner})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = call(t, ts, "wrong-token", "giftcard_togglePause", callerParams{Caller: owner})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestInitializeAndGetLedger(t *testing.T) {
	_, _, ts := newTestServer(t)
	owner := testPrincipalHex(0x01)
	initializeLedger(t, ts, owner)

	resp := call(t, ts, "", "giftcard_getLedger", struct{}{})
	require.Nil(t, resp.Error)

	var ledger ledgerResult
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &ledger))
	require.Equal(t, owner, ledger.Owner)
	require.Equal(t, uint32(3), ledger.Config.ReferralLimit)
	require.False(t, ledger.Paused)

	resp = call(t, ts, testToken, "giftcard_initialize", initializeParams{Caller: owner})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestBuyFlow(t *testing.T) {
	_, manager, ts := newTestServer(t)
	owner := testPrincipalHex(0x01)
	buyer := testPrincipalHex(0x10)
	referrer := testPrincipalHex(0x20)
	initializeLedger(t, ts, owner)
	fundPrincipal(t, manager, buyer, 200_000_000)

	resp := call(t, ts, "", "giftcard_buy", buyParams{Caller: buyer, Referrer: referrer, Amount: 200_000_000})
	require.Nil(t, resp.Error, "buy failed: %+v", resp.Error)

	var receipt purchaseResult
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &receipt))
	require.Equal(t, referrer, receipt.Referrer)
	require.Equal(t, uint64(180_000_000), receipt.Commission)
	require.Equal(t, uint64(10_000_000), receipt.Residual)

	resp = call(t, ts, "", "giftcard_getUser", userQuery{User: referrer})
	require.Nil(t, resp.Error)
	var record userResult
	raw, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &record))
	require.Equal(t, uint64(180_000_000), record.TotalEarnings)

	resp = call(t, ts, "", "giftcard_getRelationships", struct{}{})
	require.Nil(t, resp.Error)
	var relationships []relationshipResult
	raw, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &relationships))
	require.Len(t, relationships, 1)
	require.Equal(t, buyer, relationships[0].User)

	resp = call(t, ts, "", "giftcard_getEvents", struct{}{})
	require.Nil(t, resp.Error)
}

func TestBuyErrorMapping(t *testing.T) {
	_, manager, ts := newTestServer(t)
	owner := testPrincipalHex(0x01)
	buyer := testPrincipalHex(0x10)
	initializeLedger(t, ts, owner)
	fundPrincipal(t, manager, buyer, 200_000_000)

	resp := call(t, ts, "", "giftcard_buy", buyParams{Caller: buyer, Referrer: buyer, Amount: 200_000_000})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	resp = call(t, ts, "", "giftcard_buy", buyParams{Caller: buyer, Referrer: testPrincipalHex(0x20), Amount: 17})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	resp = call(t, ts, "", "giftcard_buy", buyParams{Caller: "not-hex", Referrer: testPrincipalHex(0x20), Amount: 200_000_000})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestAdminFlow(t *testing.T) {
	_, _, ts := newTestServer(t)
	owner := testPrincipalHex(0x01)
	stranger := testPrincipalHex(0x02)
	user := testPrincipalHex(0x10)
	initializeLedger(t, ts, owner)

	// Owner check still applies behind the bearer token.
	resp := call(t, ts, testToken, "giftcard_togglePause", callerParams{Caller: stranger})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = call(t, ts, testToken, "giftcard_togglePause", callerParams{Caller: owner})
	require.Nil(t, resp.Error)
	var pause pauseResult
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &pause))
	require.True(t, pause.Paused)

	resp = call(t, ts, testToken, "giftcard_addToBlacklist", blacklistParams{Caller: owner, User: user})
	require.Nil(t, resp.Error)

	resp = call(t, ts, testToken, "giftcard_grantPackage", grantParams{Caller: owner, User: user, Package: 1_000_000_000})
	require.Nil(t, resp.Error)

	resp = call(t, ts, "", "giftcard_getUser", userQuery{User: user})
	require.Nil(t, resp.Error)
	var record userResult
	raw, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &record))
	require.Equal(t, uint64(1_000_000_000), record.CurrentPackage)
}

func TestMethodNotFound(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp := call(t, ts, "", "giftcard_unknown", struct{}{})
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRejectsNonPost(t *testing.T) {
	_, _, ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
