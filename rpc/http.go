package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"solbox/core/types"
	"solbox/native/giftcard"
	"solbox/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	authTokenEnv    = "SOLBOX_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// eventSource exposes the buffered event tail collected by the state manager.
type eventSource interface {
	Events() []*types.Event
}

// Server exposes the gift card ledger operations over JSON-RPC 2.0.
// Administrative methods are gated by a bearer token; caller signature
// verification belongs to the hosting environment and is out of scope here.
type Server struct {
	engine          *giftcard.Engine
	events          eventSource
	authToken       string
	contractDefault *giftcard.ContractConfig
}

// NewServer wires a server around the given engine. The admin token is read
// from SOLBOX_RPC_TOKEN.
func NewServer(engine *giftcard.Engine, events eventSource) *Server {
	return &Server{
		engine:    engine,
		events:    events,
		authToken: strings.TrimSpace(os.Getenv(authTokenEnv)),
	}
}

// SetAuthToken overrides the bearer token, primarily for tests.
func (s *Server) SetAuthToken(token string) { s.authToken = strings.TrimSpace(token) }

// SetContractDefaults installs the config used by giftcard_initialize when the
// request carries none. Without it, initialize falls back to the built-in
// defaults.
func (s *Server) SetContractDefaults(cfg *giftcard.ContractConfig) {
	s.contractDefault = cfg.Clone()
}

// Handler returns the HTTP handler serving the JSON-RPC endpoint, for callers
// that manage the http.Server lifecycle themselves.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

// Start serves JSON-RPC requests on addr until the listener fails.
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// errorCode maps the engine error taxonomy onto JSON-RPC error codes. Every
// engine failure is a rejected transition, so everything maps to a client or
// server error rather than a crash.
func errorCode(err error) int {
	switch {
	case errors.Is(err, giftcard.ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, giftcard.ErrInvalidAmount),
		errors.Is(err, giftcard.ErrInvalidUpgrade),
		errors.Is(err, giftcard.ErrInvalidConfig),
		errors.Is(err, giftcard.ErrInvalidReferrer),
		errors.Is(err, giftcard.ErrSelfReferral),
		errors.Is(err, giftcard.ErrAlreadyPurchased),
		errors.Is(err, giftcard.ErrAlreadyInitialized):
		return codeInvalidParams
	default:
		return codeServerError
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// adminMethods require the bearer token in addition to the engine's own
// owner check on the caller principal.
var adminMethods = map[string]bool{
	"giftcard_initialize":             true,
	"giftcard_updateConfig":           true,
	"giftcard_updateCommissionConfig": true,
	"giftcard_togglePause":            true,
	"giftcard_addToBlacklist":         true,
	"giftcard_removeFromBlacklist":    true,
	"giftcard_grantPackage":           true,
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = "request body too large"
		}
		writeError(w, status, nil, codeInvalidRequest, message)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version")
		return
	}

	if adminMethods[req.Method] {
		if authErr := s.requireAuth(r); authErr != nil {
			observability.GiftCard().RecordRequest(req.Method, "unauthorized")
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message)
			return
		}
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found")
		return
	}

	result, rpcErr := handler(req.Params)
	if rpcErr != nil {
		observability.GiftCard().RecordRequest(req.Method, "error")
		writeError(w, http.StatusOK, req.ID, rpcErr.Code, rpcErr.Message)
		return
	}
	observability.GiftCard().RecordRequest(req.Method, "ok")
	writeResult(w, req.ID, result)
}

type methodFunc func(params []json.RawMessage) (interface{}, *RPCError)

func (s *Server) methods() map[string]methodFunc {
	return map[string]methodFunc{
		"giftcard_initialize":             s.handleInitialize,
		"giftcard_updateConfig":           s.handleUpdateConfig,
		"giftcard_updateCommissionConfig": s.handleUpdateCommissionConfig,
		"giftcard_togglePause":            s.handleTogglePause,
		"giftcard_addToBlacklist":         s.handleAddToBlacklist,
		"giftcard_removeFromBlacklist":    s.handleRemoveFromBlacklist,
		"giftcard_grantPackage":           s.handleGrantPackage,
		"giftcard_upgradePackage":         s.handleUpgradePackage,
		"giftcard_buy":                    s.handleBuy,
		"giftcard_getLedger":              s.handleGetLedger,
		"giftcard_getUser":                s.handleGetUser,
		"giftcard_getRelationships":       s.handleGetRelationships,
		"giftcard_getEvents":              s.handleGetEvents,
	}
}
