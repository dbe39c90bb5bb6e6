package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxRequestBodySize is the maximum allowed request body size (1MB).
const MaxRequestBodySize = 1 << 20

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-Id"

// Handler serves GraphQL over HTTP. WebSocket upgrades on the same path
// are handed to the subscription handler.
type Handler struct {
	exec    *Executor
	subs    *SubscriptionHandler
	metrics *metrics
	log     *slog.Logger
}

// NewHandler creates a GraphQL HTTP handler. subs may be nil, in which
// case upgrade requests are rejected.
func NewHandler(exec *Executor, subs *SubscriptionHandler, m *metrics, log *slog.Logger) *Handler {
	return &Handler{exec: exec, subs: subs, metrics: m, log: log}
}

// ServeHTTP handles GET and POST GraphQL requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := uuid.NewString()
	w.Header().Set(RequestIDHeader, id)
	log := h.log.With("request_id", id)

	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if isWebSocketUpgrade(r) {
		if h.subs == nil {
			h.writeError(w, http.StatusBadRequest, "subscriptions are not enabled", CodeBadRequest)
			return
		}
		h.subs.ServeHTTP(w, r)
		return
	}

	kind := "unknown"
	defer func() {
		if p := recover(); p != nil {
			log.Error("panic while handling request", "panic", p, "stack", string(debug.Stack()))
			h.writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", p), CodeInternal)
			h.metrics.observe(kind, http.StatusInternalServerError, time.Since(start), nil)
		}
	}()

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed", CodeBadRequest)
		h.metrics.observe(kind, http.StatusMethodNotAllowed, time.Since(start), nil)
		return
	}

	var (
		req *Request
		err error
	)
	if r.Method == http.MethodGet {
		req, err = parseGetRequest(r)
	} else {
		req, err = parsePostRequest(r)
	}
	if err != nil {
		log.Debug("rejected graphql request", "method", r.Method, "error", err)
		h.writeError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
		h.metrics.observe(kind, http.StatusBadRequest, time.Since(start), nil)
		return
	}
	kind = detectOperationType(req.Query)

	resp := h.exec.Execute(r.Context(), req)
	h.writeResponse(w, http.StatusOK, resp)

	log.Debug("graphql request",
		"method", r.Method,
		"operation", req.OperationName,
		"kind", kind,
		"errors", len(resp.Errors),
		"duration", time.Since(start),
	)
	h.metrics.observe(kind, http.StatusOK, time.Since(start), resp)
}

type parseError struct {
	message string
}

func (e *parseError) Error() string {
	return e.message
}

func parseGetRequest(r *http.Request) (*Request, error) {
	query := r.URL.Query()
	req := &Request{
		Query:         query.Get("query"),
		OperationName: query.Get("operationName"),
	}
	if vars := query.Get("variables"); vars != "" {
		if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
			return nil, &parseError{message: "invalid variables JSON"}
		}
	}
	if req.Query == "" && req.OperationName == "" {
		return nil, &parseError{message: "query parameter is required"}
	}
	return req, nil
}

func parsePostRequest(r *http.Request) (*Request, error) {
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, &parseError{message: "failed to read request body"}
	}
	if len(body) > MaxRequestBodySize {
		return nil, &parseError{message: "request body too large"}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &parseError{message: "empty request body"}
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/graphql") {
		return &Request{Query: string(body)}, nil
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &parseError{message: "invalid JSON request body"}
	}
	return &req, nil
}

// detectOperationType classifies a query by its leading keyword, for
// metrics labels only.
func detectOperationType(query string) string {
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		return "persisted"
	case strings.HasPrefix(query, "{"):
		return "query"
	case strings.HasPrefix(query, "mutation"):
		return "mutation"
	case strings.HasPrefix(query, "subscription"):
		return "subscription"
	}
	return "query"
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeResponse(w, status, &Response{
		Errors: []Error{{
			Message:    message,
			Extensions: map[string]interface{}{"code": code},
		}},
	})
}

func (h *Handler) writeResponse(w http.ResponseWriter, status int, resp *Response) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(resp); err != nil {
		h.log.Error("encode response", "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"data":null,"errors":[{"message":"failed to encode response"}]}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
