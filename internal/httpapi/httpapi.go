// Package httpapi implements the SPARQL 1.1 Protocol HTTP binding
// (https://www.w3.org/TR/sparql11-protocol/) over a service.Service,
// grounded on the teacher's internal/server/server.go handleSPARQL method:
// same GET/POST query-extraction switch and CORS headers, but dispatching
// to one dataset registry's Service instead of a single fixed TripleStore,
// and replying with resultsjson.Encode's paged JSON instead of the teacher's
// XML/CONSTRUCT-aware writer (XML and CONSTRUCT are both non-goals here).
package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/webpreempt/sage/internal/resultsjson"
	"github.com/webpreempt/sage/internal/service"
	"github.com/webpreempt/sage/internal/sparqlerr"
)

// Handler serves the SPARQL protocol endpoint for one dataset registry.
type Handler struct {
	svc *service.Service
	log *slog.Logger
}

// New returns a Handler dispatching through svc, logging to logger (a
// discard logger if nil).
func New(svc *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, log: logger}
}

// Mux returns an http.ServeMux with the endpoint's routes registered,
// matching the teacher's mux layout minus the bulk-upload route (dataset
// population is the manifest's job here, not an HTTP write path).
func (h *Handler) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/sparql/{dataset}", h.handleQuery)
	mux.HandleFunc("/healthz", h.handleHealth)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleQuery implements the SPARQL query operation: a fresh query (the
// "query" form parameter) or a resume (either "continuation", base64
// encoded, or "continuationId").
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	dataset := r.PathValue("dataset")
	req, err := h.parseRequest(dataset, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.svc.Query(req)
	if err != nil {
		h.writeError(w, statusFor(err), err.Error())
		return
	}

	doc, err := resultsjson.Encode(resp, nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/sparql-results+json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (h *Handler) parseRequest(dataset string, r *http.Request) (service.Request, error) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		return requestFromValues(dataset, q.Get("query"), q.Get("continuation"), q.Get("continuationId"))

	case http.MethodPost:
		contentType := r.Header.Get("Content-Type")
		if strings.Contains(contentType, "application/sparql-query") {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				return service.Request{}, fmt.Errorf("reading request body: %w", err)
			}
			return service.Request{Dataset: dataset, Query: string(body)}, nil
		}
		if err := r.ParseForm(); err != nil {
			return service.Request{}, fmt.Errorf("parsing form body: %w", err)
		}
		return requestFromValues(dataset, r.FormValue("query"), r.FormValue("continuation"), r.FormValue("continuationId"))

	default:
		return service.Request{}, fmt.Errorf("method %s not allowed, use GET or POST", r.Method)
	}
}

func requestFromValues(dataset, query, continuation, continuationID string) (service.Request, error) {
	req := service.Request{Dataset: dataset, Query: query, ContinuationID: continuationID}
	if continuation != "" {
		token, err := base64.StdEncoding.DecodeString(continuation)
		if err != nil {
			return service.Request{}, fmt.Errorf("decoding continuation: %w", err)
		}
		req.Continuation = token
	}
	if req.Query == "" && req.ContinuationID == "" && req.Continuation == nil {
		return service.Request{}, fmt.Errorf("one of 'query', 'continuation' or 'continuationId' is required")
	}
	return req, nil
}

func statusFor(err error) int {
	switch {
	case sparqlerr.Is(err, sparqlerr.UnknownGraph):
		return http.StatusNotFound
	case sparqlerr.Is(err, sparqlerr.UnsupportedSPARQL), sparqlerr.Is(err, sparqlerr.InvalidContinuation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.log.Warn("request failed", "status", status, "message", message)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}
