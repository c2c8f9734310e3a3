// Package service is the query entry point any transport (CLI, HTTP) calls
// into: it parses or resumes a query, drives it one quota page through
// internal/engine, and packages the result with the import/export timing
// breakdown the base spec's stats payload calls for. Grounded on the
// teacher's pkg/server/handlers.go, which plays the same dispatcher role
// between a transport and the engine, but rebuilt around continuation
// tokens instead of the teacher's plain request/response pair.
package service

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/webpreempt/sage/internal/config"
	"github.com/webpreempt/sage/internal/engine"
	"github.com/webpreempt/sage/internal/iterator"
	"github.com/webpreempt/sage/internal/parser"
	"github.com/webpreempt/sage/internal/planner"
	"github.com/webpreempt/sage/internal/planstore"
	"github.com/webpreempt/sage/internal/sparqlerr"
	"github.com/webpreempt/sage/pkg/rdf"
)

// Request is one query call: either Query is set (fresh execution) or
// Continuation/ContinuationID is set (resuming a suspended one), never both.
type Request struct {
	Dataset string

	// Query is a SPARQL SELECT or ASK query text, set on a fresh request.
	Query string

	// Continuation is the opaque token returned by a prior Response, used
	// to resume when the manifest is stateless.
	Continuation []byte

	// ContinuationID addresses a token the Service kept server-side in its
	// planstore, used to resume when the manifest is stateful. The caller
	// gets this id back (not the raw token) in a stateful Response.
	ContinuationID string
}

// Stats reports the optimizer's cardinality estimates and a coarse
// import/export timing split, the same two phases the original SaGe engine
// separates in its response payload: import covers parsing and planning
// (or decoding a continuation), export covers the quota-bounded pull.
type Stats struct {
	Cardinalities map[string]int64
	ImportMS      int64
	ExportMS      int64
}

// Response is one page of query results.
type Response struct {
	Bindings []*rdf.Binding

	// AskResult is non-nil for ASK queries: true if at least one solution
	// was found. Bindings is always empty for ASK.
	AskResult *bool

	// Continuation is the raw token to send back on the next request, set
	// only when the manifest is stateless and the query is not Done.
	Continuation []byte

	// ContinuationID addresses the token this Service saved server-side,
	// set only when the manifest is stateful and the query is not Done.
	ContinuationID string

	Done        bool
	AbortReason string
	Stats       Stats
}

// Service dispatches requests against a dataset registry.
type Service struct {
	registry *config.Registry
	log      *slog.Logger
}

// New returns a Service backed by registry, logging to logger (a discard
// logger if nil).
func New(registry *config.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{registry: registry, log: logger}
}

// Query dispatches req, either compiling req.Query into a fresh plan or
// resuming the plan named by req.Continuation/req.ContinuationID, and drives
// it one quota page under the dataset's configured budget.
func (s *Service) Query(req Request) (*Response, error) {
	backend, ok := s.registry.Backend(req.Dataset)
	if !ok {
		return nil, sparqlerr.New(sparqlerr.UnknownGraph, "unknown dataset %q", req.Dataset)
	}
	dataset, _ := s.registry.Manifest.Find(req.Dataset)
	eng := engine.New(backend, s.log)

	importStart := time.Now()
	op, ask, cardinalities, resumeID, err := s.buildOperator(eng, req)
	if err != nil {
		return nil, err
	}
	importMS := time.Since(importStart).Milliseconds()

	exportStart := time.Now()
	result, err := eng.Execute(op, dataset.QuotaMS, dataset.MaxResults)
	if err != nil {
		return nil, err
	}
	exportMS := time.Since(exportStart).Milliseconds()

	resp := &Response{
		Bindings:    result.Bindings,
		Done:        result.Done,
		AbortReason: result.AbortReason,
		Stats: Stats{
			Cardinalities: cardinalities,
			ImportMS:      importMS,
			ExportMS:      exportMS,
		},
	}
	if ask {
		found := len(result.Bindings) > 0
		resp.AskResult = &found
		resp.Bindings = nil
	}

	if err := s.carryContinuation(resp, result, resumeID); err != nil {
		return nil, err
	}
	return resp, nil
}

// buildOperator resolves req into a physical operator: either a fresh plan
// compiled from req.Query, or a resumed one decoded from req.Continuation
// or the token saved under req.ContinuationID. resumeID is the planstore id
// to reuse on the next page, set only when req.ContinuationID was used.
func (s *Service) buildOperator(eng *engine.Engine, req Request) (op iterator.Operator, ask bool, cardinalities map[string]int64, resumeID string, err error) {
	switch {
	case req.Query != "":
		q, perr := parser.Parse(req.Query)
		if perr != nil {
			return nil, false, nil, "", fmt.Errorf("service: parsing query: %w", perr)
		}
		var plan *planner.Plan
		plan, err = eng.Plan(q)
		if err != nil {
			return nil, false, nil, "", err
		}
		return plan.Operator, q.Ask, plan.Cardinalities, "", nil

	case req.ContinuationID != "":
		if s.registry.Plans == nil {
			return nil, false, nil, "", sparqlerr.New(sparqlerr.InvalidContinuation, "manifest is not stateful, cannot resume by id")
		}
		token, ok := s.registry.Plans.Take(req.ContinuationID)
		if !ok {
			return nil, false, nil, "", sparqlerr.New(sparqlerr.InvalidContinuation, "no saved plan for id %q", req.ContinuationID)
		}
		op, err = eng.Resume(token)
		if err != nil {
			return nil, false, nil, "", err
		}
		return op, false, nil, req.ContinuationID, nil

	case req.Continuation != nil:
		op, err = eng.Resume(req.Continuation)
		if err != nil {
			return nil, false, nil, "", err
		}
		return op, false, nil, "", nil

	default:
		return nil, false, nil, "", sparqlerr.New(sparqlerr.UnsupportedSPARQL, "request carries neither a query nor a continuation")
	}
}

// carryContinuation attaches the token for the next page, if any, either
// raw (stateless manifest) or addressed by a planstore id (stateful
// manifest), reusing a resumed request's id across its lineage and
// deleting it once the lineage reports Done, per the saved-plan store's
// documented lifecycle.
func (s *Service) carryContinuation(resp *Response, result *engine.Result, resumeID string) error {
	if s.registry.Plans == nil {
		resp.Continuation = result.Continuation
		return nil
	}
	if resumeID != "" {
		if result.Done || result.Continuation == nil {
			s.registry.Plans.Delete(resumeID)
			return nil
		}
		s.registry.Plans.Save(resumeID, result.Continuation)
		resp.ContinuationID = resumeID
		return nil
	}
	if !result.Done && result.Continuation != nil {
		newID := planstore.NewID()
		s.registry.Plans.Save(newID, result.Continuation)
		resp.ContinuationID = newID
	}
	return nil
}
