// Package engine implements the quota-bounded execution driver (C5): it
// pulls a physical plan under a time and result-count budget, enforces the
// transaction pairing invariant (exactly one commit or abort per execution),
// and classifies failures into the typed sparqlerr taxonomy. Grounded on the
// teacher's plain, unhurried control-flow style (no generic "runner"
// abstraction, one Execute method doing the whole algorithm inline) rather
// than a reusable scheduler package.
package engine

import (
	"log/slog"
	"time"

	"github.com/webpreempt/sage/internal/algebra"
	"github.com/webpreempt/sage/internal/continuation"
	"github.com/webpreempt/sage/internal/graph"
	"github.com/webpreempt/sage/internal/iterator"
	"github.com/webpreempt/sage/internal/planner"
	"github.com/webpreempt/sage/internal/sparqlerr"
	"github.com/webpreempt/sage/pkg/rdf"
)

// Result is one page of execution: the bindings produced this call, the
// continuation to resume from (nil if the query finished or aborted), and
// whether the query is fully done.
type Result struct {
	Bindings     []*rdf.Binding
	Continuation []byte
	Done         bool
	AbortReason  string
}

// Engine drives plans against one graph backend.
type Engine struct {
	backend graph.Backend
	scan    *scanBackend
	planner *planner.Planner
	log     *slog.Logger
}

// New returns an Engine bound to backend, logging plan transitions and
// aborts to logger (a no-op discard logger if nil).
func New(backend graph.Backend, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	scan := newScanBackend(backend)
	return &Engine{backend: backend, scan: scan, planner: planner.New(scan), log: logger}
}

// Plan compiles query into a fresh physical plan via the engine's optimizer.
func (e *Engine) Plan(query *algebra.Query) (*planner.Plan, error) {
	return e.planner.Build(query)
}

// Resume decodes a continuation token into a physical plan, rebound to this
// engine's backend and evaluator.
func (e *Engine) Resume(token []byte) (iterator.Operator, error) {
	node, err := continuation.Decode(token)
	if err != nil {
		return nil, err
	}
	builder := e.planner.Builder()
	op, err := builder.Build(node)
	if err != nil {
		return nil, sparqlerr.Wrap(sparqlerr.InvalidContinuation, err, "continuation referenced an unbuildable plan")
	}
	return op, nil
}

// Execute drives plan until quotaMS elapses, maxResults bindings have been
// emitted, the plan is exhausted, or an error occurs — following spec.md
// §4.5's algorithm, including the transaction pairing invariant: exactly one
// of Commit/Abort runs per call. When a page reaches maxResults, one further
// pull checks whether the plan is exhausted, so the last page reports Done.
func (e *Engine) Execute(plan iterator.Operator, quotaMS int64, maxResults int) (*Result, error) {
	start := time.Now()
	budget := &iterator.Budget{}
	var bindings []*rdf.Binding

	for {
		if elapsed := time.Since(start).Milliseconds(); elapsed >= quotaMS {
			budget.Preempt = true
		}

		b, sig, err := plan.Next(budget)
		if err != nil {
			reason := classify(err)
			e.log.Warn("execution aborted", "reason", reason, "emitted", len(bindings))
			if abortErr := e.backend.Abort(); abortErr != nil {
				e.log.Warn("backend abort failed", "error", abortErr)
			}
			return &Result{Bindings: bindings, Done: false, AbortReason: reason}, nil
		}

		switch sig {
		case iterator.Emitted:
			bindings = append(bindings, b)
			if len(bindings) == maxResults {
				// The token is taken before one more pull, so a page that fills
				// the cap on the plan's last binding still reports Done; on any
				// other outcome the resumed plan starts from that token.
				token := continuation.Encode(plan.Dump())
				if _, next, err := plan.Next(budget); err == nil && next == iterator.Done {
					e.log.Debug("execution finished", "emitted", len(bindings))
					if err := e.backend.Commit(); err != nil {
						return nil, err
					}
					return &Result{Bindings: bindings, Done: true}, nil
				}
				e.log.Debug("execution suspended", "emitted", len(bindings), "tokenBytes", len(token))
				if err := e.backend.Commit(); err != nil {
					return nil, err
				}
				return &Result{Bindings: bindings, Continuation: token, Done: false}, nil
			}
		case iterator.Done:
			e.log.Debug("execution finished", "emitted", len(bindings))
			if err := e.backend.Commit(); err != nil {
				return nil, err
			}
			return &Result{Bindings: bindings, Done: true}, nil
		case iterator.Suspended:
			return e.suspend(plan, bindings)
		}
	}
}

func (e *Engine) suspend(plan iterator.Operator, bindings []*rdf.Binding) (*Result, error) {
	token := continuation.Encode(plan.Dump())
	e.log.Debug("execution suspended", "emitted", len(bindings), "tokenBytes", len(token))
	if err := e.backend.Commit(); err != nil {
		return nil, err
	}
	return &Result{Bindings: bindings, Continuation: token, Done: false}, nil
}

// classify turns an operator error into the abort reason string the base
// spec's error table calls for: DistinctOverflow and BudgetExceededInternally
// are reported as BackendAbort with a distinguished reason, everything else
// passes through as its own message.
func classify(err error) string {
	switch {
	case sparqlerr.Is(err, sparqlerr.DistinctOverflow):
		return "distinct-overflow: " + err.Error()
	case sparqlerr.Is(err, sparqlerr.BudgetExceededInternally):
		return "budget-exceeded: " + err.Error()
	default:
		return err.Error()
	}
}
