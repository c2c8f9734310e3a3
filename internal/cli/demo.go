package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webpreempt/sage/internal/config"
	"github.com/webpreempt/sage/internal/graph/memgraph"
	"github.com/webpreempt/sage/internal/service"
	"github.com/webpreempt/sage/pkg/rdf"
)

// newDemoCommand reproduces the teacher's cmd/trigo "demo" subcommand:
// insert a handful of FOAF triples into a fresh in-memory dataset and run
// one query against it, but with a tiny quota so the preemption/resume
// cycle is visible instead of a single one-shot answer.
func newDemoCommand(root *RootOptions) *cobra.Command {
	var quotaMS int64
	var maxResults int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Load sample data and run a query under a deliberately small quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(root, quotaMS, maxResults)
		},
	}
	cmd.Flags().Int64Var(&quotaMS, "quota-ms", 1, "per-page time budget, kept tiny to force visible suspensions")
	cmd.Flags().IntVar(&maxResults, "max-results", 1, "per-page result cap, kept tiny to force visible suspensions")
	return cmd
}

func runDemo(root *RootOptions, quotaMS int64, maxResults int) error {
	manifest := &config.Manifest{
		Stateful: true,
		Datasets: []config.Dataset{{
			Name:       "demo",
			Backend:    config.BackendMemory,
			QuotaMS:    quotaMS,
			MaxResults: maxResults,
		}},
	}
	registry, err := config.NewRegistry(manifest)
	if err != nil {
		return WrapExitError(ExitCommandError, "building demo registry", err)
	}

	backend, _ := registry.Backend("demo")
	g := backend.(*memgraph.Graph)
	for _, t := range sampleTriples() {
		g.Insert(t)
	}

	svc := service.New(registry, root.Logger())
	query := `SELECT ?person ?name WHERE { ?person <http://xmlns.com/foaf/0.1/name> ?name . }`

	fmt.Println("query:", query)
	req := service.Request{Dataset: "demo", Query: query}
	page := 1
	for {
		resp, err := svc.Query(req)
		if err != nil {
			return WrapExitError(ExitFailure, "demo query failed", err)
		}
		fmt.Printf("--- page %d (done=%t, %d bindings) ---\n", page, resp.Done, len(resp.Bindings))
		if err := printResponse(resp); err != nil {
			return err
		}
		if resp.Done {
			break
		}
		req = service.Request{Dataset: "demo", ContinuationID: resp.ContinuationID}
		page++
	}
	return nil
}

func sampleTriples() []rdf.Triple {
	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	carol := rdf.NewNamedNode("http://example.org/carol")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	knows := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/knows")

	return []rdf.Triple{
		*rdf.NewTriple(alice, name, rdf.NewLiteral("Alice")),
		*rdf.NewTriple(alice, knows, bob),
		*rdf.NewTriple(bob, name, rdf.NewLiteral("Bob")),
		*rdf.NewTriple(bob, knows, carol),
		*rdf.NewTriple(carol, name, rdf.NewLiteral("Carol")),
	}
}
