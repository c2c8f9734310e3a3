// Package config loads the dataset registry (C8): a YAML manifest listing
// named graphs, each bound to a backend, resource limits, and the example
// queries a CLI or demo surface should offer. Grounded on the roach88-nysm
// example's scenario-manifest style: strict field decoding via
// yaml.v3's KnownFields, an explicit Validate pass, fmt.Errorf wrapping
// throughout instead of a validation library.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/webpreempt/sage/internal/graph"
	"github.com/webpreempt/sage/internal/graph/badgergraph"
	"github.com/webpreempt/sage/internal/graph/memgraph"
	"github.com/webpreempt/sage/internal/planstore"
	"github.com/webpreempt/sage/internal/turtle"
)

// BackendKind names the supported C1 implementations.
type BackendKind string

const (
	BackendMemory BackendKind = "memory"
	BackendBadger BackendKind = "badger"
)

// Dataset describes one named graph the server can answer queries against.
type Dataset struct {
	Name           string      `yaml:"name"`
	Backend        BackendKind `yaml:"backend"`
	Path           string      `yaml:"path,omitempty"`
	QuotaMS        int64       `yaml:"quota_ms"`
	MaxResults     int         `yaml:"max_results"`
	Publish        bool        `yaml:"publish,omitempty"`
	ExampleQueries []string    `yaml:"example_queries,omitempty"`
}

// Manifest is the top-level dataset registry document. Stateful switches the
// server between returning continuation tokens directly to the client
// (stateless) and keeping them server-side in a planstore.Store, addressed
// by a short opaque id (stateful) — spec.md §9's REDESIGN FLAGS preference.
type Manifest struct {
	Stateful bool      `yaml:"stateful"`
	Datasets []Dataset `yaml:"datasets"`
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading manifest: %w", err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("config: parsing manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks required fields and rejects duplicate dataset names.
func (m *Manifest) Validate() error {
	if len(m.Datasets) == 0 {
		return fmt.Errorf("datasets list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(m.Datasets))
	for i, d := range m.Datasets {
		if d.Name == "" {
			return fmt.Errorf("datasets[%d]: name is required", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("datasets[%d]: duplicate dataset name %q", i, d.Name)
		}
		seen[d.Name] = true
		switch d.Backend {
		case BackendMemory, BackendBadger:
		default:
			return fmt.Errorf("datasets[%d] (%s): unknown backend %q", i, d.Name, d.Backend)
		}
		if d.Backend == BackendBadger && d.Path == "" {
			return fmt.Errorf("datasets[%d] (%s): badger backend requires path", i, d.Name)
		}
		if d.QuotaMS <= 0 {
			return fmt.Errorf("datasets[%d] (%s): quota_ms must be positive", i, d.Name)
		}
		if d.MaxResults <= 0 {
			return fmt.Errorf("datasets[%d] (%s): max_results must be positive", i, d.Name)
		}
	}
	return nil
}

// Find returns the named dataset's config, or false if no such dataset is
// registered.
func (m *Manifest) Find(name string) (Dataset, bool) {
	for _, d := range m.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Open builds the graph.Backend for one dataset entry. For the memory
// backend, Path (if set) names a Turtle/N-Triples file loaded eagerly; for
// badger, Path is the database directory, opened (and, if empty, left for
// the caller to populate) by internal/graph/badgergraph.
func Open(d Dataset) (graph.Backend, error) {
	switch d.Backend {
	case BackendMemory:
		g := memgraph.New(d.QuotaMS, d.MaxResults)
		if d.Path != "" {
			if err := loadTriples(g, d.Path); err != nil {
				return nil, fmt.Errorf("config: loading dataset %q: %w", d.Name, err)
			}
		}
		return g, nil
	case BackendBadger:
		g, err := badgergraph.Open(d.Path, d.QuotaMS, d.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("config: opening badger dataset %q: %w", d.Name, err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("config: unknown backend %q for dataset %q", d.Backend, d.Name)
	}
}

func loadTriples(g *memgraph.Graph, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	triples, err := turtle.NewParser(string(data)).Parse()
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	for _, t := range triples {
		g.Insert(*t)
	}
	return nil
}

// Registry is the running server's live view of the manifest: opened
// backends keyed by dataset name, plus the shared saved-plan store used when
// the manifest is stateful.
type Registry struct {
	Manifest *Manifest
	backends map[string]graph.Backend
	Plans    *planstore.Store
}

// NewRegistry opens every dataset named in m, failing closed on the first
// backend that cannot be opened.
func NewRegistry(m *Manifest) (*Registry, error) {
	r := &Registry{Manifest: m, backends: make(map[string]graph.Backend, len(m.Datasets))}
	if m.Stateful {
		r.Plans = planstore.New()
	}
	for _, d := range m.Datasets {
		b, err := Open(d)
		if err != nil {
			return nil, err
		}
		r.backends[d.Name] = b
	}
	return r, nil
}

// Backend returns the opened backend for a named dataset.
func (r *Registry) Backend(name string) (graph.Backend, bool) {
	b, ok := r.backends[name]
	return b, ok
}
