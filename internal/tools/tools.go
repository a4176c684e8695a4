// Package tools registers the AI tools a caller can run: their token cost,
// model tier, output schema and how a result is summarized.
package tools

import (
	"fmt"
	"io/fs"
	"sort"

	"github.com/jonathan/career-coach/internal/llm"
	"github.com/jonathan/career-coach/internal/schemas"
	toolschemas "github.com/jonathan/career-coach/schemas"
)

// Tool identifiers.
const (
	Displacement     = "displacement"
	JDMatch          = "jd_match"
	Resume           = "resume"
	CoverLetter      = "cover_letter"
	LinkedIn         = "linkedin"
	Headshots        = "headshots"
	Interview        = "interview"
	SkillsGap        = "skills_gap"
	Roadmap          = "roadmap"
	Salary           = "salary"
	Entrepreneurship = "entrepreneurship"
)

// Tool is the registered strategy for one tool id.
type Tool struct {
	ID              string
	Name            string
	Cost            int
	Tier            llm.ModelTier
	MaxOutputTokens int
	Temperature     float64
	// NeedsJobTarget marks tools whose prompt uses the caller's job target.
	NeedsJobTarget bool

	schema  *schemas.Schema
	summary func(result map[string]any) string
	metric  func(result map[string]any) *float64
}

// Summary returns a short human-readable description of a result.
func (t Tool) Summary(result map[string]any) string {
	if s, ok := stringAt(result, "summary"); ok && s != "" {
		return truncate(s, maxSummaryLen)
	}
	if t.summary != nil {
		return truncate(t.summary(result), maxSummaryLen)
	}
	return t.Name + " completed"
}

// Metric returns the tool's headline number, if the result has one.
func (t Tool) Metric(result map[string]any) *float64 {
	if t.metric == nil {
		return nil
	}
	return t.metric(result)
}

// ValidateResult checks result against the tool's output schema.
func (t Tool) ValidateResult(result map[string]any) error {
	if t.schema == nil {
		return nil
	}
	return t.schema.Validate(result)
}

// Registry is an immutable set of tools keyed by id.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry and compiles each tool's schema from
// schemas/tools/<id>.schema.json.
func NewRegistry(defs []Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(defs))}
	for _, t := range defs {
		if t.ID == "" {
			return nil, fmt.Errorf("tool with empty id")
		}
		if _, dup := r.tools[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.ID)
		}
		if t.Cost < 0 {
			return nil, fmt.Errorf("tool %q has negative cost %d", t.ID, t.Cost)
		}
		if t.schema == nil {
			s, err := loadSchema(t.ID)
			if err != nil {
				return nil, err
			}
			t.schema = s
		}
		r.tools[t.ID] = t
	}
	return r, nil
}

func loadSchema(id string) (*schemas.Schema, error) {
	content, err := fs.ReadFile(toolschemas.FS, "tools/"+id+".schema.json")
	if err != nil {
		return nil, fmt.Errorf("tool %q: missing output schema: %w", id, err)
	}
	return schemas.Compile(id, content)
}

// Default returns the built-in registry.
func Default() (*Registry, error) {
	return NewRegistry(defaultTools())
}

// MustDefault is Default for program initialization and tests.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the tool for id.
func (r *Registry) Lookup(id string) (Tool, bool) {
	t, ok := r.tools[id]
	return t, ok
}

// Known reports whether id is registered.
func (r *Registry) Known(id string) bool {
	_, ok := r.tools[id]
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cost returns the token cost of id, or false for unknown tools.
func (r *Registry) Cost(id string) (int, bool) {
	t, ok := r.tools[id]
	return t.Cost, ok
}

// WithCosts returns a copy of the registry with per-tool cost overrides.
func (r *Registry) WithCosts(overrides map[string]int) (*Registry, error) {
	next := &Registry{tools: make(map[string]Tool, len(r.tools))}
	for id, t := range r.tools {
		next.tools[id] = t
	}
	for id, cost := range overrides {
		t, ok := next.tools[id]
		if !ok {
			return nil, fmt.Errorf("cost override for unknown tool %q", id)
		}
		if cost < 0 {
			return nil, fmt.Errorf("tool %q has negative cost %d", id, cost)
		}
		t.Cost = cost
		next.tools[id] = t
	}
	return next, nil
}

// RouteSpecs exposes each tool's model needs for the router.
func (r *Registry) RouteSpecs() map[string]llm.RouteSpec {
	out := make(map[string]llm.RouteSpec, len(r.tools))
	for id, t := range r.tools {
		out[id] = llm.RouteSpec{Tier: t.Tier, MaxOutputTokens: t.MaxOutputTokens}
	}
	return out
}
