package llm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxOutputTokens applies to routes that do not set their own budget.
const DefaultMaxOutputTokens = 4096

// ModelRoute is the static model selection for one tool.
type ModelRoute struct {
	ToolID          string    `json:"tool_id" yaml:"tool_id"`
	PrimaryModel    string    `json:"primary_model" yaml:"primary_model"`
	FallbackModel   string    `json:"fallback_model" yaml:"fallback_model"`
	MaxOutputTokens int       `json:"max_output_tokens" yaml:"max_output_tokens"`
	Tier            ModelTier `json:"tier" yaml:"tier"`
}

// RouteSpec is what a tool declares about its model needs.
type RouteSpec struct {
	Tier            ModelTier
	MaxOutputTokens int
}

// RouteOverride replaces parts of a tool's route. Empty fields keep the default.
type RouteOverride struct {
	PrimaryModel    string    `yaml:"primary_model"`
	MaxOutputTokens int       `yaml:"max_output_tokens"`
	Tier            ModelTier `yaml:"tier"`
}

// RoutesFile is the YAML layout of a model routes override file.
type RoutesFile struct {
	FallbackModel string                   `yaml:"fallback_model"`
	Routes        map[string]RouteOverride `yaml:"routes"`
}

// Router maps tool ids to model routes. Routes are resolved once at
// construction and never change afterwards.
type Router struct {
	cfg      *Config
	routes   map[string]ModelRoute
	fallback string
}

// NewRouter resolves a route for every tool spec using the tier models in cfg.
func NewRouter(cfg *Config, specs map[string]RouteSpec) *Router {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Router{
		cfg:      cfg,
		routes:   make(map[string]ModelRoute, len(specs)),
		fallback: cfg.FallbackModel,
	}
	for id, spec := range specs {
		r.routes[id] = r.resolve(id, spec)
	}
	return r
}

func (r *Router) resolve(toolID string, spec RouteSpec) ModelRoute {
	tier := spec.Tier
	if !tier.Valid() {
		tier = TierStandard
	}
	maxTokens := spec.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}
	return ModelRoute{
		ToolID:          toolID,
		PrimaryModel:    r.cfg.GetModel(tier),
		FallbackModel:   r.fallback,
		MaxOutputTokens: maxTokens,
		Tier:            tier,
	}
}

// Route returns the route for toolID. An unknown id gets a generic
// standard-tier route instead of an error; callers validate ids upstream.
func (r *Router) Route(toolID string) ModelRoute {
	if route, ok := r.routes[toolID]; ok {
		return route
	}
	return r.resolve(toolID, RouteSpec{Tier: TierStandard})
}

// FallbackModel returns the shared fallback model.
func (r *Router) FallbackModel() string {
	return r.fallback
}

// WithOverrides returns a new Router with the file's overrides applied.
// Overrides for tools the router does not know are rejected.
func (r *Router) WithOverrides(file RoutesFile) (*Router, error) {
	next := &Router{
		cfg:      r.cfg,
		routes:   make(map[string]ModelRoute, len(r.routes)),
		fallback: r.fallback,
	}
	if fb := strings.TrimSpace(file.FallbackModel); fb != "" {
		next.fallback = fb
	}

	for id, route := range r.routes {
		route.FallbackModel = next.fallback
		next.routes[id] = route
	}

	for id, o := range file.Routes {
		route, ok := next.routes[id]
		if !ok {
			return nil, fmt.Errorf("model routes: unknown tool %q", id)
		}
		if o.Tier != "" {
			if !o.Tier.Valid() {
				return nil, fmt.Errorf("model routes: tool %q has invalid tier %q", id, o.Tier)
			}
			route.Tier = o.Tier
			route.PrimaryModel = next.cfg.GetModel(o.Tier)
		}
		if m := strings.TrimSpace(o.PrimaryModel); m != "" {
			route.PrimaryModel = m
		}
		if o.MaxOutputTokens < 0 {
			return nil, fmt.Errorf("model routes: tool %q has negative max_output_tokens", id)
		}
		if o.MaxOutputTokens > 0 {
			route.MaxOutputTokens = o.MaxOutputTokens
		}
		next.routes[id] = route
	}
	return next, nil
}

// ParseRoutesFile decodes a YAML routes file.
func ParseRoutesFile(data []byte) (RoutesFile, error) {
	var file RoutesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RoutesFile{}, fmt.Errorf("parse model routes file: %w", err)
	}
	return file, nil
}

// LoadRoutesFile reads and applies the override file at path. An empty path
// returns r unchanged.
func (r *Router) LoadRoutesFile(path string) (*Router, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return r, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model routes file: %w", err)
	}
	file, err := ParseRoutesFile(b)
	if err != nil {
		return nil, err
	}
	return r.WithOverrides(file)
}
