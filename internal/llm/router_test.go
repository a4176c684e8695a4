package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpecs() map[string]RouteSpec {
	return map[string]RouteSpec{
		"displacement": {Tier: TierLite, MaxOutputTokens: 1500},
		"resume":       {Tier: TierAdvanced, MaxOutputTokens: 8000},
		"salary":       {Tier: TierStandard},
	}
}

func TestRouter_Route(t *testing.T) {
	r := NewRouter(DefaultConfig(), testSpecs())

	want := ModelRoute{
		ToolID:          "resume",
		PrimaryModel:    "gpt-4.1",
		FallbackModel:   "gpt-4o-mini",
		MaxOutputTokens: 8000,
		Tier:            TierAdvanced,
	}
	if diff := cmp.Diff(want, r.Route("resume")); diff != "" {
		t.Errorf("Route(resume) mismatch (-want +got):\n%s", diff)
	}

	salary := r.Route("salary")
	assert.Equal(t, DefaultMaxOutputTokens, salary.MaxOutputTokens)
	assert.Equal(t, "gpt-4o", salary.PrimaryModel)
}

func TestRouter_RouteIsIdempotent(t *testing.T) {
	r := NewRouter(DefaultConfig(), testSpecs())

	for _, id := range []string{"displacement", "resume", "salary", "not-a-tool"} {
		first := r.Route(id)
		second := r.Route(id)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("Route(%q) changed between calls (-first +second):\n%s", id, diff)
		}
	}
}

func TestRouter_UnknownToolGetsGenericRoute(t *testing.T) {
	r := NewRouter(DefaultConfig(), testSpecs())

	route := r.Route("not-a-tool")

	assert.Equal(t, "not-a-tool", route.ToolID)
	assert.Equal(t, TierStandard, route.Tier)
	assert.Equal(t, "gpt-4o", route.PrimaryModel)
	assert.Equal(t, "gpt-4o-mini", route.FallbackModel)
	assert.Equal(t, DefaultMaxOutputTokens, route.MaxOutputTokens)
}

func TestRouter_AllRoutesShareFallback(t *testing.T) {
	r := NewRouter(DefaultGeminiConfig(), testSpecs())
	for id := range testSpecs() {
		assert.Equal(t, "gemini-2.5-flash", r.Route(id).FallbackModel, id)
	}
}

func TestRouter_WithOverrides(t *testing.T) {
	base := NewRouter(DefaultConfig(), testSpecs())

	next, err := base.WithOverrides(RoutesFile{
		FallbackModel: "backup-model",
		Routes: map[string]RouteOverride{
			"displacement": {Tier: TierAdvanced},
			"salary":       {PrimaryModel: "custom-salary", MaxOutputTokens: 900},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", next.Route("displacement").PrimaryModel)
	assert.Equal(t, TierAdvanced, next.Route("displacement").Tier)
	assert.Equal(t, "custom-salary", next.Route("salary").PrimaryModel)
	assert.Equal(t, 900, next.Route("salary").MaxOutputTokens)
	assert.Equal(t, "backup-model", next.Route("resume").FallbackModel)
	assert.Equal(t, "backup-model", next.FallbackModel())

	// Original router is unchanged.
	assert.Equal(t, "gpt-4o-mini", base.Route("resume").FallbackModel)
	assert.Equal(t, TierLite, base.Route("displacement").Tier)
}

func TestRouter_WithOverrides_Errors(t *testing.T) {
	base := NewRouter(DefaultConfig(), testSpecs())

	_, err := base.WithOverrides(RoutesFile{Routes: map[string]RouteOverride{"unknown": {PrimaryModel: "x"}}})
	assert.Error(t, err)

	_, err = base.WithOverrides(RoutesFile{Routes: map[string]RouteOverride{"resume": {Tier: "ultra"}}})
	assert.Error(t, err)

	_, err = base.WithOverrides(RoutesFile{Routes: map[string]RouteOverride{"resume": {MaxOutputTokens: -1}}})
	assert.Error(t, err)
}

func TestRouter_LoadRoutesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	content := `
fallback_model: gpt-4o-mini-2024
routes:
  resume:
    primary_model: gpt-4.1-large
    max_output_tokens: 12000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	r, err := NewRouter(DefaultConfig(), testSpecs()).LoadRoutesFile(path)
	require.NoError(t, err)

	route := r.Route("resume")
	assert.Equal(t, "gpt-4.1-large", route.PrimaryModel)
	assert.Equal(t, 12000, route.MaxOutputTokens)
	assert.Equal(t, "gpt-4o-mini-2024", route.FallbackModel)
}

func TestRouter_LoadRoutesFile_EmptyPathAndErrors(t *testing.T) {
	base := NewRouter(DefaultConfig(), testSpecs())

	same, err := base.LoadRoutesFile("")
	require.NoError(t, err)
	assert.Same(t, base, same)

	_, err = base.LoadRoutesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("routes: [unclosed"), 0o600))
	_, err = base.LoadRoutesFile(bad)
	assert.Error(t, err)
}
