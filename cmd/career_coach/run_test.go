package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/career-coach/internal/observability"
	"github.com/jonathan/career-coach/internal/pipeline"
)

func TestBuildInvocation_InlineInputs(t *testing.T) {
	req, err := buildInvocation("jd_match", `{"job_description":"Go engineer"}`, "", "")
	require.NoError(t, err)

	assert.Equal(t, "jd_match", req.ToolID)
	require.NoError(t, req.Validate(func(id string) bool { return id == "jd_match" }))
	inputs, err := req.InputMap()
	require.NoError(t, err)
	assert.Equal(t, "Go engineer", inputs["job_description"])
}

func TestBuildInvocation_DefaultsToEmptyObject(t *testing.T) {
	req, err := buildInvocation("salary", "", "", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(req.Inputs))
}

func TestBuildInvocation_InputsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inputs.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"role":"SRE"}`), 0o600))

	jobTarget := uuid.NewString()
	req, err := buildInvocation("interview", "", path, jobTarget)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"SRE"}`, string(req.Inputs))
	assert.Equal(t, jobTarget, req.JobTargetID)
}

func TestBuildInvocation_MissingFile(t *testing.T) {
	_, err := buildInvocation("interview", "", filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, err)
}

func TestBuildInvocation_RejectsNonObject(t *testing.T) {
	req, err := buildInvocation("jd_match", `[1,2,3]`, "", "")
	require.NoError(t, err)
	assert.Error(t, req.Validate(func(string) bool { return true }))
}

func TestPrinterEmitter(t *testing.T) {
	var buf bytes.Buffer
	emit := printerEmitter(observability.NewPrinter(&buf))

	emit.Emit(pipeline.Progress{Step: 2, Total: 5, Message: "Checking tokens..."})
	emit.Emit(pipeline.ErrorEvent{Message: "Insufficient tokens", Code: pipeline.CodeInsufficientTokens})

	out := buf.String()
	assert.Contains(t, out, "Checking tokens...")
	assert.Contains(t, out, "INSUFFICIENT_TOKENS")
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "run"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}
