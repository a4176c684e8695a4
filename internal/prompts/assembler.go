package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/career-coach/internal/tools"
	"github.com/jonathan/career-coach/internal/types"
)

const toolsFile = "tools.json"

// Prompt is the assembled input for one model call.
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

// Assembler builds the prompt for a tool run.
type Assembler interface {
	Assemble(toolID string, ec types.ExecutionContext, inputs map[string]any) (Prompt, error)
}

// TemplateAssembler renders the embedded tools.json templates.
type TemplateAssembler struct {
	registry *tools.Registry
}

// NewTemplateAssembler checks that every registered tool has both templates.
func NewTemplateAssembler(registry *tools.Registry) (*TemplateAssembler, error) {
	if _, err := Get(toolsFile, "base.system"); err != nil {
		return nil, err
	}
	for _, id := range registry.IDs() {
		for _, part := range []string{"system", "user"} {
			if _, err := Get(toolsFile, id+"."+part); err != nil {
				return nil, fmt.Errorf("tool %q: %w", id, err)
			}
		}
	}
	return &TemplateAssembler{registry: registry}, nil
}

// Assemble renders the tool's templates with the caller's context and inputs.
func (a *TemplateAssembler) Assemble(toolID string, ec types.ExecutionContext, inputs map[string]any) (Prompt, error) {
	tool, ok := a.registry.Lookup(toolID)
	if !ok {
		return Prompt{}, fmt.Errorf("no prompt registered for tool %q", toolID)
	}

	base, err := Get(toolsFile, "base.system")
	if err != nil {
		return Prompt{}, err
	}
	system, err := Get(toolsFile, toolID+".system")
	if err != nil {
		return Prompt{}, err
	}
	user, err := Get(toolsFile, toolID+".user")
	if err != nil {
		return Prompt{}, err
	}

	inputsJSON, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to encode inputs: %w", err)
	}

	data := map[string]string{
		"CareerProfile": describeCareer(ec.CareerProfile),
		"JobTarget":     describeJob(ec.JobTarget),
		"Inputs":        string(inputsJSON),
	}

	return Prompt{
		System:      base + "\n\n" + system,
		User:        Format(user, data),
		Temperature: tool.Temperature,
	}, nil
}

func describeCareer(cp *types.CareerProfile) string {
	if cp == nil {
		return "(not provided)"
	}
	var sb strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&sb, "- %s: %s\n", label, value)
		}
	}
	line("Current title", cp.CurrentTitle)
	line("Industry", cp.Industry)
	if cp.YearsExperience != nil {
		line("Years of experience", fmt.Sprint(*cp.YearsExperience))
	}
	line("Skills", strings.Join(cp.Skills, ", "))
	line("Location", cp.Location)
	line("Goals", cp.Goals)
	if cp.ResumeText != "" {
		fmt.Fprintf(&sb, "- Resume:\n%s\n", cp.ResumeText)
	}
	if sb.Len() == 0 {
		return "(not provided)"
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describeJob(jt *types.JobTarget) string {
	if jt == nil {
		return "(not provided)"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "- Title: %s\n", jt.Title)
	if jt.Company != "" {
		fmt.Fprintf(&sb, "- Company: %s\n", jt.Company)
	}
	if jt.Location != "" {
		fmt.Fprintf(&sb, "- Location: %s\n", jt.Location)
	}
	if jt.Description != "" {
		fmt.Fprintf(&sb, "- Description:\n%s\n", jt.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}
