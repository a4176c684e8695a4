package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/career-coach/internal/llm"
	"github.com/jonathan/career-coach/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the verbose CLI run mode.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintProgress outputs one pipeline progress line.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(step, total int, message string) {
	fmt.Fprintf(p.out, "[%d/%d] %s\n", step, total, message)
}

// PrintRoute outputs the model route chosen for a tool.
func (p *Printer) PrintRoute(route llm.ModelRoute) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Tool:      %s\n", route.ToolID))
	sb.WriteString(fmt.Sprintf("Tier:      %s\n", route.Tier))
	sb.WriteString(fmt.Sprintf("Primary:   %s\n", route.PrimaryModel))
	sb.WriteString(fmt.Sprintf("Fallback:  %s\n", route.FallbackModel))
	sb.WriteString(fmt.Sprintf("Max out:   %d", route.MaxOutputTokens))

	p.printBox("MODEL ROUTE", sb.String())
}

// PrintExecutionContext outputs what a run is personalized with.
func (p *Printer) PrintExecutionContext(ec *types.ExecutionContext) {
	if ec == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("User:      %s\n", ec.UserID))
	if ec.Profile != nil {
		sb.WriteString(fmt.Sprintf("Balance:   %d (+%d bonus)\n", ec.Profile.TokenBalance, ec.Profile.BonusTokens))
	}
	if cp := ec.CareerProfile; cp != nil {
		sb.WriteString(fmt.Sprintf("Title:     %s\n", cp.CurrentTitle))
		if len(cp.Skills) > 0 {
			sb.WriteString(fmt.Sprintf("Skills:    %s\n", strings.Join(cp.Skills, ", ")))
		}
	} else {
		sb.WriteString("Career:    (none)\n")
	}
	if jt := ec.JobTarget; jt != nil {
		sb.WriteString(fmt.Sprintf("Target:    %s at %s", jt.Title, jt.Company))
	} else {
		sb.WriteString("Target:    (none)")
	}

	p.printBox("EXECUTION CONTEXT", sb.String())
}

// PrintResult outputs the top-level fields of a completed tool result.
func (p *Printer) PrintResult(resultID string, result map[string]any) {
	if result == nil {
		return
	}

	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Result ID: %s\n\n", resultID))

	count := min(len(keys), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("%s: %s\n", keys[i], describeValue(result[keys[i]])))
	}
	if len(keys) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more fields", len(keys)-maxItemsToShow))
	}

	p.printBox("TOOL RESULT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFailure outputs a terminal pipeline error.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintFailure(code, message string) {
	fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip("⚠ "+code, boxWidth-4))
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(message, boxWidth-4))
	fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
}

func describeValue(v any) string {
	switch t := v.(type) {
	case []any:
		return fmt.Sprintf("[%d items]", len(t))
	case map[string]any:
		return fmt.Sprintf("{%d fields}", len(t))
	case float64:
		return fmt.Sprintf("%g", t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
