// Package steps defines the tool-run pipeline steps, the progress message each
// one announces, and the dependencies that fix their order.
package steps

import (
	"fmt"
	"sort"
)

// Step names.
const (
	LoadContext    = "load_context"
	CheckTokens    = "check_tokens"
	PreparePrompt  = "prepare_prompt"
	InvokeModel    = "invoke_model"
	SaveResult     = "save_result"
	SettleTokens   = "settle_tokens"
	CreditReferral = "credit_referral"
)

// TotalProgress is the number of steps announced to the caller.
const TotalProgress = 5

// FallbackMessage is announced at the model step when the backup model is tried.
const FallbackMessage = "Retrying with backup model..."

// StepDefinition defines metadata for a pipeline step
type StepDefinition struct {
	Name string
	// Progress is the 1-based step number shown to the caller, or 0 for
	// bookkeeping steps that run after the result is saved.
	Progress     int
	Message      string
	Dependencies []string
}

// StepRegistry holds all step definitions
var StepRegistry = map[string]StepDefinition{
	LoadContext: {
		Name:     LoadContext,
		Progress: 1,
		Message:  "Validating request...",
	},
	CheckTokens: {
		Name:         CheckTokens,
		Progress:     2,
		Message:      "Checking tokens...",
		Dependencies: []string{LoadContext},
	},
	PreparePrompt: {
		Name:         PreparePrompt,
		Progress:     3,
		Message:      "Preparing AI analysis...",
		Dependencies: []string{CheckTokens},
	},
	InvokeModel: {
		Name:         InvokeModel,
		Progress:     4,
		Message:      "Running AI analysis...",
		Dependencies: []string{PreparePrompt},
	},
	SaveResult: {
		Name:         SaveResult,
		Progress:     5,
		Message:      "Saving results...",
		Dependencies: []string{InvokeModel},
	},
	SettleTokens: {
		Name:         SettleTokens,
		Dependencies: []string{SaveResult},
	},
	CreditReferral: {
		Name:         CreditReferral,
		Dependencies: []string{SettleTokens},
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks that every dependency of stepName is in completed.
func ValidateDependencies(completed map[string]bool, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// ProgressSteps returns the announced steps in the order the caller sees them.
func ProgressSteps() []StepDefinition {
	var out []StepDefinition
	for _, def := range StepRegistry {
		if def.Progress > 0 {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Progress < out[j].Progress })
	return out
}

// Tracker records which steps of one run have completed. It is not safe for
// concurrent use; a run executes its steps sequentially.
type Tracker struct {
	completed map[string]bool
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{completed: make(map[string]bool)}
}

// Begin returns the step's definition if all of its dependencies completed.
func (t *Tracker) Begin(stepName string) (StepDefinition, error) {
	if err := ValidateDependencies(t.completed, stepName); err != nil {
		return StepDefinition{}, err
	}
	return StepRegistry[stepName], nil
}

// Complete marks stepName as done.
func (t *Tracker) Complete(stepName string) {
	t.completed[stepName] = true
}

// Completed reports whether stepName is done.
func (t *Tracker) Completed(stepName string) bool {
	return t.completed[stepName]
}
