package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/career-coach/internal/config"
	"github.com/jonathan/career-coach/internal/logx"
	"github.com/jonathan/career-coach/internal/observability"
	"github.com/jonathan/career-coach/internal/pipeline"
	"github.com/jonathan/career-coach/internal/sanitize"
	"github.com/jonathan/career-coach/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run one career tool for a user and print the result",
	Long: `Runs a tool through the same pipeline the API uses: context load, token check, model call with fallback, result storage and token settlement.

Inputs are a JSON object given with --inputs or read from --inputs-file. Tokens are charged exactly as for an API call.`,
	RunE: runToolCmd,
}

var (
	runUserID     string
	runToolID     string
	runInputs     string
	runInputsFile string
	runJobTarget  string
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringVarP(&runUserID, "user", "u", "", "User ID to run as (required)")
	runCommand.Flags().StringVarP(&runToolID, "tool", "t", "", "Tool ID, e.g. jd_match (required)")
	runCommand.Flags().StringVarP(&runInputs, "inputs", "i", "", "Tool inputs as a JSON object")
	runCommand.Flags().StringVar(&runInputsFile, "inputs-file", "", "Path to a JSON file with tool inputs (mutually exclusive with --inputs)")
	runCommand.Flags().StringVar(&runJobTarget, "job-target", "", "Job target ID to personalize with")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print the model route and loaded context")

	_ = runCommand.MarkFlagRequired("user")
	_ = runCommand.MarkFlagRequired("tool")
	runCommand.MarkFlagsMutuallyExclusive("inputs", "inputs-file")

	rootCmd.AddCommand(runCommand)
}

func runToolCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userID, err := uuid.Parse(runUserID)
	if err != nil {
		return fmt.Errorf("--user must be a UUID: %w", err)
	}
	req, err := buildInvocation(runToolID, runInputs, runInputsFile, runJobTarget)
	if err != nil {
		return err
	}

	cfg, err := config.LoadLocal()
	if err != nil {
		return err
	}
	initLogging(cfg)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := req.Validate(a.tools.Known); err != nil {
		return fmt.Errorf("invalid invocation: %s", types.ValidationMessage(err))
	}
	inputs, err := req.InputMap()
	if err != nil {
		return err
	}
	inputs, report := sanitize.Inputs(inputs, cfg.MaxInputChars)
	if report.Changed() {
		logx.Warn().Int("filtered", report.Filtered).Strs("truncated", report.Truncated).Msg("tool inputs sanitized")
	}

	runReq := pipeline.Request{UserID: userID, ToolID: req.ToolID, Inputs: inputs}
	if req.JobTargetID != "" {
		id := uuid.MustParse(req.JobTargetID)
		runReq.JobTargetID = &id
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if runVerbose {
		printer.PrintRoute(a.router.Route(runReq.ToolID))
		ec, err := pipeline.LoadContext(ctx, a.db, userID, runReq.JobTargetID)
		if err != nil {
			return fmt.Errorf("failed to load context: %w", err)
		}
		printer.PrintExecutionContext(ec)
	}

	return a.pipeline.Run(ctx, runReq, printerEmitter(printer))
}

// buildInvocation assembles the request the API would have received.
func buildInvocation(toolID, inputs, inputsFile, jobTarget string) (*types.ToolInvocationRequest, error) {
	raw := []byte(inputs)
	if inputsFile != "" {
		b, err := os.ReadFile(inputsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read inputs file: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	return &types.ToolInvocationRequest{
		ToolID:      toolID,
		Inputs:      json.RawMessage(raw),
		JobTargetID: jobTarget,
	}, nil
}

// printerEmitter renders pipeline events on the terminal.
func printerEmitter(p *observability.Printer) pipeline.Emitter {
	return pipeline.EmitterFunc(func(e pipeline.Event) {
		switch ev := e.(type) {
		case pipeline.Progress:
			p.PrintProgress(ev.Step, ev.Total, ev.Message)
		case pipeline.Complete:
			p.PrintResult(ev.ResultID.String(), ev.Result)
		case pipeline.ErrorEvent:
			p.PrintFailure(string(ev.Code), ev.Message)
		}
	})
}
