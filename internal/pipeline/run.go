// Package pipeline runs one AI tool for one caller: it loads the caller's
// context, checks the token balance, invokes the model, stores the result and
// settles the charge, announcing each step as an Event.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonathan/career-coach/internal/db"
	"github.com/jonathan/career-coach/internal/llm"
	"github.com/jonathan/career-coach/internal/logx"
	"github.com/jonathan/career-coach/internal/observability"
	"github.com/jonathan/career-coach/internal/pipeline/steps"
	"github.com/jonathan/career-coach/internal/prompts"
	"github.com/jonathan/career-coach/internal/tools"
	"github.com/jonathan/career-coach/internal/types"
)

// persistTimeout bounds storing a result, independent of the caller's request.
const persistTimeout = 10 * time.Second

// Store is the persistence the pipeline needs.
type Store interface {
	ContextStore
	CreateToolResult(ctx context.Context, r *types.ToolResult) error
}

// Router picks the model route for a tool.
type Router interface {
	Route(toolID string) llm.ModelRoute
}

// Invoker runs the primary/fallback model call.
type Invoker interface {
	Invoke(ctx context.Context, inv llm.Invocation) (*llm.AIResponse, error)
}

// Settler charges a caller for a stored result.
type Settler interface {
	Settle(ctx context.Context, userID uuid.UUID, cost int, resultID uuid.UUID) (*db.SpendResult, error)
}

// ReferralEvaluator credits referrers after paid runs.
type ReferralEvaluator interface {
	Evaluate(ctx context.Context, profile *types.Profile, cost int, resultID uuid.UUID) (bool, error)
}

// Deps are the collaborators of a Pipeline. Metrics may be nil.
type Deps struct {
	Store     Store
	Tools     *tools.Registry
	Router    Router
	Prompts   prompts.Assembler
	Invoker   Invoker
	Settler   Settler
	Referrals ReferralEvaluator
	Metrics   *observability.Metrics
}

// Pipeline executes tool runs. It is safe for concurrent use; each Run keeps
// its own state.
type Pipeline struct {
	store     Store
	tools     *tools.Registry
	router    Router
	prompts   prompts.Assembler
	invoker   Invoker
	settler   Settler
	referrals ReferralEvaluator
	metrics   *observability.Metrics
	now       func() time.Time
}

// New creates a Pipeline. Referrals is optional.
func New(d Deps) (*Pipeline, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case d.Tools == nil:
		return nil, errors.New("pipeline: tool registry is required")
	case d.Router == nil:
		return nil, errors.New("pipeline: router is required")
	case d.Prompts == nil:
		return nil, errors.New("pipeline: prompt assembler is required")
	case d.Invoker == nil:
		return nil, errors.New("pipeline: invoker is required")
	case d.Settler == nil:
		return nil, errors.New("pipeline: settler is required")
	}
	return &Pipeline{
		store:     d.Store,
		tools:     d.Tools,
		router:    d.Router,
		prompts:   d.Prompts,
		invoker:   d.Invoker,
		settler:   d.Settler,
		referrals: d.Referrals,
		metrics:   d.Metrics,
		now:       time.Now,
	}, nil
}

// Request is a validated, sanitized tool invocation.
type Request struct {
	UserID      uuid.UUID
	ToolID      string
	Inputs      map[string]any
	JobTargetID *uuid.UUID
}

// run holds the state of one Run call.
type run struct {
	p       *Pipeline
	req     Request
	tool    tools.Tool
	emit    *sequencer
	tracker *steps.Tracker
	log     zerolog.Logger
	span    trace.Span
}

// Run executes req and reports progress to emit. The last event is exactly one
// Complete or ErrorEvent, unless ctx is canceled first: then Run stops, emits
// nothing further and returns ctx.Err(). A run that emitted an ErrorEvent
// returns the *Failure it reported.
//
// The result is stored before any tokens are charged. Cancellation is honored
// up to the insert; from there on the run stores, settles and completes on a
// detached context. Once stored, a failed charge or referral is logged and the
// run still completes.
func (p *Pipeline) Run(ctx context.Context, req Request, emit Emitter) error {
	ctx, span := observability.Tracer().Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("tool_id", req.ToolID),
		attribute.String("user_id", req.UserID.String()),
	))
	defer span.End()

	r := &run{
		p:       p,
		req:     req,
		emit:    &sequencer{out: emit},
		tracker: steps.NewTracker(),
		log:     logx.With().Str("user_id", req.UserID.String()).Str("tool_id", req.ToolID).Logger(),
		span:    span,
	}

	err := r.execute(ctx)

	outcome := "complete"
	switch {
	case err == nil:
	case CodeOf(err) != "":
		outcome = string(CodeOf(err))
		span.SetStatus(codes.Error, outcome)
	default:
		outcome = "canceled"
		span.SetStatus(codes.Error, err.Error())
	}
	p.metrics.ToolRun(context.WithoutCancel(ctx), req.ToolID, outcome)
	return err
}

func (r *run) execute(ctx context.Context) error {
	tool, ok := r.p.tools.Lookup(r.req.ToolID)
	if !ok {
		return r.fail(newFailure(CodeValidation, fmt.Errorf("unknown tool %q", r.req.ToolID)))
	}
	r.tool = tool

	// 1. Load context.
	if err := r.begin(steps.LoadContext); err != nil {
		return err
	}
	ec, err := LoadContext(ctx, r.p.store, r.req.UserID, r.req.JobTargetID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return r.fail(newFailure(CodeContextFailed, err))
	}
	r.tracker.Complete(steps.LoadContext)

	// 2. Combined balance must cover the cost before any model call.
	if err := r.begin(steps.CheckTokens); err != nil {
		return err
	}
	if available := ec.Profile.Available(r.p.now()); available < tool.Cost {
		return r.fail(newFailure(CodeInsufficientTokens,
			fmt.Errorf("%w: need %d, have %d", db.ErrInsufficientTokens, tool.Cost, available)))
	}
	r.tracker.Complete(steps.CheckTokens)

	// 3. Route and assemble the prompt.
	if err := r.begin(steps.PreparePrompt); err != nil {
		return err
	}
	route := r.p.router.Route(tool.ID)
	prompt, err := r.p.prompts.Assemble(tool.ID, *ec, r.req.Inputs)
	if err != nil {
		return r.fail(newFailure(CodeAIError, fmt.Errorf("assemble prompt: %w", err)))
	}
	r.tracker.Complete(steps.PreparePrompt)

	// 4. Invoke the model and parse its output.
	def, err := r.tracker.Begin(steps.InvokeModel)
	if err != nil {
		return err
	}
	r.progress(def)
	resp, err := r.p.invoker.Invoke(ctx, llm.Invocation{
		Route:        route,
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
		Temperature:  prompt.Temperature,
		OnFallback: func(primaryErr error) {
			r.log.Warn().Err(primaryErr).Str("model", route.PrimaryModel).Msg("primary model failed, trying fallback")
			r.emit.Emit(Progress{Step: def.Progress, Total: steps.TotalProgress, Message: steps.FallbackMessage})
		},
		OnAttempt: func(rec llm.AttemptRecord) {
			r.p.metrics.AICall(ctx, tool.ID, rec.Model, string(rec.Kind), rec.Duration)
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, llm.ErrTimeout) {
			return r.fail(newFailure(CodeAITimeout, err))
		}
		return r.fail(newFailure(CodeAIError, err))
	}
	r.log = r.log.With().Str("model", resp.ModelUsed).Logger()

	result, err := llm.ParseJSONObject(resp.Text)
	if err != nil {
		return r.fail(newFailure(CodeParseFailed, err))
	}
	if err := tool.ValidateResult(result); err != nil {
		return r.fail(newFailure(CodeParseFailed, fmt.Errorf("%w: %v", llm.ErrParseFailed, err)))
	}
	result["model_used"] = resp.ModelUsed
	r.tracker.Complete(steps.InvokeModel)

	// 5. Store the result. Nothing is charged for a result that is not stored.
	if err := r.begin(steps.SaveResult); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// Once the insert starts the caller may no longer cancel it: a row that
	// commits must reach settlement.
	stored := r.newToolResult(result, resp)
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	err = r.p.store.CreateToolResult(persistCtx, stored)
	cancel()
	if err != nil {
		return r.fail(newFailure(CodePersistFailed, err))
	}
	r.tracker.Complete(steps.SaveResult)
	r.log = r.log.With().Str("result_id", stored.ID.String()).Logger()
	r.span.SetAttributes(attribute.String("result_id", stored.ID.String()))

	// Bookkeeping: failures here never fail the run.
	if err := r.settle(ctx, ec, stored.ID); err != nil {
		return err
	}

	r.log.Info().Int("cost", tool.Cost).Dur("latency", resp.Latency).Msg("tool run complete")
	r.emit.Emit(Complete{ResultID: stored.ID, Result: maps.Clone(result)})
	return nil
}

// settle charges for the stored result and evaluates the referral. Only a
// violated step order is returned as an error.
func (r *run) settle(ctx context.Context, ec *types.ExecutionContext, resultID uuid.UUID) error {
	if _, err := r.tracker.Begin(steps.SettleTokens); err != nil {
		return err
	}
	if r.tool.Cost > 0 {
		if res, err := r.p.settler.Settle(ctx, r.req.UserID, r.tool.Cost, resultID); err != nil {
			r.log.Error().Err(err).Int("cost", r.tool.Cost).Msg("token settlement failed")
			r.p.metrics.SettlementFailure(context.WithoutCancel(ctx), r.tool.ID)
		} else if res != nil {
			r.log.Debug().Int("bonus_used", res.BonusUsed).Int("balance_after", res.BalanceAfter).Msg("tokens settled")
		}
	}
	r.tracker.Complete(steps.SettleTokens)

	if _, err := r.tracker.Begin(steps.CreditReferral); err != nil {
		return err
	}
	if r.p.referrals != nil && r.tool.Cost > 0 {
		credited, err := r.p.referrals.Evaluate(context.WithoutCancel(ctx), ec.Profile, r.tool.Cost, resultID)
		switch {
		case err != nil:
			r.log.Error().Err(err).Msg("referral credit failed")
		case credited:
			r.log.Info().Str("referrer_id", ec.Profile.ReferredBy.String()).Msg("referral credited")
			r.p.metrics.ReferralCredit(context.WithoutCancel(ctx))
		}
	}
	r.tracker.Complete(steps.CreditReferral)
	return nil
}

func (r *run) newToolResult(result map[string]any, resp *llm.AIResponse) *types.ToolResult {
	tr := &types.ToolResult{
		UserID:        r.req.UserID,
		ToolID:        r.tool.ID,
		JobTargetID:   r.req.JobTargetID,
		Result:        result,
		Summary:       r.tool.Summary(result),
		MetricValue:   r.tool.Metric(result),
		ModelUsed:     resp.ModelUsed,
		LatencyMS:     resp.Latency.Milliseconds(),
		TokensCharged: r.tool.Cost,
	}
	if resp.Usage != nil {
		pt, ct := resp.Usage.PromptTokens, resp.Usage.CompletionTokens
		tr.PromptTokens = &pt
		tr.CompletionTokens = &ct
	}
	return tr
}

// begin checks step order and announces the step.
func (r *run) begin(name string) error {
	def, err := r.tracker.Begin(name)
	if err != nil {
		return err
	}
	r.progress(def)
	return nil
}

func (r *run) progress(def steps.StepDefinition) {
	if def.Progress == 0 {
		return
	}
	r.emit.Emit(Progress{Step: def.Progress, Total: steps.TotalProgress, Message: def.Message})
}

func (r *run) fail(f *Failure) error {
	level := zerolog.WarnLevel
	if f.Code == CodePersistFailed || f.Code == CodeContextFailed {
		level = zerolog.ErrorLevel
	}
	r.log.WithLevel(level).Err(f.Err).Str("code", string(f.Code)).Msg("tool run failed")
	r.emit.Emit(ErrorEvent{Message: f.Message, Code: f.Code})
	return f
}
