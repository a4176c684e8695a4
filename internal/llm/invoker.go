package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultAttemptTimeout bounds each model attempt.
const DefaultAttemptTimeout = 60 * time.Second

// State is a step of the primary/fallback invocation state machine.
type State string

const (
	StatePrimaryPending  State = "PRIMARY_PENDING"
	StatePrimaryOK       State = "PRIMARY_OK"
	StatePrimaryTimeout  State = "PRIMARY_TIMEOUT"
	StatePrimaryFailed   State = "PRIMARY_FAILED"
	StateFallbackPending State = "FALLBACK_PENDING"
	StateFallbackOK      State = "FALLBACK_OK"
	StateFallbackFailed  State = "FALLBACK_FAILED"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StatePrimaryOK, StatePrimaryTimeout, StateFallbackOK, StateFallbackFailed:
		return true
	}
	return false
}

// AttemptKind distinguishes the two attempts.
type AttemptKind string

const (
	AttemptPrimary  AttemptKind = "primary"
	AttemptFallback AttemptKind = "fallback"
)

// AttemptRecord describes one finished model call.
type AttemptRecord struct {
	Kind     AttemptKind
	Model    string
	Duration time.Duration
	Err      error
}

// Invocation is everything needed to run one tool analysis.
type Invocation struct {
	Route        ModelRoute
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	// OnFallback, if set, runs once just before the fallback attempt starts.
	OnFallback func(primaryErr error)
	// OnAttempt, if set, runs after every finished attempt.
	OnAttempt func(AttemptRecord)
}

// AIResponse is the successful result of an invocation.
type AIResponse struct {
	Text  string
	Usage *Usage
	// ModelUsed is the routed model that produced Text.
	ModelUsed string
	// ProviderModel is the model name the provider reported, when it differs.
	ProviderModel string
	Attempt       AttemptKind
	Latency       time.Duration
}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithTimeouts sets the per-attempt budgets. Non-positive values keep the default.
func WithTimeouts(primary, fallback time.Duration) InvokerOption {
	return func(i *Invoker) {
		if primary > 0 {
			i.primaryTimeout = primary
		}
		if fallback > 0 {
			i.fallbackTimeout = fallback
		}
	}
}

// WithAttemptObserver registers a callback for every finished attempt.
func WithAttemptObserver(fn func(AttemptRecord)) InvokerOption {
	return func(i *Invoker) { i.observe = fn }
}

// WithTransitionObserver registers a callback for every state change.
func WithTransitionObserver(fn func(State)) InvokerOption {
	return func(i *Invoker) { i.transition = fn }
}

// Invoker calls the primary model and, on a non-timeout failure, the shared
// fallback model exactly once.
type Invoker struct {
	client          Client
	primaryTimeout  time.Duration
	fallbackTimeout time.Duration
	observe         func(AttemptRecord)
	transition      func(State)
}

// NewInvoker creates an Invoker over client.
func NewInvoker(client Client, opts ...InvokerOption) *Invoker {
	i := &Invoker{
		client:          client,
		primaryTimeout:  DefaultAttemptTimeout,
		fallbackTimeout: DefaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke runs the state machine:
//
//	PRIMARY_PENDING -> PRIMARY_OK | PRIMARY_TIMEOUT | PRIMARY_FAILED
//	PRIMARY_FAILED  -> FALLBACK_PENDING -> FALLBACK_OK | FALLBACK_FAILED
//
// A primary timeout returns an error wrapping ErrTimeout. A failed fallback
// returns an error wrapping ErrProviderFailed. If ctx itself is done, ctx.Err()
// is returned and no further attempt is made.
func (i *Invoker) Invoke(ctx context.Context, inv Invocation) (*AIResponse, error) {
	i.enter(StatePrimaryPending)
	resp, primaryErr := i.attempt(ctx, AttemptPrimary, inv.Route.PrimaryModel, i.primaryTimeout, inv)
	if primaryErr == nil {
		i.enter(StatePrimaryOK)
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errors.Is(primaryErr, ErrTimeout) {
		i.enter(StatePrimaryTimeout)
		return nil, primaryErr
	}

	i.enter(StatePrimaryFailed)
	i.enter(StateFallbackPending)
	if inv.OnFallback != nil {
		inv.OnFallback(primaryErr)
	}

	fallbackModel := inv.Route.FallbackModel
	if fallbackModel == "" {
		fallbackModel = inv.Route.PrimaryModel
	}
	resp, fallbackErr := i.attempt(ctx, AttemptFallback, fallbackModel, i.fallbackTimeout, inv)
	if fallbackErr == nil {
		i.enter(StateFallbackOK)
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.enter(StateFallbackFailed)
	return nil, fmt.Errorf("%w: primary %s: %v; fallback %s: %v",
		ErrProviderFailed, inv.Route.PrimaryModel, primaryErr, fallbackModel, fallbackErr)
}

func (i *Invoker) attempt(ctx context.Context, kind AttemptKind, model string, timeout time.Duration, inv Invocation) (*AIResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := i.client.Complete(attemptCtx, CompletionRequest{
		Model:        model,
		SystemPrompt: inv.SystemPrompt,
		UserPrompt:   inv.UserPrompt,
		MaxTokens:    inv.Route.MaxOutputTokens,
		Temperature:  inv.Temperature,
		JSON:         true,
	})
	elapsed := time.Since(start)

	switch {
	case err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s (%s)", ErrTimeout, timeout, model)
	case err == nil && resp == nil:
		err = errors.New("provider returned no response")
	case err == nil && strings.TrimSpace(resp.Text) == "":
		err = errors.New("provider returned empty content")
	}

	rec := AttemptRecord{Kind: kind, Model: model, Duration: elapsed, Err: err}
	if i.observe != nil {
		i.observe(rec)
	}
	if inv.OnAttempt != nil {
		inv.OnAttempt(rec)
	}
	if err != nil {
		return nil, err
	}

	out := &AIResponse{
		Text:      resp.Text,
		Usage:     resp.Usage,
		ModelUsed: model,
		Attempt:   kind,
		Latency:   elapsed,
	}
	if resp.Model != "" && resp.Model != model {
		out.ProviderModel = resp.Model
	}
	return out, nil
}

func (i *Invoker) enter(s State) {
	if i.transition != nil {
		i.transition(s)
	}
}
