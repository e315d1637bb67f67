package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	eventx "github.com/tanpawarit/chative-bank-onboarding/agent/event"
	nodex "github.com/tanpawarit/chative-bank-onboarding/agent/nodes"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
	metricsx "github.com/tanpawarit/chative-bank-onboarding/pkg/metrics"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSession = nodex.ErrInvalidSession
)

// Run outcomes recorded in metrics.
const (
	runSucceeded = "succeeded"
	runRejected  = "rejected"
	runFailed    = "failed"
)

type Request struct {
	SessionID string
	Text      string
	Images    [][]byte
}

type Response struct {
	RunID   string       `json:"run_id"`
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Stage   statex.Stage `json:"stage"`
}

type Option func(*Orchestrator)

func WithMetrics(m *metricsx.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLocker replaces the in-process session lock, e.g. with a Redis lease shared by
// every replica.
func WithLocker(l statex.Locker) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.locks = l
		}
	}
}

// Orchestrator drives the account-opening workflow. Runs for the same session are
// serialized through the Locker; runs for different sessions proceed independently.
type Orchestrator struct {
	store   statex.Store
	models  contractx.Registry
	tools   contractx.ToolInvoker
	metrics *metricsx.Metrics
	locks   statex.Locker

	deps        nodex.Deps
	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	now func() time.Time
}

func New(
	store statex.Store,
	models contractx.Registry,
	tools contractx.ToolInvoker,
	opts ...Option,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if models == nil {
		return nil, errors.New("model registry is required")
	}
	if tools == nil {
		return nil, errors.New("tool invoker is required")
	}

	o := &Orchestrator{
		store:  store,
		models: models,
		tools:  tools,
		locks:  &statex.KeyedMutex{},
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.deps = nodex.Deps{
		Store:     store,
		Extractor: models.Extractor(),
		Tools:     tools,
		Metrics:   o.metrics,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Stream starts a run and returns its event stream. The run continues to its end even
// if the consumer closes the stream early.
func (o *Orchestrator) Stream(ctx context.Context, req Request) *eventx.Stream {
	stream := eventx.NewStream(uuid.NewString(), strings.TrimSpace(req.SessionID))
	go o.run(ctx, req, stream)
	return stream
}

// HandleMessage runs the workflow to completion and returns the terminal message.
func (o *Orchestrator) HandleMessage(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return Response{}, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession)
	}
	if strings.TrimSpace(req.Text) == "" && len(req.Images) == 0 {
		return Response{}, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}

	stream := o.Stream(ctx, req)
	for range stream.Events() {
	}
	stream.Wait()

	last, ok := stream.Terminal()
	if !ok {
		return Response{}, errors.New("run ended without a terminal event")
	}
	return Response{
		RunID:   stream.RunID(),
		Success: last.Kind == eventx.KindFinalOutput,
		Message: last.Text,
		Stage:   statex.Stage(last.Stage),
	}, nil
}

// Reset discards the session's record and cursor.
func (o *Orchestrator) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession)
	}
	unlock, err := o.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := o.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	o.reportActiveSessions()
	log.Info().Str("session_id", sessionID).Msg("session reset")
	return nil
}

// Session returns a snapshot of the session. Unknown ids yield an empty session.
func (o *Orchestrator) Session(ctx context.Context, sessionID string) (statex.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return statex.Session{}, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession)
	}
	unlock, err := o.locks.Lock(ctx, sessionID)
	if err != nil {
		return statex.Session{}, err
	}
	defer unlock()

	st, err := o.store.Load(ctx, sessionID)
	if errors.Is(err, statex.ErrStateNotFound) {
		return *statex.NewSession(sessionID, o.now().UTC()), nil
	}
	if err != nil {
		return statex.Session{}, err
	}
	return *st, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, stream *eventx.Stream) {
	defer stream.Finish()

	logger := log.With().
		Str("run_id", stream.RunID()).
		Str("session_id", strings.TrimSpace(req.SessionID)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("workflow run panicked")
			o.metrics.ObserveRun(runFailed)
			stream.Emit(eventx.Event{Kind: eventx.KindFailed, Text: nodex.ReplyGeneric, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	var unlock func()
	if sessionID := strings.TrimSpace(req.SessionID); sessionID != "" {
		var err error
		unlock, err = o.locks.Lock(ctx, sessionID)
		if err != nil {
			o.finishWithError(stream, err, "")
			return
		}
		defer unlock()
	}

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		SessionID: req.SessionID,
		Text:      req.Text,
		Images:    req.Images,
		Emitter:   stream,
	})
	o.reportActiveSessions()
	if err != nil {
		logger.Warn().Err(err).Msg("workflow run failed")
		o.finishWithError(stream, err, o.currentStage(req.SessionID))
		return
	}

	if out.Failure != nil {
		logger.Info().Err(out.Failure).Str("stage", string(out.Stage)).Msg("workflow run rejected")
		o.metrics.ObserveRun(runRejected)
		stream.Emit(eventx.Event{Kind: eventx.KindFailed, Stage: string(out.Stage), Text: out.Reply, Err: out.Failure})
		return
	}

	logger.Info().Str("stage", string(out.Stage)).Msg("workflow run completed")
	o.metrics.ObserveRun(runSucceeded)
	stream.Emit(eventx.Event{Kind: eventx.KindFinalOutput, Stage: string(out.Stage), Text: out.Reply})
}

func (o *Orchestrator) finishWithError(stream *eventx.Stream, err error, stage statex.Stage) {
	o.metrics.ObserveRun(runFailed)
	stream.Emit(eventx.Event{Kind: eventx.KindFailed, Stage: string(stage), Text: nodex.ErrorReply(err), Err: err})
}

// currentStage reads the cursor after a failed run; the run may have stopped mid-chain.
func (o *Orchestrator) currentStage(sessionID string) statex.Stage {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ""
	}
	st, err := o.store.Load(context.Background(), sessionID)
	if err != nil {
		return statex.StageNone
	}
	return st.Stage
}

func (o *Orchestrator) reportActiveSessions() {
	if counter, ok := o.store.(interface{ Len() int }); ok {
		o.metrics.SetActiveSessions(counter.Len())
	}
}
