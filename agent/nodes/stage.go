package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	eventx "github.com/tanpawarit/chative-bank-onboarding/agent/event"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
	metricsx "github.com/tanpawarit/chative-bank-onboarding/pkg/metrics"
)

// Stage outcomes recorded in metrics.
const (
	outcomeCompleted = "completed"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
)

type Deps struct {
	Store     statex.Store
	Extractor contractx.LicenseExtractor
	Tools     contractx.ToolInvoker
	Metrics   *metricsx.Metrics
}

// enterStage observes cancellation at the stage boundary, then announces the stage.
func enterStage(ctx context.Context, in *GraphState, stage string, needRecord bool) error {
	if in == nil || in.Session == nil {
		return fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if needRecord && !in.Session.HasRecord() {
		return fmt.Errorf("%w: stage %s requires a license record", contractx.ErrValidation, stage)
	}

	log.Debug().Str("session_id", in.SessionID).Str("stage", stage).Msg("stage entered")
	in.emit(eventx.Event{Kind: eventx.KindStageEntered, Stage: stage})
	return nil
}

func completeStage(in *GraphState, deps Deps, stage string) {
	deps.Metrics.ObserveStage(stage, outcomeCompleted)
	in.emit(eventx.Event{Kind: eventx.KindStageCompleted, Stage: stage})
}

func toolInvoked(in *GraphState, stage string, tool string) {
	in.emit(eventx.Event{Kind: eventx.KindToolInvoked, Stage: stage, Tool: tool})
}

func toolResult(in *GraphState, stage string, tool string, text string) {
	in.emit(eventx.Event{Kind: eventx.KindToolResult, Stage: stage, Tool: tool, Text: text})
}

// toolFailed reports a tool error that ends the run without moving the cursor.
func toolFailed(in *GraphState, deps Deps, stage string, tool string, err error) error {
	deps.Metrics.ObserveStage(stage, outcomeError)
	toolResult(in, stage, tool, "error")
	log.Warn().Err(err).Str("session_id", in.SessionID).Str("stage", stage).Str("tool", tool).Msg("tool call failed")
	return err
}

// rejectStage moves the session to Failed and ends the run with reply.
func rejectStage(
	ctx context.Context,
	in *GraphState,
	deps Deps,
	stage string,
	kind string,
	cause error,
	reply string,
) (*GraphState, error) {
	in.Session.Fail(kind, reply, in.Now)
	if err := saveSession(ctx, in, deps.Store); err != nil {
		return nil, err
	}
	deps.Metrics.ObserveStage(stage, outcomeRejected)
	log.Info().Err(cause).Str("session_id", in.SessionID).Str("stage", stage).Msg("workflow rejected")
	return in.fail(cause, reply), nil
}

func advance(ctx context.Context, in *GraphState, deps Deps, to statex.Stage) error {
	if err := in.Session.Advance(to, in.Now); err != nil {
		return err
	}
	return saveSession(ctx, in, deps.Store)
}
