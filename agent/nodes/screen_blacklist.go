package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

func ScreenBlacklist(ctx context.Context, in *GraphState, deps Deps) (*GraphState, error) {
	if err := enterStage(ctx, in, StageScreen, true); err != nil {
		return nil, err
	}

	record := in.Session.Record
	toolInvoked(in, StageScreen, contractx.ToolCheckBlacklist)
	listed, err := deps.Tools.CheckBlacklist(ctx, record.AcctName, record.USCC)
	if err != nil {
		return nil, toolFailed(in, deps, StageScreen, contractx.ToolCheckBlacklist, err)
	}

	if listed {
		toolResult(in, StageScreen, contractx.ToolCheckBlacklist, "listed")
		cause := fmt.Errorf("%w: %s (%s)", contractx.ErrBlacklisted, record.AcctName, record.USCC)
		return rejectStage(ctx, in, deps, StageScreen, statex.FailureBlacklisted, cause, blacklistedReply(record.AcctName))
	}
	toolResult(in, StageScreen, contractx.ToolCheckBlacklist, "clear")

	if err := advance(ctx, in, deps, statex.StageBlacklistCleared); err != nil {
		return nil, err
	}
	completeStage(in, deps, StageScreen)
	in.Next = NodeOpenAccount
	return in, nil
}
