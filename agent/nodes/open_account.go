package orchestratornode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

// OpenAccount performs the only mutating call. Once dispatched it is detached from the
// caller's cancellation and its outcome is always written to the session.
func OpenAccount(ctx context.Context, in *GraphState, deps Deps) (*GraphState, error) {
	if err := enterStage(ctx, in, StageOpen, true); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	record := *in.Session.Record
	toolInvoked(in, StageOpen, contractx.ToolOpenAccount)
	res, err := deps.Tools.OpenAccount(ctx, record)
	if err != nil {
		return nil, toolFailed(in, deps, StageOpen, contractx.ToolOpenAccount, err)
	}

	if !res.Success {
		toolResult(in, StageOpen, contractx.ToolOpenAccount, res.Code+" "+res.Message)
		in.Session.LastResult = &res
		cause := fmt.Errorf("%w: rtncode=%s rtnmsg=%s", contractx.ErrOpenRejected, res.Code, res.Message)
		return rejectStage(ctx, in, deps, StageOpen, statex.FailureOpenRejected, cause, openRejectedReply(res.Message))
	}
	toolResult(in, StageOpen, contractx.ToolOpenAccount, res.AccountNumber)

	if err := in.Session.Complete(res, in.Now); err != nil {
		return nil, err
	}
	if err := saveSession(ctx, in, deps.Store); err != nil {
		return nil, err
	}
	completeStage(in, deps, StageOpen)

	log.Info().
		Str("session_id", in.SessionID).
		Str("uscc", record.USCC).
		Str("account_number", res.AccountNumber).
		Msg("account opened")
	return in.finish(accountOpenedReply(record.AcctName, res), true), nil
}
