package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

func VerifyLicense(ctx context.Context, in *GraphState, deps Deps) (*GraphState, error) {
	if err := enterStage(ctx, in, StageVerify, true); err != nil {
		return nil, err
	}

	toolInvoked(in, StageVerify, contractx.ToolVerifyLicense)
	res, err := deps.Tools.VerifyLicense(ctx, *in.Session.Record)
	if err != nil {
		return nil, toolFailed(in, deps, StageVerify, contractx.ToolVerifyLicense, err)
	}
	toolResult(in, StageVerify, contractx.ToolVerifyLicense, res.Reason)

	if !res.Verified {
		cause := fmt.Errorf("%w: %s", contractx.ErrVerificationRejected, res.Reason)
		return rejectStage(ctx, in, deps, StageVerify, statex.FailureVerification, cause, verificationFailedReply(res.Reason))
	}

	if err := advance(ctx, in, deps, statex.StageVerified); err != nil {
		return nil, err
	}
	completeStage(in, deps, StageVerify)
	in.Next = NodeScreenBlacklist
	return in, nil
}
