package orchestratornode

import (
	"fmt"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

// Route picks the first stage to run for this turn.
// - Images always enter the license stage; the chain continues only for open_account.
// - open_account without images resumes after the last completed stage.
// - open_account with no record touches nothing and asks for an upload.
func Route(in *GraphState) (*GraphState, error) {
	if in == nil || in.Session == nil {
		return nil, fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	if len(in.Images) > 0 {
		in.Next = NodeExtractLicense
		return in, nil
	}

	switch in.Intent.Intent {
	case contractx.IntentOpenAccount:
		return resume(in), nil
	case contractx.IntentCloseAccount:
		return in.finish(ReplyCloseAccount, true), nil
	case contractx.IntentUploadLicense:
		return in.finish(ReplyUploadPrompt, true), nil
	default:
		return in.finish(ReplyWelcome, true), nil
	}
}

func resume(in *GraphState) *GraphState {
	st := in.Session
	if st.IsFailed() {
		return in.fail(FailureError(st.FailureKind), failedSessionReply(st))
	}
	if !st.HasRecord() {
		return in.finish(ReplyUploadFirst, true)
	}

	switch st.Stage {
	case statex.StageLicenseUploaded:
		in.Next = NodeVerifyLicense
	case statex.StageVerified:
		in.Next = NodeScreenBlacklist
	case statex.StageBlacklistCleared:
		in.Next = NodeOpenAccount
	default:
		return in.finish(ReplyUploadFirst, true)
	}
	return in
}

// NextNode is the branch condition shared by every stage.
func NextNode(in *GraphState) (string, error) {
	if in == nil || in.Next == "" {
		return "", fmt.Errorf("%w: no next node selected", contractx.ErrValidation)
	}
	return in.Next, nil
}

// continueAfterLicense reports whether an upload turn should run the rest of the chain.
func continueAfterLicense(in *GraphState) bool {
	return in.Intent.Intent == contractx.IntentOpenAccount
}
