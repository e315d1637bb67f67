package orchestratornode

import (
	"context"
	"fmt"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

// saveSession persists a transition. It ignores caller cancellation so a transition
// that already happened is never lost.
func saveSession(
	ctx context.Context,
	in *GraphState,
	store statex.Store,
) error {
	if in == nil || in.Session == nil {
		return fmt.Errorf("%w: graph session is nil", contractx.ErrValidation)
	}

	if err := store.Save(context.WithoutCancel(ctx), in.Session); err != nil {
		return fmt.Errorf("save session %s: %w", in.SessionID, err)
	}
	return nil
}
