package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

// ClassifyIntent classifies the turn text. An image-only turn is an upload and skips
// the model call.
func ClassifyIntent(
	ctx context.Context,
	in *GraphState,
	classifier contractx.IntentClassifier,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Text == "" {
		in.Intent = contractx.IntentResult{Intent: contractx.IntentUploadLicense, Reasoning: "images without text"}
		return in, nil
	}
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is not configured", contractx.ErrClassificationUnavailable)
	}

	res, err := classifier.Classify(ctx, in.Text)
	if err != nil {
		if !errors.Is(err, contractx.ErrClassificationUnavailable) {
			err = fmt.Errorf("%w: %w", contractx.ErrClassificationUnavailable, err)
		}
		return nil, err
	}

	log.Debug().
		Str("session_id", in.SessionID).
		Str("intent", string(res.Intent)).
		Str("reasoning", res.Reasoning).
		Msg("intent classified")
	in.Intent = res
	return in, nil
}
