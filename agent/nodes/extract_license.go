package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

// ExtractLicense parses the uploaded images into a fresh record, replacing any prior one.
func ExtractLicense(ctx context.Context, in *GraphState, deps Deps) (*GraphState, error) {
	if err := enterStage(ctx, in, StageLicense, false); err != nil {
		return nil, err
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("%w: license extractor is not configured", contractx.ErrValidation)
	}

	record, err := deps.Extractor.Extract(ctx, in.Images, in.Text)
	if err != nil {
		if !isExtractionFailure(err) {
			deps.Metrics.ObserveStage(StageLicense, outcomeError)
			return nil, err
		}
		in.Session.Record = nil
		return rejectStage(ctx, in, deps, StageLicense, statex.FailureExtraction, err, extractionFailedReply(err))
	}

	in.Session.Upload(record, in.Now)
	if err := saveSession(ctx, in, deps.Store); err != nil {
		return nil, err
	}
	completeStage(in, deps, StageLicense)

	if continueAfterLicense(in) {
		in.Next = NodeVerifyLicense
		return in, nil
	}
	return in.finish(licenseParsedReply(record), true), nil
}

func isExtractionFailure(err error) bool {
	return errors.Is(err, contractx.ErrUnparsableExtraction) ||
		errors.Is(err, contractx.ErrMalformedField) ||
		errors.Is(err, contractx.ErrIncompleteRecord) ||
		errors.Is(err, contractx.ErrNoImages)
}
