package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")
)

// Pipeline failure kinds. Each one terminates the current request.
var (
	ErrClassificationUnavailable = errors.New("intent classification unavailable")
	ErrNoImages                  = errors.New("no license images supplied")
	ErrUnparsableExtraction      = errors.New("license extraction is not parsable")
	ErrMalformedField            = errors.New("license field is malformed")
	ErrIncompleteRecord          = errors.New("license record is incomplete")
	ErrVerificationRejected      = errors.New("license verification rejected")
	ErrBlacklisted               = errors.New("company is blacklisted")
	ErrRemoteUnavailable         = errors.New("remote service unavailable")
	ErrOpenRejected              = errors.New("account opening rejected")
)
