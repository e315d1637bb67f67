package contract

import "context"

type IntentClassifier interface {
	Classify(ctx context.Context, text string) (IntentResult, error)
}

type LicenseExtractor interface {
	Extract(ctx context.Context, images [][]byte, hint string) (LicenseRecord, error)
}

type Registry interface {
	Classifier() IntentClassifier
	Extractor() LicenseExtractor
}

// Tool names as reported in events, logs and metrics.
const (
	ToolVerifyLicense  = "verify_license"
	ToolCheckBlacklist = "check_blacklist"
	ToolOpenAccount    = "open_account"
)

// ToolInvoker exposes the three banking tools. Only OpenAccount mutates remote state.
type ToolInvoker interface {
	VerifyLicense(ctx context.Context, record LicenseRecord) (VerificationResult, error)
	CheckBlacklist(ctx context.Context, name string, registrationID string) (bool, error)
	OpenAccount(ctx context.Context, record LicenseRecord) (AccountOpenResult, error)
}
