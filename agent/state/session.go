package state

import (
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
)

var ErrInvalidTransition = errors.New("invalid workflow transition")

// Stage is the cursor of the last completed workflow stage.
type Stage string

const (
	StageNone             Stage = "none"
	StageLicenseUploaded  Stage = "license_uploaded"
	StageVerified         Stage = "verified"
	StageBlacklistCleared Stage = "blacklist_cleared"
	StageAccountOpened    Stage = "account_opened"
	StageFailed           Stage = "failed"
)

var stageOrder = []Stage{StageNone, StageLicenseUploaded, StageVerified, StageBlacklistCleared, StageAccountOpened}

func (s Stage) index() int {
	for i, v := range stageOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// Failure kinds recorded when a session enters StageFailed.
const (
	FailureExtraction   = "extraction_error"
	FailureVerification = "verification_rejected"
	FailureBlacklisted  = "blacklisted"
	FailureOpenRejected = "open_rejected"
)

// Session is the per-conversation workflow slot. It holds at most one license record.
// - Stage only moves forward one step at a time, or to StageFailed.
// - A new upload overwrites the record and restarts at StageLicenseUploaded.
// - A successful opening clears the record and keeps the result in LastResult.
type Session struct {
	SessionID string `json:"session_id"`
	Stage     Stage  `json:"stage"`

	Record        *contractx.LicenseRecord     `json:"record,omitempty"`
	FailureKind   string                       `json:"failure_kind,omitempty"`
	FailureReason string                       `json:"failure_reason,omitempty"`
	LastResult    *contractx.AccountOpenResult `json:"last_result,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(sessionID string, now time.Time) *Session {
	return &Session{
		SessionID: sessionID,
		Stage:     StageNone,
		UpdatedAt: now,
	}
}

func (s *Session) HasRecord() bool {
	return s != nil && s.Record != nil
}

func (s *Session) IsFailed() bool {
	return s != nil && s.Stage == StageFailed
}

// Upload replaces any previous record and failure with a freshly extracted record.
func (s *Session) Upload(record contractx.LicenseRecord, now time.Time) {
	s.Record = &record
	s.Stage = StageLicenseUploaded
	s.FailureKind = ""
	s.FailureReason = ""
	s.UpdatedAt = now
}

// Advance moves the cursor to the stage directly after the current one.
func (s *Session) Advance(to Stage, now time.Time) error {
	if s.Stage == StageFailed {
		return fmt.Errorf("%w: session %s has failed", ErrInvalidTransition, s.SessionID)
	}
	from := s.Stage.index()
	if from < 0 || to.index() != from+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Stage, to)
	}
	if !s.HasRecord() {
		return fmt.Errorf("%w: %s -> %s without a license record", ErrInvalidTransition, s.Stage, to)
	}
	s.Stage = to
	s.UpdatedAt = now
	return nil
}

func (s *Session) Fail(kind string, reason string, now time.Time) {
	s.Stage = StageFailed
	s.FailureKind = kind
	s.FailureReason = reason
	s.UpdatedAt = now
}

// Complete records a successful opening and releases the license record.
func (s *Session) Complete(result contractx.AccountOpenResult, now time.Time) error {
	if err := s.Advance(StageAccountOpened, now); err != nil {
		return err
	}
	s.LastResult = &result
	s.Record = nil
	s.Stage = StageNone
	return nil
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Record != nil {
		record := *s.Record
		out.Record = &record
	}
	if s.LastResult != nil {
		result := *s.LastResult
		out.LastResult = &result
	}
	return &out
}
