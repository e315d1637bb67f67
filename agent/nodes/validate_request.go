package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	eventx "github.com/tanpawarit/chative-bank-onboarding/agent/event"
	statex "github.com/tanpawarit/chative-bank-onboarding/agent/state"
)

var (
	ErrInvalidMessage = errors.New("message and images are both empty")
	ErrInvalidSession = errors.New("session id is empty")
)

// Node names double as branch targets.
const (
	NodeValidateRequest = "validate_request"
	NodeLoadSession     = "load_session"
	NodeClassifyIntent  = "classify_intent"
	NodeRoute           = "route"
	NodeExtractLicense  = "extract_license"
	NodeVerifyLicense   = "verify_license"
	NodeScreenBlacklist = "screen_blacklist"
	NodeOpenAccount     = "open_account"
	NodeFinalizeReply   = "finalize_reply"
)

// Stage names as reported in events and metrics.
const (
	StageLicense = "license"
	StageVerify  = "verify"
	StageScreen  = "screen"
	StageOpen    = "open"
)

// Emitter receives run events. *event.Stream satisfies it.
type Emitter interface {
	Emit(ev eventx.Event) bool
}

type GraphInput struct {
	SessionID string
	Text      string
	Images    [][]byte
	Emitter   Emitter
}

type GraphOutput struct {
	Reply   string
	Success bool
	Stage   statex.Stage
	Failure error
}

type GraphState struct {
	SessionID string
	Text      string
	Images    [][]byte
	Now       time.Time

	Session *statex.Session
	Intent  contractx.IntentResult

	// Next is the node the current branch hands off to.
	Next    string
	Reply   string
	Success bool
	Failure error

	emitter Emitter
}

func (s *GraphState) emit(ev eventx.Event) {
	if s.emitter != nil {
		s.emitter.Emit(ev)
	}
}

// finish routes the run to finalize_reply with reply as the final message.
func (s *GraphState) finish(reply string, success bool) *GraphState {
	s.Next = NodeFinalizeReply
	s.Reply = reply
	s.Success = success
	return s
}

// fail routes the run to finalize_reply as a business failure.
func (s *GraphState) fail(kind error, reply string) *GraphState {
	s.Failure = kind
	return s.finish(reply, false)
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession)
	}

	text := strings.TrimSpace(in.Text)
	images := make([][]byte, 0, len(in.Images))
	for _, img := range in.Images {
		if len(img) > 0 {
			images = append(images, img)
		}
	}
	if text == "" && len(images) == 0 {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}

	return &GraphState{
		SessionID: sessionID,
		Text:      text,
		Images:    images,
		Now:       nowFn().UTC(),
		emitter:   in.Emitter,
	}, nil
}
