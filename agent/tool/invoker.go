package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	metricsx "github.com/tanpawarit/chative-bank-onboarding/pkg/metrics"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	Blacklist []string      `envconfig:"BLACKLIST" split_words:"true"`
}

type Option func(*Invoker)

func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) {
		if d > 0 {
			i.timeout = d
		}
	}
}

func WithLedger(l Ledger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.ledger = l
		}
	}
}

func WithMetrics(m *metricsx.Metrics) Option {
	return func(i *Invoker) {
		i.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Invoker) {
		if now != nil {
			i.now = now
		}
	}
}

// Invoker implements the three banking tools. Every call runs under its own timeout;
// a timeout is reported as ErrRemoteUnavailable.
type Invoker struct {
	blacklist Blacklist
	gateway   Gateway
	ledger    Ledger
	timeout   time.Duration
	metrics   *metricsx.Metrics
	now       func() time.Time

	opening singleflight.Group
}

var _ contractx.ToolInvoker = (*Invoker)(nil)

func NewInvoker(blacklist Blacklist, gateway Gateway, opts ...Option) (*Invoker, error) {
	if blacklist == nil {
		return nil, errors.New("blacklist is required")
	}
	if gateway == nil {
		return nil, errors.New("account gateway is required")
	}

	i := &Invoker{
		blacklist: blacklist,
		gateway:   gateway,
		ledger:    NewMemoryLedger(),
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i, nil
}

func (i *Invoker) Timeout() time.Duration {
	return i.timeout
}

func (i *Invoker) VerifyLicense(ctx context.Context, record contractx.LicenseRecord) (contractx.VerificationResult, error) {
	var out contractx.VerificationResult
	err := i.call(ctx, contractx.ToolVerifyLicense, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out = verifyLicense(record, i.now())
		return nil
	})
	return out, err
}

func (i *Invoker) CheckBlacklist(ctx context.Context, name string, registrationID string) (bool, error) {
	name = strings.TrimSpace(name)
	registrationID = contractx.NormalizeRegistrationID(registrationID)
	if name == "" && registrationID == "" {
		return false, fmt.Errorf("%w: company name or registration id is required", contractx.ErrValidation)
	}

	var listed bool
	err := i.call(ctx, contractx.ToolCheckBlacklist, func(ctx context.Context) error {
		var err error
		listed, err = i.blacklist.Contains(ctx, name, registrationID)
		return err
	})
	return listed, err
}

// OpenAccount opens at most one account per registration id. Concurrent calls for the
// same id share one gateway call and a recorded success is replayed on retry. With a
// Claimer ledger the guarantee extends to every replica sharing it.
func (i *Invoker) OpenAccount(ctx context.Context, record contractx.LicenseRecord) (contractx.AccountOpenResult, error) {
	uscc := contractx.NormalizeRegistrationID(record.USCC)
	if uscc == "" {
		return contractx.AccountOpenResult{}, fmt.Errorf("%w: uscc is required to open an account", contractx.ErrValidation)
	}
	record.USCC = uscc
	record.AcctNo = AccountNumber(uscc)

	v, err, shared := i.opening.Do(uscc, func() (any, error) {
		var out contractx.AccountOpenResult
		err := i.call(ctx, contractx.ToolOpenAccount, func(ctx context.Context) error {
			var err error
			out, err = i.openOnce(ctx, uscc, record)
			return err
		})
		return out, err
	})
	if err != nil {
		return contractx.AccountOpenResult{}, err
	}
	if shared {
		log.Debug().Str("uscc", uscc).Msg("open account collapsed into in-flight call")
	}
	return v.(contractx.AccountOpenResult), nil
}

func (i *Invoker) openOnce(ctx context.Context, uscc string, record contractx.LicenseRecord) (contractx.AccountOpenResult, error) {
	prior, ok, err := i.recorded(ctx, uscc)
	if err != nil || ok {
		return prior, err
	}

	// singleflight only covers this process; a claiming ledger covers the replicas.
	if claimer, isClaimer := i.ledger.(Claimer); isClaimer {
		release, err := claimer.Claim(ctx, uscc)
		if err != nil {
			return contractx.AccountOpenResult{}, fmt.Errorf("%w: claim opening: %v", contractx.ErrRemoteUnavailable, err)
		}
		defer release()

		prior, ok, err = i.recorded(ctx, uscc)
		if err != nil || ok {
			return prior, err
		}
	}

	out, err := i.gateway.Open(ctx, record)
	if err != nil {
		return contractx.AccountOpenResult{}, err
	}
	if !out.Success {
		return out, nil
	}

	if out.AccountNumber == "" {
		out.AccountNumber = record.AcctNo
	}
	if out.OpenedAt.IsZero() {
		out.OpenedAt = i.now()
	}
	if err := i.ledger.Put(context.WithoutCancel(ctx), uscc, out); err != nil {
		log.Error().Err(err).Str("uscc", uscc).Str("account_number", out.AccountNumber).Msg("account opened but not recorded in ledger")
	}
	return out, nil
}

func (i *Invoker) recorded(ctx context.Context, uscc string) (contractx.AccountOpenResult, bool, error) {
	prior, ok, err := i.ledger.Get(ctx, uscc)
	if err != nil {
		return contractx.AccountOpenResult{}, false, fmt.Errorf("%w: account ledger: %v", contractx.ErrRemoteUnavailable, err)
	}
	if ok {
		log.Info().Str("uscc", uscc).Str("account_number", prior.AccountNumber).Msg("replaying recorded account opening")
	}
	return prior, ok, nil
}

func (i *Invoker) call(ctx context.Context, tool string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, contractx.ErrRemoteUnavailable) {
		err = fmt.Errorf("%w: %s timed out after %s: %v", contractx.ErrRemoteUnavailable, tool, i.timeout, err)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	i.metrics.ObserveTool(tool, outcome, time.Since(start))
	log.Debug().Str("tool", tool).Str("outcome", outcome).Dur("latency", time.Since(start)).Err(err).Msg("tool call")
	return err
}
