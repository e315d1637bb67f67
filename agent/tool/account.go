package tool

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	contractx "github.com/tanpawarit/chative-bank-onboarding/agent/contract"
	bankapix "github.com/tanpawarit/chative-bank-onboarding/pkg/bankapi"
)

const accountPrefix = "1001"

// AccountNumber derives the account number bound to a registration id: the bank prefix
// followed by 12 digits of the id's SHA-256. The same id always yields the same number.
func AccountNumber(uscc string) string {
	sum := sha256.Sum256([]byte(uscc))
	n := binary.BigEndian.Uint64(sum[:8]) % 1_000_000_000_000
	return fmt.Sprintf("%s%012d", accountPrefix, n)
}

// Gateway performs the remote account opening. A rejected request is a result with
// Success=false; only an unreachable gateway is an error.
type Gateway interface {
	Open(ctx context.Context, record contractx.LicenseRecord) (contractx.AccountOpenResult, error)
}

// LocalGateway simulates the core banking system and always accepts.
type LocalGateway struct {
	Now func() time.Time
}

func (g LocalGateway) Open(ctx context.Context, record contractx.LicenseRecord) (contractx.AccountOpenResult, error) {
	if err := ctx.Err(); err != nil {
		return contractx.AccountOpenResult{}, err
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return contractx.AccountOpenResult{
		Success:       true,
		Code:          bankapix.SuccessCode,
		Message:       "开户成功",
		AccountNumber: record.AcctNo,
		OpenedAt:      now(),
	}, nil
}

type bankClient interface {
	OpenAccount(ctx context.Context, body any) (bankapix.Response, error)
}

// RemoteGateway opens accounts through the AMS HTTP API. rtncode "000000" is the only
// success; every other code is returned with rtnmsg untouched.
type RemoteGateway struct {
	client bankClient
	now    func() time.Time
}

func NewRemoteGateway(client *bankapix.Client) (*RemoteGateway, error) {
	if client == nil {
		return nil, errors.New("bank api client is required")
	}
	return &RemoteGateway{client: client, now: time.Now}, nil
}

func (g *RemoteGateway) Open(ctx context.Context, record contractx.LicenseRecord) (contractx.AccountOpenResult, error) {
	resp, err := g.client.OpenAccount(ctx, record)
	if err != nil {
		return contractx.AccountOpenResult{}, fmt.Errorf("%w: %v", contractx.ErrRemoteUnavailable, err)
	}
	if !resp.OK() {
		return contractx.AccountOpenResult{
			Success: false,
			Code:    resp.Code,
			Message: resp.Message,
		}, nil
	}

	accountNumber := resp.AccountNumber
	if accountNumber == "" {
		accountNumber = record.AcctNo
	}
	return contractx.AccountOpenResult{
		Success:       true,
		Code:          resp.Code,
		Message:       resp.Message,
		AccountNumber: accountNumber,
		OpenedAt:      g.now(),
	}, nil
}
