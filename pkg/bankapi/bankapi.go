package bankapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// SuccessCode is the rtncode the AMS gateway returns for an accepted request.
const SuccessCode = "000000"

var ErrTransport = errors.New("bank api transport failure")

type Config struct {
	BaseURL  string        `envconfig:"BASE_URL" split_words:"true"`
	OpenPath string        `envconfig:"OPEN_PATH" split_words:"true" default:"/ams/account/open"`
	APIKey   string        `envconfig:"API_KEY" split_words:"true"`
	Timeout  time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

// Response is the AMS reply envelope. Code and Message are never rewritten.
type Response struct {
	Code          string `json:"rtncode"`
	Message       string `json:"rtnmsg"`
	AccountNumber string `json:"acctNo,omitempty"`
}

func (r Response) OK() bool {
	return r.Code == SuccessCode
}

type Client struct {
	http     *resty.Client
	openPath string
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("bank api base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid bank api url: %w", err)
	}

	openPath := strings.TrimSpace(cfg.OpenPath)
	if openPath == "" {
		openPath = "/ams/account/open"
	}
	if !strings.HasPrefix(openPath, "/") {
		openPath = "/" + openPath
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Retries stay off: a replayed open must come from the caller, not the transport.
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		httpClient.SetHeader("Authorization", "Bearer "+key)
	}

	return &Client{http: httpClient, openPath: openPath}, nil
}

// OpenAccount posts the account-opening body. Any reply that carries an rtncode is
// returned as a Response; transport failures and non-envelope replies are ErrTransport.
func (c *Client) OpenAccount(ctx context.Context, body any) (Response, error) {
	var out Response
	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(c.openPath)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	log.Debug().
		Str("path", c.openPath).
		Int("status", resp.StatusCode()).
		Str("rtncode", out.Code).
		Dur("latency", time.Since(start)).
		Msg("bank api open account")

	if strings.TrimSpace(out.Code) == "" {
		return Response{}, fmt.Errorf("%w: status %d without rtncode", ErrTransport, resp.StatusCode())
	}
	return out, nil
}
