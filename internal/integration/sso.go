package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/bk-tutor/tutor-support-api/pkg/config"
)

// Authenticator verifies credentials against the campus single-sign-on
// provider. Login composes it with the local credential check; both
// must pass.
type Authenticator interface {
	Authenticate(ctx context.Context, studentNo, password string) (bool, error)
}

// StaticAuthenticator accepts every credential. It stands in for the
// real provider in development and tests.
type StaticAuthenticator struct{}

// Authenticate always reports success.
func (StaticAuthenticator) Authenticate(ctx context.Context, studentNo, password string) (bool, error) {
	return true, nil
}

// SSOClient calls the campus SSO over HTTP. Calls run through a
// circuit breaker so a degraded provider fails fast instead of tying
// up request handlers.
type SSOClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewSSOClient constructs an HTTP-backed authenticator.
func NewSSOClient(cfg config.SSOConfig, logger *zap.Logger) *SSOClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "SSO",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &SSOClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

type ssoAuthRequest struct {
	StudentNo string `json:"student_no"`
	Password  string `json:"password"`
}

type ssoAuthResponse struct {
	Authenticated bool `json:"authenticated"`
}

// Authenticate posts the credentials to the provider's verify endpoint.
func (c *SSOClient) Authenticate(ctx context.Context, studentNo, password string) (bool, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		payload, err := json.Marshal(ssoAuthRequest{StudentNo: studentNo, Password: password})
		if err != nil {
			return nil, fmt.Errorf("marshal sso request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/authenticate", bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build sso request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("call sso: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			return false, nil
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("sso returned status %d", resp.StatusCode)
		}

		var body ssoAuthResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("decode sso response: %w", err)
		}
		return body.Authenticated, nil
	})
	if err != nil {
		return false, err
	}
	return result.(bool), nil
}

// NewAuthenticator selects the configured authenticator implementation.
func NewAuthenticator(cfg config.SSOConfig, logger *zap.Logger) Authenticator {
	if cfg.Static {
		return StaticAuthenticator{}
	}
	return NewSSOClient(cfg, logger)
}
