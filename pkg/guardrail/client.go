package guardrail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/railguard/railguard/pkg/infra/httpx"
	"github.com/railguard/railguard/pkg/types"
	"github.com/sirupsen/logrus"
)

const (
	configsPath     = "/v1/rails/configs"
	completionsPath = "/v1/chat/completions"
)

//go:generate mockery --name=Client --dir=. --output=./mocks --filename=client_mock.go --case=underscore --with-expecter
type Client interface {
	// ResolveConfigID returns the rails configuration id to classify with,
	// resolving and caching it on first use when not configured explicitly.
	ResolveConfigID(ctx context.Context) (string, error)
	// Classify sends the messages to the moderation endpoint and returns the
	// raw response payload.
	Classify(ctx context.Context, messages []types.Message) ([]byte, error)
}

type railsConfig struct {
	ID string `json:"id"`
}

type classificationRequest struct {
	ConfigID string          `json:"config_id"`
	Messages []types.Message `json:"messages"`
}

type railsClient struct {
	client   httpx.Client
	breaker  httpx.CircuitBreaker
	logger   *logrus.Logger
	baseURL  string
	configID string
	timeout  time.Duration

	// configsCache holds the raw []railsConfig list fetched on first
	// resolution. Concurrent first resolutions may race; the fetch is
	// idempotent and the last writer wins. A failed fetch stores nothing,
	// so the next call retries.
	configsCache atomic.Value
}

func NewRailsClient(
	logger *logrus.Logger,
	client httpx.Client,
	breaker httpx.CircuitBreaker,
	cfg Config,
) Client {
	if client == nil {
		client = &http.Client{}
	}
	if breaker == nil {
		breaker = httpx.NoopCircuitBreaker{}
	}
	return &railsClient{
		client:   client,
		breaker:  breaker,
		logger:   logger,
		baseURL:  cfg.GuardrailsURL,
		configID: cfg.ConfigID,
		timeout:  cfg.Timeout(),
	}
}

func (c *railsClient) ResolveConfigID(ctx context.Context) (string, error) {
	if c.configID != "" {
		return c.configID, nil
	}

	configs, ok := c.configsCache.Load().([]railsConfig)
	if !ok {
		fetched, err := c.fetchConfigs(ctx)
		if err != nil {
			return "", err
		}
		c.configsCache.Store(fetched)
		configs = fetched
	}

	if len(configs) == 0 {
		return "", fmt.Errorf("%w: no configurations available", ErrConfigUnavailable)
	}
	if configs[0].ID == "" {
		return "", fmt.Errorf("%w: config id not found in response", ErrConfigUnavailable)
	}

	c.logger.WithField("config_id", configs[0].ID).Debug("using rails config")
	return configs[0].ID, nil
}

func (c *railsClient) fetchConfigs(ctx context.Context) ([]railsConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+configsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}

	var configs []railsConfig
	err = c.breaker.Execute(func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch rails configs: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("rails configs returned status %d", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&configs); err != nil {
			return fmt.Errorf("invalid rails configs response: %w", err)
		}
		return nil
	})
	if err != nil {
		c.logger.WithError(err).Error("failed to fetch rails configurations")
		return nil, fmt.Errorf("%w: %v", ErrConfigUnavailable, err)
	}

	c.logger.WithField("count", len(configs)).Info("fetched rails configurations")
	return configs, nil
}

func (c *railsClient) Classify(ctx context.Context, messages []types.Message) ([]byte, error) {
	configID, err := c.ResolveConfigID(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(classificationRequest{
		ConfigID: configID,
		Messages: messages,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+completionsPath,
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create classification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var payload []byte
	err = c.breaker.Execute(func() error {
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call moderation endpoint: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("moderation endpoint returned status %d", resp.StatusCode)
		}
		payload, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("classification response read error: %w", err)
		}
		return nil
	})
	if err != nil {
		c.logger.WithError(err).Error("classification call failed")
		return nil, fmt.Errorf("%w: %v", ErrClassificationTransport, err)
	}

	return payload, nil
}
