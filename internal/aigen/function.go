package aigen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/pkg/logger"

	"github.com/avast/retry-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// FunctionGenerator 调用外部生成函数
type FunctionGenerator struct {
	client        *resty.Client
	url           string
	provider      string
	retryAttempts uint
}

func NewFunctionGenerator(cfg config.AIConfig) *FunctionGenerator {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &FunctionGenerator{
		client:        client,
		url:           cfg.FunctionURL,
		provider:      cfg.Provider,
		retryAttempts: cfg.RetryAttempts,
	}
}

type functionEnvelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
	Error    string          `json:"error,omitempty"`
}

// statusError 非 2xx 响应
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("generation function responded %d: %s", e.code, e.body)
}

// retryable 传输错误、5xx 和 429 可重试
func retryable(err error) bool {
	se, ok := err.(*statusError)
	if !ok {
		return true
	}
	return se.code >= http.StatusInternalServerError || se.code == http.StatusTooManyRequests
}

func (g *FunctionGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = g.provider
	}

	var result *Result
	err := retry.Do(
		func() error {
			r, err := g.call(ctx, req)
			if err != nil {
				if !retryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.retryAttempts+1),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Log.Warn("Retrying generation function", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *FunctionGenerator) call(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(g.url)
	if err != nil {
		return nil, fmt.Errorf("call generation function: %w", err)
	}
	if resp.IsError() {
		return nil, &statusError{code: resp.StatusCode(), body: resp.String()}
	}

	var envelope functionEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		// 响应不完整时重试
		return nil, fmt.Errorf("%w: decode response: %v", ErrInvalidPayload, err)
	}
	if !envelope.Success {
		return nil, retry.Unrecoverable(fmt.Errorf("%w: %s", ErrGenerationRejected, envelope.Error))
	}

	data, err := ValidateData(envelope.Data)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}

	meta := envelope.Metadata
	if meta.Provider == "" {
		meta.Provider = req.Provider
	}
	if meta.GenerationTimeMS == 0 {
		meta.GenerationTimeMS = time.Since(start).Milliseconds()
	}
	meta.ConceptsCount = len(data.Concepts)
	meta.RelationshipsCount = len(data.Relationships)

	return &Result{Success: true, Data: *data, Metadata: meta}, nil
}
