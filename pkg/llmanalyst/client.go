package llmanalyst

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/codeready-toolchain/mswim/pkg/apperrors"
)

// Transport is the minimal shape a production LLM provider must satisfy;
// it is intentionally not the raw provider SDK (§1 "the core consumes an
// opaque LLMAnalyst capability").
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a backoff-wrapped Analyst around an HTTP-shaped provider.
// Timeouts and 5xx/network errors surface as apperrors.LLMError so the
// coordinator can apply the fast-path fallback (§7 LLMFailure).
type Client struct {
	endpoint  string
	transport Transport
	timeout   time.Duration
}

// NewClient builds a production Analyst. timeout defaults to DefaultTimeout
// when zero.
func NewClient(endpoint string, transport Transport, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{endpoint: endpoint, transport: transport, timeout: timeout}
}

// Analyze implements Analyst, retrying transient failures with exponential
// backoff bounded by the per-call deadline.
func (c *Client) Analyze(ctx context.Context, evalCtx EvaluationContext) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(requestBody{
		SessionID:     evalCtx.Session.ID,
		NewEventCount: len(evalCtx.NewEvents),
	})
	if err != nil {
		return Output{}, apperrors.NewLLMError("marshal_request", err)
	}

	var out Output
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.transport.Do(req)
		if err != nil {
			return err // retryable: network error
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("llm provider returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("llm provider returned %d", resp.StatusCode))
		}

		var decoded Output
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("invalid llm response: %w", err))
		}
		out = decoded
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return Output{}, apperrors.NewLLMError("analyze", err)
	}
	return out, nil
}

type requestBody struct {
	SessionID     string `json:"sessionId"`
	NewEventCount int    `json:"newEventCount"`
}
