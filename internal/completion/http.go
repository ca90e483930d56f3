package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/countryleisure/rusty/internal/reliability"
)

// HTTPClient forwards requests to a completion-compatible HTTP endpoint.
type HTTPClient struct {
	url        string
	client     *http.Client
	maxRetries int
	baseDelay  time.Duration
	capDelay   time.Duration
}

func NewHTTPClient(url string) *HTTPClient {
	return &HTTPClient{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries: 2,
		baseDelay:  250 * time.Millisecond,
		capDelay:   2 * time.Second,
	}
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := reliability.ExponentialBackoff(attempt, c.baseDelay, c.capDelay)
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, retryable, err := c.once(ctx, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return Response{}, lastErr
}

func (c *HTTPClient) once(ctx context.Context, payload []byte) (Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, false, ctx.Err()
		}
		return Response{}, true, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		retryable := reliability.IsRetryableHTTPStatus(res.StatusCode)
		return Response{}, retryable, fmt.Errorf("completion http status %d: %s", res.StatusCode, string(body))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Response{}, true, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		// Some endpoints reply with plain text; accept it.
		text := strings.TrimSpace(string(body))
		if text == "" {
			return Response{}, false, fmt.Errorf("empty completion response")
		}
		return Response{Text: text}, false, nil
	}

	text := strings.TrimSpace(extractText(obj))
	if text == "" {
		return Response{}, false, fmt.Errorf("completion response carries no text")
	}
	return Response{Text: text}, false, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "reply", "output", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
