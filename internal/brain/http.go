package brain

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/voicebridge/internal/reliability"
)

// HTTPAdapter forwards prompts to an HTTP reply endpoint. The endpoint may
// answer with JSON ({"text": ...}), plain text, SSE or NDJSON deltas.
type HTTPAdapter struct {
	url         string
	client      *http.Client
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewHTTPAdapter(url string) *HTTPAdapter {
	return &HTTPAdapter{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxAttempts: 3,
		backoffBase: 250 * time.Millisecond,
		backoffCap:  2 * time.Second,
	}
}

func (a *HTTPAdapter) Generate(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return MessageResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	var out MessageResponse
	policy := reliability.Policy{MaxAttempts: a.maxAttempts, Base: a.backoffBase, Cap: a.backoffCap}
	err = reliability.Do(ctx, policy, func(ctx context.Context) error {
		resp, retryable, err := a.do(ctx, payload)
		if err != nil {
			if !retryable {
				return reliability.Permanent(err)
			}
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return MessageResponse{}, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return MessageResponse{}, ErrEmptyReply
	}
	return out, nil
}

func (a *HTTPAdapter) do(ctx context.Context, payload []byte) (MessageResponse, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return MessageResponse{}, false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(httpReq)
	if err != nil {
		return MessageResponse{}, ctx.Err() == nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return MessageResponse{}, reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("brain http status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		resp, err := consumeStreaming(res.Body)
		return resp, false, err
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return MessageResponse{}, false, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return MessageResponse{Text: strings.TrimSpace(string(body))}, false, nil
	}
	return MessageResponse{Text: strings.TrimSpace(extractText(obj))}, false, nil
}

func consumeStreaming(body io.Reader) (MessageResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}

		delta := line
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			delta = extractText(obj)
		}
		out.WriteString(delta)
	}
	if err := scanner.Err(); err != nil {
		return MessageResponse{}, fmt.Errorf("stream read: %w", err)
	}
	return MessageResponse{Text: strings.TrimSpace(out.String())}, nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "delta", "output", "reply", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
