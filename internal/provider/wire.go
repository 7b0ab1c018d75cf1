package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// httpGateway carries the request plumbing shared by the backends that
// speak the OpenAI-shaped chat completions wire contract.
type httpGateway struct {
	name    string
	url     string
	apiKey  string
	timeout time.Duration
	hc      *http.Client
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (g *httpGateway) newRequest(ctx context.Context, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s request", g.name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "create %s request", g.name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	return req, nil
}

// complete performs a blocking completion call and decodes the full
// response body.
func (g *httpGateway) complete(ctx context.Context, payload any) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := g.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s request failed", g.name)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s response", g.name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("%s non-success status=%d body=%s", g.name, resp.StatusCode, truncate(string(body), 400))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Errorf("malformed %s response: %s", g.name, truncate(string(body), 400))
	}

	if len(parsed.Choices) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	return schema.AssistantMessage(parsed.Choices[0].Message.Content, nil), nil
}

// stream opens a streaming completion and decodes the event-per-line
// protocol into assistant fragments. Malformed events are skipped;
// transport failure mid-stream is delivered once through the reader
// after fragments already sent.
func (g *httpGateway) stream(ctx context.Context, payload any) (*schema.StreamReader[*schema.Message], error) {
	req, err := g.newRequest(ctx, payload)
	if err != nil {
		return nil, err
	}

	resp, err := g.hc.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s stream request failed", g.name)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, errors.Errorf("%s non-success status=%d body=%s", g.name, resp.StatusCode, truncate(string(body), 400))
	}

	sr, sw := schema.Pipe[*schema.Message](8)
	go g.decodeEvents(resp.Body, sw)
	return sr, nil
}

func (g *httpGateway) decodeEvents(body io.ReadCloser, sw *schema.StreamWriter[*schema.Message]) {
	defer sw.Close()
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			log.Warn().Err(err).
				Str("component", "provider").
				Str("backend", g.name).
				Msg("skipping malformed stream event")
			continue
		}
		if len(ev.Choices) == 0 {
			continue
		}

		delta := ev.Choices[0].Delta
		if delta.ReasoningContent != "" {
			// Reasoning traces are telemetry, never part of the answer.
			log.Trace().
				Str("component", "provider").
				Str("backend", g.name).
				Int("len", len(delta.ReasoningContent)).
				Msg("discarding reasoning delta")
		}
		if delta.Content == "" {
			continue
		}
		if closed := sw.Send(schema.AssistantMessage(delta.Content, nil), nil); closed {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		sw.Send(nil, errors.Wrapf(err, "%s stream transport", g.name))
	}
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
