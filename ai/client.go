package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// Config is the explicit interpreter configuration, injected at construction.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxInputChars int
	Timezone      string
}

// Client calls an OpenAI-compatible chat completions endpoint and enforces
// the JSON output contract on its responses.
type Client struct {
	cfg      Config
	endpoint string
	http     *http.Client
	logger   *log.Logger
}

// NewClient builds a Client from the given configuration.
func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 12000
	}
	if cfg.MaxInputChars < 500 {
		cfg.MaxInputChars = 500
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		cfg:      cfg,
		endpoint: normalizeEndpoint(cfg.BaseURL),
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
	}
}

// normalizeEndpoint accepts both a full chat-completions URL and an API root
// ending in /v1.
func normalizeEndpoint(baseURL string) string {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if u == "" {
		return defaultEndpoint
	}
	if strings.HasSuffix(u, "/v1") {
		return u + "/chat/completions"
	}
	return u
}

// chatJSON performs one JSON-mode completion and decodes the model output.
// The HTTP call is retried up to 2 times with a fixed short delay on
// transport failure; the final response, success or failure, is what gets
// interpreted.
func (c *Client) chatJSON(ctx context.Context, system, user string, maxTokens int, temperature float64) (map[string]any, error) {
	if c.cfg.APIKey == "" {
		return nil, upstreamError(0, "", "AI API key is not configured")
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.cfg.Model,
		"temperature":     temperature,
		"max_tokens":      maxTokens,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return nil, upstreamError(0, "", "marshal request: "+err.Error())
	}

	requestID := uuid.NewString()
	var resp *http.Response
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, upstreamError(0, requestID, err.Error())
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err = c.http.Do(req)
		if err == nil {
			break
		}
		if attempt >= 2 {
			return nil, upstreamError(0, requestID, "AI request failed: "+err.Error())
		}
		c.logger.WithError(err).Debugf("ai request failed, retrying (attempt %d)", attempt+1)
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return nil, upstreamError(0, requestID, ctx.Err().Error())
		}
	}
	defer resp.Body.Close()

	return parseChatCompletion(resp)
}

func parseChatCompletion(resp *http.Response) (map[string]any, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, upstreamError(resp.StatusCode, resp.Header.Get("x-request-id"), "read response: "+err.Error())
	}

	requestID := resp.Header.Get("x-request-id")

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimited(requestID, parseRetryAfter(resp.Header.Get("retry-after")))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		var errBody struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errBody) == nil {
			msg = errBody.Error.Message
		}
		return nil, upstreamError(resp.StatusCode, requestID, msg)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, emptyResponse()
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, emptyResponse()
	}

	return decodeJSONLoose(completion.Choices[0].Message.Content)
}

// parseRetryAfter accepts only a pure digit string, so signed values like
// "+5" or "-0" and HTTP-date forms are all ignored.
func parseRetryAfter(value string) *int {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// limitText trims and truncates caller text to the configured input limit.
func (c *Client) limitText(text string) string {
	t := strings.TrimSpace(text)
	runes := []rune(t)
	if len(runes) <= c.cfg.MaxInputChars {
		return t
	}
	return string(runes[:c.cfg.MaxInputChars])
}
