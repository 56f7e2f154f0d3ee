package ai

import (
	"context"
	"strings"

	"lifelog-api/domain"
)

// ExtractedTask is one actionable item pulled from free text.
type ExtractedTask struct {
	Title string `json:"title"`
	Due   string `json:"due,omitempty"`
}

// TitleTags is a generated note title with deduplicated tags.
type TitleTags struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// ToneReport classifies tone, sentiment and urgency of a message.
type ToneReport struct {
	Tone      string   `json:"tone"`
	Sentiment *float64 `json:"sentiment"`
	Urgency   string   `json:"urgency"`
	Language  string   `json:"language,omitempty"`
}

// ExtractTasks pulls actionable items out of free text. Entries without a
// non-empty title are dropped silently.
func (c *Client) ExtractTasks(ctx context.Context, text string) ([]ExtractedTask, error) {
	payload, err := c.chatJSON(ctx, systemJSONOnly(), c.promptExtractTasks(text), 600, 0.2)
	if err != nil {
		return nil, err
	}

	rawTasks, ok := payload["tasks"].([]any)
	if !ok {
		return nil, malformed("missing tasks")
	}

	out := []ExtractedTask{}
	for _, raw := range rawTasks {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title := strings.TrimSpace(stringValue(entry["title"]))
		if title == "" {
			continue
		}
		item := ExtractedTask{Title: title}
		if due, ok := entry["due"].(string); ok && strings.TrimSpace(due) != "" {
			item.Due = strings.TrimSpace(due)
		}
		out = append(out, item)
	}
	return out, nil
}

// TitleAndTags generates a short title plus up to 5 tags. Tags are trimmed,
// empties dropped and duplicates removed preserving first occurrence.
func (c *Client) TitleAndTags(ctx context.Context, text string) (TitleTags, error) {
	payload, err := c.chatJSON(ctx, systemJSONOnly(), c.promptTitleAndTags(text), 250, 0.3)
	if err != nil {
		return TitleTags{}, err
	}

	title := strings.TrimSpace(stringValue(payload["title"]))
	rawTags, ok := payload["tags"].([]any)
	if title == "" || !ok {
		return TitleTags{}, malformed("expected title and tags")
	}

	seen := map[string]struct{}{}
	tags := []string{}
	for _, raw := range rawTags {
		t := strings.TrimSpace(stringValue(raw))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return TitleTags{Title: title, Tags: tags}, nil
}

// ParseCommand turns natural-language text into an intent plus a proposed API
// action. The action is untrusted; callers must run it through the executor's
// allow-list before acting on it.
func (c *Client) ParseCommand(ctx context.Context, text string) (domain.CommandPlan, error) {
	payload, err := c.chatJSON(ctx, systemJSONOnly(), c.promptParseCommand(text), 450, 0.1)
	if err != nil {
		return domain.CommandPlan{}, err
	}

	intent := strings.TrimSpace(stringValue(payload["intent"]))
	rawAction, ok := payload["action"].(map[string]any)
	if intent == "" || !ok {
		return domain.CommandPlan{}, malformed("expected intent and action")
	}

	method := "POST"
	if m := strings.TrimSpace(stringValue(rawAction["method"])); m != "" {
		method = strings.ToUpper(m)
	}
	path := strings.TrimSpace(stringValue(rawAction["path"]))
	if path == "" {
		return domain.CommandPlan{}, malformed("missing action.path")
	}
	body, ok := rawAction["body"].(map[string]any)
	if !ok {
		body = map[string]any{}
	}

	plan := domain.CommandPlan{
		Intent:      intent,
		Confidence:  floatValue(payload["confidence"]),
		Action:      domain.Action{Method: method, Path: path, Body: body},
		Explanation: strings.TrimSpace(stringValue(payload["explanation"])),
	}
	return plan, nil
}

// ClassifyTone labels the tone, sentiment and urgency of the text.
func (c *Client) ClassifyTone(ctx context.Context, text string) (ToneReport, error) {
	payload, err := c.chatJSON(ctx, systemJSONOnly(), c.promptClassifyTone(text), 220, 0.0)
	if err != nil {
		return ToneReport{}, err
	}

	tone := strings.TrimSpace(stringValue(payload["tone"]))
	urgency := strings.TrimSpace(stringValue(payload["urgency"]))
	if tone == "" || urgency == "" {
		return ToneReport{}, malformed("expected tone and urgency")
	}
	return ToneReport{
		Tone:      tone,
		Sentiment: floatValue(payload["sentiment"]),
		Urgency:   urgency,
		Language:  strings.TrimSpace(stringValue(payload["language"])),
	}, nil
}

// WeeklyDigest produces a digest from precomputed stats. Validation is kept
// loose: only the summary field is required.
func (c *Client) WeeklyDigest(ctx context.Context, stats map[string]any) (map[string]any, error) {
	payload, err := c.chatJSON(ctx, systemJSONOnly(), promptWeeklyDigest(stats), 650, 0.4)
	if err != nil {
		return nil, err
	}
	if _, ok := payload["summary"]; !ok {
		return nil, malformed("expected summary")
	}
	return payload, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// floatValue coerces numeric JSON values to a float pointer, nil otherwise.
func floatValue(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	}
	return nil
}
