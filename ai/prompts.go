package ai

import (
	"encoding/json"
	"strings"
)

func systemJSONOnly() string {
	return "Return ONLY valid JSON. No markdown, no code fences, no extra text."
}

func (c *Client) promptExtractTasks(text string) string {
	return strings.Join([]string{
		"Extract actionable tasks from the text. If no tasks, return an empty list.",
		"Output schema:",
		`{ "tasks": [ { "title": "string", "due": "YYYY-MM-DD | null" } ] }`,
		"Rules:",
		"- Keep titles short and imperative.",
		"- If due date is not explicitly present, use null.",
		"- Do NOT hallucinate dates.",
		"",
		"TEXT:",
		c.limitText(text),
	}, "\n")
}

func (c *Client) promptTitleAndTags(text string) string {
	return strings.Join([]string{
		"Generate a short title and up to 5 tags for the note.",
		"Output schema:",
		`{ "title": "string", "tags": ["string"] }`,
		"Rules:",
		"- Tags should be concise keywords (no #).",
		"- Keep the title under ~60 characters.",
		"",
		"TEXT:",
		c.limitText(text),
	}, "\n")
}

func (c *Client) promptParseCommand(text string) string {
	return strings.Join([]string{
		"You are a command parser for a productivity app (notes, tasks, calendar).",
		"Interpret the user text and produce ONE best intent + a ready-to-call API action.",
		"Only use these intents:",
		"- create_task",
		"- create_calendar_event",
		"- create_note",
		"- search",
		"- unknown",
		"",
		"Output schema:",
		"{",
		`  "intent": "string",`,
		`  "confidence": 0.0,`,
		`  "action": {`,
		`    "method": "POST",`,
		`    "path": "/api/tasks | /api/calendar-events | /api/notes | /api/search",`,
		`    "body": { ... }`,
		"  },",
		`  "explanation": "string"`,
		"}",
		"",
		"Rules:",
		`- If a task is requested, use path "/api/tasks" with body keys: title, due_at(optional ISO8601), status(optional: todo|doing|done), source="ai.command".`,
		`- If a calendar event is requested, use path "/api/calendar-events" with body keys: title, start_at(ISO8601), end_at(optional ISO8601), remind_before_minute(optional int), related_type(optional), related_id(optional).`,
		`- If user says "today/tomorrow/at 14:00", resolve it using timezone ` + c.cfg.Timezone + " and output ISO8601.",
		"- Do not invent dates/times. If unclear, pick intent unknown and explain what is missing.",
		"- The API paths must be exact.",
		"",
		"USER TEXT:",
		c.limitText(text),
	}, "\n")
}

func (c *Client) promptClassifyTone(text string) string {
	return strings.Join([]string{
		"Classify the message tone and urgency.",
		"Output schema:",
		`{ "tone": "neutral|formal|casual|friendly|angry|stressed", "sentiment": -1.0, "urgency": "low|medium|high", "language": "string" }`,
		"Rules:",
		"- sentiment: -1 (very negative) to +1 (very positive). Use null if unsure.",
		"- Keep it conservative; do not over-interpret.",
		"",
		"TEXT:",
		c.limitText(text),
	}, "\n")
}

func promptWeeklyDigest(stats map[string]any) string {
	ctxJSON, err := json.Marshal(stats)
	if err != nil {
		ctxJSON = []byte("{}")
	}
	return strings.Join([]string{
		"You are a productivity coach. Create a weekly digest from the provided stats.",
		"Output schema:",
		"{",
		`  "summary": "string",`,
		`  "highlights": ["string"],`,
		`  "risks": ["string"],`,
		`  "suggestions": ["string"],`,
		`  "stats": { "tasks_total": 0, "tasks_created_last_7d": 0, "tasks_overdue_now": 0, "notes_created_last_7d": 0, "events_upcoming_next_7d": 0 }`,
		"}",
		"Rules:",
		"- Keep it short and actionable.",
		"- If overdue_now > 0, include at least one suggestion about it.",
		"",
		"CONTEXT_JSON:",
		string(ctxJSON),
	}, "\n")
}
