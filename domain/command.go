package domain

import "strings"

// CommandPlan is the interpreter's structured output for one natural-language
// command. It is produced per call and never persisted.
type CommandPlan struct {
	Intent      string   `json:"intent"`
	Confidence  *float64 `json:"confidence"`
	Action      Action   `json:"action"`
	Explanation string   `json:"explanation,omitempty"`
}

// Action is the raw API call proposed by the model. It is untrusted until the
// executor's allow-list check passes.
type Action struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Body   map[string]any `json:"body"`
}

// ActionKind is the closed set of actions the executor may perform. A kind is
// only ever constructed after the allow-list check; model-provided strings
// never route calls directly.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionCreateTask
	ActionCreateCalendarEvent
	ActionCreateNote
)

// AllowedAction canonicalises the action path ("/api/tasks" -> "tasks") and
// returns the matching kind. Only POST create actions are permitted.
func AllowedAction(method, path string) (ActionKind, bool) {
	if strings.ToUpper(strings.TrimSpace(method)) != "POST" {
		return ActionUnknown, false
	}
	p := strings.Trim(strings.TrimSpace(path), "/")
	p = strings.TrimPrefix(p, "api/")
	switch p {
	case "tasks":
		return ActionCreateTask, true
	case "calendar-events":
		return ActionCreateCalendarEvent, true
	case "notes":
		return ActionCreateNote, true
	}
	return ActionUnknown, false
}
