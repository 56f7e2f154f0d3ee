package domain

// NormalizeStatus maps the status aliases accepted from commands onto the
// canonical task statuses. Unrecognised values pass through unchanged.
func NormalizeStatus(s string) string {
	switch s {
	case "todo", "open":
		return "open"
	case "doing":
		return "doing"
	case "done", "completed":
		return "done"
	default:
		return s
	}
}
