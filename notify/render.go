package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lifelog-api/domain"
)

// renderOrder fixes the payload keys the message shows and their order.
// Keys outside this list (including the origin marker) never render.
var renderOrder = []string{
	"title",
	"body",
	"tags",
	"status",
	"due_at",
	"start_at",
	"end_at",
	"remind_before_minute",
	"source",
	"link",
	"related_type",
	"related_id",
}

var dateKeys = map[string]bool{
	"due_at":   true,
	"start_at": true,
	"end_at":   true,
}

const dateLayout = "2006-01-02 15:04 (-07:00)"

// renderMessage builds the notification text for one ledger entry. Output is
// deterministic for a given entry and location.
func renderMessage(entry domain.LedgerEntry, loc *time.Location) string {
	lines := []string{
		entry.Type,
		"id: " + strconv.FormatInt(entry.EntityID, 10),
	}
	for _, key := range renderOrder {
		raw, ok := entry.Payload[key]
		if !ok || raw == nil {
			continue
		}
		value := renderValue(key, raw, loc)
		if value == "" {
			continue
		}
		lines = append(lines, key+": "+value)
	}
	return strings.Join(lines, "\n")
}

func renderValue(key string, raw any, loc *time.Location) string {
	if list, ok := raw.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s := renderScalar(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	if list, ok := raw.([]string); ok {
		return strings.Join(list, ", ")
	}

	s := renderScalar(raw)
	if s == "" {
		return ""
	}
	if dateKeys[key] {
		// Stored timestamps are RFC3339; anything else passes through raw.
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.In(loc).Format(dateLayout)
		}
	}
	return s
}

func renderScalar(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
