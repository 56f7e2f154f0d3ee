package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	fenceOpen  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// decodeJSONLoose recovers a JSON object from model output that may be
// wrapped in code fences or surrounded by extra prose. Input with no balanced
// {...} span, or that decodes to a non-object, is rejected.
func decodeJSONLoose(content string) (map[string]any, error) {
	raw := strings.TrimSpace(content)
	raw = fenceOpen.ReplaceAllString(raw, "")
	raw = fenceClose.ReplaceAllString(raw, "")
	raw = strings.TrimSpace(raw)

	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first >= 0 && last > first {
		raw = raw[first : last+1]
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil || decoded == nil {
		return nil, invalidJSON()
	}
	return decoded, nil
}
