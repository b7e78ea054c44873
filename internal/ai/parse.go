package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceOpenRegexp = regexp.MustCompile("(?i)```json\\s*")
	fenceRegexp     = regexp.MustCompile("```\\s*")
)

// StripFences removes incidental markdown code-fence artifacts that models
// emit around JSON payloads despite instructions not to.
func StripFences(content string) string {
	cleaned := strings.TrimSpace(content)
	cleaned = fenceOpenRegexp.ReplaceAllString(cleaned, "")
	cleaned = fenceRegexp.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// ParsePayload decodes a model response into v after stripping code fences.
func ParsePayload(content string, v any) error {
	cleaned := StripFences(content)
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("model returned invalid JSON: %w", err)
	}
	return nil
}
