package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/kaptinlin/jsonrepair"
)

var thinkTagPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// RemoveThinkTags strips reasoning-model think blocks from a response.
func RemoveThinkTags(s string) string {
	return strings.TrimSpace(thinkTagPattern.ReplaceAllString(s, ""))
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseJSONResponse cleans a model response and unmarshals it into target,
// repairing malformed JSON on the way. Models wrap JSON in code fences and
// think blocks often enough that callers should never unmarshal raw output.
func ParseJSONResponse(content string, target any) error {
	cleaned := stripCodeFence(RemoveThinkTags(content))
	if cleaned == "" {
		return fmt.Errorf("empty response content")
	}

	if err := json.Unmarshal([]byte(cleaned), target); err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(cleaned)
	if repairErr != nil {
		return fmt.Errorf("response is not valid JSON and could not be repaired: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("repaired response still invalid: %w", err)
	}
	return nil
}
