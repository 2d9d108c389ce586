package llm

import "testing"

func TestRemoveThinkTags(t *testing.T) {
	t.Parallel()

	got := RemoveThinkTags("<think>reasoning here</think>actual answer")
	if got != "actual answer" {
		t.Errorf("expected think block stripped, got %q", got)
	}
	if got := RemoveThinkTags("no tags"); got != "no tags" {
		t.Errorf("text without tags must pass through, got %q", got)
	}
}

func TestParseJSONResponse(t *testing.T) {
	t.Parallel()

	type payload struct {
		Summary string `json:"summary"`
	}

	t.Run("clean json", func(t *testing.T) {
		var p payload
		if err := ParseJSONResponse(`{"summary": "ok"}`, &p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Summary != "ok" {
			t.Errorf("expected summary ok, got %q", p.Summary)
		}
	})

	t.Run("code fenced", func(t *testing.T) {
		var p payload
		content := "```json\n{\"summary\": \"fenced\"}\n```"
		if err := ParseJSONResponse(content, &p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Summary != "fenced" {
			t.Errorf("expected summary fenced, got %q", p.Summary)
		}
	})

	t.Run("repairable json", func(t *testing.T) {
		var p payload
		// Trailing comma and missing close brace.
		if err := ParseJSONResponse(`{"summary": "broken",`, &p); err != nil {
			t.Fatalf("expected repair to succeed: %v", err)
		}
		if p.Summary != "broken" {
			t.Errorf("expected summary broken, got %q", p.Summary)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		var p payload
		if err := ParseJSONResponse("<think>only thoughts</think>", &p); err == nil {
			t.Error("empty cleaned content must fail")
		}
	})
}
