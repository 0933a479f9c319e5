package session

import (
	"encoding/json"
	"strings"

	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

var actionTypes = map[string]bool{
	"send_message": true,
	"fill_input":   true,
	"open_file":    true,
}

// extractSuggestedActions strips a trailing fenced JSON block carrying a
// suggested_actions payload from assistant text and returns the cleaned
// text plus the actions. Anything that does not parse or validate fails
// open: the original text comes back unchanged with no actions, so user
// visible content is never silently dropped.
func extractSuggestedActions(text string) (string, []types.SuggestedAction) {
	block, before, ok := trailingFence(text)
	if !ok {
		return text, nil
	}

	var payload struct {
		SuggestedActions []types.SuggestedAction `json:"suggested_actions"`
	}
	if err := json.Unmarshal([]byte(block), &payload); err != nil {
		logging.Debug().Err(err).Msg("trailing block is not an actions payload")
		return text, nil
	}
	if len(payload.SuggestedActions) == 0 {
		return text, nil
	}
	for _, a := range payload.SuggestedActions {
		if a.Label == "" || !actionTypes[a.ActionType] {
			logging.Debug().Str("actionType", a.ActionType).Msg("invalid suggested action, keeping raw text")
			return text, nil
		}
	}

	return strings.TrimRight(before, " \t\n"), payload.SuggestedActions
}

// trailingFence returns the body of a ```json (or bare ```) fence that
// closes at the very end of the text, plus everything before the fence.
func trailingFence(text string) (block, before string, ok bool) {
	trimmed := strings.TrimRight(text, " \t\n")
	if !strings.HasSuffix(trimmed, "```") {
		return "", "", false
	}
	body := trimmed[:len(trimmed)-3]

	open := strings.LastIndex(body, "```")
	if open < 0 {
		return "", "", false
	}
	inner := body[open+3:]
	before = body[:open]

	// Drop the info string ("json") on the opening fence line.
	if nl := strings.IndexByte(inner, '\n'); nl >= 0 {
		lang := strings.TrimSpace(inner[:nl])
		if lang != "" && lang != "json" && lang != "jsonc" {
			return "", "", false
		}
		inner = inner[nl+1:]
	}
	return inner, before, true
}
