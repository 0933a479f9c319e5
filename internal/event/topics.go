package event

// Well-known topic names. Parameterized topics embed the entity id after a
// slash so a subscriber can watch a single session without seeing others.
const (
	TopicSessionList = "session-list"
	TopicToolStatus  = "tool-status"
	TopicMCPStatus   = "mcp-status"
)

// TopicSessionUpdate names the per-session change topic.
func TopicSessionUpdate(sessionID string) string {
	return "session-update/" + sessionID
}

// TopicStreamStatus names the per-session stream state topic
// (idle/requesting/streaming/...).
func TopicStreamStatus(sessionID string) string {
	return "stream-status/" + sessionID
}

// TopicSuggestedActions names the side channel for actions extracted from a
// reconciled assistant message, keyed by (chat, message).
func TopicSuggestedActions(sessionID, messageID string) string {
	return "suggested-actions/" + sessionID + "/" + messageID
}

// TopicClientToolRequest names the channel on which the backend asks the
// frontend to run an editor tool.
const TopicClientToolRequest = "client-tool-request"
