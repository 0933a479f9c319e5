package types

// ChatSession is the durable record for one conversation. Owned exclusively
// by the session store; mutations go through store operations that bump
// LastModified and persist before returning.
type ChatSession struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	History      []*UiMessage `json:"history"`
	Config       ChatConfig   `json:"config"`
	CreatedAt    int64        `json:"createdAt"`    // unix millis
	LastModified int64        `json:"lastModified"` // unix millis
}

// ChatConfig is per-chat model selection and generation settings. Empty
// fields fall back to the app-level defaults.
type ChatConfig struct {
	ProviderID   string   `json:"providerId,omitempty"`
	ModelID      string   `json:"modelId,omitempty"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    int      `json:"maxTokens,omitempty"`
}

// AppState is the small per-workspace pointer record kept alongside
// sessions: which chat was last active and where the UI last was.
type AppState struct {
	LastActiveSessionID string `json:"lastActiveSessionId,omitempty"`
	LastLocation        string `json:"lastLocation,omitempty"`
}
