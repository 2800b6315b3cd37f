package types

// SSE payloads emitted during a chat turn.

type SafetyEvent struct {
	Level  string `json:"level"`
	Reason string `json:"reason,omitempty"`
}

type TokenEvent struct {
	Token string `json:"token"`
}

type WellnessEvent struct {
	Minutes int    `json:"minutes"`
	Message string `json:"message"`
}

type ReplaceEvent struct {
	Content string `json:"content"`
}

type DoneEvent struct {
	SessionID  string `json:"session_id"`
	MessageID  int64  `json:"message_id"`
	Backend    string `json:"backend,omitempty"`
	Redirected bool   `json:"redirected"`
	TokenCount int    `json:"token_count"`
	DurationMS int64  `json:"duration_ms"`
}

type PauseEvent struct {
	Reason string `json:"reason"`
}
