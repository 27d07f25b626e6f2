package model

// InferenceSettings are optional completion parameters, each with provider
// defaults when zero.
type InferenceSettings struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxTokens        int     `json:"max_tokens,omitempty"`
	FrequencyPenalty float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64 `json:"presence_penalty,omitempty"`
}

// GenerateMessage carries the user's turn.
type GenerateMessage struct {
	User string `json:"user"`
}

// GenerateRequest is the inbound payload of the Generate operation.
type GenerateRequest struct {
	ConversationID    string            `json:"conversation_id"`
	Message           GenerateMessage   `json:"message"`
	Engine            string            `json:"engine,omitempty"`
	InferenceSettings InferenceSettings `json:"inference_settings,omitempty"`
	UnlockToken       string            `json:"unlock_token,omitempty"`
}

// GenerateReply is the assistant turn returned to the caller.
type GenerateReply struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateResponse is the outbound payload of the Generate operation.
type GenerateResponse struct {
	Data       GenerateReply `json:"data"`
	Engine     string        `json:"engine"`
	TokenCount int           `json:"token"`
	Remaining  int           `json:"remaining"`
	ExchangeID string        `json:"exchange_id"`
}

// UnlockTokenResponse is the outbound payload of the GetUnlockToken operation.
type UnlockTokenResponse struct {
	Success     bool   `json:"success"`
	UnlockToken string `json:"unlock_token"`
}
