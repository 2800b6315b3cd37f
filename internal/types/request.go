package types

// Message is one entry of a conversation transcript. Messages are never
// mutated after creation; filters that rewrite content return copies.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ContentOf returns the message bodies in order.
func ContentOf(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

type StartSessionRequest struct {
	Persona string `json:"persona"`
}

type TurnRequest struct {
	Content string `json:"content"`
}

type UpdateSettingRequest struct {
	Value string `json:"value"`
}
