package chat

import "time"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Source is a grounding citation returned with a consultant answer.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Message is one turn of an AI consultant conversation.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	HasImage  bool      `json:"has_image,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
