package domain

import "time"

// ChatMessage es inmutable una vez persistido. Content o el par FileURL/FileName
// pueden venir vacios, pero nunca ambos.
type ChatMessage struct {
	ID        int64     `json:"id"`
	RoomID    int64     `json:"room_id"`
	SenderID  int64     `json:"sender_id"`
	Content   *string   `json:"content"`
	FileURL   *string   `json:"file_url,omitempty"`
	FileName  *string   `json:"file_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasFile indica si el mensaje lleva un adjunto.
func (m ChatMessage) HasFile() bool {
	return m.FileURL != nil && *m.FileURL != ""
}
