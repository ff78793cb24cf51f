package domain

import "time"

type ChatRoom struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsGroup   bool      `json:"is_group"`
	MemberIDs []int64   `json:"member_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
