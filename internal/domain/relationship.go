package domain

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

type FriendRequest struct {
	ID         int64               `json:"id"`
	FromUserID int64               `json:"from_user_id"`
	ToUserID   int64               `json:"to_user_id"`
	Message    string              `json:"message"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
}
