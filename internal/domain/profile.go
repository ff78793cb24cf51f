package domain

import "time"

type Profile struct {
	UserID         int64      `json:"user_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email"`
	Bio            string     `json:"bio"`
	ProfilePicture string     `json:"profile_picture"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	PhoneNumber    string     `json:"phone_number"`
}
