package models

import (
	"strconv"
	"time"
)

// SignupRequest registers a dashboard user. Email is stored lower-cased.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// User is a dashboard account. Site owners are referenced by ID.
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserProfile is the public view of a User. IDs go out as strings.
type UserProfile struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (u *User) Profile() UserProfile {
	return UserProfile{UserID: strconv.FormatInt(u.ID, 10), Email: u.Email}
}

// AuthResponse carries an access token; signup also embeds the new profile.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	*UserProfile
}
