package models

import "time"

// LoginRequest is the body posted to the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Credentials is a successful login response.
type Credentials struct {
	Token  string    `json:"token"`
	Expire time.Time `json:"expire"`
}
