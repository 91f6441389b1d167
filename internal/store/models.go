package store

import "time"

// User is a registered account of the identity provider
type User struct {
	ID        string
	Email     string
	Username  string
	CreatedAt time.Time
}
