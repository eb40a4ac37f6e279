package store

import "time"

// Fact is a stored cat fact. Values returned by the store are owned copies.
type Fact struct {
	ID        int64     `json:"id"`
	Text      string    `json:"fact"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscriber is a registered mail recipient.
type Subscriber struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
