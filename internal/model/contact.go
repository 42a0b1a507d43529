package model

import "time"

// Contact is the identity-level entity: one row per person, keyed by
// lower-cased email with the phone hash as a secondary lookup key.
type Contact struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	PhoneHash string    `json:"phone_hash,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Zip       string    `json:"zip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactSnapshot is the denormalized copy of contact fields stored on a
// lead at upsert time, so the outbound payload never depends on a second
// read racing a concurrent write.
type ContactSnapshot struct {
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Zip       string `json:"zip,omitempty"`
}
