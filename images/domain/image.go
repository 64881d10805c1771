package domain

import "time"

// ImageRecord is one uploaded image as tracked by the metadata index.
// Records are immutable once appended; the only mutation is removal by name.
// Names are chosen by the uploader and may collide; lookups return the first
// match in insertion order.
type ImageRecord struct {
	Name        string    `json:"name" toml:"name"`
	Description string    `json:"desc" toml:"desc"`
	Hash        string    `json:"hash" toml:"hash"`
	CreatedAt   time.Time `json:"created_at" toml:"created_at"`
}
