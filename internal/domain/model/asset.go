package model

import "time"

// Asset is a completed artifact linked back to the job that produced it.
type Asset struct {
	ID        string
	JobID     string
	OwnerID   string
	Kind      string // "image" | "video"
	MIMEType  string
	Data      []byte
	Provider  string
	Model     string
	CreatedAt time.Time
}
