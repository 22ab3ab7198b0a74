package domain

import "time"

// Thing is the value served from the thing cache. Treated as immutable once cached.
type Thing struct {
	ID        string
	Name      string
	Payload   []byte
	UpdatedAt time.Time
}
