package domain

import "time"

type File struct {
	Name    string
	Content []byte
}

// Document is a recognized File
type Document struct {
	Name    string
	Content []byte
	Created time.Time
	Format  string
}
