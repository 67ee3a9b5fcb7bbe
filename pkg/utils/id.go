package utils

import "github.com/google/uuid"

// NewID returns a 36-char UUID string used as the primary key for all rows.
func NewID() string { return uuid.NewString() }
