package persistence

import "time"

// Admin represents an administrator allowed to sign in to the papers tool.
type Admin struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Paper represents a stored paper record. Attributes holds the decoded JSON
// object supplied by the client, keyed by the attribute names of its type.
type Paper struct {
	ID         string
	Type       string
	Attributes map[string]any
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionRecord is an opaque, already encoded session payload stored server side.
type SessionRecord struct {
	ID        string
	Data      string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record is no longer valid at reference.
func (r SessionRecord) Expired(reference time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(reference)
}

// CloneAttributes returns a deep copy of a decoded JSON object so callers can
// hand out paper attributes without sharing nested slices or maps.
func CloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	clone := make(map[string]any, len(attrs))
	for key, value := range attrs {
		clone[key] = cloneValue(value)
	}
	return clone
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return CloneAttributes(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
