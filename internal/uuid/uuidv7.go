// Package uuid generates the time-ordered identifiers used as primary keys.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string. The leading 48 bits carry the Unix millisecond
// timestamp, so ids sort by creation time in both postgres and sqlite.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// Entropy failure; a v4 id is still unique, only the ordering is lost.
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates s and returns it in canonical lower-case form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid reports whether s is a well-formed UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
