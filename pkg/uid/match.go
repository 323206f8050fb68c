package uid

import "github.com/google/uuid"

// GenerateMatchID returns a random (v4) UUID string for a new match.
func GenerateMatchID() string {
	return uuid.NewString()
}

// IsMatchID reports whether id looks like an id produced by GenerateMatchID.
func IsMatchID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
