package school

import "github.com/google/uuid"

// NewID returns a new entity id.
// Ids are UUIDv7: a millisecond timestamp followed by a per-process monotonic sequence and random bits, so ids
// never collide under concurrent inserts and sort in creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
