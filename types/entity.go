package types

import "time"

// Entity provides common timestamp fields for stored records.
// Embed it in models that track creation and modification times.
type Entity struct {
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// NewEntity creates an Entity with both timestamps set to the current time.
func NewEntity() Entity {
	now := time.Now().UTC()

	return Entity{CreatedAt: now, UpdatedAt: now}
}

// Touch updates the UpdatedAt timestamp to the current time.
func (e *Entity) Touch() {
	e.UpdatedAt = time.Now().UTC()
}
