package types

// Tag is a named label. Names are unique.
type Tag struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Color     string `db:"color" json:"color"`
	CreatedAt int64  `db:"created_at" json:"created_at"`
}

// TagUpdate is a partial update; nil fields keep their current value.
type TagUpdate struct {
	Name  *string
	Color *string
}
