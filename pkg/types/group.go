package types

// Defaults applied when a group or tag is created without explicit styling.
const (
	DefaultGroupIcon = "📁"
	DefaultColor     = "#409EFF"
)

// TaskGroup is a named, optionally nested folder of todos.
type TaskGroup struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	ParentID  *int64  `db:"parent_id" json:"parent_id,omitempty"`
	Icon      *string `db:"icon" json:"icon,omitempty"`
	Color     *string `db:"color" json:"color,omitempty"`
	SortOrder int     `db:"sort_order" json:"sort_order"`
	CreatedAt int64   `db:"created_at" json:"created_at"`
	UpdatedAt int64   `db:"updated_at" json:"updated_at"`
}

// GroupUpdate is a partial update; nil fields keep their current value.
type GroupUpdate struct {
	Name     *string
	ParentID *int64
	Icon     *string
	Color    *string

	ClearParent bool
}
