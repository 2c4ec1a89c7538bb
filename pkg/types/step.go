package types

// TodoStep is a checklist item inside a todo.
type TodoStep struct {
	ID          int64  `db:"id" json:"id"`
	TodoID      int64  `db:"todo_id" json:"todo_id"`
	Title       string `db:"title" json:"title"`
	IsCompleted bool   `db:"is_completed" json:"is_completed"`
	SortOrder   int    `db:"sort_order" json:"sort_order"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}
