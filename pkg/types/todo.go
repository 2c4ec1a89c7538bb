package types

import (
	"fmt"
	"strings"
)

// TodoStatus is the integer status enum stored in todos.status.
type TodoStatus int

// Todo statuses. The integer values are persisted and must not change.
const (
	StatusTodo       TodoStatus = 0
	StatusInProgress TodoStatus = 1
	StatusDone       TodoStatus = 2
)

// String returns the symbolic name used by the legacy text column.
func (s TodoStatus) String() string {
	switch s {
	case StatusTodo:
		return "todo"
	case StatusInProgress:
		return "in_progress"
	case StatusDone:
		return "done"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Valid reports whether s is one of the known statuses.
func (s TodoStatus) Valid() bool {
	return s >= StatusTodo && s <= StatusDone
}

// ParseStatus maps a symbolic status name to its enum value. Matching is
// case-insensitive; "in-progress" is accepted as an alias.
func ParseStatus(name string) (TodoStatus, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "todo":
		return StatusTodo, nil
	case "in_progress", "in-progress":
		return StatusInProgress, nil
	case "done":
		return StatusDone, nil
	default:
		return StatusTodo, fmt.Errorf("%w: %q", ErrInvalidStatus, name)
	}
}

// LegacyStatusValue maps a legacy text status to its integer value exactly
// as the status migration's CASE expression does: case-insensitive, no
// aliases, unknown strings become StatusTodo.
func LegacyStatusValue(text string) TodoStatus {
	switch strings.ToLower(text) {
	case "in_progress":
		return StatusInProgress
	case "done":
		return StatusDone
	default:
		return StatusTodo
	}
}

// Todo is a single task. CompletedAt is set if and only if Status is
// StatusDone.
type Todo struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Status      TodoStatus `db:"status" json:"status"`
	Priority    int        `db:"priority" json:"priority"`
	GroupID     *int64     `db:"group_id" json:"group_id,omitempty"`
	Assignee    *string    `db:"assignee" json:"assignee,omitempty"`
	StartDate   *int64     `db:"start_date" json:"start_date,omitempty"`
	DueDate     *int64     `db:"due_date" json:"due_date,omitempty"`
	CompletedAt *int64     `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   int64      `db:"created_at" json:"created_at"`
	UpdatedAt   int64      `db:"updated_at" json:"updated_at"`

	Tags        []Tag        `db:"-" json:"tags,omitempty"`
	Steps       []TodoStep   `db:"-" json:"steps,omitempty"`
	Attachments []Attachment `db:"-" json:"attachments,omitempty"`
}

// Marked reports whether the todo is flagged important.
func (t *Todo) Marked() bool {
	return t.Priority >= 1
}

// NewTodo holds the fields accepted when creating a todo.
type NewTodo struct {
	Title       string
	Description *string
	GroupID     *int64
	StartDate   *int64
	DueDate     *int64
	Priority    int
	TagIDs      []int64
}

// TodoUpdate is a partial update. Nil fields are left unchanged. The Clear*
// flags set the matching nullable column to NULL.
type TodoUpdate struct {
	Title       *string
	Description *string
	Status      *TodoStatus
	Priority    *int
	GroupID     *int64
	Assignee    *string
	StartDate   *int64
	DueDate     *int64
	TagIDs      []int64 // replaces the tag set when non-nil

	ClearDescription bool
	ClearGroup       bool
	ClearAssignee    bool
	ClearStartDate   bool
	ClearDueDate     bool
}

// TodoFilter narrows Todos().List. Zero values match everything.
type TodoFilter struct {
	GroupID  *int64
	TagID    *int64
	Status   *TodoStatus
	Search   string
	Priority *int
	DueFrom  *int64 // inclusive, epoch millis
	DueTo    *int64 // exclusive, epoch millis
}

// TodoTag links a todo to a tag.
type TodoTag struct {
	TodoID int64 `db:"todo_id" json:"todo_id"`
	TagID  int64 `db:"tag_id" json:"tag_id"`
}

// Stats summarizes todo counts.
type Stats struct {
	Total      int `db:"total" json:"total"`
	Todo       int `db:"todo" json:"todo"`
	InProgress int `db:"in_progress" json:"in_progress"`
	Done       int `db:"done" json:"done"`
	Overdue    int `db:"overdue" json:"overdue"`
}
