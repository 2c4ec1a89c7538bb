package types

// Attachment records a file copied into the attachments directory. Name is
// the user-visible filename; FilePath is the generated path relative to the
// data directory and never derives from Name.
type Attachment struct {
	ID        int64   `db:"id" json:"id"`
	TodoID    int64   `db:"todo_id" json:"todo_id"`
	Name      string  `db:"name" json:"name"`
	FilePath  string  `db:"file_path" json:"file_path"`
	FileSize  int64   `db:"file_size" json:"file_size"`
	MimeType  *string `db:"mime_type" json:"mime_type,omitempty"`
	CreatedAt int64   `db:"created_at" json:"created_at"`
}
