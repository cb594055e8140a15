package models

// FileMetadata describes what kind of object a stored upload is.
type FileMetadata struct {
	Type   string `json:"type"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// File is an upload record. An upload becomes an attachment once it is
// bound to a message; binding is one-shot.
type File struct {
	ID          string       `json:"_id"`
	Tag         string       `json:"tag"`
	Filename    string       `json:"filename"`
	Metadata    FileMetadata `json:"metadata"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`

	// ownership linkage, set when the upload is consumed
	UploaderID string `json:"uploader_id,omitempty"`
	MessageID  string `json:"message_id,omitempty"`

	Deleted   bool   `json:"deleted,omitempty"`
	DeletedAt string `json:"deleted_at,omitempty"`
	Reported  bool   `json:"reported,omitempty"`
}
