package domain

import "time"

// MessageKind — тип сообщения.
type MessageKind int

const (
	MessageKindDefault MessageKind = 0
	MessageKindReply   MessageKind = 19
)

// Attachment — вложение сообщения. Содержимое не интерпретируется.
type Attachment struct {
	ID            Snowflake `json:"id"`
	URL           string    `json:"url"`
	FileName      string    `json:"file_name"`
	FileSizeBytes int64     `json:"file_size_bytes"`
}

// Reaction — агрегированная реакция на сообщение.
type Reaction struct {
	Emoji Emoji `json:"emoji"`
	Count int   `json:"count"`
}

// Message представляет одно сообщение канала.
type Message struct {
	ID              Snowflake    `json:"id"`
	ChannelID       Snowflake    `json:"channel_id"`
	Kind            MessageKind  `json:"kind"`
	Author          User         `json:"author"`
	Timestamp       time.Time    `json:"timestamp"`
	EditedTimestamp *time.Time   `json:"edited_timestamp,omitempty"`
	IsPinned        bool         `json:"is_pinned,omitempty"`
	Content         string       `json:"content"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	Reactions       []Reaction   `json:"reactions,omitempty"`
	MentionedUsers  []User       `json:"mentioned_users,omitempty"`
	ReferenceID     Snowflake    `json:"reference_id,omitempty"`
}
