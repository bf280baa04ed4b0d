package message

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Type is the kind of content of a GroupMessage.
type Type string

const (
	TypeText     Type = "text"
	TypeImage    Type = "image"
	TypeVoice    Type = "voice"
	TypeDocument Type = "document"
	TypeVideo    Type = "video"
)

const (
	// DeletedPlaceholder replaces the content of deleted group messages.
	DeletedPlaceholder = "This message was deleted"

	MaxVoiceDuration = 10 * time.Second
)

// Message is a direct message between two users.
type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	SenderType    string    `json:"senderType"`
	RecipientID   string    `json:"recipientId"`
	RecipientType string    `json:"recipientType"`
	Content       string    `json:"content"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (m Message) GetID() string { return m.ID }

// GroupMessage is posted to the group chat (of a session when SessionID is set).
type GroupMessage struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"sessionId,omitempty"`
	SenderID   string        `json:"senderId"`
	SenderName string        `json:"senderName"`
	SenderType string        `json:"senderType"`
	Content    string        `json:"content"`
	Type       Type          `json:"type"`
	FileName   string        `json:"fileName,omitempty"`
	FileData   string        `json:"fileData,omitempty"` // data URL
	Duration   time.Duration `json:"duration,omitempty"` // voice notes only
	Edited     bool          `json:"edited"`
	Deleted    bool          `json:"deleted"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

func (m GroupMessage) GetID() string { return m.ID }

type NewMessage struct {
	SenderID      string `json:"senderId" validate:"required"`
	SenderType    string `json:"senderType" validate:"required,oneof=admin secretary sco leader student"`
	RecipientID   string `json:"recipientId" validate:"required"`
	RecipientType string `json:"recipientType" validate:"required,oneof=admin secretary sco leader student"`
	Content       string `json:"content" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

type NewGroupMessage struct {
	SessionID  string        `json:"sessionId"`
	SenderID   string        `json:"senderId" validate:"required"`
	SenderName string        `json:"senderName" validate:"required"`
	SenderType string        `json:"senderType" validate:"required,oneof=admin secretary sco leader student"`
	Content    string        `json:"content" validate:"required_without=FileData"`
	Type       Type          `json:"type" validate:"omitempty,oneof=text image voice document video"`
	FileName   string        `json:"fileName"`
	FileData   string        `json:"fileData" validate:"omitempty,dataurl"`
	Duration   time.Duration `json:"duration" validate:"gte=0"`
}

func (nm *NewGroupMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	if nm.Type == "" {
		nm.Type = TypeText
	}
	if err := validate.Struct(nm); err != nil {
		return err
	}
	if nm.Type != TypeText && nm.FileData == "" {
		return core.NewFieldError("fileData", "a file is required for "+string(nm.Type)+" messages")
	}
	if nm.Type == TypeVoice && nm.Duration > MaxVoiceDuration {
		return core.NewFieldError("duration", "voice notes cannot exceed "+MaxVoiceDuration.String())
	}
	return nil
}
