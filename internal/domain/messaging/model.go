package messaging

import (
	"time"

	"github.com/google/uuid"
)

const ConversationTypeDirect = "DIRECT"

// Message types.
const (
	TypeText   = "TEXT"
	TypeImage  = "IMAGE"
	TypeFile   = "FILE"
	TypeSystem = "SYSTEM"
)

var validMessageTypes = map[string]bool{
	TypeText: true, TypeImage: true, TypeFile: true, TypeSystem: true,
}

// Message statuses.
const (
	StatusSent      = "SENT"
	StatusDelivered = "DELIVERED"
	StatusRead      = "READ"
)

// DeletedContent replaces the content of a deleted message.
const DeletedContent = "This message was deleted"

const DefaultMessageLimit = 50

// ParticipantKind tags a participant id with its namespace.
type ParticipantKind string

const (
	KindDentist ParticipantKind = "dentist"
	KindUser    ParticipantKind = "user"
)

// ParticipantRef names a conversation partner. An empty Kind means the
// caller does not know which namespace ID belongs to.
type ParticipantRef struct {
	Kind ParticipantKind
	ID   string
}

// Participant is a resolved conversation partner.
type Participant struct {
	UserID      uuid.UUID `json:"userId"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
}

// Profile is the public data of a participant's account.
type Profile struct {
	Name      string     `json:"name"`
	Image     *string    `json:"image,omitempty"`
	Role      string     `json:"role"`
	DentistID *uuid.UUID `json:"dentistId,omitempty"`
}

type ConversationParticipant struct {
	ConversationID    uuid.UUID  `json:"conversationId"`
	UserID            uuid.UUID  `json:"userId"`
	JoinedAt          time.Time  `json:"joinedAt"`
	LeftAt            *time.Time `json:"leftAt,omitempty"`
	UnreadCount       int        `json:"unreadCount"`
	IsPinned          bool       `json:"isPinned"`
	IsMuted           bool       `json:"isMuted"`
	LastReadMessageID *uuid.UUID `json:"lastReadMessageId,omitempty"`
	Profile           *Profile   `json:"user,omitempty"`
}

// Active reports whether the participant has not left.
func (p *ConversationParticipant) Active() bool {
	return p.LeftAt == nil
}

type Conversation struct {
	ID            uuid.UUID                  `json:"id"`
	Type          string                     `json:"type"`
	LastMessageID *uuid.UUID                 `json:"lastMessageId,omitempty"`
	LastMessageAt *time.Time                 `json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time                  `json:"createdAt"`
	UpdatedAt     time.Time                  `json:"updatedAt"`
	Participants  []*ConversationParticipant `json:"participants"`
	LastMessage   *Message                   `json:"lastMessage,omitempty"`
}

// ActiveParticipantIDs returns the distinct user ids of active participants.
func (c *Conversation) ActiveParticipantIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(c.Participants))
	var ids []uuid.UUID
	for _, p := range c.Participants {
		if p.Active() && !seen[p.UserID] {
			seen[p.UserID] = true
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

// IsDirectBetween reports whether the active participants are exactly
// {current} when current == target, or exactly {current, target} otherwise.
func (c *Conversation) IsDirectBetween(current, target uuid.UUID) bool {
	if c.Type != ConversationTypeDirect {
		return false
	}
	ids := c.ActiveParticipantIDs()
	if current == target {
		return len(ids) == 1 && ids[0] == current
	}
	if len(ids) != 2 {
		return false
	}
	return (ids[0] == current && ids[1] == target) || (ids[0] == target && ids[1] == current)
}

type Attachment struct {
	ID        uuid.UUID `json:"id"`
	MessageID uuid.UUID `json:"messageId"`
	URL       string    `json:"url"`
	FileName  string    `json:"fileName"`
	FileType  string    `json:"fileType"`
	FileSize  int64     `json:"fileSize"`
}

type Message struct {
	ID             uuid.UUID    `json:"id"`
	ConversationID uuid.UUID    `json:"conversationId"`
	SenderID       uuid.UUID    `json:"senderId"`
	ReceiverID     uuid.UUID    `json:"receiverId"`
	Content        string       `json:"content"`
	MessageType    string       `json:"messageType"`
	Status         string       `json:"status"`
	ReplyToID      *uuid.UUID   `json:"replyToId,omitempty"`
	IsEdited       bool         `json:"isEdited"`
	IsDeleted      bool         `json:"isDeleted"`
	ReadAt         *time.Time   `json:"readAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// SendMessageInput is a new message from SenderID.
type SendMessageInput struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	Type           string
	ReplyToID      *uuid.UUID
	Attachments    []Attachment
}
