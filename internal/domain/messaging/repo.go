package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

type ConversationRepository interface {
	// LockPair serialises find-or-create for one participant pair until the
	// surrounding transaction ends.
	LockPair(ctx context.Context, key string) error
	// ListDirectForUser returns DIRECT conversations in which userID is
	// active, with their active participants, oldest first.
	ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]*Conversation, error)
	CreateDirect(ctx context.Context, userIDs []uuid.UUID) (*Conversation, error)
	// GetGraph loads a conversation with active participant profiles and
	// its newest message.
	GetGraph(ctx context.Context, id uuid.UUID) (*Conversation, error)
	// ListForUser pages a user's conversations, most recent activity first.
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Conversation, int, error)
	ActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]*ConversationParticipant, error)
	UpdateSettings(ctx context.Context, conversationID, userID uuid.UUID, pinned, muted *bool) (*ConversationParticipant, error)
	SetLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error
	// IncrementUnread bumps the unread count of every active participant
	// other than exceptUserID.
	IncrementUnread(ctx context.Context, conversationID, exceptUserID uuid.UUID) error
	// ResetUnread zeroes the count and points the read marker at the
	// newest message addressed to userID that has been read. The marker is
	// left alone when there is none.
	ResetUnread(ctx context.Context, conversationID, userID uuid.UUID) error
}

type MessageRepository interface {
	// Create stores the message and its attachments.
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	Edit(ctx context.Context, id uuid.UUID, content string) error
	// SoftDelete replaces the content and drops attachments; the row stays.
	SoftDelete(ctx context.Context, id uuid.UUID, tombstone string) error
	// MarkRead marks unread messages addressed to userID as read, limited
	// to ids when non-empty, and returns how many changed.
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error)
	// ListByConversation pages messages newest first.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, int, error)
}
