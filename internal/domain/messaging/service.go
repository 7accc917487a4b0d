package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/db"
	"github.com/dentalhub/dentalhub/internal/platform/events"
	"github.com/dentalhub/dentalhub/pkg/pagination"
)

type Options struct {
	Notifier Notifier
	Logger   zerolog.Logger
	Now      func() time.Time
}

type Service struct {
	convs    ConversationRepository
	msgs     MessageRepository
	resolver *Resolver
	tx       db.Transactor
	inflight singleflight.Group
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(convs ConversationRepository, msgs MessageRepository, resolver *Resolver, tx db.Transactor, opts Options) *Service {
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		convs:    convs,
		msgs:     msgs,
		resolver: resolver,
		tx:       tx,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		now:      opts.Now,
	}
}

// ResolveParticipant maps an untagged participant id to a user account.
func (s *Service) ResolveParticipant(ctx context.Context, participantID string) (Participant, error) {
	return s.resolver.Resolve(ctx, participantID)
}

// pairKey is identical for (a, b) and (b, a).
func pairKey(a, b uuid.UUID) string {
	x, y := a.String(), b.String()
	if y < x {
		x, y = y, x
	}
	return "conversation:" + x + ":" + y
}

// GetOrCreateConversation returns the DIRECT conversation between the
// current user and target, creating it on first contact. When target
// resolves to the current user the conversation has a single participant.
func (s *Service) GetOrCreateConversation(ctx context.Context, currentUserID uuid.UUID, target ParticipantRef) (*Conversation, error) {
	if currentUserID == uuid.Nil {
		return nil, apperr.Unauthorized("authentication required")
	}
	p, err := s.resolver.ResolveRef(ctx, target)
	if err != nil {
		return nil, err
	}

	// Callers for the same pair share one flight. The shared work must not
	// inherit any single caller's cancellation; each caller still stops
	// waiting when its own context ends.
	key := pairKey(currentUserID, p.UserID)
	shared := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		return s.findOrCreate(shared, key, currentUserID, p.UserID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Conversation), nil
	}
}

func (s *Service) findOrCreate(ctx context.Context, key string, current, target uuid.UUID) (*Conversation, error) {
	var (
		id      uuid.UUID
		created bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.convs.LockPair(ctx, key); err != nil {
			return err
		}
		candidates, err := s.convs.ListDirectForUser(ctx, current)
		if err != nil {
			return err
		}
		for _, c := range candidates {
			if c.IsDirectBetween(current, target) {
				id = c.ID
				return nil
			}
		}

		members := []uuid.UUID{current}
		if target != current {
			members = append(members, target)
		}
		c, err := s.convs.CreateDirect(ctx, members)
		if err != nil {
			return err
		}
		id, created = c.ID, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	conv, err := s.convs.GetGraph(ctx, id)
	if err != nil {
		return nil, err
	}
	if created {
		s.logger.Info().
			Str("conversation_id", conv.ID.String()).
			Str("user_id", current.String()).
			Str("participant_id", target.String()).
			Bool("self", current == target).
			Msg("conversation created")
		s.notifier.Notify(ctx, events.TypeConversationCreated, conv.ID, conv.ActiveParticipantIDs(), conv)
	}
	return conv, nil
}

// ListConversations pages the user's conversations, most recent activity
// first.
func (s *Service) ListConversations(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	return s.convs.ListForUser(ctx, userID, limit, offset)
}

// requireParticipant returns the active participants when userID is one
// of them. Unknown conversations and non-members are reported alike.
func (s *Service) requireParticipant(ctx context.Context, conversationID, userID uuid.UUID) ([]*ConversationParticipant, error) {
	parts, err := s.convs.ActiveParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		if p.UserID == userID {
			return parts, nil
		}
	}
	return nil, apperr.NotFound("conversation not found")
}

func participantIDs(parts []*ConversationParticipant) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	return ids
}

func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*Message, error) {
	if strings.TrimSpace(in.Content) == "" && len(in.Attachments) == 0 {
		return nil, apperr.Validation("content", "content is required")
	}
	if in.Type == "" {
		in.Type = TypeText
	}
	if !validMessageTypes[in.Type] {
		return nil, apperr.Validation("messageType", "invalid message type: "+in.Type)
	}
	for _, a := range in.Attachments {
		if a.URL == "" {
			return nil, apperr.Validation("attachments.url", "attachment url is required")
		}
	}

	var (
		msg      *Message
		audience []uuid.UUID
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		parts, err := s.requireParticipant(ctx, in.ConversationID, in.SenderID)
		if err != nil {
			return err
		}
		receiver := in.SenderID
		for _, p := range parts {
			if p.UserID != in.SenderID {
				receiver = p.UserID
				break
			}
		}

		if in.ReplyToID != nil {
			parent, err := s.msgs.GetByID(ctx, *in.ReplyToID)
			if errors.Is(err, ErrNotFound) || (err == nil && parent.ConversationID != in.ConversationID) {
				return apperr.Validation("replyToId", "reply target not found in conversation")
			}
			if err != nil {
				return err
			}
		}

		msg = &Message{
			ConversationID: in.ConversationID,
			SenderID:       in.SenderID,
			ReceiverID:     receiver,
			Content:        in.Content,
			MessageType:    in.Type,
			Status:         StatusSent,
			ReplyToID:      in.ReplyToID,
			Attachments:    in.Attachments,
		}
		if err := s.msgs.Create(ctx, msg); err != nil {
			return err
		}
		if err := s.convs.SetLastMessage(ctx, in.ConversationID, msg.ID, msg.CreatedAt); err != nil {
			return err
		}
		if receiver != in.SenderID {
			if err := s.convs.IncrementUnread(ctx, in.ConversationID, in.SenderID); err != nil {
				return err
			}
		}
		audience = participantIDs(parts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, events.TypeMessageSent, msg.ConversationID, audience, msg)
	return msg, nil
}

type readReceipt struct {
	ConversationID uuid.UUID `json:"conversationId"`
	ReaderID       uuid.UUID `json:"readerId"`
	Count          int64     `json:"count"`
}

// MarkRead marks unread messages addressed to userID as read, all of them
// when messageIDs is empty, and clears the user's unread counter. It
// returns how many messages changed; repeating the call changes nothing.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID uuid.UUID, messageIDs []uuid.UUID) (int64, error) {
	var (
		n        int64
		audience []uuid.UUID
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		parts, err := s.requireParticipant(ctx, conversationID, userID)
		if err != nil {
			return err
		}
		n, err = s.msgs.MarkRead(ctx, conversationID, userID, messageIDs, s.now().UTC())
		if err != nil {
			return err
		}
		audience = participantIDs(parts)
		return s.convs.ResetUnread(ctx, conversationID, userID)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifier.Notify(ctx, events.TypeMessageRead, conversationID, audience,
			readReceipt{ConversationID: conversationID, ReaderID: userID, Count: n})
	}
	return n, nil
}

// ownMessage loads a message sent by requesterID. Missing messages and
// messages of other senders are reported alike.
func (s *Service) ownMessage(ctx context.Context, messageID, requesterID uuid.UUID) (*Message, error) {
	m, err := s.msgs.GetByID(ctx, messageID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, err
	}
	if m.SenderID != requesterID {
		return nil, apperr.NotFound("message not found")
	}
	return m, nil
}

func (s *Service) EditMessage(ctx context.Context, messageID, requesterID uuid.UUID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content", "content is required")
	}
	m, err := s.ownMessage(ctx, messageID, requesterID)
	if err != nil {
		return nil, err
	}
	if m.IsDeleted {
		return nil, apperr.NotFound("message not found")
	}
	if err := s.msgs.Edit(ctx, m.ID, content); err != nil {
		return nil, err
	}
	m.Content = content
	m.IsEdited = true
	m.UpdatedAt = s.now().UTC()

	s.notifyConversation(ctx, events.TypeMessageEdited, m.ConversationID, m)
	return m, nil
}

// DeleteMessage replaces the message with a tombstone. The message keeps
// its place in the conversation. Deleting twice is a no-op.
func (s *Service) DeleteMessage(ctx context.Context, messageID, requesterID uuid.UUID) error {
	m, err := s.ownMessage(ctx, messageID, requesterID)
	if err != nil {
		return err
	}
	if m.IsDeleted {
		return nil
	}
	if err := s.msgs.SoftDelete(ctx, m.ID, DeletedContent); err != nil {
		return err
	}
	m.Content = DeletedContent
	m.IsDeleted = true
	m.Attachments = nil
	m.UpdatedAt = s.now().UTC()

	s.notifyConversation(ctx, events.TypeMessageDeleted, m.ConversationID, m)
	return nil
}

func (s *Service) notifyConversation(ctx context.Context, eventType string, conversationID uuid.UUID, data interface{}) {
	parts, err := s.convs.ActiveParticipants(ctx, conversationID)
	if err != nil {
		s.logger.Error().Err(err).Str("conversation_id", conversationID.String()).Msg("load conversation audience")
		return
	}
	s.notifier.Notify(ctx, eventType, conversationID, participantIDs(parts), data)
}

// ListMessages returns one page of the conversation in chronological order.
// Page 1 holds the newest messages.
func (s *Service) ListMessages(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) ([]*Message, int, error) {
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, 0, err
	}
	pg := pagination.PageParams(page, limit, DefaultMessageLimit)
	items, total, err := s.msgs.ListByConversation(ctx, conversationID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, total, nil
}

func (s *Service) UpdateParticipantSettings(ctx context.Context, conversationID, userID uuid.UUID, pinned, muted *bool) (*ConversationParticipant, error) {
	if pinned == nil && muted == nil {
		return nil, apperr.Validation("isPinned", "isPinned or isMuted is required")
	}
	if _, err := s.requireParticipant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.convs.UpdateSettings(ctx, conversationID, userID, pinned, muted)
}
