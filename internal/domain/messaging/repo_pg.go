package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalhub/dentalhub/internal/platform/db"
)

// =========== Conversation Repository ===========

type conversationRepoPG struct {
	pool *pgxpool.Pool
}

func NewConversationRepoPG(pool *pgxpool.Pool) ConversationRepository {
	return &conversationRepoPG{pool: pool}
}

func (r *conversationRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.ConnFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const convCols = `c.id, c.type, c.last_message_id, c.last_message_at, c.created_at, c.updated_at`

const partCols = `p.conversation_id, p.user_id, p.joined_at, p.left_at, p.unread_count,
	p.is_pinned, p.is_muted, p.last_read_message_id`

func scanConv(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.Type, &c.LastMessageID, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func partDest(p *ConversationParticipant) []interface{} {
	return []interface{}{&p.ConversationID, &p.UserID, &p.JoinedAt, &p.LeftAt, &p.UnreadCount,
		&p.IsPinned, &p.IsMuted, &p.LastReadMessageID}
}

func (r *conversationRepoPG) LockPair(ctx context.Context, key string) error {
	return db.AdvisoryXactLock(ctx, r.conn(ctx), key)
}

func (r *conversationRepoPG) ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+convCols+`, `+partCols+`
		FROM conversation c
		JOIN conversation_participant p ON p.conversation_id = c.id AND p.left_at IS NULL
		WHERE c.type = $2
		  AND c.id IN (
			SELECT conversation_id FROM conversation_participant
			WHERE user_id = $1 AND left_at IS NULL)
		ORDER BY c.created_at, c.id`, userID, ConversationTypeDirect)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []*Conversation
	var cur *Conversation
	for rows.Next() {
		var c Conversation
		var p ConversationParticipant
		dest := append([]interface{}{&c.ID, &c.Type, &c.LastMessageID, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt}, partDest(&p)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if cur == nil || cur.ID != c.ID {
			cur = &c
			convs = append(convs, cur)
		}
		cur.Participants = append(cur.Participants, &p)
	}
	return convs, rows.Err()
}

func (r *conversationRepoPG) CreateDirect(ctx context.Context, userIDs []uuid.UUID) (*Conversation, error) {
	c := &Conversation{ID: uuid.New(), Type: ConversationTypeDirect}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO conversation (id, type) VALUES ($1, $2)
		RETURNING created_at, updated_at`, c.ID, c.Type).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, uid := range userIDs {
		p := &ConversationParticipant{ConversationID: c.ID, UserID: uid}
		err := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO conversation_participant (conversation_id, user_id)
			VALUES ($1, $2)
			RETURNING joined_at`, c.ID, uid).Scan(&p.JoinedAt)
		if err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, p)
	}
	return c, nil
}

func (r *conversationRepoPG) GetGraph(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	c, err := scanConv(r.conn(ctx).QueryRow(ctx, `SELECT `+convCols+` FROM conversation c WHERE c.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+partCols+`, u.name, u.image, u.role, d.id
		FROM conversation_participant p
		JOIN app_user u ON u.id = p.user_id
		LEFT JOIN dentist d ON d.user_id = u.id
		WHERE p.conversation_id = $1 AND p.left_at IS NULL
		ORDER BY p.joined_at, p.user_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var p ConversationParticipant
		var prof Profile
		dest := append(partDest(&p), &prof.Name, &prof.Image, &prof.Role, &prof.DentistID)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		p.Profile = &prof
		c.Participants = append(c.Participants, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgs := &messageRepoPG{pool: r.pool}
	latest, _, err := msgs.ListByConversation(ctx, id, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(latest) > 0 {
		c.LastMessage = latest[0]
	}
	return c, nil
}

func (r *conversationRepoPG) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	const where = `
		FROM conversation c
		JOIN conversation_participant p ON p.conversation_id = c.id
		WHERE p.user_id = $1 AND p.left_at IS NULL`

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT c.id`+where+`
		ORDER BY COALESCE(c.last_message_at, c.created_at) DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	items := make([]*Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetGraph(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

func (r *conversationRepoPG) ActiveParticipants(ctx context.Context, conversationID uuid.UUID) ([]*ConversationParticipant, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+partCols+`
		FROM conversation_participant p
		WHERE p.conversation_id = $1 AND p.left_at IS NULL
		ORDER BY p.joined_at, p.user_id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ConversationParticipant
	for rows.Next() {
		var p ConversationParticipant
		if err := rows.Scan(partDest(&p)...); err != nil {
			return nil, err
		}
		items = append(items, &p)
	}
	return items, rows.Err()
}

func (r *conversationRepoPG) UpdateSettings(ctx context.Context, conversationID, userID uuid.UUID, pinned, muted *bool) (*ConversationParticipant, error) {
	var p ConversationParticipant
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE conversation_participant p
		SET is_pinned = COALESCE($3, p.is_pinned), is_muted = COALESCE($4, p.is_muted)
		WHERE p.conversation_id = $1 AND p.user_id = $2 AND p.left_at IS NULL
		RETURNING `+partCols, conversationID, userID, pinned, muted).Scan(partDest(&p)...)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *conversationRepoPG) SetLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation SET last_message_id = $2, last_message_at = $3, updated_at = NOW()
		WHERE id = $1`, conversationID, messageID, at)
	return err
}

func (r *conversationRepoPG) IncrementUnread(ctx context.Context, conversationID, exceptUserID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation_participant SET unread_count = unread_count + 1
		WHERE conversation_id = $1 AND user_id <> $2 AND left_at IS NULL`,
		conversationID, exceptUserID)
	return err
}

func (r *conversationRepoPG) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE conversation_participant
		SET unread_count = 0,
			last_read_message_id = COALESCE((
				SELECT id FROM message
				WHERE conversation_id = $1 AND receiver_id = $2 AND status = 'READ'
				ORDER BY created_at DESC, id DESC
				LIMIT 1), last_read_message_id)
		WHERE conversation_id = $1 AND user_id = $2`, conversationID, userID)
	return err
}

// =========== Message Repository ===========

type messageRepoPG struct {
	pool *pgxpool.Pool
}

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.ConnFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const msgCols = `id, conversation_id, sender_id, receiver_id, content, message_type, status,
	reply_to_id, is_edited, is_deleted, read_at, created_at, updated_at`

func scanMsg(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content,
		&m.MessageType, &m.Status, &m.ReplyToID, &m.IsEdited, &m.IsDeleted, &m.ReadAt,
		&m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO message (id, conversation_id, sender_id, receiver_id, content,
			message_type, status, reply_to_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		m.ID, m.ConversationID, m.SenderID, m.ReceiverID, m.Content,
		m.MessageType, m.Status, m.ReplyToID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range m.Attachments {
		a := &m.Attachments[i]
		a.ID = uuid.New()
		a.MessageID = m.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO message_attachment (id, message_id, url, file_name, file_type, file_size)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			a.ID, a.MessageID, a.URL, a.FileName, a.FileType, a.FileSize); err != nil {
			return err
		}
	}
	return nil
}

func (r *messageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMsg(r.conn(ctx).QueryRow(ctx, `SELECT `+msgCols+` FROM message WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadAttachments(ctx, []*Message{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *messageRepoPG) Edit(ctx context.Context, id uuid.UUID, content string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET content = $2, is_edited = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, content)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *messageRepoPG) SoftDelete(ctx context.Context, id uuid.UUID, tombstone string) error {
	if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM message_attachment WHERE message_id = $1`, id); err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE message SET content = $2, is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1`, id, tombstone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *messageRepoPG) MarkRead(ctx context.Context, conversationID, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	query := `
		UPDATE message SET status = 'READ', read_at = $3, updated_at = NOW()
		WHERE conversation_id = $1 AND receiver_id = $2 AND status <> 'READ'`
	args := []interface{}{conversationID, userID, at}
	if len(ids) > 0 {
		query += ` AND id = ANY($4)`
		args = append(args, ids)
	}
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *messageRepoPG) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM message WHERE conversation_id = $1`, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+msgCols+` FROM message
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var items []*Message
	for rows.Next() {
		m, err := scanMsg(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		items = append(items, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadAttachments(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *messageRepoPG) loadAttachments(ctx context.Context, msgs []*Message) error {
	if len(msgs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Message, len(msgs))
	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, message_id, url, file_name, file_type, file_size
		FROM message_attachment WHERE message_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.URL, &a.FileName, &a.FileType, &a.FileSize); err != nil {
			return err
		}
		if m := byID[a.MessageID]; m != nil {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return rows.Err()
}
