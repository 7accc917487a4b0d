package messaging

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dentalhub/dentalhub/internal/domain/identity"
	"github.com/dentalhub/dentalhub/internal/platform/apperr"
	"github.com/dentalhub/dentalhub/internal/platform/events"
)

// -- In-memory store implementing both repositories --

type memStore struct {
	mu       sync.Mutex
	convs    map[uuid.UUID]*Conversation
	convIDs  []uuid.UUID
	msgs     map[uuid.UUID]*Message
	msgIDs   []uuid.UUID
	profiles map[uuid.UUID]*Profile
	clock    time.Time
	creates  int
}

func newMemStore() *memStore {
	return &memStore{
		convs:    make(map[uuid.UUID]*Conversation),
		msgs:     make(map[uuid.UUID]*Message),
		profiles: make(map[uuid.UUID]*Profile),
		clock:    time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func copyConv(c *Conversation) *Conversation {
	cp := *c
	cp.Participants = nil
	for _, p := range c.Participants {
		if p.Active() {
			pc := *p
			cp.Participants = append(cp.Participants, &pc)
		}
	}
	return &cp
}

func copyMsg(m *Message) *Message {
	cp := *m
	cp.Attachments = append([]Attachment(nil), m.Attachments...)
	return &cp
}

func (s *memStore) participant(convID, userID uuid.UUID) *ConversationParticipant {
	c, ok := s.convs[convID]
	if !ok {
		return nil
	}
	for _, p := range c.Participants {
		if p.UserID == userID && p.Active() {
			return p
		}
	}
	return nil
}

func (s *memStore) LockPair(context.Context, string) error { return nil }

func (s *memStore) ListDirectForUser(_ context.Context, userID uuid.UUID) ([]*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Conversation
	for _, id := range s.convIDs {
		if s.participant(id, userID) != nil {
			out = append(out, copyConv(s.convs[id]))
		}
	}
	return out, nil
}

func (s *memStore) CreateDirect(_ context.Context, userIDs []uuid.UUID) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	c := &Conversation{ID: uuid.New(), Type: ConversationTypeDirect, CreatedAt: now, UpdatedAt: now}
	for _, uid := range userIDs {
		c.Participants = append(c.Participants, &ConversationParticipant{ConversationID: c.ID, UserID: uid, JoinedAt: now})
	}
	s.convs[c.ID] = c
	s.convIDs = append(s.convIDs, c.ID)
	s.creates++
	return copyConv(c), nil
}

func (s *memStore) GetGraph(_ context.Context, id uuid.UUID) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph(id)
}

func (s *memStore) graph(id uuid.UUID) (*Conversation, error) {
	c, ok := s.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyConv(c)
	for _, p := range cp.Participants {
		if prof, ok := s.profiles[p.UserID]; ok {
			pc := *prof
			p.Profile = &pc
		}
	}
	for i := len(s.msgIDs) - 1; i >= 0; i-- {
		if m := s.msgs[s.msgIDs[i]]; m.ConversationID == id {
			cp.LastMessage = copyMsg(m)
			break
		}
	}
	return cp, nil
}

func lastActivity(c *Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (s *memStore) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Conversation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*Conversation
	for _, id := range s.convIDs {
		if s.participant(id, userID) != nil {
			matched = append(matched, s.convs[id])
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return lastActivity(matched[i]).After(lastActivity(matched[j]))
	})
	total := len(matched)
	var out []*Conversation
	for i := offset; i < total && len(out) < limit; i++ {
		g, _ := s.graph(matched[i].ID)
		out = append(out, g)
	}
	return out, total, nil
}

func (s *memStore) ActiveParticipants(_ context.Context, conversationID uuid.UUID) ([]*ConversationParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return nil, nil
	}
	return copyConv(c).Participants, nil
}

func (s *memStore) UpdateSettings(_ context.Context, conversationID, userID uuid.UUID, pinned, muted *bool) (*ConversationParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.participant(conversationID, userID)
	if p == nil {
		return nil, ErrNotFound
	}
	if pinned != nil {
		p.IsPinned = *pinned
	}
	if muted != nil {
		p.IsMuted = *muted
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) SetLastMessage(_ context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return ErrNotFound
	}
	c.LastMessageID = &messageID
	c.LastMessageAt = &at
	return nil
}

func (s *memStore) IncrementUnread(_ context.Context, conversationID, exceptUserID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.convs[conversationID].Participants {
		if p.UserID != exceptUserID && p.Active() {
			p.UnreadCount++
		}
	}
	return nil
}

func (s *memStore) ResetUnread(_ context.Context, conversationID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.participant(conversationID, userID); p != nil {
		p.UnreadCount = 0
		for i := len(s.msgIDs) - 1; i >= 0; i-- {
			m := s.msgs[s.msgIDs[i]]
			if m.ConversationID == conversationID && m.ReceiverID == userID && m.Status == StatusRead {
				id := m.ID
				p.LastReadMessageID = &id
				break
			}
		}
	}
	return nil
}

func (s *memStore) Create(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = s.tick()
	m.UpdatedAt = m.CreatedAt
	for i := range m.Attachments {
		m.Attachments[i].ID = uuid.New()
		m.Attachments[i].MessageID = m.ID
	}
	s.msgs[m.ID] = copyMsg(m)
	s.msgIDs = append(s.msgIDs, m.ID)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMsg(m), nil
}

func (s *memStore) Edit(_ context.Context, id uuid.UUID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok || m.IsDeleted {
		return ErrNotFound
	}
	m.Content = content
	m.IsEdited = true
	return nil
}

func (s *memStore) SoftDelete(_ context.Context, id uuid.UUID, tombstone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return ErrNotFound
	}
	m.Content = tombstone
	m.IsDeleted = true
	m.Attachments = nil
	return nil
}

func (s *memStore) MarkRead(_ context.Context, conversationID, userID uuid.UUID, ids []uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var n int64
	for _, m := range s.msgs {
		if m.ConversationID != conversationID || m.ReceiverID != userID || m.Status == StatusRead {
			continue
		}
		if len(ids) > 0 && !wanted[m.ID] {
			continue
		}
		m.Status = StatusRead
		readAt := at
		m.ReadAt = &readAt
		n++
	}
	return n, nil
}

func (s *memStore) ListByConversation(_ context.Context, conversationID uuid.UUID, limit, offset int) ([]*Message, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*Message
	for i := len(s.msgIDs) - 1; i >= 0; i-- {
		if m := s.msgs[s.msgIDs[i]]; m.ConversationID == conversationID {
			all = append(all, m)
		}
	}
	var out []*Message
	for i := offset; i < len(all) && len(out) < limit; i++ {
		out = append(out, copyMsg(all[i]))
	}
	return out, len(all), nil
}

// lockingTx serialises transactions the way the pair advisory lock does.
type lockingTx struct {
	mu sync.Mutex
}

func (t *lockingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// -- Mock Directory --

type mockDirectory struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*identity.User
	dentists    map[uuid.UUID]*identity.Dentist
	dentistHits int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		users:    make(map[uuid.UUID]*identity.User),
		dentists: make(map[uuid.UUID]*identity.Dentist),
	}
}

func (d *mockDirectory) GetDentist(_ context.Context, id uuid.UUID) (*identity.Dentist, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dentistHits++
	den, ok := d.dentists[id]
	if !ok {
		return nil, apperr.NotFound("dentist not found")
	}
	return den, nil
}

func (d *mockDirectory) GetUser(_ context.Context, id uuid.UUID) (*identity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return u, nil
}

// -- Recording notifier and publisher --

type notification struct {
	eventType      string
	conversationID uuid.UUID
	audience       []uuid.UUID
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(_ context.Context, eventType string, conversationID uuid.UUID, audience []uuid.UUID, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{eventType, conversationID, audience})
}

func (n *recordingNotifier) count(eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.eventType == eventType {
			c++
		}
	}
	return c
}

type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.events = append(p.events, evt)
	return p.err
}

// -- Fixture --

type fixture struct {
	svc      *Service
	store    *memStore
	dir      *mockDirectory
	notifier *recordingNotifier
}

func newFixture(t testing.TB) *fixture {
	store := newMemStore()
	dir := newMockDirectory()
	resolver, err := NewResolver(dir, 16)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	n := &recordingNotifier{}
	svc := NewService(store, store, resolver, &lockingTx{}, Options{
		Notifier: n,
		Now:      func() time.Time { return time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC) },
	})
	return &fixture{svc: svc, store: store, dir: dir, notifier: n}
}

func (f *fixture) addUser(name string) *identity.User {
	u := &identity.User{ID: uuid.New(), Name: name, Email: name + "@example.com", Role: identity.RoleUser}
	f.dir.users[u.ID] = u
	f.store.profiles[u.ID] = &Profile{Name: name, Role: u.Role}
	return u
}

func (f *fixture) addDentist(owner *identity.User, id uuid.UUID) *identity.Dentist {
	d := &identity.Dentist{ID: id, UserID: owner.ID, Name: owner.Name, ClinicName: owner.Name + " Dental"}
	f.dir.dentists[d.ID] = d
	owner.Role = identity.RoleDentist
	f.store.profiles[owner.ID] = &Profile{Name: owner.Name, Role: owner.Role, DentistID: &d.ID}
	return d
}

func userRef(u *identity.User) ParticipantRef {
	return ParticipantRef{ID: u.ID.String()}
}
