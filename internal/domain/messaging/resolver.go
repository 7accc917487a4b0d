package messaging

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dentalhub/dentalhub/internal/domain/identity"
	"github.com/dentalhub/dentalhub/internal/platform/apperr"
)

const DefaultResolverCacheSize = 1024

// Directory looks up the two namespaces a participant id may belong to.
// Lookups of unknown ids return an apperr not_found error.
type Directory interface {
	GetDentist(ctx context.Context, id uuid.UUID) (*identity.Dentist, error)
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// Resolver maps participant ids to user accounts. Dentist profiles win over
// user accounts when an id exists in both namespaces.
type Resolver struct {
	dir Directory
	// dentist id -> resolved participant; a profile never changes owner.
	dentists *lru.Cache[uuid.UUID, Participant]
}

func NewResolver(dir Directory, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultResolverCacheSize
	}
	cache, err := lru.New[uuid.UUID, Participant](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("participant cache: %w", err)
	}
	return &Resolver{dir: dir, dentists: cache}, nil
}

// Resolve interprets participantID as a dentist profile id, then as a user
// id.
func (r *Resolver) Resolve(ctx context.Context, participantID string) (Participant, error) {
	return r.ResolveRef(ctx, ParticipantRef{ID: participantID})
}

// ResolveRef resolves a possibly tagged id. A tagged ref is only looked up
// in its own namespace.
func (r *Resolver) ResolveRef(ctx context.Context, ref ParticipantRef) (Participant, error) {
	id, err := uuid.Parse(ref.ID)
	if err != nil {
		return Participant{}, apperr.ParticipantNotFound(ref.ID)
	}

	switch ref.Kind {
	case KindDentist:
		p, found, err := r.dentist(ctx, id)
		if err != nil {
			return Participant{}, err
		}
		if !found {
			return Participant{}, apperr.ParticipantNotFound(ref.ID)
		}
		return p, nil
	case KindUser:
		return r.user(ctx, id, ref.ID)
	case "":
		p, found, err := r.dentist(ctx, id)
		if err != nil {
			return Participant{}, err
		}
		if found {
			return p, nil
		}
		return r.user(ctx, id, ref.ID)
	default:
		return Participant{}, apperr.Validation("participantKind", "participantKind must be dentist or user")
	}
}

func (r *Resolver) dentist(ctx context.Context, id uuid.UUID) (Participant, bool, error) {
	if p, ok := r.dentists.Get(id); ok {
		return p, true, nil
	}
	d, err := r.dir.GetDentist(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return Participant{}, false, nil
	}
	if err != nil {
		return Participant{}, false, err
	}
	p := Participant{UserID: d.UserID, DisplayName: d.DisplayName(), Role: identity.RoleDentist}
	r.dentists.Add(id, p)
	return p, true, nil
}

func (r *Resolver) user(ctx context.Context, id uuid.UUID, raw string) (Participant, error) {
	u, err := r.dir.GetUser(ctx, id)
	if apperr.Is(err, apperr.KindNotFound) {
		return Participant{}, apperr.ParticipantNotFound(raw)
	}
	if err != nil {
		return Participant{}, err
	}
	return Participant{UserID: u.ID, DisplayName: u.Name, Role: u.Role}, nil
}
