package identity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dentalhub/dentalhub/internal/domain/scheduling"
	"github.com/dentalhub/dentalhub/internal/platform/db"
)

// -- User Repository --

type userRepoPG struct {
	pool *pgxpool.Pool
}

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.ConnFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, email, image, role, created_at, updated_at
		FROM app_user WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// -- Dentist Repository --

type dentistRepoPG struct {
	pool *pgxpool.Pool
}

func NewDentistRepoPG(pool *pgxpool.Pool) DentistRepository {
	return &dentistRepoPG{pool: pool}
}

func (r *dentistRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.ConnFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const dentistCols = `id, user_id, name, clinic_name, image, business_hours,
	last_activity_at, created_at, updated_at`

func (r *dentistRepoPG) scanDentist(row pgx.Row) (*Dentist, error) {
	var d Dentist
	var hours []byte
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.ClinicName, &d.Image, &hours,
		&d.LastActivityAt, &d.CreatedAt, &d.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(hours) > 0 && string(hours) != "null" {
		if err := json.Unmarshal(hours, &d.BusinessHours); err != nil {
			return nil, fmt.Errorf("decode business hours of dentist %s: %w", d.ID, err)
		}
	}
	return &d, nil
}

func (r *dentistRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Dentist, error) {
	return r.scanDentist(r.conn(ctx).QueryRow(ctx, `SELECT `+dentistCols+` FROM dentist WHERE id = $1`, id))
}

func (r *dentistRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*Dentist, error) {
	return r.scanDentist(r.conn(ctx).QueryRow(ctx, `SELECT `+dentistCols+` FROM dentist WHERE user_id = $1`, userID))
}

func (r *dentistRepoPG) UpdateBusinessHours(ctx context.Context, id uuid.UUID, hours scheduling.WeeklyBusinessHours) error {
	raw, err := json.Marshal(hours)
	if err != nil {
		return fmt.Errorf("encode business hours: %w", err)
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE dentist SET business_hours = $2, updated_at = NOW() WHERE id = $1`, id, raw)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *dentistRepoPG) TouchLastActivity(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE dentist SET last_activity_at = NOW() WHERE id = $1`, id)
	return err
}
