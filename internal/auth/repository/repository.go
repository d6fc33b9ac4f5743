package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")
var ErrInvalidRole = errors.New("invalid role")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Phone        *string
	Avatar       *string
	PasswordHash *string
	Roles        []string
	CreatedAt    time.Time
}

const selectUserQuery = `
	SELECT p.id, p.email, p.name, p.phone, p.avatar, p.password_hash, p.created_at,
		COALESCE(array_agg(ur.role::text ORDER BY ur.role) FILTER (WHERE ur.role IS NOT NULL), '{}') AS roles
	FROM profiles p
	LEFT JOIN user_roles ur ON ur.user_id = p.id
`

const listUsersQuery = selectUserQuery + `
	GROUP BY p.id
	ORDER BY p.email
`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.Avatar,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.Roles,
	)
	return user, err
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUserQuery+`
		WHERE lower(p.email) = lower($1)
		GROUP BY p.id
	`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUserQuery+`
		WHERE p.id = $1
		GROUP BY p.id
	`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, listUsersQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return users, nil
}

// UpdateProfile changes the editable profile fields. Nil arguments keep the stored value.
func (r *Repository) UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone, avatar *string) (User, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE profiles SET
			name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			avatar = COALESCE($4, avatar)
		WHERE id = $1
	`, userID, name, phone, avatar)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrNotFound
	}
	return r.GetUserByID(ctx, userID)
}

// UpsertProfile creates or refreshes a profile and replaces its roles. The
// password hash is left untouched when nil.
func (r *Repository) UpsertProfile(ctx context.Context, user User) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
		INSERT INTO profiles (id, email, name, phone, avatar, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			password_hash = COALESCE(EXCLUDED.password_hash, profiles.password_hash)
	`, user.ID, user.Email, user.Name, user.Phone, user.Avatar, user.PasswordHash); err != nil {
		return err
	}

	if err = replaceRoles(ctx, tx, user.ID, user.Roles); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Repository) SetUserRoles(ctx context.Context, userID uuid.UUID, roles []string) (err error) {
	if len(roles) == 0 {
		return ErrInvalidRole
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM profiles WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		err = ErrNotFound
		return err
	}

	if err = replaceRoles(ctx, tx, userID, roles); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func replaceRoles(ctx context.Context, tx pgx.Tx, userID uuid.UUID, roles []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}

	unique := uniqueStrings(roles)
	if len(unique) == 0 {
		return nil
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role)
		SELECT $1, unnest($2::text[])::app_role
	`, userID, unique)
	return err
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
