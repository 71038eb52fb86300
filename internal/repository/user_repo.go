package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/feltline/stakehouse/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// UserRepository persists user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, username, password_hash, role, is_active, created_at, updated_at`

// Create inserts a new user row within the caller's transaction (registration
// also creates the bankroll, so both rows commit together). Email and
// username collisions surface as ErrEmailTaken / ErrUsernameTaken so the auth
// flow can report which field conflicted.
func (r *UserRepository) Create(ctx context.Context, tx *sqlx.Tx, u *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :username, :password_hash, :role, :is_active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, u); err != nil {
		switch {
		case isUniqueViolationOn(err, "users_email_key"):
			return domain.ErrEmailTaken
		case isUniqueViolationOn(err, "users_username_key"):
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("user_repo.Create: %w", err)
	}
	return nil
}

// getOne runs a single-row lookup and maps the no-rows case to ErrUserNotFound.
func (r *UserRepository) getOne(ctx context.Context, op, where string, arg interface{}) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user_repo.%s: %w", op, err)
	}
	return &u, nil
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "GetByID", "id", id)
}

// GetByEmail fetches a user by email address. Login path.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "GetByEmail", "email", email)
}

// GetByUsername fetches a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "GetByUsername", "username", username)
}

// List returns one page of users, newest first, plus the total count.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("user_repo.List count: %w", err)
	}

	var users []*domain.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+` FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("user_repo.List select: %w", err)
	}
	return users, total, nil
}

// UpdateRole changes a user's role. Back-office only.
func (r *UserRepository) UpdateRole(ctx context.Context, userID uuid.UUID, role domain.UserRole) error {
	return r.updateField(ctx, "UpdateRole", "role", string(role), userID)
}

// SetActive suspends or reinstates an account. Suspended users keep their
// bankroll but cannot authenticate.
func (r *UserRepository) SetActive(ctx context.Context, userID uuid.UUID, active bool) error {
	return r.updateField(ctx, "SetActive", "is_active", active, userID)
}

func (r *UserRepository) updateField(ctx context.Context, op, column string, value interface{}, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = $1, updated_at = now() WHERE id = $2`,
		value, userID)
	if err != nil {
		return fmt.Errorf("user_repo.%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// isUniqueViolationOn checks whether err is a PostgreSQL unique constraint
// violation for the given constraint name.
func isUniqueViolationOn(err error, constraintName string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == constraintName
}
