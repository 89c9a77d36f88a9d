package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"souq_back_end/internal/models"
)

type UserRepository struct {
	session SessionFunc
}

func NewUserRepository(session SessionFunc) *UserRepository {
	return &UserRepository{session: session}
}

// NormalizeEmail lowercases and trims an address before lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create claims the email with a lightweight transaction, then writes the
// user row. ErrEmailTaken is returned when the claim loses.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	session, err := r.session()
	if err != nil {
		return err
	}

	u.Email = NormalizeEmail(u.Email)
	u.ID = gocql.UUID(uuid.New())
	u.CreatedAt = time.Now().UTC()

	var existingEmail string
	var existingID gocql.UUID
	applied, err := session.Query(`INSERT INTO users_by_email (email, user_id) VALUES (?, ?) IF NOT EXISTS`,
		u.Email, u.ID,
	).WithContext(ctx).ScanCAS(&existingEmail, &existingID)
	if err != nil {
		return fmt.Errorf("claim email: %w", err)
	}
	if !applied {
		return ErrEmailTaken
	}

	err = session.Query(`INSERT INTO users (user_id, email, name, password, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		_ = session.Query(`DELETE FROM users_by_email WHERE email = ?`, u.Email).WithContext(ctx).Exec()
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id gocql.UUID) (*models.User, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	var u models.User
	err = session.Query(`SELECT user_id, email, name, password, created_at FROM users WHERE user_id = ?`, id).
		WithContext(ctx).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	session, err := r.session()
	if err != nil {
		return nil, err
	}

	var id gocql.UUID
	err = session.Query(`SELECT user_id FROM users_by_email WHERE email = ?`, NormalizeEmail(email)).
		WithContext(ctx).Scan(&id)
	if err != nil {
		return nil, notFound(err)
	}
	return r.GetByID(ctx, id)
}
