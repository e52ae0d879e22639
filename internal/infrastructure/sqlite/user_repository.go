package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	new_email TEXT NULL,
	email_confirmed_at DATETIME NULL,
	email_confirmation_token TEXT NULL,
	email_confirmation_sent_at DATETIME NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const selectUser = `
SELECT id, email, password_hash, new_email, email_confirmed_at,
	email_confirmation_token, email_confirmation_sent_at, created_at, updated_at
FROM users
WHERE id = ?`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

func (r *UserRepository) Create(ctx context.Context, nu entity.NewUser) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, apperror.ErrUnknown(err)
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		id.String(), nu.Email.String(), nu.PasswordHash, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, apperror.ErrDuplicateEmail()
		}
		return uuid.Nil, apperror.ErrUnknown(fmt.Errorf("insert user: %w", err))
	}
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, selectUser, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound()
		}
		return nil, apperror.ErrUnknown(fmt.Errorf("select user: %w", err))
	}
	return u, nil
}

func (r *UserRepository) SetConfirmationToken(ctx context.Context, id uuid.UUID, token string, newEmail *valueobject.EmailAddress) error {
	var pending any
	if newEmail != nil {
		pending = newEmail.String()
	}
	now := time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET email_confirmation_token = ?,
	email_confirmation_sent_at = ?,
	new_email = COALESCE(?, new_email),
	updated_at = ?
WHERE id = ?`,
		token, now, pending, now, id.String(),
	)
	if err != nil {
		return apperror.ErrUnknown(fmt.Errorf("update confirmation token: %w", err))
	}
	return requireOneRow(res)
}

func (r *UserRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, newEmail *valueobject.EmailAddress) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperror.ErrUnknown(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var res sql.Result
	if newEmail != nil {
		var taken bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE email = ? AND id <> ?)`,
			newEmail.String(), id.String(),
		).Scan(&taken); err != nil {
			return apperror.ErrUnknown(fmt.Errorf("check email in use: %w", err))
		}
		if taken {
			return apperror.ErrEmailInUse()
		}
		res, err = tx.ExecContext(ctx, `
UPDATE users
SET email = ?,
	new_email = NULL,
	email_confirmed_at = ?,
	email_confirmation_token = NULL,
	email_confirmation_sent_at = NULL,
	updated_at = ?
WHERE id = ?`,
			newEmail.String(), now, now, id.String(),
		)
	} else {
		res, err = tx.ExecContext(ctx, `
UPDATE users
SET email_confirmed_at = ?,
	email_confirmation_token = NULL,
	email_confirmation_sent_at = NULL,
	updated_at = ?
WHERE id = ?`,
			now, now, id.String(),
		)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ErrEmailInUse()
		}
		return apperror.ErrUnknown(fmt.Errorf("mark confirmed: %w", err))
	}
	if err = requireOneRow(res); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return apperror.ErrUnknown(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.ErrUnknown(err)
	}
	if n == 0 {
		return apperror.ErrUserNotFound()
	}
	return nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (*entity.User, error) {
	var (
		u           entity.User
		id          string
		email       string
		newEmail    sql.NullString
		confirmedAt sql.NullTime
		token       sql.NullString
		sentAt      sql.NullTime
	)
	if err := row.Scan(&id, &email, &u.PasswordHash, &newEmail, &confirmedAt,
		&token, &sentAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("stored id %q: %w", id, err)
	}
	if u.Email, err = valueobject.NewEmailAddress(email); err != nil {
		return nil, fmt.Errorf("stored email for %s: %w", id, err)
	}
	if newEmail.Valid {
		ne, err := valueobject.NewEmailAddress(newEmail.String)
		if err != nil {
			return nil, fmt.Errorf("stored new email for %s: %w", id, err)
		}
		u.NewEmail = &ne
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		u.EmailConfirmedAt = &t
	}
	if token.Valid && sentAt.Valid {
		s, t := token.String, sentAt.Time
		u.ConfirmationToken = &s
		u.ConfirmationSentAt = &t
	}
	return &u, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
