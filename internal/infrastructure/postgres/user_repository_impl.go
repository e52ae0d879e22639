package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/go-ddd-account-service/internal/domain/apperror"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/entity"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/repository"
	"github.com/oksasatya/go-ddd-account-service/internal/domain/valueobject"
)

const uniqueViolation = "23505"

const userColumns = `id, email, password_hash, new_email, email_confirmed_at,
	email_confirmation_token, email_confirmation_sent_at, created_at, updated_at`

type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullableEmail(e *valueobject.EmailAddress) any {
	if e == nil {
		return nil
	}
	return e.String()
}

func (r *UserRepository) Create(ctx context.Context, nu entity.NewUser) (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, apperror.ErrUnknown(err)
	}
	now := r.now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`, id, nu.Email.String(), nu.PasswordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, apperror.ErrDuplicateEmail()
		}
		return uuid.Nil, apperror.ErrUnknown(fmt.Errorf("insert user: %w", err))
	}
	return id, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound()
		}
		return nil, apperror.ErrUnknown(fmt.Errorf("select user: %w", err))
	}
	return u, nil
}

func (r *UserRepository) SetConfirmationToken(ctx context.Context, id uuid.UUID, token string, newEmail *valueobject.EmailAddress) error {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email_confirmation_token = $2,
		    email_confirmation_sent_at = $3,
		    new_email = COALESCE($4, new_email),
		    updated_at = $3
		WHERE id = $1
	`, id, token, now, nullableEmail(newEmail))
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

	now := r.now()
	var res sql.Result
	if newEmail != nil {
		var taken bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`,
			newEmail.String(), id,
		).Scan(&taken); err != nil {
			return apperror.ErrUnknown(fmt.Errorf("check email in use: %w", err))
		}
		if taken {
			return apperror.ErrEmailInUse()
		}
		res, err = tx.ExecContext(ctx, `
			UPDATE users
			SET email = $2,
			    new_email = NULL,
			    email_confirmed_at = $3,
			    email_confirmation_token = NULL,
			    email_confirmation_sent_at = NULL,
			    updated_at = $3
			WHERE id = $1
		`, id, newEmail.String(), now)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE users
			SET email_confirmed_at = $2,
			    email_confirmation_token = NULL,
			    email_confirmation_sent_at = NULL,
			    updated_at = $2
			WHERE id = $1
		`, id, now)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		u           entity.User
		email       string
		newEmail    sql.NullString
		confirmedAt sql.NullTime
		token       sql.NullString
		sentAt      sql.NullTime
	)
	if err := row.Scan(&u.ID, &email, &u.PasswordHash, &newEmail, &confirmedAt,
		&token, &sentAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return assemble(&u, email, newEmail, confirmedAt, token, sentAt)
}

func assemble(u *entity.User, email string, newEmail sql.NullString, confirmedAt sql.NullTime, token sql.NullString, sentAt sql.NullTime) (*entity.User, error) {
	e, err := valueobject.NewEmailAddress(email)
	if err != nil {
		return nil, fmt.Errorf("stored email for %s: %w", u.ID, err)
	}
	u.Email = e
	if newEmail.Valid {
		ne, err := valueobject.NewEmailAddress(newEmail.String)
		if err != nil {
			return nil, fmt.Errorf("stored new email for %s: %w", u.ID, err)
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
	return u, nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
