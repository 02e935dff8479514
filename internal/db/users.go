package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrUserExists is returned by Users.Register when the username is taken.
var ErrUserExists = errors.New("db: username already registered")

// ErrInvalidCredentials is returned by Users.Verify on a wrong username or
// password; the caller must not distinguish the two in the HTTP response.
var ErrInvalidCredentials = errors.New("db: invalid username or password")

const queryTimeout = 3 * time.Second

// Users is the user-account service of
// original_source/src/util/include/user_service.h's registerUser/
// verifyUser/userExists, reimplemented with parameterized queries (the
// original's mysql_real_escape_string + string concatenation is exactly
// the SQL-injection-prone pattern database/sql's placeholder binding
// exists to avoid) and bcrypt password hashes in place of the original's
// plaintext comparison.
type Users struct {
	pool *Pool
}

// NewUsers returns a user service backed by pool.
func NewUsers(pool *Pool) *Users {
	return &Users{pool: pool}
}

// Register inserts a new user row with a bcrypt-hashed password.
// Returns ErrUserExists if the username is already taken.
func (u *Users) Register(username, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	exists, err := u.exists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = u.pool.db.ExecContext(ctx,
		"INSERT INTO user (username, passwd) VALUES (?, ?)", username, string(hash))
	return err
}

// Verify checks username/password against the stored bcrypt hash. Returns
// ErrInvalidCredentials if the username does not exist or the password is
// wrong.
func (u *Users) Verify(username, password string) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var hash string
	err := u.pool.db.QueryRowContext(ctx,
		"SELECT passwd FROM user WHERE username = ?", username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (u *Users) exists(ctx context.Context, username string) (bool, error) {
	var count int
	err := u.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user WHERE username = ?", username).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
