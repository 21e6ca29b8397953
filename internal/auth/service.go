package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/sumire/timeledger/internal/domain"
)

// RegistrationData is the input for creating a new account.
type RegistrationData struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// Callbacks lets the owning application hook account lifecycle events.
// OnNewUser runs inside the creation transaction, so invite resolution
// is atomic with the user row.
type Callbacks struct {
	OnNewUser    func(ctx context.Context, tx *sqlx.Tx, rd RegistrationData, inviteData *string, creator *int64, uid int64) error
	OnDeleteUser func(ctx context.Context, tx *sqlx.Tx, uid int64) (bool, error)
}

// Mailer delivers registration mail. Email content and transport are
// outside the core's scope.
type Mailer interface {
	SendRegistration(email, name, key string) error
}

// Service implements the auth collaborator contract: account creation,
// login tokens, and token expiry.
type Service struct {
	db              *sqlx.DB
	secret          []byte
	tokenExpiration time.Duration
	mailer          Mailer
	cb              Callbacks
}

// NewService creates an auth Service.
func NewService(db *sqlx.DB, secret string, tokenExpiration time.Duration, mailer Mailer, cb Callbacks) *Service {
	return &Service{
		db:              db,
		secret:          []byte(secret),
		tokenExpiration: tokenExpiration,
		mailer:          mailer,
		cb:              cb,
	}
}

// Register creates an unconfirmed account and mails the registration
// key. Login is refused until the key is confirmed.
func (s *Service) Register(ctx context.Context, rd RegistrationData) (int64, error) {
	key := uuid.NewString()
	uid, err := s.createUser(ctx, rd, &key, nil, nil)
	if err != nil {
		return 0, err
	}
	if err := s.mailer.SendRegistration(rd.Email, rd.Name, key); err != nil {
		return 0, fmt.Errorf("send registration mail: %w", err)
	}
	return uid, nil
}

// NewUser creates a confirmed account directly, carrying an optional
// invite payload resolved by the OnNewUser callback. creator is the
// inviting user, if any.
func (s *Service) NewUser(ctx context.Context, rd RegistrationData, inviteData *string, creator *int64) (int64, error) {
	return s.createUser(ctx, rd, nil, inviteData, creator)
}

func (s *Service) createUser(ctx context.Context, rd RegistrationData, regKey *string, inviteData *string, creator *int64) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rd.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	// bcrypt embeds its own salt; the salt column remains for on-disk
	// compatibility with databases written by earlier builds.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orgauth_user (name, hashwd, salt, email, registration_key, createdate)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rd.Name, string(hash), uuid.NewString(), rd.Email, regKey, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user id: %w", err)
	}

	if s.cb.OnNewUser != nil {
		if err := s.cb.OnNewUser(ctx, tx, rd, inviteData, creator, uid); err != nil {
			return 0, fmt.Errorf("new user callback: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create user: %w", err)
	}
	return uid, nil
}

// Confirm clears the registration key if it matches, completing
// registration.
func (s *Service) Confirm(ctx context.Context, name, key string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orgauth_user SET registration_key = NULL
		 WHERE name = ? AND registration_key = ?`, name, key)
	if err != nil {
		return fmt.Errorf("confirm registration: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Login checks credentials and issues a signed token. The token's jti
// is persisted so it can be revoked and purged by age; multiple live
// tokens per user support multiple devices.
func (s *Service) Login(ctx context.Context, name, password string) (string, *domain.User, error) {
	var row struct {
		ID      int64          `db:"id"`
		Name    string         `db:"name"`
		Hashwd  string         `db:"hashwd"`
		RegKey  sql.NullString `db:"registration_key"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, hashwd, registration_key FROM orgauth_user WHERE name = ?`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, domain.ErrUnauthorized
		}
		return "", nil, fmt.Errorf("read user %s: %w", name, err)
	}
	if row.RegKey.Valid {
		return "", nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.Hashwd), []byte(password)); err != nil {
		return "", nil, domain.ErrUnauthorized
	}

	jti := uuid.NewString()
	now := time.Now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO orgauth_token ("user", token, tokendate) VALUES (?, ?, ?)`,
		row.ID, jti, now.UnixMilli()); err != nil {
		return "", nil, fmt.Errorf("store login token: %w", err)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": row.ID,
		"jti": jti,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenExpiration).Unix(),
	}).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return signed, &domain.User{ID: row.ID, Name: row.Name}, nil
}

// ReadUserByToken resolves a token to its user. The signature, the
// stored jti row, and the row's age are all checked; a revoked or aged
// out token fails even if the JWT itself has not expired.
func (s *Service) ReadUserByToken(ctx context.Context, token string) (*domain.User, error) {
	uid, jti, err := s.parseToken(token)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	var tokendate int64
	err = s.db.GetContext(ctx, &tokendate,
		`SELECT tokendate FROM orgauth_token WHERE "user" = ? AND token = ?`, uid, jti)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	if time.Now().UnixMilli()-tokendate > s.tokenExpiration.Milliseconds() {
		return nil, domain.ErrUnauthorized
	}

	var user domain.User
	if err := s.db.GetContext(ctx, &user,
		`SELECT id, name FROM orgauth_user WHERE id = ?`, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("read user %d: %w", uid, err)
	}
	return &user, nil
}

// Logout revokes the token.
func (s *Service) Logout(ctx context.Context, token string) error {
	uid, jti, err := s.parseToken(token)
	if err != nil {
		return domain.ErrUnauthorized
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM orgauth_token WHERE "user" = ? AND token = ?`, uid, jti); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// DeleteUser removes an account after consulting the OnDeleteUser
// callback.
func (s *Service) DeleteUser(ctx context.Context, uid int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback()

	if s.cb.OnDeleteUser != nil {
		ok, err := s.cb.OnDeleteUser(ctx, tx, uid)
		if err != nil {
			return fmt.Errorf("delete user callback: %w", err)
		}
		if !ok {
			return domain.ErrForbidden
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM orgauth_token WHERE "user" = ?`, uid); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM orgauth_user WHERE id = ?`, uid); err != nil {
		return fmt.Errorf("delete user %d: %w", uid, err)
	}
	return tx.Commit()
}

func (s *Service) parseToken(token string) (int64, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, "", fmt.Errorf("parse token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return 0, "", domain.ErrUnauthorized
	}
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, "", domain.ErrUnauthorized
	}
	jti, ok := claims["jti"].(string)
	if !ok {
		return 0, "", domain.ErrUnauthorized
	}
	return int64(sub), jti, nil
}
