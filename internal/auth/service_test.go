package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/timeledger/internal/domain"
)

type captureMailer struct {
	email string
	name  string
	key   string
}

func (m *captureMailer) SendRegistration(email, name, key string) error {
	m.email, m.name, m.key = email, name, key
	return nil
}

func newTestService(t *testing.T, expiration time.Duration) (*Service, *sqlx.DB, *captureMailer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auth.db")
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, CreateSchema(db))
	require.NoError(t, MigrateAccountFlags(db))
	require.NoError(t, MigrateLoginData(db))
	require.NoError(t, MigrateTokenChain(db))
	require.NoError(t, MigrateTokenDateIndex(db))

	mailer := &captureMailer{}
	svc := NewService(db, "test-secret", expiration, mailer, Callbacks{})
	return svc, db, mailer
}

func TestRegisterConfirmLogin(t *testing.T) {
	svc, _, mailer := newTestService(t, time.Hour)
	ctx := context.Background()
	rd := RegistrationData{Name: "ada", Email: "ada@example.com", Password: "correcthorse"}

	uid, err := svc.Register(ctx, rd)
	require.NoError(t, err)
	assert.NotZero(t, uid)
	assert.Equal(t, "ada@example.com", mailer.email)
	require.NotEmpty(t, mailer.key)

	// Unconfirmed accounts cannot log in.
	_, _, err = svc.Login(ctx, "ada", "correcthorse")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, svc.Confirm(ctx, "ada", mailer.key))

	token, user, err := svc.Login(ctx, "ada", "correcthorse")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ada", user.Name)
	assert.NotEmpty(t, token)

	got, err := svc.ReadUserByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestConfirmWrongKey(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegistrationData{Name: "ada", Email: "ada@example.com", Password: "correcthorse"})
	require.NoError(t, err)

	err = svc.Confirm(ctx, "ada", "wrong-key")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.NewUser(ctx, RegistrationData{Name: "ada", Email: "ada@example.com", Password: "correcthorse"}, nil, nil)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "ada", "wrongpassword")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, _, err = svc.Login(ctx, "nobody", "correcthorse")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.NewUser(ctx, RegistrationData{Name: "ada", Email: "ada@example.com", Password: "correcthorse"}, nil, nil)
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "ada", "correcthorse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	// The JWT is still validly signed, but its stored row is gone.
	_, err = svc.ReadUserByToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenAgeEnforced(t *testing.T) {
	svc, db, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.NewUser(ctx, RegistrationData{Name: "ada", Email: "ada@example.com", Password: "correcthorse"}, nil, nil)
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "ada", "correcthorse")
	require.NoError(t, err)

	// Age the stored row past the expiration window.
	_, err = db.Exec(`UPDATE orgauth_token SET tokendate = ?`,
		time.Now().Add(-2*time.Hour).UnixMilli())
	require.NoError(t, err)

	_, err = svc.ReadUserByToken(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPurgeLoginTokens(t *testing.T) {
	svc, db, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	_, err := svc.NewUser(ctx, RegistrationData{Name: "ada", Email: "ada@example.com", Password: "correcthorse"}, nil, nil)
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "ada", "correcthorse")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "ada", "correcthorse")
	require.NoError(t, err)

	// Age one of the two rows and purge.
	_, err = db.Exec(
		`UPDATE orgauth_token SET tokendate = ? WHERE rowid = (SELECT MIN(rowid) FROM orgauth_token)`,
		time.Now().Add(-2*time.Hour).UnixMilli())
	require.NoError(t, err)

	require.NoError(t, PurgeLoginTokens(db, time.Hour))

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM orgauth_token`))
	assert.Equal(t, 1, n)
}

func TestGarbageTokenRejected(t *testing.T) {
	svc, _, _ := newTestService(t, time.Hour)

	_, err := svc.ReadUserByToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
