package auth

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PurgeLoginTokens deletes login tokens older than the expiration
// window. Called by the migration engine at startup and by the daily
// maintenance loop.
func PurgeLoginTokens(db *sqlx.DB, expiration time.Duration) error {
	cutoff := time.Now().UnixMilli() - expiration.Milliseconds()
	if _, err := db.Exec(`DELETE FROM orgauth_token WHERE tokendate < ?`, cutoff); err != nil {
		return fmt.Errorf("purge login tokens: %w", err)
	}
	return nil
}

// PurgeEmailTokens deletes stale email change requests.
func PurgeEmailTokens(db *sqlx.DB, expiration time.Duration) error {
	cutoff := time.Now().UnixMilli() - expiration.Milliseconds()
	if _, err := db.Exec(`DELETE FROM orgauth_newemail WHERE tokendate < ?`, cutoff); err != nil {
		return fmt.Errorf("purge email tokens: %w", err)
	}
	return nil
}

// PurgeResetTokens deletes stale password reset requests.
func PurgeResetTokens(db *sqlx.DB, expiration time.Duration) error {
	cutoff := time.Now().UnixMilli() - expiration.Milliseconds()
	if _, err := db.Exec(`DELETE FROM orgauth_newpassword WHERE tokendate < ?`, cutoff); err != nil {
		return fmt.Errorf("purge reset tokens: %w", err)
	}
	return nil
}

// LogMailer is a Mailer that only records the registration key instead
// of delivering mail. Useful for development and tests.
type LogMailer struct {
	Log func(msg string, args ...any)
}

func (m LogMailer) SendRegistration(email, name, key string) error {
	if m.Log != nil {
		m.Log("registration mail", "email", email, "name", name, "key", key)
	}
	return nil
}
