package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/timeledger/internal/auth"
	"github.com/sumire/timeledger/internal/domain"
)

// InviteCallbacks builds the auth lifecycle hooks that tie new accounts
// into project memberships. Both hooks run inside the auth service's
// own transaction, so they write through the tx they are handed.
func InviteCallbacks() auth.Callbacks {
	return auth.Callbacks{
		OnNewUser:    resolveInvites,
		OnDeleteUser: releaseMemberships,
	}
}

// resolveInvites turns an invite payload into membership rows. Each
// invited project is honored only when the inviting user held Admin on
// it at this moment; other invites are dropped with a log line, never
// an error, so one bad invite cannot abort account creation.
func resolveInvites(ctx context.Context, tx *sqlx.Tx, _ auth.RegistrationData, inviteData *string, creator *int64, uid int64) error {
	if inviteData == nil || creator == nil {
		return nil
	}

	var data domain.UserInviteData
	if err := json.Unmarshal([]byte(*inviteData), &data); err != nil {
		return fmt.Errorf("decode invite data: %w", err)
	}

	for _, inv := range data.Projects {
		var roleText string
		err := tx.GetContext(ctx, &roleText,
			`SELECT role FROM projectmember WHERE project = ? AND user = ?`, inv.ID, *creator)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				slog.Info("dropping invite from non-member", "project", inv.ID, "inviter", *creator)
				continue
			}
			return fmt.Errorf("read inviter role on project %d: %w", inv.ID, err)
		}
		role, err := domain.ParseRole(roleText)
		if err != nil || !role.Can(domain.OpEditProject) {
			slog.Info("dropping invite from non-admin", "project", inv.ID, "inviter", *creator)
			continue
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projectmember (project, user, role) VALUES (?, ?, ?)
			 ON CONFLICT (project, user) DO UPDATE SET role = ?`,
			inv.ID, uid, string(inv.Role), string(inv.Role)); err != nil {
			return fmt.Errorf("grant invited membership on project %d: %w", inv.ID, err)
		}
	}
	return nil
}

// releaseMemberships removes the user's project memberships before the
// account row goes. An account with ledger history cannot be deleted:
// time and pay entries reference the user row and the ledger keeps its
// history.
func releaseMemberships(ctx context.Context, tx *sqlx.Tx, uid int64) (bool, error) {
	var n int64
	err := tx.GetContext(ctx, &n,
		`SELECT (SELECT COUNT(*) FROM timeentry WHERE user = ? OR creator = ?)
		      + (SELECT COUNT(*) FROM payentry WHERE user = ? OR creator = ?)
		      + (SELECT COUNT(*) FROM allocation WHERE creator = ?)`,
		uid, uid, uid, uid, uid)
	if err != nil {
		return false, fmt.Errorf("count ledger history of user %d: %w", uid, err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM projectmember WHERE user = ?`, uid); err != nil {
		return false, fmt.Errorf("release memberships of user %d: %w", uid, err)
	}
	return true, nil
}
