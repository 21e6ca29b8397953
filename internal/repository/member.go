package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/timeledger/internal/domain"
)

// MemberRepository handles project membership data access.
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// List returns the members of a project with their roles. Rows whose
// stored role no longer decodes are skipped.
func (r *MemberRepository) List(ctx context.Context, projectID int64) ([]domain.ProjectMember, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT orgauth_user.id, orgauth_user.name, projectmember.role
		 FROM orgauth_user, projectmember
		 WHERE orgauth_user.id = projectmember.user AND projectmember.project = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members of project %d: %w", projectID, err)
	}
	defer rows.Close()

	var members []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		var role string
		if err := rows.Scan(&m.ID, &m.Name, &role); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		parsed, err := domain.ParseRole(role)
		if err != nil {
			continue
		}
		m.Role = parsed
		members = append(members, m)
	}
	return members, rows.Err()
}

// All returns every user known to the auth subsystem.
func (r *MemberRepository) All(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.SelectContext(ctx, &users,
		`SELECT id, name FROM orgauth_user`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Role returns the user's role on a project, or nil without error when
// no membership exists. An unparseable stored role is also nil: role
// lookups used for gating fail closed.
func (r *MemberRepository) Role(ctx context.Context, userID, projectID int64) (*domain.Role, error) {
	var role string
	err := r.db.GetContext(ctx, &role,
		`SELECT role FROM projectmember WHERE project = ? AND user = ?`, projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read role of user %d on project %d: %w", userID, projectID, err)
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, nil
	}
	return &parsed, nil
}

// IsMember reports whether the user has any membership on the project.
func (r *MemberRepository) IsMember(ctx context.Context, userID, projectID int64) (bool, error) {
	var uid int64
	err := r.db.GetContext(ctx, &uid,
		`SELECT user FROM projectmember WHERE user = ? AND project = ?`, userID, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check membership of user %d on project %d: %w", userID, projectID, err)
	}
	return true, nil
}

// Upsert sets the user's role on the project, overwriting any existing
// membership wholesale.
func (r *MemberRepository) Upsert(ctx context.Context, projectID, userID int64, role domain.Role) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projectmember (project, user, role) VALUES (?, ?, ?)
		 ON CONFLICT (project, user) DO UPDATE SET role = ?`,
		projectID, userID, string(role), string(role))
	if err != nil {
		return fmt.Errorf("upsert member %d on project %d: %w", userID, projectID, err)
	}
	return nil
}

// Delete removes the user's membership on the project.
func (r *MemberRepository) Delete(ctx context.Context, projectID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM projectmember WHERE user = ? AND project = ?`, userID, projectID)
	if err != nil {
		return fmt.Errorf("delete member %d from project %d: %w", userID, projectID, err)
	}
	return nil
}
