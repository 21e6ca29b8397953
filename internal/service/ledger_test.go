package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumire/timeledger/internal/domain"
	"github.com/sumire/timeledger/internal/migrate"
	"github.com/sumire/timeledger/internal/repository"
)

type fixture struct {
	db       *sqlx.DB
	projects *ProjectService
	ledger   *LedgerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, migrate.Initialize(path, time.Hour))
	db, err := repository.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	projectRepo := repository.NewProjectRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	timeRepo := repository.NewTimeEntryRepository(db)
	payRepo := repository.NewPayEntryRepository(db)
	allocRepo := repository.NewAllocationRepository(db)

	return &fixture{
		db:       db,
		projects: NewProjectService(projectRepo, memberRepo),
		ledger:   NewLedgerService(projectRepo, memberRepo, timeRepo, payRepo, allocRepo),
	}
}

func (f *fixture) addUser(t *testing.T, id int64, name string) {
	t.Helper()
	_, err := f.db.Exec(
		`INSERT INTO orgauth_user (id, name, hashwd, salt, email, createdate) VALUES (?, ?, 'x', 'x', ?, 0)`,
		id, name, name+"@example.com")
	require.NoError(t, err)
}

func (f *fixture) newProject(t *testing.T, owner int64, name string) int64 {
	t.Helper()
	saved, err := f.projects.SaveProjectEdit(context.Background(), owner,
		domain.SaveProjectEdit{Project: domain.SaveProject{Name: name}})
	require.NoError(t, err)
	return saved.Project.ID
}

func (f *fixture) grant(t *testing.T, project, user int64, role domain.Role) {
	t.Helper()
	_, err := f.db.Exec(
		`INSERT INTO projectmember (project, user, role) VALUES (?, ?, ?)`,
		project, user, string(role))
	require.NoError(t, err)
}

func TestSaveProjectTimeDeniedForNonMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, 1, "ada")
	f.addUser(t, 2, "grace")
	pid := f.newProject(t, 1, "rocket")

	_, err := f.ledger.SaveProjectTime(ctx, 2, domain.SaveProjectTime{Project: pid})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// A nonexistent project denies identically, so ids cannot be probed.
	_, err = f.ledger.SaveProjectTime(ctx, 2, domain.SaveProjectTime{Project: 9999})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSaveProjectTimeDeniedForObserver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, 1, "ada")
	f.addUser(t, 2, "grace")
	pid := f.newProject(t, 1, "rocket")
	f.grant(t, pid, 2, domain.RoleObserver)

	_, err := f.ledger.SaveProjectTime(ctx, 2, domain.SaveProjectTime{
		Project:         pid,
		SaveTimeEntries: []domain.SaveTimeEntry{{Project: pid, User: 2, StartDate: 1, EndDate: 2}},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSaveProjectTimeBatchRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, 1, "ada")
	pid := f.newProject(t, 1, "rocket")

	pt, err := f.ledger.SaveProjectTime(ctx, 1, domain.SaveProjectTime{
		Project: pid,
		SaveTimeEntries: []domain.SaveTimeEntry{
			{Project: pid, User: 1, Description: "design", StartDate: 1000, EndDate: 2000},
			{Project: pid, User: 1, Description: "build", StartDate: 3000, EndDate: 4000},
		},
		SavePayEntries: []domain.SavePayEntry{
			{Project: pid, User: 1, Duration: 3600000, PayType: domain.PayTypeInvoiced, PaymentDate: 5000},
		},
		SaveAllocations: []domain.SaveAllocation{
			{Project: pid, Duration: 7200000, AllocationDate: 6000, Description: "budget"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, pt.TimeEntries, 2)
	assert.Len(t, pt.PayEntries, 1)
	assert.Len(t, pt.Allocations, 1)
	assert.Equal(t, pid, pt.Project.ID)
	require.Len(t, pt.Members, 1)
	assert.Equal(t, domain.RoleAdmin, pt.Members[0].Role)

	// Delete one time entry and the pay entry in a second batch.
	pt2, err := f.ledger.SaveProjectTime(ctx, 1, domain.SaveProjectTime{
		Project:           pid,
		DeleteTimeEntries: []int64{pt.TimeEntries[0].ID},
		DeletePayEntries:  []int64{pt.PayEntries[0].ID},
	})
	require.NoError(t, err)
	assert.Len(t, pt2.TimeEntries, 1)
	assert.Empty(t, pt2.PayEntries)
	assert.Len(t, pt2.Allocations, 1)
}

func TestSaveProjectTimePartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, 1, "ada")
	pid := f.newProject(t, 1, "rocket")

	// The second entry collides on (user, startdate) and fails alone;
	// its siblings still land.
	pt, err := f.ledger.SaveProjectTime(ctx, 1, domain.SaveProjectTime{
		Project: pid,
		SaveTimeEntries: []domain.SaveTimeEntry{
			{Project: pid, User: 1, Description: "first", StartDate: 1000, EndDate: 2000},
			{Project: pid, User: 1, Description: "dupe", StartDate: 1000, EndDate: 9000},
			{Project: pid, User: 1, Description: "third", StartDate: 5000, EndDate: 6000},
		},
	})
	require.NoError(t, err)
	require.Len(t, pt.TimeEntries, 2)

	descriptions := []string{pt.TimeEntries[0].Description, pt.TimeEntries[1].Description}
	assert.Contains(t, descriptions, "first")
	assert.Contains(t, descriptions, "third")
}

func TestReadProjectTimeVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, 1, "ada")
	f.addUser(t, 2, "grace")
	pid := f.newProject(t, 1, "rocket")

	_, err := f.ledger.ReadProjectTime(ctx, 1, pid)
	require.NoError(t, err)

	// Private project: non-member denied, public endpoint denied.
	_, err = f.ledger.ReadProjectTime(ctx, 2, pid)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.ledger.ReadPublicProjectTime(ctx, pid)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Nonexistent project looks identical to a denied one.
	_, err = f.ledger.ReadPublicProjectTime(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// Making it public opens both paths for non-members.
	_, err = f.projects.SaveProjectEdit(ctx, 1, domain.SaveProjectEdit{
		Project: domain.SaveProject{ID: &pid, Name: "rocket", Public: true}})
	require.NoError(t, err)

	_, err = f.ledger.ReadPublicProjectTime(ctx, pid)
	require.NoError(t, err)
	_, err = f.ledger.ReadProjectTime(ctx, 2, pid)
	require.NoError(t, err)
}

func TestUserTimeAcrossProjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addUser(t, 1, "ada")
	p1 := f.newProject(t, 1, "one")
	p2 := f.newProject(t, 1, "two")

	_, err := f.ledger.SaveProjectTime(ctx, 1, domain.SaveProjectTime{
		Project:         p1,
		SaveTimeEntries: []domain.SaveTimeEntry{{Project: p1, User: 1, StartDate: 1000, EndDate: 2000}},
	})
	require.NoError(t, err)
	_, err = f.ledger.SaveProjectTime(ctx, 1, domain.SaveProjectTime{
		Project:         p2,
		SaveTimeEntries: []domain.SaveTimeEntry{{Project: p2, User: 1, StartDate: 3000, EndDate: 4000}},
	})
	require.NoError(t, err)

	entries, err := f.ledger.UserTime(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
