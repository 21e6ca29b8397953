package repository

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
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, migrate.Initialize(path, time.Hour))
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func addUser(t *testing.T, db *sqlx.DB, id int64, name string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO orgauth_user (id, name, hashwd, salt, email, createdate) VALUES (?, ?, 'x', 'x', ?, 0)`,
		id, name, name+"@example.com")
	require.NoError(t, err)
}

func ptr[T any](v T) *T { return &v }

func TestProjectSaveInsertGrantsAdmin(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	members := NewMemberRepository(db)

	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket", Description: "engines"})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)
	assert.NotZero(t, saved.ChangedDate)

	role, err := members.Role(ctx, 1, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, domain.RoleAdmin, *role)
}

func TestProjectReadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)

	saved, err := projects.Save(ctx, 1, domain.SaveProject{
		Name:              "rocket",
		Description:       "engines",
		Public:            true,
		Rate:              ptr(95.0),
		Currency:          ptr("EUR"),
		DueDays:           ptr(int64(30)),
		ExtraFields:       domain.ExtraFields{"vat": "DE123"},
		InvoiceIDTemplate: "INV-{seq}",
		InvoiceSeq:        4,
		Payer:             "ACME\nBerlin",
		Payee:             "Ada",
		GenericTask:       "development",
	})
	require.NoError(t, err)

	p, err := projects.Read(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "rocket", p.Name)
	assert.True(t, p.Public)
	require.NotNil(t, p.Rate)
	assert.Equal(t, 95.0, *p.Rate)
	require.NotNil(t, p.DueDays)
	assert.Equal(t, int64(30), *p.DueDays)
	assert.Equal(t, domain.ExtraFields{"vat": "DE123"}, p.ExtraFields)
	assert.Equal(t, int64(4), p.InvoiceSeq)
	assert.Equal(t, p.CreateDate, saved.ChangedDate)
}

func TestProjectReadMissing(t *testing.T) {
	db := openTestDB(t)
	projects := NewProjectRepository(db)

	_, err := projects.Read(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectUpdateBumpsChangedDate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	before, err := projects.Read(ctx, saved.ID)
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	_, err = projects.Save(ctx, 1, domain.SaveProject{ID: &saved.ID, Name: "rocket 2"})
	require.NoError(t, err)

	after, err := projects.Read(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "rocket 2", after.Name)
	assert.Equal(t, before.CreateDate, after.CreateDate)
	assert.Greater(t, after.ChangedDate, before.ChangedDate)
}

func TestProjectListRecencyOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	times := NewTimeEntryRepository(db)

	old, err := projects.Save(ctx, 1, domain.SaveProject{Name: "old"})
	require.NoError(t, err)
	fresh, err := projects.Save(ctx, 1, domain.SaveProject{Name: "fresh"})
	require.NoError(t, err)
	_, err = projects.Save(ctx, 1, domain.SaveProject{Name: "idle"})
	require.NoError(t, err)

	_, err = times.Save(ctx, 1, domain.SaveTimeEntry{Project: old.ID, User: 1, StartDate: 1000, EndDate: 2000})
	require.NoError(t, err)
	_, err = times.Save(ctx, 1, domain.SaveTimeEntry{Project: fresh.ID, User: 1, StartDate: 5000, EndDate: 6000})
	require.NoError(t, err)

	list, err := projects.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Worked-on projects first, most recent start date first, then the
	// untouched project.
	assert.Equal(t, "fresh", list[0].Name)
	assert.Equal(t, "old", list[1].Name)
	assert.Equal(t, "idle", list[2].Name)
	assert.Equal(t, domain.RoleAdmin, list[0].Role)
}

func TestProjectListBadRoleDegradesToObserver(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE projectmember SET role = 'Wizard' WHERE project = ? AND user = 1`, saved.ID)
	require.NoError(t, err)

	list, err := projects.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.RoleObserver, list[0].Role)
}

func TestMemberRoleFailsClosed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	members := NewMemberRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	// No membership at all.
	role, err := members.Role(ctx, 42, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, role)

	// Garbage role text gates as no role.
	_, err = db.Exec(`UPDATE projectmember SET role = 'Wizard' WHERE project = ? AND user = 1`, saved.ID)
	require.NoError(t, err)
	role, err = members.Role(ctx, 1, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestMemberUpsertAndDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")
	addUser(t, db, 2, "grace")

	projects := NewProjectRepository(db)
	members := NewMemberRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	require.NoError(t, members.Upsert(ctx, saved.ID, 2, domain.RoleObserver))
	require.NoError(t, members.Upsert(ctx, saved.ID, 2, domain.RoleMember))

	role, err := members.Role(ctx, 2, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, domain.RoleMember, *role)

	list, err := members.List(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, members.Delete(ctx, saved.ID, 2))
	ok, err := members.IsMember(ctx, 2, saved.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimeEntryCreatorImmutable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")
	addUser(t, db, 2, "grace")

	projects := NewProjectRepository(db)
	times := NewTimeEntryRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	id, err := times.Save(ctx, 1, domain.SaveTimeEntry{Project: saved.ID, User: 1, StartDate: 1000, EndDate: 2000})
	require.NoError(t, err)

	// User 2 edits the entry; creator stays user 1.
	_, err = times.Save(ctx, 2, domain.SaveTimeEntry{
		ID: &id, Project: saved.ID, User: 1, Description: "edited", StartDate: 1000, EndDate: 3000, Ignore: true})
	require.NoError(t, err)

	entries, err := times.ForProject(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].Creator)
	assert.Equal(t, "edited", entries[0].Description)
	assert.True(t, entries[0].Ignore)
	assert.Equal(t, int64(3000), entries[0].EndDate)
}

func TestTimeEntryStartDateUnique(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	times := NewTimeEntryRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	_, err = times.Save(ctx, 1, domain.SaveTimeEntry{Project: saved.ID, User: 1, StartDate: 1000, EndDate: 2000})
	require.NoError(t, err)
	_, err = times.Save(ctx, 1, domain.SaveTimeEntry{Project: saved.ID, User: 1, StartDate: 1000, EndDate: 9000})
	assert.Error(t, err, "same user, same start date must be rejected")
}

func TestPayEntryTypeRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	pays := NewPayEntryRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	_, err = pays.Save(ctx, 1, domain.SavePayEntry{
		Project: saved.ID, User: 1, Duration: 3600000, PayType: domain.PayTypeInvoiced, PaymentDate: 1000})
	require.NoError(t, err)
	_, err = pays.Save(ctx, 1, domain.SavePayEntry{
		Project: saved.ID, User: 1, Duration: 3600000, PayType: domain.PayTypePaid, PaymentDate: 2000})
	require.NoError(t, err)

	entries, err := pays.ForProject(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byDate := map[int64]domain.PayType{}
	for _, e := range entries {
		byDate[e.PaymentDate] = e.PayType
	}
	assert.Equal(t, domain.PayTypeInvoiced, byDate[1000])
	assert.Equal(t, domain.PayTypePaid, byDate[2000])
}

func TestAllocationRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	allocs := NewAllocationRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	id, err := allocs.Save(ctx, 1, domain.SaveAllocation{
		Project: saved.ID, Duration: 7200000, AllocationDate: 1000, Description: "Q1 budget"})
	require.NoError(t, err)

	got, err := allocs.ForProject(ctx, saved.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, int64(1), got[0].Creator)

	require.NoError(t, allocs.Delete(ctx, id))
	got, err = allocs.ForProject(ctx, saved.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveInvoiceMissingProject(t *testing.T) {
	db := openTestDB(t)
	projects := NewProjectRepository(db)

	err := projects.SaveInvoice(context.Background(), domain.SaveProjectInvoice{ID: 999, InvoiceSeq: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveInvoiceAdvancesSeq(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, 1, "ada")

	projects := NewProjectRepository(db)
	saved, err := projects.Save(ctx, 1, domain.SaveProject{Name: "rocket"})
	require.NoError(t, err)

	require.NoError(t, projects.SaveInvoice(ctx, domain.SaveProjectInvoice{
		ID: saved.ID, InvoiceSeq: 7, ExtraFields: domain.ExtraFields{"po": "4711"}}))

	p, err := projects.Read(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.InvoiceSeq)
	assert.Equal(t, "4711", p.ExtraFields["po"])
}
