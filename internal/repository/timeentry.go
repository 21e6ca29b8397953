package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/timeledger/internal/domain"
)

// TimeEntryRepository handles time entry data access.
type TimeEntryRepository struct {
	db *sqlx.DB
}

// NewTimeEntryRepository creates a new TimeEntryRepository.
func NewTimeEntryRepository(db *sqlx.DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

// Save inserts or updates a time entry. The creator is recorded on
// insert only and never changes afterward. The (user, startdate) unique
// index rejects duplicate start times per user.
func (r *TimeEntryRepository) Save(ctx context.Context, userID int64, ste domain.SaveTimeEntry) (int64, error) {
	now := nowMillis()

	if ste.ID != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE timeentry SET project = ?, user = ?, description = ?, startdate = ?,
			   enddate = ?, "ignore" = ?, changeddate = ?
			 WHERE id = ?`,
			ste.Project, ste.User, ste.Description, ste.StartDate,
			ste.EndDate, ste.Ignore, now, *ste.ID)
		if err != nil {
			return 0, fmt.Errorf("update time entry %d: %w", *ste.ID, err)
		}
		return *ste.ID, nil
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO timeentry (project, user, description, startdate, enddate, "ignore",
		   createdate, changeddate, creator)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ste.Project, ste.User, ste.Description, ste.StartDate, ste.EndDate, ste.Ignore,
		now, now, userID)
	if err != nil {
		return 0, fmt.Errorf("insert time entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert time entry id: %w", err)
	}
	return id, nil
}

// Delete removes a time entry by id. Callers must already have
// verified project membership; no check happens here.
func (r *TimeEntryRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timeentry WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete time entry %d: %w", id, err)
	}
	return nil
}

// ForProject returns all time entries on a project.
func (r *TimeEntryRepository) ForProject(ctx context.Context, projectID int64) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, project, user, description, startdate, enddate, "ignore", createdate, changeddate, creator
		 FROM timeentry WHERE project = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("time entries of project %d: %w", projectID, err)
	}
	return entries, nil
}

// ForUser returns all time entries made by a user, across projects.
func (r *TimeEntryRepository) ForUser(ctx context.Context, userID int64) ([]domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT id, project, user, description, startdate, enddate, "ignore", createdate, changeddate, creator
		 FROM timeentry WHERE user = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("time entries of user %d: %w", userID, err)
	}
	return entries, nil
}
