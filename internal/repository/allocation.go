package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/timeledger/internal/domain"
)

// AllocationRepository handles budget allocation data access.
type AllocationRepository struct {
	db *sqlx.DB
}

// NewAllocationRepository creates a new AllocationRepository.
func NewAllocationRepository(db *sqlx.DB) *AllocationRepository {
	return &AllocationRepository{db: db}
}

// Save inserts or updates an allocation. The creator is recorded on
// insert only; (creator, allocationdate) is unique.
func (r *AllocationRepository) Save(ctx context.Context, userID int64, sa domain.SaveAllocation) (int64, error) {
	now := nowMillis()

	if sa.ID != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE allocation SET project = ?, description = ?, duration = ?,
			   allocationdate = ?, changeddate = ?
			 WHERE id = ?`,
			sa.Project, sa.Description, sa.Duration, sa.AllocationDate, now, *sa.ID)
		if err != nil {
			return 0, fmt.Errorf("update allocation %d: %w", *sa.ID, err)
		}
		return *sa.ID, nil
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO allocation (project, description, duration, allocationdate,
		   createdate, changeddate, creator)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sa.Project, sa.Description, sa.Duration, sa.AllocationDate, now, now, userID)
	if err != nil {
		return 0, fmt.Errorf("insert allocation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert allocation id: %w", err)
	}
	return id, nil
}

// Delete removes an allocation by id. Callers must already have
// verified project membership.
func (r *AllocationRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM allocation WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete allocation %d: %w", id, err)
	}
	return nil
}

// ForProject returns all allocations on a project.
func (r *AllocationRepository) ForProject(ctx context.Context, projectID int64) ([]domain.Allocation, error) {
	var allocs []domain.Allocation
	err := r.db.SelectContext(ctx, &allocs,
		`SELECT id, project, duration, allocationdate, description, createdate, changeddate, creator
		 FROM allocation WHERE project = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("allocations of project %d: %w", projectID, err)
	}
	return allocs, nil
}
