package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/timeledger/internal/domain"
)

// PayEntryRepository handles pay entry data access.
type PayEntryRepository struct {
	db *sqlx.DB
}

// NewPayEntryRepository creates a new PayEntryRepository.
func NewPayEntryRepository(db *sqlx.DB) *PayEntryRepository {
	return &PayEntryRepository{db: db}
}

// The type column stores 0 for Invoiced and 1 for Paid.
func payTypeCode(pt domain.PayType) int64 {
	if pt == domain.PayTypeInvoiced {
		return 0
	}
	return 1
}

func payTypeFromCode(code int64) domain.PayType {
	if code == 0 {
		return domain.PayTypeInvoiced
	}
	return domain.PayTypePaid
}

// Save inserts or updates a pay entry. The creator is recorded on
// insert only. The (user, paymentdate) unique index mirrors the time
// entry uniqueness discipline.
func (r *PayEntryRepository) Save(ctx context.Context, userID int64, spe domain.SavePayEntry) (int64, error) {
	now := nowMillis()

	if spe.ID != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE payentry SET project = ?, user = ?, description = ?, duration = ?,
			   type = ?, paymentdate = ?, changeddate = ?
			 WHERE id = ?`,
			spe.Project, spe.User, spe.Description, spe.Duration,
			payTypeCode(spe.PayType), spe.PaymentDate, now, *spe.ID)
		if err != nil {
			return 0, fmt.Errorf("update pay entry %d: %w", *spe.ID, err)
		}
		return *spe.ID, nil
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payentry (project, user, description, duration, type, paymentdate,
		   createdate, changeddate, creator)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		spe.Project, spe.User, spe.Description, spe.Duration, payTypeCode(spe.PayType),
		spe.PaymentDate, now, now, userID)
	if err != nil {
		return 0, fmt.Errorf("insert pay entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert pay entry id: %w", err)
	}
	return id, nil
}

// Delete removes a pay entry by id. Callers must already have verified
// project membership.
func (r *PayEntryRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payentry WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete pay entry %d: %w", id, err)
	}
	return nil
}

// ForProject returns all pay entries on a project.
func (r *PayEntryRepository) ForProject(ctx context.Context, projectID int64) ([]domain.PayEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project, user, duration, type, paymentdate, description, createdate, changeddate, creator
		 FROM payentry WHERE project = ?`, projectID)
	if err != nil {
		return nil, fmt.Errorf("pay entries of project %d: %w", projectID, err)
	}
	defer rows.Close()

	var entries []domain.PayEntry
	for rows.Next() {
		var e domain.PayEntry
		var code int64
		if err := rows.Scan(&e.ID, &e.Project, &e.User, &e.Duration, &code, &e.PaymentDate,
			&e.Description, &e.CreateDate, &e.ChangedDate, &e.Creator); err != nil {
			return nil, fmt.Errorf("scan pay entry: %w", err)
		}
		e.PayType = payTypeFromCode(code)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
