package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sumire/timeledger/internal/domain"
)

// ProjectRepository handles project data access.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// List returns every project the user belongs to, tagged with the
// user's role. Projects with time entries by the user come first,
// ordered by most recent start date; projects the user has never
// logged time on are appended after, in membership order.
func (r *ProjectRepository) List(ctx context.Context, userID int64) ([]domain.ListProject, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT project.id, project.name, projectmember.role
		 FROM project, projectmember,
		   (SELECT project, MAX(startdate) AS sd FROM timeentry WHERE user = ? GROUP BY project) te
		 WHERE project.id = projectmember.project
		   AND te.project = project.id
		   AND projectmember.user = ?
		 ORDER BY te.sd DESC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects by activity: %w", err)
	}
	active, err := scanListProjects(rows)
	if err != nil {
		return nil, err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT project.id, project.name, projectmember.role
		 FROM project, projectmember
		 WHERE project.id = projectmember.project
		   AND projectmember.user = ?
		   AND NOT EXISTS (SELECT * FROM timeentry WHERE project = project.id AND user = ?)`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects without entries: %w", err)
	}
	idle, err := scanListProjects(rows)
	if err != nil {
		return nil, err
	}

	return append(active, idle...), nil
}

func scanListProjects(rows *sql.Rows) ([]domain.ListProject, error) {
	defer rows.Close()

	var list []domain.ListProject
	for rows.Next() {
		var p domain.ListProject
		var role string
		if err := rows.Scan(&p.ID, &p.Name, &role); err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}
		// Display lookup: an undecodable role degrades to Observer
		// rather than dropping the project from the list. Role checks
		// that gate writes go through MemberRepository.Role instead,
		// which fails closed.
		r, err := domain.ParseRole(role)
		if err != nil {
			r = domain.RoleObserver
		}
		p.Role = r
		list = append(list, p)
	}
	return list, rows.Err()
}

// Save inserts or updates a project. Inserting also creates the
// creator's Admin membership in the same transaction. Only the id and
// changed timestamp are returned; callers re-read if they need more.
func (r *ProjectRepository) Save(ctx context.Context, userID int64, sp domain.SaveProject) (domain.SavedProject, error) {
	now := nowMillis()
	extra, err := encodeExtraFields(sp.ExtraFields)
	if err != nil {
		return domain.SavedProject{}, err
	}

	if sp.ID != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE project SET name = ?, description = ?, due_days = ?, extra_fields = ?,
			   invoice_id_template = ?, invoice_seq = ?, payer = ?, payee = ?, generic_task = ?,
			   public = ?, rate = ?, currency = ?, changeddate = ?
			 WHERE id = ?`,
			sp.Name, sp.Description, sp.DueDays, extra,
			sp.InvoiceIDTemplate, sp.InvoiceSeq, sp.Payer, sp.Payee, sp.GenericTask,
			sp.Public, sp.Rate, sp.Currency, now, *sp.ID)
		if err != nil {
			return domain.SavedProject{}, fmt.Errorf("update project %d: %w", *sp.ID, err)
		}
		return domain.SavedProject{ID: *sp.ID, ChangedDate: now}, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.SavedProject{}, fmt.Errorf("begin insert project: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO project (name, description, due_days, extra_fields, invoice_id_template,
		   invoice_seq, payer, payee, generic_task, public, rate, currency, createdate, changeddate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.Name, sp.Description, sp.DueDays, extra, sp.InvoiceIDTemplate,
		sp.InvoiceSeq, sp.Payer, sp.Payee, sp.GenericTask, sp.Public, sp.Rate, sp.Currency, now, now)
	if err != nil {
		return domain.SavedProject{}, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.SavedProject{}, fmt.Errorf("insert project id: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projectmember (project, user, role) VALUES (?, ?, ?)`,
		id, userID, string(domain.RoleAdmin))
	if err != nil {
		return domain.SavedProject{}, fmt.Errorf("self-grant admin on project %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.SavedProject{}, fmt.Errorf("commit insert project: %w", err)
	}
	return domain.SavedProject{ID: id, ChangedDate: now}, nil
}

// Read retrieves a project by id.
func (r *ProjectRepository) Read(ctx context.Context, id int64) (*domain.Project, error) {
	var p domain.Project
	var extra sql.NullString
	err := r.db.QueryRowxContext(ctx,
		`SELECT id, name, description, due_days, extra_fields, invoice_id_template, invoice_seq,
		   payer, payee, generic_task, public, rate, currency, createdate, changeddate
		 FROM project WHERE id = ?`, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.DueDays, &extra, &p.InvoiceIDTemplate, &p.InvoiceSeq,
		&p.Payer, &p.Payee, &p.GenericTask, &p.Public, &p.Rate, &p.Currency, &p.CreateDate, &p.ChangedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read project %d: %w", id, err)
	}

	p.ExtraFields, err = decodeExtraFields(extra)
	if err != nil {
		return nil, fmt.Errorf("read project %d: %w", id, err)
	}
	return &p, nil
}

// SaveInvoice advances the invoice sequence and extra fields. This is
// the only write path that moves invoice_seq.
func (r *ProjectRepository) SaveInvoice(ctx context.Context, spi domain.SaveProjectInvoice) error {
	extra, err := encodeExtraFields(spi.ExtraFields)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE project SET invoice_seq = ?, extra_fields = ?, changeddate = ? WHERE id = ?`,
		spi.InvoiceSeq, extra, nowMillis(), spi.ID)
	if err != nil {
		return fmt.Errorf("save project invoice %d: %w", spi.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func encodeExtraFields(ef domain.ExtraFields) (string, error) {
	if ef == nil {
		ef = domain.ExtraFields{}
	}
	b, err := json.Marshal(ef)
	if err != nil {
		return "", fmt.Errorf("encode extra fields: %w", err)
	}
	return string(b), nil
}

func decodeExtraFields(s sql.NullString) (domain.ExtraFields, error) {
	if !s.Valid || s.String == "" {
		return domain.ExtraFields{}, nil
	}
	var ef domain.ExtraFields
	if err := json.Unmarshal([]byte(s.String), &ef); err != nil {
		return nil, fmt.Errorf("decode extra fields: %w", err)
	}
	return ef, nil
}
