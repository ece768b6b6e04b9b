package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"certreg/internal/application/models"
	id "certreg/pkg/domain"
	"certreg/pkg/platform/sentinel"
	txcontext "certreg/pkg/platform/tx"
)

// Postgres persists applications. Execute relies on the enclosing
// transaction (carried in context) and SELECT ... FOR UPDATE, so
// per-application operations serialize on the row lock.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const applicationColumns = `
	id, applicant_id, specialization_id, certification_level_id, status,
	submission_date, approval_date, rejection_date, rejection_reason,
	reviewer_id, registrar_id, updated_at`

func (s *Postgres) Create(ctx context.Context, app *models.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query, flattenApplication(app)...); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, applicationID id.ApplicationID) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	app, err := scanApplication(txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(applicationID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return app, nil
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications`
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ApplicantID != nil {
		args = append(args, uuid.UUID(*filter.ApplicantID))
		where = append(where, fmt.Sprintf("applicant_id = $%d", len(args)))
	}
	for i, clause := range where {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY submission_date DESC, id"

	rows, err := txcontext.Resolve(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

// Execute locks the application row, runs validate against the fresh row,
// applies the mutation, and writes it back — all inside the context
// transaction. Callers must run it through the service's transaction
// runner; without one the row lock would not outlive this call.
func (s *Postgres) Execute(ctx context.Context, applicationID id.ApplicationID, validate func(*models.Application) error, apply func(*models.Application)) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1 FOR UPDATE`
	app, err := scanApplication(txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(applicationID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}

	if err := validate(app); err != nil {
		return nil, err
	}
	apply(app)

	update := `
		UPDATE applications
		SET status = $2, approval_date = $3, rejection_date = $4, rejection_reason = $5,
		    reviewer_id = $6, registrar_id = $7, updated_at = $8
		WHERE id = $1
	`
	_, err = txcontext.Resolve(ctx, s.db).ExecContext(ctx, update,
		uuid.UUID(app.ID),
		string(app.Status),
		app.ApprovalDate,
		app.RejectionDate,
		nullString(app.RejectionReason),
		nullActor(app.ReviewerID),
		nullActor(app.RegistrarID),
		app.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update application: %w", err)
	}
	return app, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app              models.Application
		appID            uuid.UUID
		applicantID      uuid.UUID
		specializationID *uuid.UUID
		levelID          *uuid.UUID
		rejectionReason  sql.NullString
		reviewerID       *uuid.UUID
		registrarID      *uuid.UUID
	)
	err := row.Scan(
		&appID, &applicantID, &specializationID, &levelID, &app.Status,
		&app.SubmissionDate, &app.ApprovalDate, &app.RejectionDate, &rejectionReason,
		&reviewerID, &registrarID, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.ID = id.ApplicationID(appID)
	app.ApplicantID = id.ApplicantID(applicantID)
	if specializationID != nil {
		spec := id.SpecializationID(*specializationID)
		app.SpecializationID = &spec
	}
	if levelID != nil {
		level := id.LevelID(*levelID)
		app.LevelID = &level
	}
	app.RejectionReason = rejectionReason.String
	if reviewerID != nil {
		reviewer := id.ActorID(*reviewerID)
		app.ReviewerID = &reviewer
	}
	if registrarID != nil {
		registrar := id.ActorID(*registrarID)
		app.RegistrarID = &registrar
	}
	return &app, nil
}

func flattenApplication(app *models.Application) []any {
	var specializationID, levelID any
	if app.SpecializationID != nil {
		specializationID = uuid.UUID(*app.SpecializationID)
	}
	if app.LevelID != nil {
		levelID = uuid.UUID(*app.LevelID)
	}
	return []any{
		uuid.UUID(app.ID),
		uuid.UUID(app.ApplicantID),
		specializationID,
		levelID,
		string(app.Status),
		app.SubmissionDate,
		app.ApprovalDate,
		app.RejectionDate,
		nullString(app.RejectionReason),
		nullActor(app.ReviewerID),
		nullActor(app.RegistrarID),
		app.UpdatedAt,
	}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullActor(actor *id.ActorID) any {
	if actor == nil {
		return nil
	}
	return uuid.UUID(*actor)
}
