package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"certreg/internal/evidence/models"
	id "certreg/pkg/domain"
	"certreg/pkg/platform/sentinel"
	txcontext "certreg/pkg/platform/tx"
)

// Postgres persists evidence items in a single table with a kind
// discriminator and nullable kind-specific columns. Stores joined to an
// enclosing transaction via pkg/platform/tx see uncommitted writes from the
// same request.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const evidenceColumns = `
	id, application_id, kind,
	is_verified, verified_by, verification_date, verification_notes,
	institution, degree, field_of_study, start_year, end_year,
	employer, position, start_date, end_date, description,
	provider, course_name, hours, completed_on, certificate_number,
	file_name, content_type, size_bytes, checksum,
	created_at`

func (s *Postgres) Create(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO evidence_items (` + evidenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22,
		        $23, $24, $25, $26, $27)
	`
	args := flattenItem(item)
	if _, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert evidence item: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, itemID id.EvidenceID) (*models.Item, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence_items WHERE id = $1`
	row := txcontext.Resolve(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(itemID))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find evidence item: %w", err)
	}
	return item, nil
}

func (s *Postgres) Update(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE evidence_items
		SET is_verified = $2, verified_by = $3, verification_date = $4, verification_notes = $5
		WHERE id = $1
	`
	var verifiedBy any
	if item.VerifiedBy != nil {
		verifiedBy = uuid.UUID(*item.VerifiedBy)
	}
	res, err := txcontext.Resolve(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(item.ID),
		item.IsVerified,
		verifiedBy,
		item.VerificationDate,
		nullString(item.VerificationNotes),
	)
	if err != nil {
		return fmt.Errorf("update evidence item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update evidence item: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByApplication(ctx context.Context, applicationID id.ApplicationID, kind *models.Kind) ([]*models.Item, error) {
	query := `SELECT ` + evidenceColumns + ` FROM evidence_items WHERE application_id = $1`
	args := []any{uuid.UUID(applicationID)}
	if kind != nil {
		query += ` AND kind = $2`
		args = append(args, string(*kind))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := txcontext.Resolve(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list evidence items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence items: %w", err)
	}
	return items, nil
}

func (s *Postgres) CountByApplication(ctx context.Context, applicationID id.ApplicationID) ([]models.KindCount, error) {
	query := `
		SELECT kind, COUNT(*) FILTER (WHERE is_verified), COUNT(*)
		FROM evidence_items
		WHERE application_id = $1
		GROUP BY kind
		ORDER BY kind
	`
	rows, err := txcontext.Resolve(ctx, s.db).QueryContext(ctx, query, uuid.UUID(applicationID))
	if err != nil {
		return nil, fmt.Errorf("count evidence items: %w", err)
	}
	defer rows.Close()

	var counts []models.KindCount
	for rows.Next() {
		var c models.KindCount
		if err := rows.Scan(&c.Kind, &c.Verified, &c.Total); err != nil {
			return nil, fmt.Errorf("scan evidence count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evidence counts: %w", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item       models.Item
		itemID     uuid.UUID
		appID      uuid.UUID
		verifiedBy *uuid.UUID
		notes      sql.NullString

		institution, degree, fieldOfStudy sql.NullString
		startYear, endYear                sql.NullInt64

		employer, position, description sql.NullString
		startDate, endDate              sql.NullTime

		provider, courseName, certificateNumber sql.NullString
		hours                                   sql.NullInt64
		completedOn                             sql.NullTime

		fileName, contentType, checksum sql.NullString
		sizeBytes                       sql.NullInt64
	)
	err := row.Scan(
		&itemID, &appID, &item.Kind,
		&item.IsVerified, &verifiedBy, &item.VerificationDate, &notes,
		&institution, &degree, &fieldOfStudy, &startYear, &endYear,
		&employer, &position, &startDate, &endDate, &description,
		&provider, &courseName, &hours, &completedOn, &certificateNumber,
		&fileName, &contentType, &sizeBytes, &checksum,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.ID = id.EvidenceID(itemID)
	item.ApplicationID = id.ApplicationID(appID)
	if verifiedBy != nil {
		actor := id.ActorID(*verifiedBy)
		item.VerifiedBy = &actor
	}
	item.VerificationNotes = notes.String

	switch item.Kind {
	case models.KindEducation:
		item.Education = &models.EducationDetails{
			Institution:  institution.String,
			Degree:       degree.String,
			FieldOfStudy: fieldOfStudy.String,
			StartYear:    int(startYear.Int64),
			EndYear:      int(endYear.Int64),
		}
	case models.KindExperience:
		exp := &models.ExperienceDetails{
			Employer:    employer.String,
			Position:    position.String,
			Description: description.String,
		}
		if startDate.Valid {
			exp.StartDate = startDate.Time
		}
		if endDate.Valid {
			end := endDate.Time
			exp.EndDate = &end
		}
		item.Experience = exp
	case models.KindTraining:
		tr := &models.TrainingDetails{
			Provider:          provider.String,
			CourseName:        courseName.String,
			Hours:             int(hours.Int64),
			CertificateNumber: certificateNumber.String,
		}
		if completedOn.Valid {
			tr.CompletedOn = completedOn.Time
		}
		item.Training = tr
	case models.KindDocument:
		item.Document = &models.DocumentDetails{
			FileName:    fileName.String,
			ContentType: contentType.String,
			SizeBytes:   sizeBytes.Int64,
			Checksum:    checksum.String,
		}
	}
	return &item, nil
}

func flattenItem(item *models.Item) []any {
	var (
		verifiedBy any
		verDate    *time.Time

		institution, degree, fieldOfStudy any
		startYear, endYear                any

		employer, position, description any
		startDate, endDate              any

		provider, courseName, certificateNumber any
		hours, completedOn                      any

		fileName, contentType, checksum, sizeBytes any
	)
	if item.VerifiedBy != nil {
		verifiedBy = uuid.UUID(*item.VerifiedBy)
	}
	verDate = item.VerificationDate

	if e := item.Education; e != nil {
		institution, degree = e.Institution, e.Degree
		fieldOfStudy = nullString(e.FieldOfStudy)
		startYear, endYear = nullInt(e.StartYear), nullInt(e.EndYear)
	}
	if e := item.Experience; e != nil {
		employer, position = e.Employer, e.Position
		description = nullString(e.Description)
		startDate = e.StartDate
		if e.EndDate != nil {
			endDate = *e.EndDate
		}
	}
	if t := item.Training; t != nil {
		provider, courseName = t.Provider, t.CourseName
		hours = nullInt(t.Hours)
		completedOn = t.CompletedOn
		certificateNumber = nullString(t.CertificateNumber)
	}
	if d := item.Document; d != nil {
		fileName = d.FileName
		contentType = nullString(d.ContentType)
		if d.SizeBytes > 0 {
			sizeBytes = d.SizeBytes
		}
		checksum = nullString(d.Checksum)
	}

	return []any{
		uuid.UUID(item.ID), uuid.UUID(item.ApplicationID), string(item.Kind),
		item.IsVerified, verifiedBy, verDate, nullString(item.VerificationNotes),
		institution, degree, fieldOfStudy, startYear, endYear,
		employer, position, startDate, endDate, description,
		provider, courseName, hours, completedOn, certificateNumber,
		fileName, contentType, sizeBytes, checksum,
		item.CreatedAt,
	}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullInt(value int) sql.NullInt64 {
	if value == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(value), Valid: true}
}
