package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edudesk/school-records-api/internal/models"
	appErrors "github.com/edudesk/school-records-api/pkg/errors"
)

// RecordRepository manages persistence for the polymorphic records collection.
// Every variant lives in the same table, discriminated by the kind column.
type RecordRepository struct {
	db *sqlx.DB
}

// NewRecordRepository constructs a RecordRepository.
func NewRecordRepository(db *sqlx.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Create inserts a new record row. The id and timestamps are assigned here
// when unset; created_at and updated_at start equal.
func (r *RecordRepository) Create(ctx context.Context, record *models.Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt

	const query = `INSERT INTO records (id, owner_id, kind, payload, created_at, updated_at)
		VALUES (:id, :owner_id, :kind, :payload, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Wrap(err, appErrors.ErrDuplicateKey.Code, appErrors.ErrDuplicateKey.Status, "record key already exists")
		}
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// FindByID fetches a record by ID.
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*models.Record, error) {
	const query = `SELECT id, owner_id, kind, payload, created_at, updated_at FROM records WHERE id = $1`
	var record models.Record
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns records matching the filter in insertion order. A filter that
// matches nothing yields an empty slice, not an error.
func (r *RecordRepository) List(ctx context.Context, filter models.RecordFilter) ([]models.Record, error) {
	base := "SELECT id, owner_id, kind, payload, created_at, updated_at FROM records WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("payload->>'status' = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := base
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	records := []models.Record{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return records, nil
}

// UpdatePayload rewrites a record's payload in place and bumps updated_at.
func (r *RecordRepository) UpdatePayload(ctx context.Context, record *models.Record) error {
	record.UpdatedAt = time.Now().UTC()

	const query = `UPDATE records SET payload = :payload, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, record)
	if err != nil {
		return fmt.Errorf("update record payload: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExistsClassCode checks whether any class record already carries the code.
func (r *RecordRepository) ExistsClassCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT 1 FROM records WHERE kind = 'class' AND payload->>'class_code' = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check class code: %w", err)
	}
	return true, nil
}
