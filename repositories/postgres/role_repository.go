package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/repositories"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

var (
	roleTable         = models.RoleRecord{}.TableName()
	selectRoleColumns = `SELECT supabase_id, role, sub_role, created_at, updated_at FROM ` + roleTable
)

// RoleRepository implements repositories.RoleRepository on the role table
type RoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB, logger *zap.Logger) repositories.RoleRepository {
	return &RoleRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRoleRecord reads one row. role, sub_role and the timestamps are nullable
// in older cargos tables; NULL reads as unset.
func scanRoleRecord(row rowScanner) (*models.RoleRecord, error) {
	var (
		id                   string
		role, subRole        sql.NullString
		createdAt, updatedAt sql.NullTime
	)
	if err := row.Scan(&id, &role, &subRole, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	record := models.RoleRecordFromStored(id, role.String, subRole.String)
	record.CreatedAt = createdAt.Time
	record.UpdatedAt = updatedAt.Time
	return record, nil
}

// GetByIdentityID retrieves the role record of one identity
func (r *RoleRepository) GetByIdentityID(ctx context.Context, identityID string) (*models.RoleRecord, error) {
	row := r.db.QueryRowContext(ctx, selectRoleColumns+` WHERE supabase_id = $1`, identityID)

	record, err := scanRoleRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get role record: %w", err)
	}
	return record, nil
}

// ListByIdentityIDs retrieves the records of all listed identities in one query
func (r *RoleRepository) ListByIdentityIDs(ctx context.Context, identityIDs []string) ([]*models.RoleRecord, error) {
	if len(identityIDs) == 0 {
		return []*models.RoleRecord{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		selectRoleColumns+` WHERE supabase_id = ANY($1::uuid[])`,
		pq.Array(identityIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list role records: %w", err)
	}
	defer rows.Close()

	records := make([]*models.RoleRecord, 0, len(identityIDs))
	for rows.Next() {
		record, err := scanRoleRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role records: %w", err)
	}

	return records, nil
}

// Insert stores a new record
func (r *RoleRepository) Insert(ctx context.Context, record *models.RoleRecord) error {
	query := `
		INSERT INTO ` + roleTable + ` (supabase_id, role, sub_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.IdentityID,
		string(record.Role),
		string(record.SubRole),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to insert role record: %w", err)
	}

	r.logger.Debug("role record created",
		zap.String("identity_id", record.IdentityID),
		zap.String("sub_role", string(record.SubRole)))
	return nil
}

// Upsert creates the record or overwrites role and sub-role of the existing one
func (r *RoleRepository) Upsert(ctx context.Context, record *models.RoleRecord) error {
	query := `
		INSERT INTO ` + roleTable + ` (supabase_id, role, sub_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (supabase_id) DO UPDATE
		SET role = EXCLUDED.role, sub_role = EXCLUDED.sub_role, updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		record.IdentityID,
		string(record.Role),
		string(record.SubRole),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert role record: %w", err)
	}

	r.logger.Debug("role record upserted",
		zap.String("identity_id", record.IdentityID),
		zap.String("sub_role", string(record.SubRole)))
	return nil
}

// Delete removes the record of an identity
func (r *RoleRepository) Delete(ctx context.Context, identityID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM `+roleTable+` WHERE supabase_id = $1`, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete role record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("role record deleted", zap.String("identity_id", identityID))
	return nil
}

// Ping checks database connectivity
func (r *RoleRepository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
