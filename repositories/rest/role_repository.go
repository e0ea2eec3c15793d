// Package rest implements the role store over the provider's PostgREST interface.
// It is used when no direct database connection is configured.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mygain/portal-gateway/config"
	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/repositories"
	"go.uber.org/zap"
)

const (
	selectColumns = "supabase_id,role,sub_role"
	codeDuplicate = "23505"
)

var tablePath = "/rest/v1/" + models.RoleRecord{}.TableName()

// RoleRepository implements repositories.RoleRepository over the PostgREST role table
type RoleRepository struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRoleRepository creates a PostgREST role repository authenticated with the service key
func NewRoleRepository(cfg config.IdentityConfig, httpClient *http.Client, logger *zap.Logger) repositories.RoleRepository {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &RoleRepository{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "role_store")),
	}
}

type roleRow struct {
	SupabaseID string `json:"supabase_id"`
	Role       string `json:"role"`
	SubRole    string `json:"sub_role"`
}

func (r roleRow) toRecord() *models.RoleRecord {
	return models.RoleRecordFromStored(r.SupabaseID, r.Role, r.SubRole)
}

func rowFromRecord(record *models.RoleRecord) roleRow {
	return roleRow{
		SupabaseID: record.IdentityID,
		Role:       string(record.Role),
		SubRole:    string(record.SubRole),
	}
}

// postgrestError is the error body PostgREST returns
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// StoreError is a non-2xx answer from the role store
type StoreError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("role store returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// GetByIdentityID retrieves the role record of one identity
func (r *RoleRepository) GetByIdentityID(ctx context.Context, identityID string) (*models.RoleRecord, error) {
	query := url.Values{
		"select":      {selectColumns},
		"supabase_id": {"eq." + identityID},
	}

	var rows []roleRow
	if err := r.do(ctx, http.MethodGet, query, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to get role record: %w", err)
	}
	if len(rows) == 0 {
		return nil, repositories.ErrNotFound
	}
	return rows[0].toRecord(), nil
}

// ListByIdentityIDs retrieves the records of all listed identities in one request
func (r *RoleRepository) ListByIdentityIDs(ctx context.Context, identityIDs []string) ([]*models.RoleRecord, error) {
	if len(identityIDs) == 0 {
		return []*models.RoleRecord{}, nil
	}

	query := url.Values{
		"select":      {selectColumns},
		"supabase_id": {"in.(" + strings.Join(identityIDs, ",") + ")"},
	}

	var rows []roleRow
	if err := r.do(ctx, http.MethodGet, query, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to list role records: %w", err)
	}

	records := make([]*models.RoleRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

// Insert stores a new record
func (r *RoleRepository) Insert(ctx context.Context, record *models.RoleRecord) error {
	headers := http.Header{"Prefer": {"return=minimal"}}

	err := r.do(ctx, http.MethodPost, nil, headers, rowFromRecord(record), nil)
	if err != nil {
		var storeErr *StoreError
		if errors.As(err, &storeErr) && storeErr.Code == codeDuplicate {
			return repositories.ErrDuplicate
		}
		return fmt.Errorf("failed to insert role record: %w", err)
	}

	r.logger.Debug("role record created",
		zap.String("identity_id", record.IdentityID),
		zap.String("sub_role", string(record.SubRole)))
	return nil
}

// Upsert creates the record or overwrites the existing one
func (r *RoleRepository) Upsert(ctx context.Context, record *models.RoleRecord) error {
	query := url.Values{"on_conflict": {"supabase_id"}}
	headers := http.Header{"Prefer": {"resolution=merge-duplicates,return=minimal"}}

	if err := r.do(ctx, http.MethodPost, query, headers, rowFromRecord(record), nil); err != nil {
		return fmt.Errorf("failed to upsert role record: %w", err)
	}

	r.logger.Debug("role record upserted",
		zap.String("identity_id", record.IdentityID),
		zap.String("sub_role", string(record.SubRole)))
	return nil
}

// Delete removes the record of an identity
func (r *RoleRepository) Delete(ctx context.Context, identityID string) error {
	query := url.Values{
		"select":      {"supabase_id"},
		"supabase_id": {"eq." + identityID},
	}
	headers := http.Header{"Prefer": {"return=representation"}}

	var deleted []roleRow
	if err := r.do(ctx, http.MethodDelete, query, headers, nil, &deleted); err != nil {
		return fmt.Errorf("failed to delete role record: %w", err)
	}
	if len(deleted) == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("role record deleted", zap.String("identity_id", identityID))
	return nil
}

// Ping issues a one-row read against the table
func (r *RoleRepository) Ping(ctx context.Context) error {
	query := url.Values{"select": {"supabase_id"}, "limit": {"1"}}

	var rows []roleRow
	if err := r.do(ctx, http.MethodGet, query, nil, nil, &rows); err != nil {
		return fmt.Errorf("role store health check failed: %w", err)
	}
	return nil
}

func (r *RoleRepository) do(ctx context.Context, method string, query url.Values, headers http.Header, body, target interface{}) error {
	endpoint := r.baseURL + tablePath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", r.serviceKey)
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("role store request failed: %w", err)
	}
	defer resp.Body.Close()

	r.logger.Debug("role store call",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var pgErr postgrestError
		_ = json.Unmarshal(raw, &pgErr)
		message := pgErr.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &StoreError{StatusCode: resp.StatusCode, Code: pgErr.Code, Message: message}
	}

	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode role store response: %w", err)
	}
	return nil
}
