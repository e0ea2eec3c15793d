package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mygain/portal-gateway/identity"
	"github.com/mygain/portal-gateway/models"
	"github.com/mygain/portal-gateway/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockTokenExchanger is a mock implementation of TokenExchanger
type MockTokenExchanger struct {
	mock.Mock
}

func (m *MockTokenExchanger) GetUser(ctx context.Context, token string) (*models.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Identity), args.Error(1)
}

// MockTokenVerifier is a mock implementation of TokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// MockRoleRepository is a mock implementation of repositories.RoleRepository
type MockRoleRepository struct {
	mock.Mock
}

func (m *MockRoleRepository) GetByIdentityID(ctx context.Context, identityID string) (*models.RoleRecord, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoleRecord), args.Error(1)
}

func (m *MockRoleRepository) ListByIdentityIDs(ctx context.Context, ids []string) ([]*models.RoleRecord, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RoleRecord), args.Error(1)
}

func (m *MockRoleRepository) Insert(ctx context.Context, record *models.RoleRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockRoleRepository) Upsert(ctx context.Context, record *models.RoleRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockRoleRepository) Delete(ctx context.Context, identityID string) error {
	return m.Called(ctx, identityID).Error(0)
}

func (m *MockRoleRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockSessionResolver is a mock implementation of SessionResolver
type MockSessionResolver struct {
	mock.Mock
}

func (m *MockSessionResolver) ResolveSession(ctx context.Context, ident *models.Identity) *models.Session {
	args := m.Called(ctx, ident)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.Session)
}

var testUser = &models.Identity{ID: "user-123", Email: "admin@example.com"}

func okHandler(t *testing.T, check func(r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token attaches identity", func(t *testing.T) {
		exchanger := new(MockTokenExchanger)
		exchanger.On("GetUser", mock.Anything, "valid-token").Return(testUser, nil)
		m := NewAuthMiddleware(exchanger, nil, nil, nil, logger)

		w := serve(m.RequireAuth(okHandler(t, func(r *http.Request) {
			assert.Equal(t, testUser, GetIdentityFromContext(r.Context()))
		})), "Bearer valid-token")

		assert.Equal(t, http.StatusOK, w.Code)
		exchanger.AssertExpectations(t)
	})

	t.Run("scheme is case-insensitive", func(t *testing.T) {
		exchanger := new(MockTokenExchanger)
		exchanger.On("GetUser", mock.Anything, "valid-token").Return(testUser, nil)
		m := NewAuthMiddleware(exchanger, nil, nil, nil, logger)

		w := serve(m.RequireAuth(okHandler(t, nil)), "bearer valid-token")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer    "} {
		t.Run("missing token "+header, func(t *testing.T) {
			exchanger := new(MockTokenExchanger)
			m := NewAuthMiddleware(exchanger, nil, nil, nil, logger)

			w := serve(m.RequireAuth(okHandler(t, nil)), header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Missing bearer token", decodeError(t, w)["message"])
			exchanger.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
		})
	}

	t.Run("provider rejects token", func(t *testing.T) {
		exchanger := new(MockTokenExchanger)
		exchanger.On("GetUser", mock.Anything, "stale").Return(nil, identity.ErrInvalidToken)
		m := NewAuthMiddleware(exchanger, nil, nil, nil, logger)

		w := serve(m.RequireAuth(okHandler(t, nil)), "Bearer stale")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "unauthorized", body["error"])
		assert.Equal(t, "Invalid token", body["message"])
	})

	t.Run("provider outage still yields 401", func(t *testing.T) {
		exchanger := new(MockTokenExchanger)
		exchanger.On("GetUser", mock.Anything, "t").Return(nil, errors.New("dial tcp: refused"))
		m := NewAuthMiddleware(exchanger, nil, nil, nil, logger)

		w := serve(m.RequireAuth(okHandler(t, nil)), "Bearer t")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("local verification failure skips the provider", func(t *testing.T) {
		exchanger := new(MockTokenExchanger)
		verifier := new(MockTokenVerifier)
		verifier.On("Verify", mock.Anything, "forged").Return("", identity.ErrInvalidToken)
		m := NewAuthMiddleware(exchanger, verifier, nil, nil, logger)

		w := serve(m.RequireAuth(okHandler(t, nil)), "Bearer forged")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		exchanger.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})

	t.Run("subject mismatch is rejected", func(t *testing.T) {
		exchanger := new(MockTokenExchanger)
		exchanger.On("GetUser", mock.Anything, "t").Return(testUser, nil)
		verifier := new(MockTokenVerifier)
		verifier.On("Verify", mock.Anything, "t").Return("someone-else", nil)
		m := NewAuthMiddleware(exchanger, verifier, nil, nil, logger)

		w := serve(m.RequireAuth(okHandler(t, nil)), "Bearer t")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("verified token passes", func(t *testing.T) {
		exchanger := new(MockTokenExchanger)
		exchanger.On("GetUser", mock.Anything, "t").Return(testUser, nil)
		verifier := new(MockTokenVerifier)
		verifier.On("Verify", mock.Anything, "t").Return(testUser.ID, nil)
		m := NewAuthMiddleware(exchanger, verifier, nil, nil, logger)

		w := serve(m.RequireAuth(okHandler(t, nil)), "Bearer t")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func withIdentity(h http.Handler, ident *models.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

func TestRequireAdmin(t *testing.T) {
	logger := zap.NewNop()

	cases := []struct {
		name    string
		record  *models.RoleRecord
		err     error
		status  int
		message string
	}{
		{"employee admin", models.NewRoleRecord(testUser.ID, models.RoleEmployee, models.SubRoleAdmin), nil, http.StatusOK, ""},
		{"legacy admin", models.RoleRecordFromStored(testUser.ID, "colaborador", "admin"), nil, http.StatusOK, ""},
		{"employee non-admin", models.NewRoleRecord(testUser.ID, models.RoleEmployee, models.SubRoleSales), nil, http.StatusForbidden, "Insufficient permissions"},
		{"customer with admin sub-role", models.NewRoleRecord(testUser.ID, models.RoleCustomer, models.SubRoleAdmin), nil, http.StatusForbidden, "Insufficient permissions"},
		{"no record", nil, repositories.ErrNotFound, http.StatusForbidden, "Insufficient permissions"},
		{"store failure fails closed", nil, errors.New("connection refused"), http.StatusInternalServerError, "Failed to load roles"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			roles := new(MockRoleRepository)
			roles.On("GetByIdentityID", mock.Anything, testUser.ID).Return(tc.record, tc.err)
			m := NewAuthMiddleware(nil, nil, roles, nil, logger)

			reached := false
			h := withIdentity(m.RequireAdmin(okHandler(t, func(r *http.Request) {
				reached = true
				assert.True(t, GetRoleRecordFromContext(r.Context()).IsEmployeeAdmin())
			})), testUser)

			w := serve(h, "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.status == http.StatusOK, reached)
			if tc.message != "" {
				assert.Equal(t, tc.message, decodeError(t, w)["message"])
			}
		})
	}

	t.Run("without identity", func(t *testing.T) {
		roles := new(MockRoleRepository)
		m := NewAuthMiddleware(nil, nil, roles, nil, logger)

		w := serve(m.RequireAdmin(okHandler(t, nil)), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		roles.AssertNotCalled(t, "GetByIdentityID", mock.Anything, mock.Anything)
	})
}

func TestResolveSession(t *testing.T) {
	session := &models.Session{ID: testUser.ID, Role: models.RoleEmployee, SubRole: models.SubRoleHR}
	resolver := new(MockSessionResolver)
	resolver.On("ResolveSession", mock.Anything, testUser).Return(session)
	m := NewAuthMiddleware(nil, nil, nil, resolver, zap.NewNop())

	h := withIdentity(m.ResolveSession(okHandler(t, func(r *http.Request) {
		assert.Equal(t, session, GetSessionFromContext(r.Context()))
	})), testUser)

	w := serve(h, "")
	assert.Equal(t, http.StatusOK, w.Code)
	resolver.AssertExpectations(t)
}

func TestGetRequestIDFromContext(t *testing.T) {
	assert.Empty(t, GetRequestIDFromContext(context.Background()))
	assert.Equal(t, "req-1", GetRequestIDFromContext(context.WithValue(context.Background(), chimiddleware.RequestIDKey, "req-1")))
}
