package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmorenog/user-management-api/internal/api/http/handlers"
	"github.com/dmorenog/user-management-api/internal/auth"
	"github.com/dmorenog/user-management-api/internal/config"
	"github.com/dmorenog/user-management-api/internal/domain"
	"github.com/dmorenog/user-management-api/internal/observability"
	"github.com/dmorenog/user-management-api/internal/repository"
	"github.com/dmorenog/user-management-api/internal/service"
)

type stubUserRepository struct {
	users  map[string]*domain.User
	nextID int
}

var _ repository.UserRepository = (*stubUserRepository)(nil)

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{users: map[string]*domain.User{}}
}

func (r *stubUserRepository) Create(_ context.Context, user *domain.User) error {
	if user.ID == "" {
		r.nextID++
		user.ID = "user-" + strconv.Itoa(r.nextID)
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *stubUserRepository) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *stubUserRepository) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *stubUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *stubUserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r *stubUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *stubUserRepository) ExistsByDNI(_ context.Context, dni string) (bool, error) {
	for _, user := range r.users {
		if user.DNI == dni {
			return true, nil
		}
	}
	return false, nil
}

func (r *stubUserRepository) List(_ context.Context, limit, offset int) ([]*domain.User, int64, error) {
	all := make([]*domain.User, 0, len(r.users))
	for _, user := range r.users {
		clone := *user
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *stubUserRepository) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	var count int64
	for _, user := range r.users {
		if user.Role == role {
			count++
		}
	}
	return count, nil
}

type testServer struct {
	app  *fiber.App
	auth *service.AuthService
	repo *stubUserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.AuthConfig{
		JWTSecret:              "0123456789abcdef0123456789abcdef",
		AccessTokenTTLMinutes:  60,
		RefreshTokenTTLMinutes: 7 * 24 * 60,
		BcryptCost:             4,
	}

	logger := zap.NewNop()
	repo := newStubUserRepository()
	authService := service.NewAuthService(cfg, repo, logger)
	userService := service.NewUserService(repo, cfg.BcryptCost, logger)

	gate := auth.NewGate(authService.TokenManager(), repo, []string{"/health/", "/auth/"}, logger)
	policy := auth.NewPolicy(auth.DefaultRules())

	app := fiber.New()
	RegisterMiddlewares(app, logger, observability.NewMetrics(), 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("user-management-api", "test", nil, nil),
		Auth:   handlers.NewAuthHandler(authService, logger),
		Users:  handlers.NewUsersHandler(userService, logger),
		Gate:   gate,
		Policy: policy,
	})

	return &testServer{app: app, auth: authService, repo: repo}
}

func (s *testServer) register(t *testing.T, username, role string) {
	t.Helper()
	_, err := s.auth.Register(context.Background(), service.RegisterInput{
		Username:    username,
		Email:       username + "@example.com",
		DNI:         "dni-" + username,
		FirstName:   "Test",
		LastName:    "User",
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Password:    "Secret123!",
		Role:        role,
	})
	require.NoError(t, err)
}

func (s *testServer) login(t *testing.T, username string) *domain.TokenPair {
	t.Helper()
	pair, err := s.auth.Login(context.Background(), username, "Secret123!")
	require.NoError(t, err)
	return pair
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(payload, &out))
	return out
}

func TestHealthLive_PublicWithoutToken(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "alive", body["status"])
}

func TestLogin_ReturnsTokenPair(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "ADMIN")

	resp := srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice",
		"password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
	assert.Equal(t, "Bearer", data["token_type"])
	assert.Equal(t, float64(3600), data["expires_in"])
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "USER")

	wrongPassword := srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	unknownUser := srv.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "ghost", "password": "Secret123!",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.StatusCode)

	bodyWrong := decodeBody(t, wrongPassword)
	bodyUnknown := decodeBody(t, unknownUser)
	assert.Equal(t, bodyWrong, bodyUnknown)
}

func TestRegister_CreatesUserWithoutEchoingPassword(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":      "carol",
		"email":         "carol@example.com",
		"dni":           "11223344",
		"first_name":    "Carol",
		"last_name":     "Jones",
		"date_of_birth": "1992-03-04",
		"password":      "Secret123!",
		"role":          "USER",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, "carol", data["username"])
	assert.Equal(t, "Carol Jones", data["full_name"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "password_hash")
}

func TestRegister_DuplicateUsername(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "USER")

	resp := srv.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":      "alice",
		"email":         "different@example.com",
		"dni":           "55667788",
		"date_of_birth": "1992-03-04",
		"password":      "Secret123!",
		"role":          "USER",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "USER")
	pair := srv.login(t, "alice")

	resp := srv.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.AccessToken,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRefresh_IssuesNewPair(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "USER")
	pair := srv.login(t, "alice")

	resp := srv.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
}

func TestUsersList_AnonymousDenied(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodGet, "/api/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUsersList_UserRoleForbidden(t *testing.T) {
	// The gate attaches a valid USER identity; the policy still denies
	// the admin-only path with 403, not 401.
	srv := newTestServer(t)
	srv.register(t, "bob", "USER")
	pair := srv.login(t, "bob")

	resp := srv.do(t, http.MethodGet, "/api/users", pair.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUsersList_AdminAllowed(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "admin", "ADMIN")
	srv.register(t, "bob", "USER")
	pair := srv.login(t, "admin")

	resp := srv.do(t, http.MethodGet, "/api/users?page=0&size=10", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(2), data["total"])
}

func TestUsersMe_AnyAuthenticatedRole(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "bob", "USER")
	pair := srv.login(t, "bob")

	resp := srv.do(t, http.MethodGet, "/api/users/me", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, "bob", data["username"])
	assert.Equal(t, "USER", data["role"])
}

func TestUsersDelete_AdminFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "admin", "ADMIN")
	srv.register(t, "bob", "USER")
	pair := srv.login(t, "admin")

	bob, err := srv.repo.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)

	resp := srv.do(t, http.MethodDelete, "/api/users/"+bob.ID, pair.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/api/users/"+bob.ID, pair.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUsersUpdate_AdminFlow(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "admin", "ADMIN")
	srv.register(t, "bob", "USER")
	pair := srv.login(t, "admin")

	bob, err := srv.repo.GetByUsername(context.Background(), "bob")
	require.NoError(t, err)

	resp := srv.do(t, http.MethodPut, "/api/users/"+bob.ID, pair.AccessToken, map[string]string{
		"first_name": "Robert",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, "Robert", data["first_name"])
	assert.Equal(t, "bob", data["username"])
}

func TestExpiredToken_DeniedByPolicyNotGate(t *testing.T) {
	srv := newTestServer(t)
	srv.register(t, "alice", "ADMIN")

	// A token from a different signing key stands in for any invalid
	// token; the gate degrades to anonymous and the policy returns 401.
	other := auth.NewTokenManager("ffffffffffffffffffffffffffffffff", time.Minute, time.Hour, zap.NewNop())
	token, _, err := other.IssueAccessToken("alice", domain.RoleAdmin)
	require.NoError(t, err)

	resp := srv.do(t, http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
