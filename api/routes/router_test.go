package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wardrobe-backend/internal/auth"
	"github.com/angelmondragon/wardrobe-backend/internal/items"
	"github.com/angelmondragon/wardrobe-backend/internal/outfits"
	"github.com/angelmondragon/wardrobe-backend/internal/users"
	pkgAuth "github.com/angelmondragon/wardrobe-backend/pkg/auth"
	"github.com/angelmondragon/wardrobe-backend/pkg/config"
	"github.com/angelmondragon/wardrobe-backend/pkg/db/models"
	"github.com/angelmondragon/wardrobe-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/wardrobe-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryRedis) Replay(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values["replay:"+scope+":"+key]
	return v, ok, nil
}

func (m *memoryRedis) StoreReplay(_ context.Context, scope, key, record string, _ time.Duration) (bool, error) {
	return m.setNX("replay:"+scope+":"+key, record), nil
}

func (m *memoryRedis) Hit(_ context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scope]++
	return pkgredis.Window{Count: m.counts[scope], Limit: limit, ResetIn: window}, nil
}

func (m *memoryRedis) Lock(_ context.Context, scope, token string, _ time.Duration) (bool, error) {
	return m.setNX("lock:"+scope, token), nil
}

func (m *memoryRedis) Unlock(_ context.Context, scope, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, "lock:"+scope)
	return nil
}

func (m *memoryRedis) setNX(key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false
	}
	m.values[key] = value
	return true
}

func (m *memoryRedis) Ping(context.Context) error { return nil }

type stubSessionManager struct{}

func (stubSessionManager) Active(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) Register(ctx context.Context, req auth.Registration) (*users.Profile, error) {
	return &users.Profile{ID: uuid.New(), Email: req.Email}, nil
}

func (stubAuthService) Login(ctx context.Context, req auth.Credentials) (*auth.SignIn, error) {
	return &auth.SignIn{AccessToken: "access", RefreshToken: "refresh"}, nil
}

type stubUsers struct{}

func (stubUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, Email: "sam@example.com", IsActive: true}, nil
}

type stubItems struct {
	mu      sync.Mutex
	creates int
}

func (s *stubItems) Create(context.Context, items.SaveInput) (*items.SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	return &items.SaveResult{ItemID: uuid.New()}, nil
}

func (s *stubItems) Edit(_ context.Context, itemID uuid.UUID, _ items.SaveInput) (*items.SaveResult, error) {
	return &items.SaveResult{ItemID: itemID}, nil
}

func (s *stubItems) Delete(context.Context, uuid.UUID, items.Confirmer) error { return nil }

func (s *stubItems) Discard(context.Context) {}

func (s *stubItems) List(context.Context, items.ListParams) (*items.ListResult, error) {
	return &items.ListResult{}, nil
}

func (s *stubItems) Get(_ context.Context, itemID uuid.UUID) (*items.ItemDetail, error) {
	return &items.ItemDetail{ItemSummary: items.ItemSummary{ID: itemID}}, nil
}

type stubOutfits struct{}

func (stubOutfits) CreateDraft(_ context.Context, req outfits.DraftRequest) (*outfits.Draft, error) {
	return &outfits.Draft{Count: len(req.ItemIDs)}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:                 "secret",
			Issuer:                 "issuer",
			ExpirationMinutes:      60,
			RefreshTokenTTLMinutes: 120,
		},
		Redis: config.RedisConfig{
			IdempotencyTTL: time.Hour,
			SaveLockTTL:    time.Minute,
			APIRateLimit:   100,
			APIRateWindow:  time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func testDeps() (Deps, *stubItems) {
	svc := &stubItems{}
	tokens, err := pkgAuth.NewTokens(testConfig().JWT)
	if err != nil {
		panic(err)
	}
	return Deps{
		Tokens:   tokens,
		DB:       stubPinger{},
		Redis:    newMemoryRedis(),
		Blobs:    stubPinger{},
		Sessions: stubSessionManager{},
		Auth:     stubAuthService{},
		Users:    stubUsers{},
		Items:    svc,
		Outfits:  stubOutfits{},
	}, svc
}

func newTestRouter(cfg *config.Config, deps Deps) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, deps)
}

func buildToken(t *testing.T, cfg *config.Config) string {
	t.Helper()
	tokens, err := pkgAuth.NewTokens(cfg.JWT)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	token, err := tokens.Mint(time.Now(), pkgAuth.Subject{UserID: uuid.New(), Email: "sam@example.com"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthRoutes(t *testing.T) {
	deps, _ := testDeps()
	router := newTestRouter(testConfig(), deps)
	for _, path := range []string{"/health/live", "/health/ready", "/v1/public/ping"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestPrivateRoutesRequireJWT(t *testing.T) {
	cfg := testConfig()
	deps, _ := testDeps()
	router := newTestRouter(cfg, deps)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/ping"},
		{http.MethodGet, "/v1/me"},
		{http.MethodGet, "/v1/items"},
		{http.MethodPost, "/v1/items"},
		{http.MethodGet, "/v1/items/" + uuid.NewString()},
		{http.MethodDelete, "/v1/items/" + uuid.NewString()},
		{http.MethodPost, "/v1/outfits/drafts"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", resp.Code)
			}
		})
	}
}

func TestPrivateRoutesSucceedWithJWT(t *testing.T) {
	cfg := testConfig()
	deps, _ := testDeps()
	router := newTestRouter(cfg, deps)
	token := buildToken(t, cfg)

	for _, path := range []string{"/v1/ping", "/v1/me", "/v1/items", "/v1/items/" + uuid.NewString()} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestItemCreateIsIdempotent(t *testing.T) {
	cfg := testConfig()
	deps, svc := testDeps()
	router := newTestRouter(cfg, deps)
	token := buildToken(t, cfg)
	body := `{"images":[{"uri":"https://blobs.test/a.jpg"}],"category":"Top"}`

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/items", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		return resp
	}

	if resp := send(""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}

	first := send("k1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	replay := send("k1")
	if replay.Code != http.StatusCreated || replay.Body.String() != first.Body.String() {
		t.Fatalf("expected replayed response, got %d %s", replay.Code, replay.Body.String())
	}
	if svc.creates != 1 {
		t.Fatalf("expected one create, got %d", svc.creates)
	}
}

func TestOptionalMounts(t *testing.T) {
	deps, _ := testDeps()
	deps.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	})
	router := newTestRouter(testConfig(), deps)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "# metrics" {
		t.Fatalf("expected metrics handler, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/blobs/a/b.png", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected blobs unmounted without local storage, got %d", resp.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	deps, _ := testDeps()
	router := newTestRouter(testConfig(), deps)

	req := httptest.NewRequest(http.MethodOptions, "/v1/items", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Fatalf("expected dev origin allowed, got %q", got)
	}
}
