package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flatnas/config"
	"flatnas/db"
	"flatnas/infrastructure/filestore"
	"flatnas/server/routes"
	"flatnas/server/websocket"
	"flatnas/services/accounts"
	"flatnas/services/dashboard"
	"flatnas/services/feeds"
	"flatnas/services/media"
	"flatnas/services/probe"
	"flatnas/services/visitors"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	data := filepath.Join(root, "data")

	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           3000,
			DistDir:        filepath.Join(root, "dist"),
			BodyLimit:      4 * 1024 * 1024,
			ReadTimeout:    5 * time.Second,
			AllowedOrigins: []string{"*"},
			// app.Test connections come from 0.0.0.0.
			TrustedProxies: []string{"0.0.0.0"},
		},
		Storage: config.StorageConfig{
			DataDir:              data,
			UsersDir:             filepath.Join(data, "users"),
			LegacyDataFile:       filepath.Join(data, "data.json"),
			SystemConfigFile:     filepath.Join(data, "system.json"),
			DefaultTemplateFile:  filepath.Join(root, "default.json"),
			VisitorsFile:         filepath.Join(data, "visitors.json"),
			DockerStatusFile:     filepath.Join(data, "docker-status.json"),
			MusicDir:             filepath.Join(root, "music"),
			BackgroundsDir:       filepath.Join(data, "backgrounds"),
			MobileBackgroundsDir: filepath.Join(data, "mobile_backgrounds"),
			IconsDir:             filepath.Join(root, "icons"),
		},
		Auth: config.AuthConfig{
			SecretKey:        "test-secret-key-0123456789",
			TokenTTL:         time.Hour,
			MaxLoginAttempts: 5,
			LockoutDuration:  15 * time.Minute,
			BcryptCost:       bcrypt.MinCost,
		},
		Feeds: config.FeedsConfig{
			HotCacheTTL:  time.Hour,
			MetaTimeout:  time.Second,
			FeedTimeout:  time.Second,
			MetaMaxBytes: 1024,
			PingTimeout:  time.Second,
		},
		Upload: config.UploadConfig{
			MaxFileSize:     1024 * 1024,
			ImageExtensions: []string{".png", ".jpg"},
			MusicExtensions: []string{".mp3"},
			IconExtensions:  []string{".png"},
		},
		RateLimit: config.RateLimitConfig{
			Capacity:     1000,
			RefillRate:   1000,
			RefillPeriod: time.Second,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig(t)

	require.NoError(t, db.EnsureDirectories(cfg.Storage))
	files := filestore.New()
	system, err := db.OpenSystemStore(cfg.Storage.SystemConfigFile, files)
	require.NoError(t, err)
	users := db.NewUserStore(cfg.Storage, files, system)
	_, err = users.EnsureAdmin()
	require.NoError(t, err)

	hub := websocket.NewManager()
	t.Cleanup(hub.Close)
	accountSvc := accounts.NewService(users, system, cfg.Auth)

	srv, err := NewServer(routes.Deps{
		Config:    cfg,
		System:    system,
		Users:     users,
		Accounts:  accountSvc,
		Dashboard: dashboard.NewService(users, accountSvc, hub),
		Feeds:     feeds.NewService(cfg.Feeds),
		Media:     media.NewService(cfg.Storage, cfg.Upload, files),
		Visitors:  visitors.Open(cfg.Storage.VisitorsFile, files),
		Pinger:    probe.NewPinger("127.0.0.1", time.Second),
		Hub:       hub,
	})
	require.NoError(t, err)
	return srv
}

type request struct {
	method string
	path   string
	body   string
	token  string
	ip     string
}

func (s *Server) do(t *testing.T, r request) (int, map[string]any, string) {
	t.Helper()
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	if r.ip != "" {
		req.Header.Set("X-Forwarded-For", r.ip)
	}

	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded, string(raw)
}

func (s *Server) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body, raw := s.do(t, request{
		method: http.MethodPost,
		path:   "/api/login",
		body:   `{"username":"` + username + `","password":"` + password + `"}`,
	})
	require.Equal(t, http.StatusOK, status, raw)
	return body["token"].(string)
}

func TestData_NeverExposesPassword(t *testing.T) {
	srv := newTestServer(t)

	status, body, raw := srv.do(t, request{method: http.MethodGet, path: "/api/data"})
	require.Equal(t, http.StatusOK, status, raw)
	assert.NotContains(t, body, "password")
	assert.Equal(t, "admin", body["username"])

	token := srv.login(t, "admin", "admin")
	status, body, _ = srv.do(t, request{method: http.MethodGet, path: "/api/data", token: token})
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "password")

	status, body, _ = srv.do(t, request{method: http.MethodGet, path: "/api/data", token: "garbage"})
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body, "password")
}

func TestData_Ping(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := srv.do(t, request{method: http.MethodGet, path: "/api/data?ping=1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.NotZero(t, body["ts"])
}

func TestLogin_LockoutReturns429(t *testing.T) {
	srv := newTestServer(t)
	ip := "198.51.100.7"
	wrong := request{method: http.MethodPost, path: "/api/login", body: `{"password":"nope"}`, ip: ip}

	for i := 0; i < 5; i++ {
		status, body, _ := srv.do(t, wrong)
		require.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "User not found or password incorrect", body["error"])
	}

	status, body, _ := srv.do(t, wrong)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["error"], "Too many attempts, wait")

	// The right password is rejected too while locked.
	right := request{method: http.MethodPost, path: "/api/login", body: `{"password":"admin"}`, ip: ip}
	status, _, _ = srv.do(t, right)
	assert.Equal(t, http.StatusTooManyRequests, status)

	// Other clients are unaffected.
	right.ip = "198.51.100.8"
	status, body, _ = srv.do(t, right)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin", body["username"])
}

func TestLogin_UnknownUser(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := srv.do(t, request{
		method: http.MethodPost,
		path:   "/api/login",
		body:   `{"username":"ghost","password":"x"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "User not found or password incorrect", body["error"])
}

func TestRegister_SingleModeForbidden(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := srv.do(t, request{
		method: http.MethodPost,
		path:   "/api/register",
		body:   `{"username":"alice","password":"secret"}`,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Registration disabled in Single User Mode", body["error"])
}

func TestSystemConfig_AdminOnly(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin")

	status, body, _ := srv.do(t, request{method: http.MethodGet, path: "/api/system-config"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "single", body["authMode"])

	status, _, _ = srv.do(t, request{method: http.MethodPost, path: "/api/system-config", body: `{"authMode":"multi"}`})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body, _ = srv.do(t, request{method: http.MethodPost, path: "/api/system-config", body: `{"authMode":"both"}`, token: admin})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid config", body["error"])

	status, body, raw := srv.do(t, request{method: http.MethodPost, path: "/api/system-config", body: `{"authMode":"multi"}`, token: admin})
	require.Equal(t, http.StatusOK, status, raw)
	assert.Equal(t, true, body["success"])

	status, _, raw = srv.do(t, request{method: http.MethodPost, path: "/api/register", body: `{"username":"alice","password":"secret"}`})
	require.Equal(t, http.StatusOK, status, raw)
	alice := srv.login(t, "alice", "secret")

	status, body, _ = srv.do(t, request{method: http.MethodPost, path: "/api/system-config", body: `{"authMode":"single"}`, token: alice})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Only admin can change system config", body["error"])

	status, body, _ = srv.do(t, request{method: http.MethodPost, path: "/api/default/save", token: alice})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Only admin can save default template", body["error"])
}

func TestSystemConfig_AdminKeepsAccountAfterSwitch(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin")

	status, _, raw := srv.do(t, request{method: http.MethodPost, path: "/api/system-config", body: `{"authMode":"multi"}`, token: admin})
	require.Equal(t, http.StatusOK, status, raw)

	status, body, raw := srv.do(t, request{method: http.MethodGet, path: "/api/data", token: admin})
	require.Equal(t, http.StatusOK, status, raw)
	assert.Equal(t, "admin", body["username"])
	assert.NotContains(t, body, "password")

	again := srv.login(t, "admin", "admin")
	assert.NotEmpty(t, again)

	status, body, _ = srv.do(t, request{method: http.MethodPost, path: "/api/register", body: `{"username":"admin","password":"attacker"}`})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists", body["error"])

	status, _, _ = srv.do(t, request{method: http.MethodPost, path: "/api/login", body: `{"username":"admin","password":"attacker"}`, ip: "203.0.113.50"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func groupItems(t *testing.T, body map[string]any, title string) []any {
	t.Helper()
	groups, ok := body["groups"].([]any)
	require.True(t, ok, "groups missing")
	for _, g := range groups {
		group := g.(map[string]any)
		if group["title"] == title {
			items, _ := group["items"].([]any)
			return items
		}
	}
	t.Fatalf("group %q not found", title)
	return nil
}

func TestAddBookmark_SingleModeTargetsAdmin(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin")

	status, _, raw := srv.do(t, request{
		method: http.MethodPost,
		path:   "/api/save",
		token:  admin,
		body:   `{"groups":[{"id":"g1","title":"Work","items":[]},{"id":"g2","title":"收集箱","items":[]}],"widgets":[],"appConfig":{}}`,
	})
	require.Equal(t, http.StatusOK, status, raw)

	status, body, _ := srv.do(t, request{method: http.MethodPost, path: "/api/add-bookmark", body: `{"title":"Go","url":"https://go.dev"}`})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bookmark added", body["message"])

	status, _, _ = srv.do(t, request{method: http.MethodPost, path: "/api/add-bookmark", body: `{"title":"Jira","url":"https://jira.example","categoryTitle":"Work"}`})
	require.Equal(t, http.StatusOK, status)

	_, data, _ := srv.do(t, request{method: http.MethodGet, path: "/api/data"})
	inbox := groupItems(t, data, "收集箱")
	require.Len(t, inbox, 1)
	assert.Equal(t, "Go", inbox[0].(map[string]any)["title"])

	work := groupItems(t, data, "Work")
	require.Len(t, work, 1)
	assert.Equal(t, "Jira", work[0].(map[string]any)["title"])

	status, body, _ = srv.do(t, request{method: http.MethodPost, path: "/api/add-bookmark", body: `{"title":"missing url"}`})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Missing title or url", body["error"])
}

func TestAddBookmark_MultiModeNeedsToken(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin")
	status, _, _ := srv.do(t, request{method: http.MethodPost, path: "/api/system-config", body: `{"authMode":"multi"}`, token: admin})
	require.Equal(t, http.StatusOK, status)

	bookmark := request{method: http.MethodPost, path: "/api/add-bookmark", body: `{"title":"Go","url":"https://go.dev"}`}

	status, body, _ := srv.do(t, bookmark)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body["error"])

	bookmark.token = "garbage"
	status, body, _ = srv.do(t, bookmark)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid token", body["error"])
}

func TestSave_Validation(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := srv.do(t, request{method: http.MethodPost, path: "/api/save", body: `{}`})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", body["error"])

	admin := srv.login(t, "admin", "admin")
	for _, empty := range []string{"", "{}", "  "} {
		status, body, _ = srv.do(t, request{method: http.MethodPost, path: "/api/save", body: empty, token: admin})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Empty body", body["error"])
	}
}

func TestSave_PasswordChangeIsHashed(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin")

	status, _, raw := srv.do(t, request{
		method: http.MethodPost,
		path:   "/api/save",
		token:  admin,
		body:   `{"groups":[],"widgets":[],"appConfig":{},"password":"n3w-pass"}`,
	})
	require.Equal(t, http.StatusOK, status, raw)

	status, _, _ = srv.do(t, request{method: http.MethodPost, path: "/api/login", body: `{"password":"admin"}`, ip: "203.0.113.1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	srv.login(t, "admin", "n3w-pass")
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newTestServer(t)

	status, body, _ := srv.do(t, request{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body, raw := srv.do(t, request{method: http.MethodGet, path: "/readyz"})
	assert.Equal(t, http.StatusOK, status, raw)
	assert.Equal(t, "ready", body["status"])

	status, _, raw = srv.do(t, request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, raw, "http_requests_total")

	status, body, _ = srv.do(t, request{method: http.MethodGet, path: "/api/nope"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Resource not found", body["error"])

	status, _, _ = srv.do(t, request{method: http.MethodGet, path: "/ws"})
	assert.Equal(t, http.StatusUpgradeRequired, status)

	status, _, raw = srv.do(t, request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, raw, "FlatNas API")
}

func TestMediaAndVisitors(t *testing.T) {
	srv := newTestServer(t)

	status, _, raw := srv.do(t, request{method: http.MethodGet, path: "/api/backgrounds"})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, raw)

	status, _, raw = srv.do(t, request{method: http.MethodGet, path: "/api/icons"})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, raw)

	status, _, _ = srv.do(t, request{method: http.MethodDelete, path: "/api/backgrounds/a.png"})
	assert.Equal(t, http.StatusUnauthorized, status)

	admin := srv.login(t, "admin", "admin")
	status, body, _ := srv.do(t, request{method: http.MethodDelete, path: "/api/backgrounds/..%5Cevil.png", token: admin})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid filename", body["error"])

	status, body, _ = srv.do(t, request{method: http.MethodPost, path: "/api/visitor/track"})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["totalVisitors"])
	assert.EqualValues(t, 1, body["todayVisitors"])

	status, _, raw = srv.do(t, request{method: http.MethodGet, path: "/api/docker-status"})
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"hasUpdate":false}`, raw)

	status, body, _ = srv.do(t, request{method: http.MethodGet, path: "/api/ping?target=bad;rm"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid target", body["error"])

	srv.deps.Visitors.Flush()
}

func TestFeedValidation(t *testing.T) {
	srv := newTestServer(t)

	cases := map[string]string{
		"/api/rss/parse":                 "URL is required",
		"/api/weather":                   "City is required",
		"/api/fetch-meta":                "URL is required",
		"/api/fetch-meta?url=ftp://x.io": "Invalid URL",
	}
	for path, message := range cases {
		status, body, _ := srv.do(t, request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusBadRequest, status, path)
		assert.Equal(t, message, body["error"], path)
	}
}
