package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/config"
	"course-admin/internal/shared/cache"
	"course-admin/internal/shared/mailer"
	objstore "course-admin/internal/shared/minio"
	"course-admin/internal/shared/model"
	sqlitedriver "course-admin/internal/shared/storage/driver/sqlite"
	"course-admin/internal/shared/storage/repository"
)

type testServer struct {
	handler *Handler
	store   *repository.Store
	mail    *mailer.Recorder
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	dialect := sqlitedriver.NewDialect()
	if err := dialect.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })

	mail := mailer.NewRecorder()
	cfg := &config.Config{
		Env: config.EnvTest,
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
		},
	}
	h := NewHandler(store, cache.NewNoOpCache(), objstore.NewMemStorage(), mail, cfg)
	return &testServer{handler: h, store: store, mail: mail, router: h.Router()}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data, _ = json.Marshal(body)
	}
	r := httptest.NewRequest(method, path, bytes.NewReader(data))
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	s := newTestServer(t)
	if w := s.do(t, "GET", "/health", nil, ""); w.Code != http.StatusOK {
		t.Errorf("health = %d", w.Code)
	}
	if w := s.do(t, "GET", "/metrics", nil, ""); w.Code != http.StatusOK {
		t.Errorf("metrics = %d", w.Code)
	}
}

func TestRouterEndToEnd(t *testing.T) {
	s := newTestServer(t)

	// 注册
	w := s.do(t, "POST", "/api/v1/auth/register", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "password123",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d, body = %s", w.Code, w.Body.String())
	}
	var reg struct {
		AccessToken string `json:"access_token"`
	}
	json.Unmarshal(w.Body.Bytes(), &reg)

	// 邮箱验证（从邮件里取真实令牌）
	m := regexp.MustCompile(`token=([A-Za-z0-9_-]+)`).FindStringSubmatch(s.mail.Last().Body)
	if m == nil {
		t.Fatal("no token in verification mail")
	}
	if w := s.do(t, "POST", "/api/v1/auth/verify-email", map[string]string{"token": m[1]}, ""); w.Code != http.StatusOK {
		t.Fatalf("verify = %d", w.Code)
	}

	// 公共目录无需令牌
	if w := s.do(t, "GET", "/api/v1/courses", nil, ""); w.Code != http.StatusOK {
		t.Errorf("public catalog = %d", w.Code)
	}

	// 受保护路由需要令牌
	if w := s.do(t, "GET", "/api/v1/auth/me", nil, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("me without token = %d, want 401", w.Code)
	}
	if w := s.do(t, "GET", "/api/v1/auth/me", nil, reg.AccessToken); w.Code != http.StatusOK {
		t.Errorf("me with token = %d", w.Code)
	}

	// 普通用户不能建课程
	if w := s.do(t, "POST", "/api/v1/courses", map[string]interface{}{"title": "X", "price": 1}, reg.AccessToken); w.Code != http.StatusForbidden {
		t.Errorf("visitor create course = %d, want 403", w.Code)
	}
}

func TestAdminCourseLifecycle(t *testing.T) {
	s := newTestServer(t)

	if err := auth.EnsureAdminUser(s.store, "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	w := s.do(t, "POST", "/api/v1/auth/login", map[string]string{
		"email": "admin@example.com", "password": "adminpassword",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("admin login = %d", w.Code)
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	json.Unmarshal(w.Body.Bytes(), &login)

	w = s.do(t, "POST", "/api/v1/courses", map[string]interface{}{
		"title": "Go Backend", "price": 499,
		"chapters": []map[string]interface{}{
			{"title": "Basics", "order": 1, "topics": []map[string]interface{}{
				{"title": "Intro", "is_preview": true},
			}},
		},
	}, login.AccessToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("create course = %d, body = %s", w.Code, w.Body.String())
	}
	var created model.Course
	json.Unmarshal(w.Body.Bytes(), &created)

	// 详情：管理员作为职员有完整访问权
	w = s.do(t, "GET", "/api/v1/courses/"+created.ID, nil, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("get course = %d", w.Code)
	}
	var view struct {
		HasAccess bool `json:"has_access"`
	}
	json.Unmarshal(w.Body.Bytes(), &view)
	if !view.HasAccess {
		t.Error("admin must have course access")
	}
}

func TestDedupMaintenanceEndpoint(t *testing.T) {
	s := newTestServer(t)

	if err := auth.EnsureAdminUser(s.store, "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	// 带历史脏数据的用户
	now := time.Now()
	dirty := &model.User{
		ID: "usr-dirty", Name: "Dirty", Email: "dirty@example.com",
		Role:             model.UserRoleVisitor,
		PurchasedCourses: []string{"crs-1", "crs-1", "crs-2"},
		CourseProgress: []model.ProgressRecord{
			{CourseID: "crs-1", CompletedTopics: []string{"top-1"}},
			{CourseID: "crs-1", CompletedTopics: []string{}},
		},
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.store.CreateUser(context.Background(), dirty); err != nil {
		t.Fatalf("seed dirty user: %v", err)
	}

	w := s.do(t, "POST", "/api/v1/auth/login", map[string]string{
		"email": "admin@example.com", "password": "adminpassword",
	}, "")
	var login struct {
		AccessToken string `json:"access_token"`
	}
	json.Unmarshal(w.Body.Bytes(), &login)

	w = s.do(t, "POST", "/api/v1/maintenance/dedup", nil, login.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("dedup = %d, body = %s", w.Code, w.Body.String())
	}
	var report dedupReport
	json.Unmarshal(w.Body.Bytes(), &report)
	if report.PurchasesRemoved != 1 || report.ProgressRemoved != 1 || report.UsersRepaired != 1 {
		t.Errorf("report = %+v", report)
	}

	repaired, _ := s.store.GetUserByID(context.Background(), "usr-dirty")
	if len(repaired.PurchasedCourses) != 2 || len(repaired.CourseProgress) != 1 {
		t.Errorf("repaired user = %+v", repaired)
	}
	// 首条进度（已完成 top-1）保留
	if p := repaired.ProgressFor("crs-1"); p == nil || !p.HasCompleted("top-1") {
		t.Error("first progress record must win")
	}

	// 幂等：二次修复无事可做
	w = s.do(t, "POST", "/api/v1/maintenance/dedup", nil, login.AccessToken)
	json.Unmarshal(w.Body.Bytes(), &report)
	if report.UsersRepaired != 0 {
		t.Errorf("second pass repaired = %d, want 0", report.UsersRepaired)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/api/v1/courses", "/api/v1/courses"},
		{"/api/v1/courses/crs-abc123", "/api/v1/courses/{id}"},
		{"/api/v1/courses/crs-abc/topics/top-9/complete", "/api/v1/courses/{id}/topics/{topicId}/complete"},
		{"/api/v1/payments/pay-1/approve", "/api/v1/payments/{id}/approve"},
		{"/api/v1/payments/my", "/api/v1/payments/my"},
		{"/api/v1/admin/users/usr-1/role", "/api/v1/admin/users/{id}/role"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	r := httptest.NewRequest("OPTIONS", "/api/v1/courses", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("preflight = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS origin header")
	}
}
