package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"course-admin/internal/shared/mailer"
	"course-admin/internal/shared/model"
	sqlitedriver "course-admin/internal/shared/storage/driver/sqlite"
	"course-admin/internal/shared/storage/repository"
)

func newTestHandler(t *testing.T) (*Handler, *repository.Store, *mailer.Recorder) {
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

	rec := mailer.NewRecorder()
	cfg := DefaultConfig()
	cfg.JWTSecret = "test-secret"
	h := NewHandler(store, rec, cfg)
	return h, store, rec
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	r := httptest.NewRequest("POST", path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

var mailTokenRegex = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

func extractMailToken(t *testing.T, rec *mailer.Recorder) string {
	t.Helper()
	last := rec.Last()
	if last == nil {
		t.Fatal("no mail was sent")
	}
	m := mailTokenRegex.FindStringSubmatch(last.Body)
	if m == nil {
		t.Fatalf("no token in mail body: %s", last.Body)
	}
	return m[1]
}

func TestRegisterWithEmail(t *testing.T) {
	h, store, rec := newTestHandler(t)

	w := postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp authResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("tokens should be issued on registration")
	}
	if resp.User.IsEmailVerified {
		t.Error("new email user must start unverified")
	}

	// 验证邮件已发送且库中存的是令牌哈希
	if len(rec.Sent()) != 1 {
		t.Fatalf("sent mails = %d, want 1", len(rec.Sent()))
	}
	stored, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil || stored == nil {
		t.Fatalf("stored user: %v, %v", stored, err)
	}
	token := extractMailToken(t, rec)
	if stored.VerifyTokenHash != HashToken(token) {
		t.Error("stored hash must match mailed token")
	}
	if stored.VerifyTokenHash == token {
		t.Error("raw token must not be stored")
	}
}

func TestRegisterMailFailureRollsBack(t *testing.T) {
	h, store, rec := newTestHandler(t)
	rec.Fail = errors.New("smtp down")

	w := postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	stored, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored != nil {
		t.Error("user must be rolled back when verification mail fails")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := registerRequest{Name: "Alice", Email: "alice@example.com", Password: "password123"}
	if w := postJSON(t, h.Register, "/api/v1/auth/register", req); w.Code != http.StatusCreated {
		t.Fatalf("first register: %d", w.Code)
	}
	if w := postJSON(t, h.Register, "/api/v1/auth/register", req); w.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", w.Code)
	}
}

func TestRegisterWithPhone(t *testing.T) {
	h, _, rec := newTestHandler(t)

	w := postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Bob", Phone: "+911234567890", Password: "password123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(rec.Sent()) != 0 {
		t.Error("phone registration must not send mail")
	}

	// 手机号登录
	w = postJSON(t, h.Login, "/api/v1/auth/login", loginRequest{
		Phone: "+911234567890", Password: "password123",
	})
	if w.Code != http.StatusOK {
		t.Errorf("phone login status = %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _, _ := newTestHandler(t)

	tests := []struct {
		name string
		req  registerRequest
	}{
		{"missing identifier", registerRequest{Name: "A", Password: "password123"}},
		{"bad email", registerRequest{Name: "A", Email: "not-an-email", Password: "password123"}},
		{"bad phone", registerRequest{Name: "A", Phone: "12ab", Password: "password123"}},
		{"short password", registerRequest{Name: "A", Email: "a@x.com", Password: "short"}},
		{"missing name", registerRequest{Email: "a@x.com", Password: "password123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := postJSON(t, h.Register, "/api/v1/auth/register", tt.req); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _, _ := newTestHandler(t)

	postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})

	w := postJSON(t, h.Login, "/api/v1/auth/login", loginRequest{
		Email: "alice@example.com", Password: "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	// 未注册邮箱同样返回 401，不区分两种失败
	w = postJSON(t, h.Login, "/api/v1/auth/login", loginRequest{
		Email: "nobody@example.com", Password: "password123",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", w.Code)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	h, store, rec := newTestHandler(t)

	postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})
	token := extractMailToken(t, rec)

	w := postJSON(t, h.VerifyEmail, "/api/v1/auth/verify-email", tokenRequest{Token: token})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body = %s", w.Code, w.Body.String())
	}

	stored, _ := store.GetUserByEmail(context.Background(), "alice@example.com")
	if !stored.IsEmailVerified {
		t.Error("user should be verified")
	}
	if stored.VerifyTokenHash != "" || stored.VerifyTokenExpiry != nil {
		t.Error("verify token must be cleared after use")
	}

	// 令牌单次有效
	w = postJSON(t, h.VerifyEmail, "/api/v1/auth/verify-email", tokenRequest{Token: token})
	if w.Code != http.StatusBadRequest {
		t.Errorf("reused token status = %d, want 400", w.Code)
	}
}

func TestVerifyEmailBadToken(t *testing.T) {
	h, _, _ := newTestHandler(t)
	w := postJSON(t, h.VerifyEmail, "/api/v1/auth/verify-email", tokenRequest{Token: "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestResendVerification(t *testing.T) {
	h, _, rec := newTestHandler(t)

	postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})
	firstToken := extractMailToken(t, rec)

	w := postJSON(t, h.ResendVerification, "/api/v1/auth/resend-verification", emailRequest{Email: "alice@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("resend status = %d", w.Code)
	}
	secondToken := extractMailToken(t, rec)
	if firstToken == secondToken {
		t.Error("resend must rotate the token")
	}

	// 旧令牌失效，新令牌可用
	if w := postJSON(t, h.VerifyEmail, "/api/v1/auth/verify-email", tokenRequest{Token: firstToken}); w.Code != http.StatusBadRequest {
		t.Errorf("old token status = %d, want 400", w.Code)
	}
	if w := postJSON(t, h.VerifyEmail, "/api/v1/auth/verify-email", tokenRequest{Token: secondToken}); w.Code != http.StatusOK {
		t.Errorf("new token status = %d, want 200", w.Code)
	}

	// 未注册邮箱不暴露信息
	if w := postJSON(t, h.ResendVerification, "/api/v1/auth/resend-verification", emailRequest{Email: "nobody@example.com"}); w.Code != http.StatusOK {
		t.Errorf("unknown email status = %d, want 200", w.Code)
	}
}

func TestForgotResetPasswordFlow(t *testing.T) {
	h, _, rec := newTestHandler(t)

	postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})

	w := postJSON(t, h.ForgotPassword, "/api/v1/auth/forgot-password", emailRequest{Email: "alice@example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("forgot status = %d", w.Code)
	}
	token := extractMailToken(t, rec)

	w = postJSON(t, h.ResetPassword, "/api/v1/auth/reset-password", resetPasswordRequest{
		Token: token, NewPassword: "newpassword456",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("reset status = %d, body = %s", w.Code, w.Body.String())
	}

	// 旧密码失效，新密码可登录
	if w := postJSON(t, h.Login, "/api/v1/auth/login", loginRequest{Email: "alice@example.com", Password: "password123"}); w.Code != http.StatusUnauthorized {
		t.Errorf("old password status = %d, want 401", w.Code)
	}
	if w := postJSON(t, h.Login, "/api/v1/auth/login", loginRequest{Email: "alice@example.com", Password: "newpassword456"}); w.Code != http.StatusOK {
		t.Errorf("new password status = %d, want 200", w.Code)
	}

	// 重置令牌单次有效
	if w := postJSON(t, h.ResetPassword, "/api/v1/auth/reset-password", resetPasswordRequest{Token: token, NewPassword: "another789"}); w.Code != http.StatusBadRequest {
		t.Errorf("reused reset token status = %d, want 400", w.Code)
	}
}

func TestForgotPasswordMailFailureClearsToken(t *testing.T) {
	h, store, rec := newTestHandler(t)

	postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})

	rec.Fail = errors.New("smtp down")
	w := postJSON(t, h.ForgotPassword, "/api/v1/auth/forgot-password", emailRequest{Email: "alice@example.com"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}

	stored, _ := store.GetUserByEmail(context.Background(), "alice@example.com")
	if stored.ResetTokenHash != "" || stored.ResetTokenExpiry != nil {
		t.Error("reset token must be cleared when mail fails")
	}
}

func TestRefreshFlow(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})
	var resp authResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	w = postJSON(t, h.Refresh, "/api/v1/auth/refresh", refreshRequest{RefreshToken: resp.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", w.Code)
	}

	// Access Token 不能用于刷新
	w = postJSON(t, h.Refresh, "/api/v1/auth/refresh", refreshRequest{RefreshToken: resp.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("access-as-refresh status = %d, want 401", w.Code)
	}
}

func TestGoogleLoginCreatesAndLinks(t *testing.T) {
	h, store, _ := newTestHandler(t)
	h.cfg.GoogleClientID = "client-id"
	h.google = func(ctx context.Context, rawToken, audience string) (*googleClaims, error) {
		if rawToken != "good-token" {
			return nil, fmt.Errorf("bad token")
		}
		return &googleClaims{Subject: "goog-123", Email: "alice@example.com", Name: "Alice", EmailVerified: true}, nil
	}

	// 首次：创建新用户
	w := postJSON(t, h.GoogleLogin, "/api/v1/auth/google", googleLoginRequest{IDToken: "good-token"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	created, _ := store.GetUserByGoogleID(context.Background(), "goog-123")
	if created == nil || !created.IsEmailVerified {
		t.Fatalf("google user = %+v, want verified user", created)
	}

	// 再次：找到同一用户
	w = postJSON(t, h.GoogleLogin, "/api/v1/auth/google", googleLoginRequest{IDToken: "good-token"})
	if w.Code != http.StatusOK {
		t.Fatalf("second login status = %d", w.Code)
	}
	users, _ := store.ListUsers(context.Background())
	if len(users) != 1 {
		t.Errorf("users = %d, want 1 (no duplicate creation)", len(users))
	}

	// 无效令牌
	w = postJSON(t, h.GoogleLogin, "/api/v1/auth/google", googleLoginRequest{IDToken: "bad"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", w.Code)
	}
}

func TestGoogleLoginLinksExistingEmailAccount(t *testing.T) {
	h, store, _ := newTestHandler(t)
	h.cfg.GoogleClientID = "client-id"
	h.google = func(ctx context.Context, rawToken, audience string) (*googleClaims, error) {
		return &googleClaims{Subject: "goog-123", Email: "alice@example.com", Name: "Alice"}, nil
	}

	postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})

	w := postJSON(t, h.GoogleLogin, "/api/v1/auth/google", googleLoginRequest{IDToken: "tok"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	linked, _ := store.GetUserByEmail(context.Background(), "alice@example.com")
	if linked.GoogleID != "goog-123" {
		t.Error("existing account should be linked to google id")
	}
	if !linked.IsEmailVerified {
		t.Error("google-linked email counts as verified")
	}
	users, _ := store.ListUsers(context.Background())
	if len(users) != 1 {
		t.Errorf("users = %d, want 1", len(users))
	}
}

func TestChangePassword(t *testing.T) {
	h, _, _ := newTestHandler(t)

	w := postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})
	var resp authResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	body, _ := json.Marshal(changePasswordRequest{OldPassword: "password123", NewPassword: "newpassword456"})
	r := httptest.NewRequest("PUT", "/api/v1/auth/password", bytes.NewReader(body))
	r = r.WithContext(WithAuthUser(r.Context(), &AuthUser{ID: resp.User.ID, Role: "visitor"}))
	rw := httptest.NewRecorder()
	h.ChangePassword(rw, r)
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rw.Code, rw.Body.String())
	}

	if w := postJSON(t, h.Login, "/api/v1/auth/login", loginRequest{Email: "alice@example.com", Password: "newpassword456"}); w.Code != http.StatusOK {
		t.Errorf("login with new password = %d", w.Code)
	}
}

func TestAdminUpdateUserRole(t *testing.T) {
	h, store, _ := newTestHandler(t)

	w := postJSON(t, h.Register, "/api/v1/auth/register", registerRequest{
		Name: "Alice", Email: "alice@example.com", Password: "password123",
	})
	var resp authResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	body, _ := json.Marshal(updateRoleRequest{Role: "editor"})
	r := httptest.NewRequest("PUT", "/api/v1/admin/users/"+resp.User.ID+"/role", bytes.NewReader(body))
	r.SetPathValue("id", resp.User.ID)
	r = r.WithContext(WithAuthUser(r.Context(), &AuthUser{ID: "usr-admin", Role: RoleAdmin}))
	rw := httptest.NewRecorder()
	h.UpdateUserRole(rw, r)
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rw.Code, rw.Body.String())
	}

	stored, _ := store.GetUserByID(context.Background(), resp.User.ID)
	if stored.Role != model.UserRoleEditor {
		t.Errorf("role = %s, want editor", stored.Role)
	}

	// 无效角色
	body, _ = json.Marshal(updateRoleRequest{Role: "superuser"})
	r = httptest.NewRequest("PUT", "/api/v1/admin/users/"+resp.User.ID+"/role", bytes.NewReader(body))
	r.SetPathValue("id", resp.User.ID)
	r = r.WithContext(WithAuthUser(r.Context(), &AuthUser{ID: "usr-admin", Role: RoleAdmin}))
	rw = httptest.NewRecorder()
	h.UpdateUserRole(rw, r)
	if rw.Code != http.StatusBadRequest {
		t.Errorf("invalid role status = %d, want 400", rw.Code)
	}

	// 管理员不能给自己降级
	body, _ = json.Marshal(updateRoleRequest{Role: "visitor"})
	r = httptest.NewRequest("PUT", "/api/v1/admin/users/usr-admin/role", bytes.NewReader(body))
	r.SetPathValue("id", "usr-admin")
	r = r.WithContext(WithAuthUser(r.Context(), &AuthUser{ID: "usr-admin", Role: RoleAdmin}))
	rw = httptest.NewRecorder()
	h.UpdateUserRole(rw, r)
	if rw.Code != http.StatusBadRequest {
		t.Errorf("self-demote status = %d, want 400", rw.Code)
	}
}

func TestEnsureAdminUser(t *testing.T) {
	_, store, _ := newTestHandler(t)

	if err := EnsureAdminUser(store, "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("EnsureAdminUser: %v", err)
	}
	admin, _ := store.GetUserByEmail(context.Background(), "admin@example.com")
	if admin == nil || admin.Role != model.UserRoleAdmin || !admin.IsEmailVerified {
		t.Fatalf("admin = %+v", admin)
	}

	// 幂等
	if err := EnsureAdminUser(store, "admin@example.com", "adminpassword"); err != nil {
		t.Fatalf("second EnsureAdminUser: %v", err)
	}
	users, _ := store.ListUsers(context.Background())
	if len(users) != 1 {
		t.Errorf("users = %d, want 1", len(users))
	}

	// 未配置时跳过
	if err := EnsureAdminUser(store, "", ""); err != nil {
		t.Errorf("empty config should be a no-op, got %v", err)
	}
}
