package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"google.golang.org/api/idtoken"

	"course-admin/internal/shared/mailer"
	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

// verifyTokenLength 邮件令牌长度（URL 安全字符）
const verifyTokenLength = 48

// googleClaims 从 Google ID Token 解出的字段
type googleClaims struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// googleVerifier 校验 Google ID Token，测试中可替换
type googleVerifier func(ctx context.Context, rawToken, audience string) (*googleClaims, error)

// Handler 认证 HTTP 处理器
type Handler struct {
	store  storage.UserStore
	mail   mailer.Sender
	cfg    Config
	google googleVerifier
}

// NewHandler 创建认证处理器
func NewHandler(store storage.UserStore, mail mailer.Sender, cfg Config) *Handler {
	return &Handler{
		store:  store,
		mail:   mail,
		cfg:    cfg,
		google: verifyGoogleIDToken,
	}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", h.Register)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/google", h.GoogleLogin)
	mux.HandleFunc("POST /api/v1/auth/verify-email", h.VerifyEmail)
	mux.HandleFunc("POST /api/v1/auth/resend-verification", h.ResendVerification)
	mux.HandleFunc("POST /api/v1/auth/forgot-password", h.ForgotPassword)
	mux.HandleFunc("POST /api/v1/auth/reset-password", h.ResetPassword)
	mux.HandleFunc("POST /api/v1/auth/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
	mux.HandleFunc("PUT /api/v1/auth/password", h.ChangePassword)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type authResponse struct {
	User         *model.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
}

// ============================================================================
// 注册 / 登录
// ============================================================================

// Register 用户注册（邮箱或手机号二选一）
//
// 邮箱注册的用户初始为未验证状态，收到验证邮件后点击链接完成验证。
// 验证邮件发送失败时回滚新建的用户并返回错误，避免留下无法验证的账号。
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name and password are required")
		return
	}
	if req.Email == "" && req.Phone == "" {
		writeError(w, http.StatusBadRequest, "email or phone is required")
		return
	}
	if req.Email != "" && !isValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if req.Phone != "" && !isValidPhone(req.Phone) {
		writeError(w, http.StatusBadRequest, "invalid phone format")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	// 检查邮箱/手机号是否已注册
	if req.Email != "" {
		existing, err := h.store.GetUserByEmail(r.Context(), req.Email)
		if err != nil {
			log.Printf("[auth.register] GetUserByEmail error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
	}
	if req.Phone != "" {
		existing, err := h.store.GetUserByPhone(r.Context(), req.Phone)
		if err != nil {
			log.Printf("[auth.register] GetUserByPhone error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "phone already registered")
			return
		}
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		log.Printf("[auth.register] HashPassword error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	now := time.Now()
	user := &model.User{
		ID:               generateID(),
		Name:             req.Name,
		Email:            req.Email,
		Phone:            req.Phone,
		PasswordHash:     hash,
		Role:             model.UserRoleVisitor,
		PurchasedCourses: []string{},
		CourseProgress:   []model.ProgressRecord{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// 邮箱注册：生成验证令牌
	var verifyToken string
	if req.Email != "" {
		verifyToken = GenerateToken(verifyTokenLength)
		if verifyToken == "" {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		expiry := now.Add(h.cfg.VerifyTokenTTL)
		user.VerifyTokenHash = HashToken(verifyToken)
		user.VerifyTokenExpiry = &expiry
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "email or phone already registered")
			return
		}
		log.Printf("[auth.register] CreateUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	if req.Email != "" {
		subject, body := mailer.VerificationEmail(h.cfg.FrontendURL, verifyToken)
		if err := h.mail.Send(r.Context(), req.Email, subject, body); err != nil {
			// 回滚：无法收到验证邮件的账号不应保留
			log.Printf("[auth.register] verification mail failed, rolling back user %s: %v", user.ID, err)
			if derr := h.store.DeleteUser(r.Context(), user.ID); derr != nil {
				log.Printf("[auth.register] rollback failed for %s: %v", user.ID, derr)
			}
			writeError(w, http.StatusServiceUnavailable, "failed to send verification email, please try again")
			return
		}
	}

	accessToken, refreshToken, err := h.issueTokens(user)
	if err != nil {
		log.Printf("[auth.register] token error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth] User registered: %s (%s)", user.ID, maskIdentifier(user))
	writeJSON(w, http.StatusCreated, authResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// Login 用户登录（邮箱或手机号 + 密码）
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Password == "" || (req.Email == "" && req.Phone == "") {
		writeError(w, http.StatusBadRequest, "email or phone, and password are required")
		return
	}

	var user *model.User
	var err error
	if req.Email != "" {
		user, err = h.store.GetUserByEmail(r.Context(), req.Email)
	} else {
		user, err = h.store.GetUserByPhone(r.Context(), req.Phone)
	}
	if err != nil {
		log.Printf("[auth.login] lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || !CheckPassword(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth] User logged in: %s", user.ID)
	writeJSON(w, http.StatusOK, authResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// GoogleLogin Google 账号登录
//
// 校验 ID Token 后按 google_id 查找用户；未绑定时按邮箱匹配并绑定，
// 均不存在时创建新用户。Google 登录的邮箱视为已验证。
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.cfg.GoogleClientID == "" {
		writeError(w, http.StatusBadRequest, "google login is not enabled")
		return
	}

	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "id_token is required")
		return
	}

	claims, err := h.google(r.Context(), req.IDToken, h.cfg.GoogleClientID)
	if err != nil {
		log.Printf("[auth.google] token validation error: %v", err)
		writeError(w, http.StatusUnauthorized, "invalid google token")
		return
	}

	user, err := h.store.GetUserByGoogleID(r.Context(), claims.Subject)
	if err != nil {
		log.Printf("[auth.google] GetUserByGoogleID error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if user == nil && claims.Email != "" {
		// 同邮箱已有账号时绑定 Google ID
		existing, err := h.store.GetUserByEmail(r.Context(), claims.Email)
		if err != nil {
			log.Printf("[auth.google] GetUserByEmail error: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if existing != nil {
			user, err = h.mutateUser(r.Context(), existing.ID, func(u *model.User) error {
				u.GoogleID = claims.Subject
				u.IsEmailVerified = true
				u.VerifyTokenHash = ""
				u.VerifyTokenExpiry = nil
				return nil
			})
			if err != nil {
				log.Printf("[auth.google] link google id error: %v", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
		}
	}

	if user == nil {
		now := time.Now()
		user = &model.User{
			ID:               generateID(),
			Name:             claims.Name,
			Email:            claims.Email,
			GoogleID:         claims.Subject,
			Role:             model.UserRoleVisitor,
			IsEmailVerified:  true,
			PurchasedCourses: []string{},
			CourseProgress:   []model.ProgressRecord{},
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := h.store.CreateUser(r.Context(), user); err != nil {
			log.Printf("[auth.google] CreateUser error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to create user")
			return
		}
		log.Printf("[auth] User created via Google: %s", user.ID)
	}

	accessToken, refreshToken, err := h.issueTokens(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// ============================================================================
// 邮箱验证
// ============================================================================

// VerifyEmail 验证邮箱（令牌单次有效）
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	user, err := h.store.GetUserByVerifyToken(r.Context(), HashToken(req.Token))
	if err != nil {
		log.Printf("[auth.verify] lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || user.VerifyTokenExpiry == nil || time.Now().After(*user.VerifyTokenExpiry) {
		writeError(w, http.StatusBadRequest, "invalid or expired verification token")
		return
	}

	if _, err := h.mutateUser(r.Context(), user.ID, func(u *model.User) error {
		u.IsEmailVerified = true
		u.VerifyTokenHash = ""
		u.VerifyTokenExpiry = nil
		return nil
	}); err != nil {
		log.Printf("[auth.verify] update error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth] Email verified: %s", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "email verified"})
}

// ResendVerification 重发验证邮件
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.resend] lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		// 不暴露邮箱是否注册
		writeJSON(w, http.StatusOK, map[string]string{"message": "verification email sent if the address is registered"})
		return
	}
	if user.IsEmailVerified {
		writeError(w, http.StatusBadRequest, "email is already verified")
		return
	}

	token := GenerateToken(verifyTokenLength)
	if token == "" {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	expiry := time.Now().Add(h.cfg.VerifyTokenTTL)
	if _, err := h.mutateUser(r.Context(), user.ID, func(u *model.User) error {
		u.VerifyTokenHash = HashToken(token)
		u.VerifyTokenExpiry = &expiry
		return nil
	}); err != nil {
		log.Printf("[auth.resend] update error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	subject, body := mailer.VerificationEmail(h.cfg.FrontendURL, token)
	if err := h.mail.Send(r.Context(), user.Email, subject, body); err != nil {
		// 发送失败时清掉刚写入的令牌，不留下误导用户的半完成状态
		log.Printf("[auth.resend] mail failed for %s: %v", user.ID, err)
		h.clearVerifyToken(r.Context(), user.ID)
		writeError(w, http.StatusServiceUnavailable, "failed to send verification email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "verification email sent if the address is registered"})
}

// ============================================================================
// 密码重置
// ============================================================================

// ForgotPassword 发起密码重置
//
// 无论邮箱是否注册都返回相同响应，防止枚举。
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("[auth.forgot] lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "reset email sent if the address is registered"})
		return
	}

	token := GenerateToken(verifyTokenLength)
	if token == "" {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	expiry := time.Now().Add(h.cfg.ResetTokenTTL)
	if _, err := h.mutateUser(r.Context(), user.ID, func(u *model.User) error {
		u.ResetTokenHash = HashToken(token)
		u.ResetTokenExpiry = &expiry
		return nil
	}); err != nil {
		log.Printf("[auth.forgot] update error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	subject, body := mailer.PasswordResetEmail(h.cfg.FrontendURL, token)
	if err := h.mail.Send(r.Context(), user.Email, subject, body); err != nil {
		log.Printf("[auth.forgot] mail failed for %s: %v", user.ID, err)
		h.clearResetToken(r.Context(), user.ID)
		writeError(w, http.StatusServiceUnavailable, "failed to send reset email")
		return
	}

	log.Printf("[auth] Password reset requested: %s", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "reset email sent if the address is registered"})
}

// ResetPassword 使用重置令牌设置新密码（令牌单次有效）
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "token and new_password are required")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	user, err := h.store.GetUserByResetToken(r.Context(), HashToken(req.Token))
	if err != nil {
		log.Printf("[auth.reset] lookup error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil || user.ResetTokenExpiry == nil || time.Now().After(*user.ResetTokenExpiry) {
		writeError(w, http.StatusBadRequest, "invalid or expired reset token")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if _, err := h.mutateUser(r.Context(), user.ID, func(u *model.User) error {
		u.PasswordHash = hash
		u.ResetTokenHash = ""
		u.ResetTokenExpiry = nil
		return nil
	}); err != nil {
		log.Printf("[auth.reset] update error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth] Password reset completed: %s", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// ============================================================================
// 令牌刷新 / 当前用户
// ============================================================================

// Refresh 刷新访问令牌
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	claims, err := ParseToken(h.cfg, req.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if claims.Type != "refresh" {
		writeError(w, http.StatusUnauthorized, "invalid token type")
		return
	}

	// 查询用户确保仍然存在
	user, err := h.store.GetUserByID(r.Context(), claims.Subject)
	if err != nil || user == nil {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	accessToken, err := GenerateAccessToken(h.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": accessToken})
}

// Me 获取当前用户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ChangePassword 修改密码（需要旧密码）
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser := GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old_password and new_password are required")
		return
	}
	if len(req.NewPassword) < 8 {
		writeError(w, http.StatusBadRequest, "new password must be at least 8 characters")
		return
	}

	user, err := h.store.GetUserByID(r.Context(), authUser.ID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if !CheckPassword(req.OldPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "incorrect old password")
		return
	}

	hash, err := HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if _, err := h.mutateUser(r.Context(), user.ID, func(u *model.User) error {
		u.PasswordHash = hash
		return nil
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// ============================================================================
// 内部辅助
// ============================================================================

// mutateUser 读取-修改-条件写入，版本冲突时重读重试
func (h *Handler) mutateUser(ctx context.Context, id string, mutate func(*model.User) error) (*model.User, error) {
	for attempt := 0; attempt < 3; attempt++ {
		user, err := h.store.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, storage.ErrNotFound
		}
		if err := mutate(user); err != nil {
			return nil, err
		}
		user.UpdatedAt = time.Now()
		err = h.store.UpdateUser(ctx, user)
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return user, nil
	}
	return nil, storage.ErrConflict
}

func (h *Handler) clearVerifyToken(ctx context.Context, userID string) {
	if _, err := h.mutateUser(ctx, userID, func(u *model.User) error {
		u.VerifyTokenHash = ""
		u.VerifyTokenExpiry = nil
		return nil
	}); err != nil {
		log.Printf("[auth] clear verify token for %s: %v", userID, err)
	}
}

func (h *Handler) clearResetToken(ctx context.Context, userID string) {
	if _, err := h.mutateUser(ctx, userID, func(u *model.User) error {
		u.ResetTokenHash = ""
		u.ResetTokenExpiry = nil
		return nil
	}); err != nil {
		log.Printf("[auth] clear reset token for %s: %v", userID, err)
	}
}

func (h *Handler) issueTokens(user *model.User) (access, refresh string, err error) {
	access, err = GenerateAccessToken(h.cfg, user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", "", err
	}
	refresh, err = GenerateRefreshToken(h.cfg, user.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// verifyGoogleIDToken 默认的 Google ID Token 校验实现
func verifyGoogleIDToken(ctx context.Context, rawToken, audience string) (*googleClaims, error) {
	payload, err := idtoken.Validate(ctx, rawToken, audience)
	if err != nil {
		return nil, err
	}
	claims := &googleClaims{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := payload.Claims["name"].(string); ok {
		claims.Name = name
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}
	return claims, nil
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

func isValidPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

func generateID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "usr-" + hex.EncodeToString(b)
}

func maskIdentifier(u *model.User) string {
	if u.Email != "" {
		return "email"
	}
	return "phone"
}
