// Package server 路由配置
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包。
package server

import (
	"net/http"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/apiserver/course"
	"course-admin/internal/apiserver/payment"
	"course-admin/internal/apiserver/suggestion"
)

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 健康检查与指标:
//   - GET /health
//   - GET /metrics
//
// 认证 (Auth):
//   - POST /api/v1/auth/register|login|google|refresh
//   - POST /api/v1/auth/verify-email|resend-verification
//   - POST /api/v1/auth/forgot-password|reset-password
//   - GET  /api/v1/auth/me, PUT /api/v1/auth/password
//   - GET/PUT/DELETE /api/v1/admin/users... (admin)
//
// 课程 (Course):
//   - GET    /api/v1/courses            - 公开目录
//   - GET    /api/v1/courses/{id}       - 详情（按身份裁剪）
//   - POST/PUT/DELETE /api/v1/courses...（editor/admin）
//   - PUT    /api/v1/courses/{id}/thumbnail
//   - PUT    /api/v1/courses/{courseId}/topics/{topicId}/complete
//   - POST   /api/v1/courses/{courseId}/topics/{topicId}/comments
//
// 支付 (Payment):
//   - POST /api/v1/payments, GET /api/v1/payments/my
//   - GET  /api/v1/payments (admin), PUT .../approve|reject (admin)
//
// 建议 (Suggestion):
//   - POST/GET/PUT/DELETE /api/v1/suggestions..., PUT .../review (admin)
//
// 维护 (Maintenance):
//   - POST /api/v1/maintenance/dedup (admin)
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查与指标
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())

	authCfg := auth.Config{
		JWTSecret:       h.cfg.Auth.JWTSecret,
		AccessTokenTTL:  h.cfg.Auth.AccessTTL(),
		RefreshTokenTTL: h.cfg.Auth.RefreshTTL(),
		VerifyTokenTTL:  h.cfg.Auth.VerifyTTL(),
		ResetTokenTTL:   h.cfg.Auth.ResetTTL(),
		GoogleClientID:  h.cfg.Auth.GoogleClientID,
		FrontendURL:     h.cfg.Server.FrontendURL,
	}

	// 认证与用户管理
	authHandler := auth.NewHandler(h.store, h.mail, authCfg)
	authHandler.RegisterRoutes(mux)
	authHandler.RegisterAdminRoutes(mux)

	// 课程目录 + 访问/进度引擎
	engine := course.NewEngine(h.store, h.store, h.cfg.Policy.StrictProgress())
	courseHandler := course.NewHandler(h.store, engine, h.catalogCache, h.files)
	courseHandler.RegisterRoutes(mux)

	// 支付审批
	paymentHandler := payment.NewHandler(h.store, h.files, h.mail, h.cfg.Policy)
	paymentHandler.RegisterRoutes(mux)

	// 课程建议
	suggestionHandler := suggestion.NewHandler(h.store)
	suggestionHandler.RegisterRoutes(mux)

	// 维护接口
	mux.HandleFunc("POST /api/v1/maintenance/dedup", auth.AdminOnly(h.DedupUserData))

	// 中间件链：指标（最内）→ 认证 → CORS（最外）
	apiHandler := h.metrics.MetricsMiddleware(mux)
	authedHandler := auth.Middleware(authCfg)(apiHandler)
	return h.corsMiddleware(authedHandler)
}

// corsMiddleware 添加 CORS 头支持跨域请求
//
// FrontendURL 配置时作为白名单来源，否则放开为 *（开发模式）。
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	origin := h.cfg.Server.FrontendURL
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
