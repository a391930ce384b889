// Package payment 实现手动 UPI 支付审批流程
//
// 用户上传转账截图创建 pending 支付记录，管理员人工核对后批准或拒绝。
// 批准触发课程授权（加入已购集合 + 建进度记录）；拒绝只改状态。
// 状态转换由存储层条件更新保证恰好一次，重复审核返回 409。
package payment

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/config"
	objstore "course-admin/internal/shared/minio"
	"course-admin/internal/shared/mailer"
	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

// Store 支付流程依赖的存储能力
type Store interface {
	storage.UserStore
	storage.CourseStore
	storage.PaymentStore
}

// Handler 支付 HTTP 处理器
type Handler struct {
	store  Store
	files  objstore.Storage
	mail   mailer.Sender
	policy config.PolicyConfig
}

// NewHandler 创建支付处理器
func NewHandler(store Store, files objstore.Storage, mail mailer.Sender, policy config.PolicyConfig) *Handler {
	return &Handler{store: store, files: files, mail: mail, policy: policy}
}

// RegisterRoutes 注册支付路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/payments", h.Create)
	mux.HandleFunc("GET /api/v1/payments/my", h.ListMine)
	mux.HandleFunc("GET /api/v1/payments", auth.AdminOnly(h.List))
	mux.HandleFunc("PUT /api/v1/payments/{id}/approve", auth.AdminOnly(h.Approve))
	mux.HandleFunc("PUT /api/v1/payments/{id}/reject", auth.AdminOnly(h.Reject))
}

// ============================================================================
// 提交
// ============================================================================

// Create 提交支付凭证（multipart：screenshot 文件 + course_id/amount/upi_id 字段）
//
// 前置条件：邮箱已验证。金额按申报值原样记录，不与课程价格比对，
// 定价争议留给人工审核。重复购买默认允许（多条 pending 并存），
// 可通过 policy.reject_duplicate_purchase 拒绝已购用户再次提交。
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authUser := auth.GetAuthUser(ctx)
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.store.GetUserByID(ctx, authUser.ID)
	if err != nil {
		log.Printf("[payment.create] load user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if user.Email != "" && !user.IsEmailVerified {
		writeError(w, http.StatusForbidden, "email verification required before payment")
		return
	}

	limit := h.policy.ScreenshotLimit()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1024)
	if err := r.ParseMultipartForm(limit); err != nil {
		writeError(w, http.StatusBadRequest, "screenshot too large or malformed form")
		return
	}

	courseID := strings.TrimSpace(r.FormValue("course_id"))
	if courseID == "" {
		writeError(w, http.StatusBadRequest, "course_id is required")
		return
	}
	course, err := h.store.GetCourse(ctx, courseID)
	if err != nil {
		log.Printf("[payment.create] load course: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if course == nil {
		writeError(w, http.StatusNotFound, "course not found")
		return
	}

	if h.policy.RejectDuplicatePurchase && user.HasPurchased(courseID) {
		writeError(w, http.StatusConflict, "course already purchased")
		return
	}

	amount, err := strconv.ParseFloat(r.FormValue("amount"), 64)
	if err != nil || amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be a positive number")
		return
	}

	file, header, err := r.FormFile("screenshot")
	if err != nil {
		writeError(w, http.StatusBadRequest, "payment screenshot is required")
		return
	}
	defer file.Close()
	if header.Size > limit {
		writeError(w, http.StatusBadRequest, "screenshot exceeds size limit")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "screenshot must be an image")
		return
	}

	id := newID("pay")
	key := fmt.Sprintf("payments/%s%s", id, path.Ext(header.Filename))
	if err := h.files.Upload(ctx, key, file, header.Size, contentType); err != nil {
		log.Printf("[payment.create] upload %s: %v", key, err)
		writeError(w, http.StatusInternalServerError, "screenshot upload failed")
		return
	}

	p := &model.Payment{
		ID:         id,
		UserID:     user.ID,
		CourseID:   courseID,
		Screenshot: model.FileRef{Key: key, URL: h.files.PublicURL(key)},
		Amount:     amount,
		UpiID:      strings.TrimSpace(r.FormValue("upi_id")),
		Status:     model.PaymentStatusPending,
		CreatedAt:  time.Now(),
	}
	if err := h.store.CreatePayment(ctx, p); err != nil {
		log.Printf("[payment.create] save: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[payment.create] payment %s user=%s course=%s amount=%.2f", p.ID, user.ID, courseID, amount)
	writeJSON(w, http.StatusCreated, p)
}

// ============================================================================
// 查询
// ============================================================================

// ListMine 当前用户的支付历史
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	payments, err := h.store.ListPaymentsByUser(r.Context(), authUser.ID)
	if err != nil {
		log.Printf("[payment.list] by user %s: %v", authUser.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// List 管理端支付列表，可按 ?status= 过滤
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	status := model.PaymentStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.PaymentStatusPending, model.PaymentStatusApproved, model.PaymentStatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	payments, err := h.store.ListPayments(r.Context(), status)
	if err != nil {
		log.Printf("[payment.list] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// ============================================================================
// 辅助
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

// writeTransitionError 状态转换失败到 HTTP 状态码的映射
func writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "payment not found")
	case errors.Is(err, storage.ErrConflict):
		writeError(w, http.StatusConflict, "payment already reviewed")
	default:
		log.Printf("[payment] transition error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func newID(prefix string) string {
	b := make([]byte, 6)
	rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
