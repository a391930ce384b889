// Package suggestion 实现课程建议的提交与审核
//
// 用户提交课程建议，管理员审核并附备注。建议归属提交者：
// 本人可改可删（审核前），管理员可全量查看与审核。
package suggestion

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

// Store 建议流程依赖的存储能力
type Store interface {
	storage.UserStore
	storage.SuggestionStore
}

// Handler 建议 HTTP 处理器
type Handler struct {
	store Store
}

// NewHandler 创建建议处理器
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes 注册建议路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/suggestions", h.Create)
	mux.HandleFunc("GET /api/v1/suggestions/my", h.ListMine)
	mux.HandleFunc("GET /api/v1/suggestions", auth.AdminOnly(h.List))
	mux.HandleFunc("GET /api/v1/suggestions/{id}", h.Get)
	mux.HandleFunc("PUT /api/v1/suggestions/{id}", h.Update)
	mux.HandleFunc("DELETE /api/v1/suggestions/{id}", h.Delete)
	mux.HandleFunc("PUT /api/v1/suggestions/{id}/review", auth.AdminOnly(h.Review))
}

type suggestionRequest struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	Category            string `json:"category"`
	TargetAudience      string `json:"target_audience"`
	TechStack           string `json:"tech_stack"`
	PreferredInstructor string `json:"preferred_instructor"`
	Reason              string `json:"reason"`
}

// Create 提交课程建议
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authUser := auth.GetAuthUser(ctx)
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "title and description are required")
		return
	}

	user, err := h.store.GetUserByID(ctx, authUser.ID)
	if err != nil {
		log.Printf("[suggestion.create] load user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	now := time.Now()
	s := &model.Suggestion{
		ID:                  newID(),
		Title:               strings.TrimSpace(req.Title),
		Description:         strings.TrimSpace(req.Description),
		Category:            strings.TrimSpace(req.Category),
		TargetAudience:      strings.TrimSpace(req.TargetAudience),
		TechStack:           strings.TrimSpace(req.TechStack),
		PreferredInstructor: strings.TrimSpace(req.PreferredInstructor),
		Reason:              strings.TrimSpace(req.Reason),
		UserID:              user.ID,
		UserName:            user.Name,
		UserEmail:           user.Email,
		Status:              model.SuggestionStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := h.store.CreateSuggestion(ctx, s); err != nil {
		log.Printf("[suggestion.create] save: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListMine 当前用户的建议
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	authUser := auth.GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	suggestions, err := h.store.ListSuggestionsByUser(r.Context(), authUser.ID)
	if err != nil {
		log.Printf("[suggestion.list] by user %s: %v", authUser.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// List 管理端建议全量列表
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.store.ListSuggestions(r.Context())
	if err != nil {
		log.Printf("[suggestion.list] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

// Get 建议详情，仅本人或职员可见
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.loadOwned(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Update 本人修改未审核的建议
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.loadOwned(w, r, false)
	if !ok {
		return
	}
	if s.Status != model.SuggestionStatusPending {
		writeError(w, http.StatusConflict, "suggestion already reviewed")
		return
	}

	var req suggestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "title and description are required")
		return
	}

	s.Title = strings.TrimSpace(req.Title)
	s.Description = strings.TrimSpace(req.Description)
	s.Category = strings.TrimSpace(req.Category)
	s.TargetAudience = strings.TrimSpace(req.TargetAudience)
	s.TechStack = strings.TrimSpace(req.TechStack)
	s.PreferredInstructor = strings.TrimSpace(req.PreferredInstructor)
	s.Reason = strings.TrimSpace(req.Reason)
	s.UpdatedAt = time.Now()

	if err := h.store.UpdateSuggestion(r.Context(), s); err != nil {
		log.Printf("[suggestion.update] %s: %v", s.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Delete 本人或管理员删除建议
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.loadOwned(w, r, true)
	if !ok {
		return
	}
	if err := h.store.DeleteSuggestion(r.Context(), s.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "suggestion not found")
			return
		}
		log.Printf("[suggestion.delete] %s: %v", s.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type reviewRequest struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`
}

// Review 管理员审核建议
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	admin := auth.GetAuthUser(ctx)

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := model.SuggestionStatus(req.Status)
	if !status.Valid() || status == model.SuggestionStatusPending {
		writeError(w, http.StatusBadRequest, "status must be reviewed, approved or rejected")
		return
	}

	s, err := h.store.GetSuggestion(ctx, id)
	if err != nil {
		log.Printf("[suggestion.review] load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "suggestion not found")
		return
	}

	now := time.Now()
	s.Status = status
	s.AdminNotes = strings.TrimSpace(req.AdminNotes)
	s.ReviewedBy = admin.ID
	s.ReviewedAt = &now
	s.UpdatedAt = now

	if err := h.store.UpdateSuggestion(ctx, s); err != nil {
		log.Printf("[suggestion.review] save %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// loadOwned 加载建议并做归属检查；allowStaff 时职员绕过归属
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request, allowStaff bool) (*model.Suggestion, *auth.AuthUser, bool) {
	authUser := auth.GetAuthUser(r.Context())
	if authUser == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, nil, false
	}

	s, err := h.store.GetSuggestion(r.Context(), r.PathValue("id"))
	if err != nil {
		log.Printf("[suggestion] load %s: %v", r.PathValue("id"), err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, nil, false
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "suggestion not found")
		return nil, nil, false
	}

	staff := authUser.Role == auth.RoleAdmin || authUser.Role == auth.RoleEditor
	if s.UserID != authUser.ID && !(allowStaff && staff) {
		writeError(w, http.StatusForbidden, "not your suggestion")
		return nil, nil, false
	}
	return s, authUser, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}

func newID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return "sug-" + hex.EncodeToString(b)
}
