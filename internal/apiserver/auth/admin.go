package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

// RegisterAdminRoutes 注册用户管理路由（路由层需套 AdminOnly）
func (h *Handler) RegisterAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/admin/users", AdminOnly(h.ListUsers))
	mux.HandleFunc("PUT /api/v1/admin/users/{id}/role", AdminOnly(h.UpdateUserRole))
	mux.HandleFunc("DELETE /api/v1/admin/users/{id}", AdminOnly(h.DeleteUser))
}

// ListUsers 管理端用户列表
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		log.Printf("[auth.admin] ListUsers error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRole 调整用户角色
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role := model.UserRole(req.Role)
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	// 不允许管理员撤掉自己的管理权限
	if authUser := GetAuthUser(r.Context()); authUser != nil && authUser.ID == id && role != model.UserRoleAdmin {
		writeError(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	user, err := h.mutateUser(r.Context(), id, func(u *model.User) error {
		u.Role = role
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("[auth.admin] UpdateUserRole error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth.admin] Role updated: %s -> %s", id, role)
	writeJSON(w, http.StatusOK, user)
}

// DeleteUser 删除用户
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if authUser := GetAuthUser(r.Context()); authUser != nil && authUser.ID == id {
		writeError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("[auth.admin] DeleteUser error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	log.Printf("[auth.admin] User deleted: %s", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

// ============================================================================
// Admin Bootstrap
// ============================================================================

// EnsureAdminUser 确保管理员用户存在（启动时调用）
// 如果配置了 adminEmail 且数据库中不存在该用户，则自动创建
func EnsureAdminUser(store storage.UserStore, adminEmail, adminPassword string) error {
	if adminEmail == "" || adminPassword == "" {
		return nil
	}

	ctx := context.Background()
	existing, err := store.GetUserByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if existing != nil {
		if existing.Role != model.UserRoleAdmin {
			existing.Role = model.UserRoleAdmin
			if err := store.UpdateUser(ctx, existing); err != nil {
				return fmt.Errorf("promote admin user: %w", err)
			}
			log.Printf("[auth] Upgraded user to admin role: %s", existing.ID)
		}
		log.Printf("[auth] Admin user already exists: %s", existing.ID)
		return nil
	}

	hash, err := HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:               generateID(),
		Name:             "Admin",
		Email:            adminEmail,
		PasswordHash:     hash,
		Role:             model.UserRoleAdmin,
		IsEmailVerified:  true,
		PurchasedCourses: []string{},
		CourseProgress:   []model.ProgressRecord{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s", user.ID)
	return nil
}
