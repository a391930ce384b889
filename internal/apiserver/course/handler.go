package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/shared/cache"
	objstore "course-admin/internal/shared/minio"
	"course-admin/internal/shared/model"
	"course-admin/internal/shared/storage"
)

// 缩略图上传上限
const maxThumbnailBytes = 5 << 20

// Handler 课程目录 HTTP 处理器
type Handler struct {
	courses storage.CourseStore
	engine  *Engine
	cache   cache.CatalogCache
	files   objstore.Storage
}

// NewHandler 创建课程处理器
func NewHandler(courses storage.CourseStore, engine *Engine, catalogCache cache.CatalogCache, files objstore.Storage) *Handler {
	return &Handler{courses: courses, engine: engine, cache: catalogCache, files: files}
}

// RegisterRoutes 注册课程路由
//
// 目录读取公开；写操作仅限职员；进度与评论需要登录。
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/courses", h.List)
	mux.HandleFunc("GET /api/v1/courses/{id}", h.Get)
	mux.HandleFunc("POST /api/v1/courses", auth.StaffOnly(h.Create))
	mux.HandleFunc("PUT /api/v1/courses/{id}", auth.StaffOnly(h.Update))
	mux.HandleFunc("DELETE /api/v1/courses/{id}", auth.StaffOnly(h.Delete))
	mux.HandleFunc("PUT /api/v1/courses/{id}/thumbnail", auth.StaffOnly(h.UploadThumbnail))
	mux.HandleFunc("PUT /api/v1/courses/{courseId}/topics/{topicId}/complete", h.CompleteTopic)
	mux.HandleFunc("POST /api/v1/courses/{courseId}/topics/{topicId}/comments", h.AddComment)
}

// ============================================================================
// 目录读取
// ============================================================================

// List 公开课程列表（缓存优先）
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cached, err := h.cache.GetCourseList(ctx); err != nil {
		log.Printf("[course.list] cache read: %v", err)
	} else if cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	courses, err := h.courses.ListCourses(ctx)
	if err != nil {
		log.Printf("[course.list] ListCourses error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.cache.SetCourseList(ctx, courses); err != nil {
		log.Printf("[course.list] cache write: %v", err)
	}
	writeJSON(w, http.StatusOK, courses)
}

// Get 课程详情，按身份裁剪
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	c, err := h.loadCourse(ctx, id)
	if err != nil {
		log.Printf("[course.get] load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "course not found")
		return
	}

	userID := ""
	if u := auth.GetAuthUser(ctx); u != nil {
		userID = u.ID
	}

	view, err := h.engine.CourseView(ctx, c, userID)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		log.Printf("[course.get] view %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// loadCourse 缓存优先的单课读取
func (h *Handler) loadCourse(ctx context.Context, id string) (*model.Course, error) {
	if cached, err := h.cache.GetCourse(ctx, id); err != nil {
		log.Printf("[course] cache read %s: %v", id, err)
	} else if cached != nil {
		return cached, nil
	}

	c, err := h.courses.GetCourse(ctx, id)
	if err != nil || c == nil {
		return c, err
	}
	if err := h.cache.SetCourse(ctx, c); err != nil {
		log.Printf("[course] cache write %s: %v", id, err)
	}
	return c, nil
}

// ============================================================================
// 目录维护（职员）
// ============================================================================

// Create 创建课程
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var c model.Course
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(c.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if c.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	now := time.Now()
	c.ID = newID("crs")
	c.CreatedAt = now
	c.UpdatedAt = now
	if u := auth.GetAuthUser(r.Context()); u != nil {
		c.CreatedBy = u.ID
	}
	assignNestedIDs(&c)
	c.Normalize()

	if err := h.courses.CreateCourse(r.Context(), &c); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "course title already exists")
			return
		}
		log.Printf("[course.create] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.invalidateCatalog(r)
	writeJSON(w, http.StatusCreated, &c)
}

// Update 按 ID 整体替换课程内容，保留创建信息与缩略图
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	existing, err := h.courses.GetCourse(ctx, id)
	if err != nil {
		log.Printf("[course.update] load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "course not found")
		return
	}

	var c model.Course
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(c.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if c.Price < 0 {
		writeError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	c.ID = existing.ID
	c.CreatedBy = existing.CreatedBy
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	if c.Thumbnail.Key == "" && c.Thumbnail.URL == "" {
		c.Thumbnail = existing.Thumbnail
	}
	assignNestedIDs(&c)
	c.Normalize()

	if c.Title != existing.Title {
		other, err := h.courses.GetCourseByTitle(ctx, c.Title)
		if err != nil {
			log.Printf("[course.update] title check: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if other != nil && other.ID != c.ID {
			writeError(w, http.StatusConflict, "course title already exists")
			return
		}
	}

	if err := h.courses.UpdateCourse(ctx, &c); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, http.StatusConflict, "course title already exists")
			return
		}
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		log.Printf("[course.update] error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.invalidateCatalog(r)
	writeJSON(w, http.StatusOK, &c)
}

// Delete 删除课程
//
// 已购用户的 PurchasedCourses 不回收：访问检查按 ID 比较，
// 课程消失后详情接口自然返回 404。
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.courses.DeleteCourse(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "course not found")
			return
		}
		log.Printf("[course.delete] %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.invalidateCatalog(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// UploadThumbnail 上传课程缩略图（multipart 字段名 thumbnail）
func (h *Handler) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	c, err := h.courses.GetCourse(ctx, id)
	if err != nil {
		log.Printf("[course.thumbnail] load %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "course not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxThumbnailBytes)
	if err := r.ParseMultipartForm(maxThumbnailBytes); err != nil {
		writeError(w, http.StatusBadRequest, "thumbnail too large or malformed form")
		return
	}
	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		writeError(w, http.StatusBadRequest, "thumbnail file is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "thumbnail must be an image")
		return
	}

	key := fmt.Sprintf("thumbnails/%s%s", c.ID, path.Ext(header.Filename))
	if err := h.files.Upload(ctx, key, file, header.Size, contentType); err != nil {
		log.Printf("[course.thumbnail] upload %s: %v", key, err)
		writeError(w, http.StatusInternalServerError, "thumbnail upload failed")
		return
	}

	c.Thumbnail = model.FileRef{Key: key, URL: h.files.PublicURL(key)}
	c.UpdatedAt = time.Now()
	if err := h.courses.UpdateCourse(ctx, c); err != nil {
		log.Printf("[course.thumbnail] save %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.invalidateCatalog(r)
	writeJSON(w, http.StatusOK, c)
}

// ============================================================================
// 进度与评论
// ============================================================================

// CompleteTopic 标记主题完成
func (h *Handler) CompleteTopic(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	progress, err := h.engine.MarkTopicComplete(r.Context(),
		r.PathValue("courseId"), r.PathValue("topicId"), user.ID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

type commentRequest struct {
	Text string `json:"text"`
}

// AddComment 在主题下发表评论
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	user := auth.GetAuthUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "comment text is required")
		return
	}

	comment, err := h.engine.AddComment(r.Context(),
		r.PathValue("courseId"), r.PathValue("topicId"), user.ID, strings.TrimSpace(req.Text))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	// 评论写进课程文档，单课缓存随目录一起失效
	h.invalidateCatalog(r)
	writeJSON(w, http.StatusCreated, comment)
}

// writeEngineError 引擎错误到 HTTP 状态码的映射
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCourseNotFound):
		writeError(w, http.StatusNotFound, "course not found")
	case errors.Is(err, ErrTopicNotFound):
		writeError(w, http.StatusNotFound, "topic not found")
	case errors.Is(err, ErrUnknownUser):
		writeError(w, http.StatusUnauthorized, "unknown user")
	case errors.Is(err, ErrNoAccess):
		writeError(w, http.StatusForbidden, "course access required")
	default:
		log.Printf("[course] engine error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) invalidateCatalog(r *http.Request) {
	if err := h.cache.InvalidateCatalog(r.Context()); err != nil {
		log.Printf("[course] cache invalidate: %v", err)
	}
}

// assignNestedIDs 为缺 ID 的章节/主题补发 ID
func assignNestedIDs(c *model.Course) {
	for i := range c.Chapters {
		if c.Chapters[i].ID == "" {
			c.Chapters[i].ID = newID("chp")
		}
		for j := range c.Chapters[i].Topics {
			if c.Chapters[i].Topics[j].ID == "" {
				c.Chapters[i].Topics[j].ID = newID("top")
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
