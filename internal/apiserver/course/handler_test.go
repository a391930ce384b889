package course

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"course-admin/internal/apiserver/auth"
	"course-admin/internal/shared/model"
	objstore "course-admin/internal/shared/minio"
	"course-admin/internal/shared/storage/repository"
)

// memCache 记录失效次数的内存目录缓存
type memCache struct {
	list        []*model.Course
	courses     map[string]*model.Course
	invalidated int
}

func newMemCache() *memCache {
	return &memCache{courses: map[string]*model.Course{}}
}

func (c *memCache) GetCourseList(ctx context.Context) ([]*model.Course, error) { return c.list, nil }
func (c *memCache) SetCourseList(ctx context.Context, courses []*model.Course) error {
	c.list = courses
	return nil
}
func (c *memCache) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	return c.courses[id], nil
}
func (c *memCache) SetCourse(ctx context.Context, course *model.Course) error {
	c.courses[course.ID] = course
	return nil
}
func (c *memCache) InvalidateCatalog(ctx context.Context) error {
	c.invalidated++
	c.list = nil
	c.courses = map[string]*model.Course{}
	return nil
}
func (c *memCache) Close() error { return nil }

type testEnv struct {
	handler *Handler
	store   *repository.Store
	cache   *memCache
	files   *objstore.MemStorage
	mux     *http.ServeMux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t)
	c := newMemCache()
	files := objstore.NewMemStorage()
	engine := NewEngine(store, store, true)
	h := NewHandler(store, engine, c, files)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &testEnv{handler: h, store: store, cache: c, files: files, mux: mux}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte, user *auth.AuthUser) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		r = r.WithContext(auth.WithAuthUser(r.Context(), user))
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, r)
	return w
}

var staff = &auth.AuthUser{ID: "usr-ed", Role: auth.RoleEditor}

func TestListCachesCourses(t *testing.T) {
	env := newTestEnv(t)
	seedCourse(t, env.store, "crs-1", "Go Backend")

	w := env.do(t, "GET", "/api/v1/courses", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if env.cache.list == nil {
		t.Error("list should be cached after a miss")
	}

	var courses []*model.Course
	if err := json.Unmarshal(w.Body.Bytes(), &courses); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(courses) != 1 || courses[0].Title != "Go Backend" {
		t.Errorf("courses = %+v", courses)
	}
}

func TestCreateCourse(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(model.Course{
		Title: "Go Backend",
		Price: 999,
		Chapters: []model.Chapter{
			{Title: "Basics", Order: 1, Topics: []model.Topic{{Title: "Intro"}}},
		},
	})
	w := env.do(t, "POST", "/api/v1/courses", body, staff)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var created model.Course
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" || created.TotalTopics != 1 || created.CreatedBy != "usr-ed" {
		t.Errorf("created = %+v", created)
	}
	if created.Chapters[0].ID == "" || created.Chapters[0].Topics[0].ID == "" {
		t.Error("nested IDs must be assigned")
	}
	if env.cache.invalidated != 1 {
		t.Errorf("invalidations = %d, want 1", env.cache.invalidated)
	}

	// 标题唯一
	w = env.do(t, "POST", "/api/v1/courses", body, staff)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate title status = %d, want 409", w.Code)
	}
}

func TestCreateCourseValidation(t *testing.T) {
	env := newTestEnv(t)

	body, _ := json.Marshal(model.Course{Price: 10})
	if w := env.do(t, "POST", "/api/v1/courses", body, staff); w.Code != http.StatusBadRequest {
		t.Errorf("missing title status = %d", w.Code)
	}
	body, _ = json.Marshal(model.Course{Title: "X", Price: -1})
	if w := env.do(t, "POST", "/api/v1/courses", body, staff); w.Code != http.StatusBadRequest {
		t.Errorf("negative price status = %d", w.Code)
	}
}

func TestCreateCourseRequiresStaff(t *testing.T) {
	env := newTestEnv(t)
	body, _ := json.Marshal(model.Course{Title: "X", Price: 1})

	visitor := &auth.AuthUser{ID: "usr-1", Role: "visitor"}
	if w := env.do(t, "POST", "/api/v1/courses", body, visitor); w.Code != http.StatusForbidden {
		t.Errorf("visitor status = %d, want 403", w.Code)
	}
}

func TestUpdateCoursePreservesMetadata(t *testing.T) {
	env := newTestEnv(t)
	orig := seedCourse(t, env.store, "crs-1", "Go Backend")
	orig.Thumbnail = model.FileRef{Key: "thumbnails/crs-1.png", URL: "http://x/crs-1.png"}
	if err := env.store.UpdateCourse(context.Background(), orig); err != nil {
		t.Fatalf("seed thumbnail: %v", err)
	}

	discounted := 249.0
	body, _ := json.Marshal(model.Course{
		Title:           "Go Backend v2",
		Price:           499,
		DiscountedPrice: &discounted,
		Chapters:        orig.Chapters,
	})
	w := env.do(t, "PUT", "/api/v1/courses/crs-1", body, staff)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var updated model.Course
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.DiscountPercent != 50 {
		t.Errorf("discount = %d, want 50", updated.DiscountPercent)
	}
	if updated.Thumbnail.Key != "thumbnails/crs-1.png" {
		t.Error("thumbnail must survive an update without one")
	}
	if !updated.CreatedAt.Equal(orig.CreatedAt) {
		t.Error("created_at must be preserved")
	}
}

func TestUpdateCourseTitleConflict(t *testing.T) {
	env := newTestEnv(t)
	seedCourse(t, env.store, "crs-1", "Go Backend")
	seedCourse(t, env.store, "crs-2", "Rust Backend")

	body, _ := json.Marshal(model.Course{Title: "Rust Backend", Price: 1})
	if w := env.do(t, "PUT", "/api/v1/courses/crs-1", body, staff); w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestDeleteCourse(t *testing.T) {
	env := newTestEnv(t)
	seedCourse(t, env.store, "crs-1", "Go Backend")

	if w := env.do(t, "DELETE", "/api/v1/courses/crs-1", nil, staff); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w := env.do(t, "GET", "/api/v1/courses/crs-1", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("after delete status = %d, want 404", w.Code)
	}
	if w := env.do(t, "DELETE", "/api/v1/courses/crs-1", nil, staff); w.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d, want 404", w.Code)
	}
}

func TestGetCourseAnonymousVsPurchaser(t *testing.T) {
	env := newTestEnv(t)
	seedCourse(t, env.store, "crs-1", "Go Backend")
	seedUser(t, env.store, "usr-1", model.UserRoleVisitor, "crs-1")

	// 匿名只见试看
	w := env.do(t, "GET", "/api/v1/courses/crs-1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("anon status = %d", w.Code)
	}
	var view View
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.HasAccess {
		t.Error("anonymous must not have access")
	}

	// 购买者获得完整内容与进度
	w = env.do(t, "GET", "/api/v1/courses/crs-1", nil, &auth.AuthUser{ID: "usr-1", Role: "visitor"})
	if w.Code != http.StatusOK {
		t.Fatalf("purchaser status = %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &view)
	if !view.HasAccess || view.Progress == nil {
		t.Errorf("view = %+v, want access with progress", view)
	}

	// 令牌指向已删除用户
	w = env.do(t, "GET", "/api/v1/courses/crs-1", nil, &auth.AuthUser{ID: "usr-gone", Role: "visitor"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("ghost user status = %d, want 401", w.Code)
	}
}

func TestCompleteTopicEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedCourse(t, env.store, "crs-1", "Go Backend")
	seedUser(t, env.store, "usr-1", model.UserRoleVisitor, "crs-1")
	me := &auth.AuthUser{ID: "usr-1", Role: "visitor"}

	w := env.do(t, "PUT", "/api/v1/courses/crs-1/topics/top-1/complete", nil, me)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var p model.ProgressRecord
	json.Unmarshal(w.Body.Bytes(), &p)
	if p.ProgressPercent != 25 || p.LastWatchedTopic != "top-1" {
		t.Errorf("progress = %+v", p)
	}

	if w := env.do(t, "PUT", "/api/v1/courses/crs-1/topics/top-nope/complete", nil, me); w.Code != http.StatusNotFound {
		t.Errorf("missing topic status = %d", w.Code)
	}

	// 未购买且严格模式
	seedUser(t, env.store, "usr-2", model.UserRoleVisitor)
	other := &auth.AuthUser{ID: "usr-2", Role: "visitor"}
	if w := env.do(t, "PUT", "/api/v1/courses/crs-1/topics/top-1/complete", nil, other); w.Code != http.StatusForbidden {
		t.Errorf("no access status = %d, want 403", w.Code)
	}
}

func TestAddCommentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedCourse(t, env.store, "crs-1", "Go Backend")
	seedUser(t, env.store, "usr-1", model.UserRoleVisitor, "crs-1")
	me := &auth.AuthUser{ID: "usr-1", Role: "visitor"}

	body, _ := json.Marshal(commentRequest{Text: "  nice one  "})
	w := env.do(t, "POST", "/api/v1/courses/crs-1/topics/top-2/comments", body, me)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var comment model.Comment
	json.Unmarshal(w.Body.Bytes(), &comment)
	if comment.Text != "nice one" || comment.UserID != "usr-1" {
		t.Errorf("comment = %+v", comment)
	}

	body, _ = json.Marshal(commentRequest{Text: "   "})
	if w := env.do(t, "POST", "/api/v1/courses/crs-1/topics/top-2/comments", body, me); w.Code != http.StatusBadRequest {
		t.Errorf("blank comment status = %d", w.Code)
	}
}

func TestUploadThumbnail(t *testing.T) {
	env := newTestEnv(t)
	seedCourse(t, env.store, "crs-1", "Go Backend")

	makeForm := func(field, filename, contentType string) (*bytes.Buffer, string) {
		buf := &bytes.Buffer{}
		mw := multipart.NewWriter(buf)
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		hdr.Set("Content-Type", contentType)
		part, _ := mw.CreatePart(hdr)
		part.Write([]byte("fake image bytes"))
		mw.Close()
		return buf, mw.FormDataContentType()
	}

	buf, ct := makeForm("thumbnail", "cover.png", "image/png")
	r := httptest.NewRequest("PUT", "/api/v1/courses/crs-1/thumbnail", buf)
	r.Header.Set("Content-Type", ct)
	r = r.WithContext(auth.WithAuthUser(r.Context(), staff))
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var updated model.Course
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Thumbnail.Key != "thumbnails/crs-1.png" {
		t.Errorf("thumbnail key = %s", updated.Thumbnail.Key)
	}
	if !env.files.Has("thumbnails/crs-1.png") {
		t.Error("object must land in storage")
	}

	// 非图片类型
	buf, ct = makeForm("thumbnail", "cover.txt", "text/plain")
	r = httptest.NewRequest("PUT", "/api/v1/courses/crs-1/thumbnail", buf)
	r.Header.Set("Content-Type", ct)
	r = r.WithContext(auth.WithAuthUser(r.Context(), staff))
	w = httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-image status = %d, want 400", w.Code)
	}
}
