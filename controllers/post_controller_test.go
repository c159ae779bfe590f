package controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cbpp-kr/postboard/config"
	"github.com/cbpp-kr/postboard/models"
	"github.com/cbpp-kr/postboard/routes"
	"github.com/cbpp-kr/postboard/storage"
	"github.com/cbpp-kr/postboard/utils"
)

var (
	pngData = append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 32)...)
	pdfData = append([]byte("%PDF-1.4"), make([]byte, 32)...)
	exeData = append([]byte("MZ"), make([]byte, 32)...)
)

func newTestRouter(t *testing.T) (*gin.Engine, *storage.DiskStore) {
	t.Helper()
	tmp := t.TempDir()

	config.SetForTest(config.AppConfig{
		AppPort:               "0",
		SQLiteFile:            filepath.Join(tmp, "api.db"),
		UploadDir:             filepath.Join(tmp, "uploads"),
		MaxUploadSizeMB:       10,
		MaxAttachmentsPerPost: 10,
		RateLimitPerMinute:    100000,
		AllowedOrigins:        []string{"*"},
		GinMode:               "test",
		GinPath:               filepath.Join(tmp, "gin.log"),
		LogLevel:              "error",
		LogPath:               filepath.Join(tmp, "app.log"),
	})
	utils.Sugar = zap.NewNop().Sugar()

	db, err := gorm.Open(sqlite.Open(filepath.Join(tmp, "api.db")+"?_fk=1"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Post{}, &models.Attachment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := storage.NewDiskStore(filepath.Join(tmp, "uploads"), 10*1024*1024)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return routes.SetupRouter(db, store), store
}

type filePart struct {
	field string
	name  string
	data  []byte
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files []filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, val := range fields {
		if err := w.WriteField(key, val); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for _, fp := range files {
		fw, err := w.CreateFormFile(fp.field, fp.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(fp.data); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func do(t *testing.T, r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			body = nil
		}
	}
	return rec, body
}

func createPost(t *testing.T, r *gin.Engine, title string, files []filePart) map[string]any {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/posts",
		map[string]string{"title": title, "body": "body of " + title}, files)
	rec, body := do(t, r, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %q: status %d body %s", title, rec.Code, rec.Body.String())
	}
	return body
}

func TestCreateAndGetPost(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createPost(t, r, "A", []filePart{
		{"image", "photo.png", pngData},
		{"attachments", "doc.pdf", pdfData},
	})
	if created["attachmentCount"] != float64(1) {
		t.Errorf("attachmentCount = %v, want 1", created["attachmentCount"])
	}
	if created["image"] == "" {
		t.Error("image not set on create response")
	}
	id := int(created["id"].(float64))

	rec, body := do(t, r, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}
	if body["title"] != "A" || body["body"] != "body of A" {
		t.Errorf("get body = %v", body)
	}
	if body["image"] == "" {
		t.Error("image missing on get")
	}

	rec, _ = do(t, r, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d/attachments", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("attachments: status %d", rec.Code)
	}
	var atts []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &atts); err != nil {
		t.Fatalf("attachments decode: %v", err)
	}
	if len(atts) != 1 || atts[0]["original_name"] != "doc.pdf" {
		t.Errorf("attachments = %v", atts)
	}
}

func TestCreateWithoutTitle(t *testing.T) {
	r, store := newTestRouter(t)

	req := multipartRequest(t, http.MethodPost, "/api/posts",
		map[string]string{"body": "no title"}, []filePart{
			{"image", "photo.png", pngData},
			{"attachments", "doc.pdf", pdfData},
		})
	rec, body := do(t, r, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body["error"] != "Title is required" {
		t.Errorf("error = %v", body["error"])
	}

	// nothing persisted: no rows, no files
	rec, body = do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	if body["total"] != float64(0) {
		t.Errorf("total = %v, want 0", body["total"])
	}
	images, err := store.ListNames(storage.KindImage)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	attachments, err := store.ListNames(storage.KindAttachment)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	if len(images) != 0 || len(attachments) != 0 {
		t.Error("rejected request left files on disk")
	}
}

func TestCreateRejectsBadAttachmentType(t *testing.T) {
	r, _ := newTestRouter(t)

	req := multipartRequest(t, http.MethodPost, "/api/posts",
		map[string]string{"title": "A"}, []filePart{
			{"attachments", "virus.exe", exeData},
		})
	rec, body := do(t, r, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg, _ := body["error"].(string); !strings.Contains(msg, "file type not allowed") {
		t.Errorf("error = %v", body["error"])
	}

	// rejected before any database write
	_, listBody := do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts", nil))
	if listBody["total"] != float64(0) {
		t.Errorf("total = %v, want 0", listBody["total"])
	}
}

func TestListShapeAndFilters(t *testing.T) {
	r, _ := newTestRouter(t)

	createPost(t, r, "with image", []filePart{{"image", "a.png", pngData}})
	createPost(t, r, "with attachment", []filePart{{"attachments", "a.pdf", pdfData}})
	createPost(t, r, "bare", nil)

	rec, body := do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts?page=1&limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["total"] != float64(3) || body["page"] != float64(1) || body["limit"] != float64(2) || body["totalPages"] != float64(2) {
		t.Errorf("pagination fields = %v", body)
	}
	posts := body["posts"].([]any)
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	// newest first
	if posts[0].(map[string]any)["title"] != "bare" {
		t.Errorf("first post = %v", posts[0])
	}

	_, body = do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts?filterImage=with", nil))
	if body["total"] != float64(1) {
		t.Errorf("filterImage=with total = %v", body["total"])
	}
	_, body = do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts?filterAttachment=with", nil))
	if body["total"] != float64(1) {
		t.Errorf("filterAttachment=with total = %v", body["total"])
	}
	_, body = do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts?filterImage=without&filterAttachment=without", nil))
	if body["total"] != float64(1) {
		t.Errorf("both without total = %v", body["total"])
	}
	_, body = do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts?search=attachment", nil))
	if body["total"] != float64(1) {
		t.Errorf("search total = %v", body["total"])
	}

	// page past the end: empty posts, total intact
	_, body = do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts?page=5&limit=2", nil))
	if body["total"] != float64(3) || len(body["posts"].([]any)) != 0 {
		t.Errorf("page past end = %v", body)
	}
}

func TestGetMissingPost(t *testing.T) {
	r, _ := newTestRouter(t)

	rec, body := do(t, r, httptest.NewRequest(http.MethodGet, "/api/posts/999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body["error"] != "Post not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUpdatePostImageAndAttachments(t *testing.T) {
	r, store := newTestRouter(t)

	created := createPost(t, r, "A", []filePart{
		{"image", "old.png", pngData},
		{"attachments", "old.pdf", pdfData},
	})
	id := int(created["id"].(float64))
	oldImage := created["image"].(string)

	rec, _ := do(t, r, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d/attachments", id), nil))
	var atts []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &atts); err != nil {
		t.Fatalf("attachments decode: %v", err)
	}
	attID := int(atts[0]["id"].(float64))

	// clear the image and remove the attachment
	req := multipartRequest(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", id),
		map[string]string{
			"title":             "A2",
			"body":              "updated",
			"deleteImage":       "true",
			"removeAttachments": fmt.Sprintf("[%d]", attID),
		}, nil)
	rec, body := do(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	if body["image"] != "" {
		t.Errorf("image = %v, want cleared", body["image"])
	}
	if store.Exists(storage.KindImage, oldImage) {
		t.Error("old image file still on disk")
	}

	_, got := do(t, r, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil))
	if got["title"] != "A2" || got["body"] != "updated" || got["image"] != "" {
		t.Errorf("post after update = %v", got)
	}

	rec, _ = do(t, r, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d/attachments", id), nil))
	atts = nil
	if err := json.Unmarshal(rec.Body.Bytes(), &atts); err != nil {
		t.Fatalf("attachments decode: %v", err)
	}
	if len(atts) != 0 {
		t.Errorf("attachments after removal = %v", atts)
	}

	// replace with a fresh image
	req = multipartRequest(t, http.MethodPut, fmt.Sprintf("/api/posts/%d", id),
		map[string]string{"title": "A3"}, []filePart{{"image", "new.png", pngData}})
	rec, body = do(t, r, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d", rec.Code)
	}
	newImage, _ := body["image"].(string)
	if newImage == "" || !store.Exists(storage.KindImage, newImage) {
		t.Errorf("new image %q not stored", newImage)
	}
}

func TestUpdateMissingPost(t *testing.T) {
	r, _ := newTestRouter(t)
	req := multipartRequest(t, http.MethodPut, "/api/posts/999",
		map[string]string{"title": "x"}, nil)
	rec, body := do(t, r, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body["error"] != "Post not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestDeletePost(t *testing.T) {
	r, store := newTestRouter(t)

	created := createPost(t, r, "doomed", []filePart{
		{"image", "img.png", pngData},
		{"attachments", "doc.pdf", pdfData},
	})
	id := int(created["id"].(float64))
	image := created["image"].(string)

	rec, body := do(t, r, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	if body["message"] != "Post deleted successfully" {
		t.Errorf("message = %v", body["message"])
	}

	if store.Exists(storage.KindImage, image) {
		t.Error("image file survived delete")
	}
	names, err := store.ListNames(storage.KindAttachment)
	if err != nil {
		t.Fatalf("ListNames: %v", err)
	}
	if len(names) != 0 {
		t.Error("attachment files survived delete")
	}

	rec, _ = do(t, r, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", rec.Code)
	}
	rec, _ = do(t, r, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/posts/%d/attachments", id), nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("attachments after delete = %s", rec.Body.String())
	}

	rec, _ = do(t, r, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/posts/%d", id), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d, want 404", rec.Code)
	}
}

func TestStaticServesStoredFiles(t *testing.T) {
	r, _ := newTestRouter(t)

	created := createPost(t, r, "A", []filePart{{"image", "photo.png", pngData}})
	image := created["image"].(string)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/images/"+image, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("static image: status %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), pngData) {
		t.Error("served image bytes differ from upload")
	}
}
