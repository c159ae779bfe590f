package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cbpp-kr/postboard/config"
	"github.com/cbpp-kr/postboard/repositories"
	"github.com/cbpp-kr/postboard/services"
	"github.com/cbpp-kr/postboard/storage"
	"github.com/cbpp-kr/postboard/utils"
)

// PostController translates the HTTP surface into service calls: multipart
// parsing, upload screening, pagination and error-to-status mapping.
type PostController struct {
	svc     *services.PostService
	maxSize int64
	maxAtts int
}

// NewPostController creates a new PostController instance.
func NewPostController(svc *services.PostService, cfg config.AppConfig) *PostController {
	return &PostController{
		svc:     svc,
		maxSize: int64(cfg.MaxUploadSizeMB) * 1024 * 1024,
		maxAtts: cfg.MaxAttachmentsPerPost,
	}
}

// ListPosts returns one page of post summaries with attachment counts.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, limit := parsePagination(ctx.Query("page"), ctx.Query("limit"))
	filter := repositories.ListFilter{
		Search:     strings.TrimSpace(ctx.Query("search")),
		Image:      presenceFilter(ctx.Query("filterImage")),
		Attachment: presenceFilter(ctx.Query("filterAttachment")),
		Page:       page,
		Limit:      limit,
	}

	posts, total, err := p.svc.List(filter)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, "failed to list posts")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"posts":      posts,
		"total":      total,
		"page":       page,
		"limit":      limit,
		"totalPages": (total + int64(limit) - 1) / int64(limit),
	})
}

// CreatePost handles the multipart create request: fields title and body,
// at most one image file and up to ten attachment files.
func (p *PostController) CreatePost(ctx *gin.Context) {
	in, ok := p.readForm(ctx)
	if !ok {
		return
	}

	summary, err := p.svc.Create(services.CreateInput{
		Title:       in.title,
		Body:        in.body,
		Image:       in.image,
		Attachments: in.attachments,
	})
	if err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, summary)
}

// GetPost returns a single post row.
func (p *PostController) GetPost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	post, err := p.svc.Get(id)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, post)
}

// ListAttachments returns a post's attachment records, newest first.
func (p *PostController) ListAttachments(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	atts, err := p.svc.ListAttachments(id)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, atts)
}

// UpdatePost handles the multipart update request. Beyond the create
// fields it reads deleteImage ("true" clears the image when no new one is
// uploaded) and removeAttachments (JSON array of attachment ids).
func (p *PostController) UpdatePost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	in, ok := p.readForm(ctx)
	if !ok {
		return
	}

	var removeIDs []uint
	if raw := ctx.PostForm("removeAttachments"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &removeIDs); err != nil {
			utils.Error(ctx, http.StatusBadRequest, "removeAttachments must be a JSON array of ids")
			return
		}
		removeIDs = utils.UniqueUint(removeIDs)
	}

	summary, err := p.svc.Update(id, services.UpdateInput{
		Title:               in.title,
		Body:                in.body,
		Image:               in.image,
		DeleteImage:         ctx.PostForm("deleteImage") == "true",
		Attachments:         in.attachments,
		RemoveAttachmentIDs: removeIDs,
	})
	if err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// DeletePost removes a post, its image and all attachment files.
func (p *PostController) DeletePost(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := p.svc.Delete(id); err != nil {
		p.fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

type parsedForm struct {
	title       string
	body        string
	image       *services.Upload
	attachments []services.Upload
}

// readForm extracts and screens the multipart payload. Every upload is
// validated here, before the service writes anything, so a rejected file
// never leaves a row or an orphan behind.
func (p *PostController) readForm(ctx *gin.Context) (parsedForm, bool) {
	form, err := ctx.MultipartForm()
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		utils.Error(ctx, http.StatusBadRequest, "invalid multipart form")
		return parsedForm{}, false
	}

	out := parsedForm{
		title: utils.SanitizeTitle(strings.TrimSpace(ctx.PostForm("title"))),
		body:  utils.Sanitize(ctx.PostForm("body")),
	}
	if form == nil {
		return out, true
	}

	images := form.File["image"]
	if len(images) > 1 {
		utils.Error(ctx, http.StatusBadRequest, "only one image is allowed")
		return parsedForm{}, false
	}
	if len(images) == 1 {
		up, ok := p.readUpload(ctx, storage.KindImage, images[0])
		if !ok {
			return parsedForm{}, false
		}
		out.image = &up
	}

	attachments := form.File["attachments"]
	if len(attachments) > p.maxAtts {
		utils.Error(ctx, http.StatusBadRequest, "too many attachments")
		return parsedForm{}, false
	}
	for _, fh := range attachments {
		up, ok := p.readUpload(ctx, storage.KindAttachment, fh)
		if !ok {
			return parsedForm{}, false
		}
		out.attachments = append(out.attachments, up)
	}
	return out, true
}

func (p *PostController) readUpload(ctx *gin.Context, kind storage.Kind, fh *multipart.FileHeader) (services.Upload, bool) {
	if fh.Size > p.maxSize {
		utils.Error(ctx, http.StatusBadRequest, "file too large: maximum size is "+strconv.FormatInt(p.maxSize, 10)+" bytes")
		return services.Upload{}, false
	}
	f, err := fh.Open()
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, "failed to read uploaded file")
		return services.Upload{}, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, p.maxSize+1))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, "failed to read uploaded file")
		return services.Upload{}, false
	}
	if int64(len(data)) > p.maxSize {
		utils.Error(ctx, http.StatusBadRequest, "file too large: maximum size is "+strconv.FormatInt(p.maxSize, 10)+" bytes")
		return services.Upload{}, false
	}
	if err := storage.Validate(kind, data, fh.Filename, p.maxSize); err != nil {
		utils.Error(ctx, http.StatusBadRequest, err.Error())
		return services.Upload{}, false
	}
	return services.Upload{Data: data, Filename: fh.Filename}, true
}

// fail maps service and storage errors onto the flat error responses.
func (p *PostController) fail(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTitleRequired):
		utils.Error(ctx, http.StatusBadRequest, "Title is required")
	case errors.Is(err, services.ErrPostNotFound):
		utils.Error(ctx, http.StatusNotFound, "Post not found")
	case errors.Is(err, storage.ErrFileType), errors.Is(err, storage.ErrFileTooLarge):
		utils.Error(ctx, http.StatusBadRequest, err.Error())
	default:
		utils.Error(ctx, http.StatusInternalServerError, err.Error())
	}
}

func parseID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		utils.Error(ctx, http.StatusNotFound, "Post not found")
		return 0, false
	}
	return uint(id), true
}

func parsePagination(pageStr, limitStr string) (int, int) {
	page := 1
	limit := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	return page, limit
}

func presenceFilter(v string) string {
	switch v {
	case repositories.FilterWith, repositories.FilterWithout:
		return v
	default:
		return repositories.FilterAll
	}
}
