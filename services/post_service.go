package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cbpp-kr/postboard/models"
	"github.com/cbpp-kr/postboard/repositories"
	"github.com/cbpp-kr/postboard/storage"
)

var (
	// ErrTitleRequired is returned before any file is persisted.
	ErrTitleRequired = errors.New("Title is required")
	// ErrPostNotFound maps to a 404.
	ErrPostNotFound = errors.New("Post not found")
)

// Upload is one file payload taken from a multipart request.
type Upload struct {
	Data     []byte
	Filename string
}

// CreateInput carries the fields of a create request.
type CreateInput struct {
	Title       string
	Body        string
	Image       *Upload
	Attachments []Upload
}

// UpdateInput carries the fields of an update request. Image resolution
// priority: a new Image wins over DeleteImage; with neither the existing
// image is kept.
type UpdateInput struct {
	Title               string
	Body                string
	Image               *Upload
	DeleteImage         bool
	Attachments         []Upload
	RemoveAttachmentIDs []uint
}

// PostService coordinates the multi-step flows that touch both the file
// store and the database. Failures after a file write trigger best-effort
// compensation (delete the just-written file); compensation failures are
// logged, never surfaced.
type PostService struct {
	posts       *repositories.PostRepo
	attachments *repositories.AttachmentRepo
	files       storage.FileStore
	log         *zap.SugaredLogger
}

func NewPostService(posts *repositories.PostRepo, attachments *repositories.AttachmentRepo, files storage.FileStore, log *zap.SugaredLogger) *PostService {
	return &PostService{posts: posts, attachments: attachments, files: files, log: log}
}

// Create validates the title, materializes the uploads and creates the post
// and attachment rows. A failed post insert rolls back every file written
// for this request. A failed attachment insert drops only that one file;
// the remaining attachments still go through.
func (s *PostService) Create(in CreateInput) (models.PostSummary, error) {
	if in.Title == "" {
		return models.PostSummary{}, ErrTitleRequired
	}

	imageName := ""
	if in.Image != nil {
		name, err := s.files.Save(storage.KindImage, in.Image.Data, in.Image.Filename)
		if err != nil {
			return models.PostSummary{}, err
		}
		imageName = name
	}

	post := models.Post{Title: in.Title, Body: in.Body, Image: imageName}
	if err := s.posts.Create(&post); err != nil {
		s.removeFile(storage.KindImage, imageName)
		return models.PostSummary{}, fmt.Errorf("create post: %w", err)
	}

	accepted := s.addAttachments(post.ID, in.Attachments)

	return models.PostSummary{
		ID:              post.ID,
		Title:           post.Title,
		Body:            post.Body,
		Image:           post.Image,
		AttachmentCount: accepted,
	}, nil
}

// Get returns a post row by id.
func (s *PostService) Get(id uint) (models.Post, error) {
	post, err := s.posts.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Post{}, ErrPostNotFound
	}
	return post, err
}

// List returns one page of summaries and the pre-pagination total.
func (s *PostService) List(f repositories.ListFilter) ([]models.PostSummary, int64, error) {
	return s.posts.List(f)
}

// ListAttachments returns a post's attachments newest first.
func (s *PostService) ListAttachments(postID uint) ([]models.Attachment, error) {
	return s.attachments.ListByPost(postID)
}

// Update applies title/body, resolves the image, removes and adds
// attachments, then persists the row. The sub-steps are deliberately not
// atomic: attachment changes already applied stay applied even when the
// final row update fails.
func (s *PostService) Update(id uint, in UpdateInput) (models.PostSummary, error) {
	if in.Title == "" {
		return models.PostSummary{}, ErrTitleRequired
	}

	current, err := s.posts.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PostSummary{}, ErrPostNotFound
		}
		return models.PostSummary{}, fmt.Errorf("load post: %w", err)
	}

	imageName := current.Image
	newImageName := ""
	if in.Image != nil {
		name, err := s.files.Save(storage.KindImage, in.Image.Data, in.Image.Filename)
		if err != nil {
			return models.PostSummary{}, err
		}
		s.removeFile(storage.KindImage, current.Image)
		imageName = name
		newImageName = name
	} else if in.DeleteImage && current.Image != "" {
		s.removeFile(storage.KindImage, current.Image)
		imageName = ""
	}

	// Removals run independently per id; an unknown or foreign id is skipped.
	for _, attID := range in.RemoveAttachmentIDs {
		stored, err := s.attachments.FindStoredName(attID, id)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.log.Warnw("attachment lookup failed", "attachment_id", attID, "post_id", id, "error", err)
			}
			continue
		}
		s.removeFile(storage.KindAttachment, stored)
		if err := s.attachments.Delete(attID, id); err != nil {
			s.log.Warnw("attachment row delete failed", "attachment_id", attID, "post_id", id, "error", err)
		}
	}

	accepted := s.addAttachments(id, in.Attachments)

	updated := models.Post{ID: id, Title: in.Title, Body: in.Body, Image: imageName}
	if err := s.posts.Update(&updated); err != nil {
		s.removeFile(storage.KindImage, newImageName)
		return models.PostSummary{}, fmt.Errorf("update post: %w", err)
	}

	return models.PostSummary{
		ID:              id,
		Title:           in.Title,
		Body:            in.Body,
		Image:           imageName,
		AttachmentCount: accepted,
	}, nil
}

// Delete removes the post's image and attachment files, then the row; the
// row delete cascades the attachment rows. File deletions are best-effort
// and happen first, so a failing row delete can leave rows pointing at
// missing files.
func (s *PostService) Delete(id uint) error {
	post, err := s.posts.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("load post: %w", err)
	}

	s.removeFile(storage.KindImage, post.Image)

	names, err := s.attachments.ListStoredNames(id)
	if err != nil {
		s.log.Warnw("listing attachment files failed", "post_id", id, "error", err)
	}
	for _, name := range names {
		s.removeFile(storage.KindAttachment, name)
	}

	if err := s.posts.Delete(id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// addAttachments saves and records each upload in turn, returning how many
// made it into the database. One failing insert loses only its own file.
func (s *PostService) addAttachments(postID uint, uploads []Upload) int64 {
	var accepted int64
	for _, up := range uploads {
		name, err := s.files.Save(storage.KindAttachment, up.Data, up.Filename)
		if err != nil {
			s.log.Warnw("attachment save failed", "post_id", postID, "name", up.Filename, "error", err)
			continue
		}
		att := models.Attachment{
			PostID:       postID,
			Filename:     name,
			OriginalName: up.Filename,
			FileSize:     int64(len(up.Data)),
		}
		if err := s.attachments.Insert(&att); err != nil {
			s.log.Errorw("attachment insert failed", "post_id", postID, "name", up.Filename, "error", err)
			s.removeFile(storage.KindAttachment, name)
			continue
		}
		accepted++
	}
	return accepted
}

func (s *PostService) removeFile(kind storage.Kind, name string) {
	if name == "" {
		return
	}
	if err := s.files.Delete(kind, name); err != nil {
		s.log.Warnw("file cleanup failed", "kind", kind, "name", name, "error", err)
	}
}
