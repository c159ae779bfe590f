package repositories

import (
	"gorm.io/gorm"

	"github.com/cbpp-kr/postboard/models"
)

// Presence filters for the listing query.
const (
	FilterAll     = "all"
	FilterWith    = "with"
	FilterWithout = "without"
)

// ListFilter narrows and pages the post listing. Filters combine with AND.
type ListFilter struct {
	Search     string // substring match on title or body
	Image      string // all | with | without
	Attachment string // all | with | without
	Page       int    // 1-based
	Limit      int
}

// PostRepo performs post row CRUD and the joined listing query.
type PostRepo struct {
	db *gorm.DB
}

func NewPostRepo(db *gorm.DB) *PostRepo {
	return &PostRepo{db: db}
}

func (r *PostRepo) Create(post *models.Post) error {
	return r.db.Create(post).Error
}

// GetByID returns gorm.ErrRecordNotFound when no such post exists.
func (r *PostRepo) GetByID(id uint) (models.Post, error) {
	var post models.Post
	err := r.db.First(&post, id).Error
	return post, err
}

func (r *PostRepo) Update(post *models.Post) error {
	return r.db.Model(&models.Post{ID: post.ID}).
		Select("title", "body", "image").
		Updates(map[string]interface{}{
			"title": post.Title,
			"body":  post.Body,
			"image": post.Image,
		}).Error
}

// Delete removes the post row; attachment rows go with it through the
// foreign key constraint.
func (r *PostRepo) Delete(id uint) error {
	return r.db.Delete(&models.Post{}, id).Error
}

// List returns one page of summaries ordered newest first plus the total
// number of posts matching the filter before pagination.
func (r *PostRepo) List(f ListFilter) ([]models.PostSummary, int64, error) {
	filtered := func() *gorm.DB {
		q := r.db.Table("posts p").
			Joins("LEFT JOIN attachments a ON a.post_id = p.id")
		if f.Search != "" {
			pattern := "%" + f.Search + "%"
			q = q.Where("p.title LIKE ? OR p.body LIKE ?", pattern, pattern)
		}
		switch f.Image {
		case FilterWith:
			q = q.Where("p.image IS NOT NULL AND p.image != ''")
		case FilterWithout:
			q = q.Where("p.image IS NULL OR p.image = ''")
		}
		switch f.Attachment {
		case FilterWith:
			q = q.Where("a.id IS NOT NULL")
		case FilterWithout:
			q = q.Where("a.id IS NULL")
		}
		return q
	}

	var total int64
	if err := filtered().Distinct("p.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}

	var summaries []models.PostSummary
	err := filtered().
		Select("p.id, p.title, p.body, p.image, COUNT(a.id) AS attachment_count").
		Group("p.id, p.title, p.body, p.image").
		Order("p.id DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Scan(&summaries).Error
	if err != nil {
		return nil, 0, err
	}
	if summaries == nil {
		summaries = []models.PostSummary{}
	}
	return summaries, total, nil
}

// AttachmentCount reports the number of attachment rows a post owns.
func (r *PostRepo) AttachmentCount(postID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Attachment{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

// AllImageNames returns every non-empty image file name referenced by a
// post row. Used by the orphan sweeper.
func (r *PostRepo) AllImageNames() ([]string, error) {
	var names []string
	err := r.db.Model(&models.Post{}).
		Where("image IS NOT NULL AND image != ''").
		Pluck("image", &names).Error
	return names, err
}
