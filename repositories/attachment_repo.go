package repositories

import (
	"gorm.io/gorm"

	"github.com/cbpp-kr/postboard/models"
)

// AttachmentRepo performs attachment row CRUD. Lookups and deletes are
// scoped by both attachment id and post id so a mismatched id cannot touch
// another post's files.
type AttachmentRepo struct {
	db *gorm.DB
}

func NewAttachmentRepo(db *gorm.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

func (r *AttachmentRepo) Insert(att *models.Attachment) error {
	return r.db.Create(att).Error
}

// ListByPost returns a post's attachments newest first; rows created in the
// same instant keep insertion order through the id tiebreak.
func (r *AttachmentRepo) ListByPost(postID uint) ([]models.Attachment, error) {
	var atts []models.Attachment
	err := r.db.Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Find(&atts).Error
	if atts == nil {
		atts = []models.Attachment{}
	}
	return atts, err
}

// FindStoredName returns gorm.ErrRecordNotFound when the attachment does
// not exist or belongs to a different post.
func (r *AttachmentRepo) FindStoredName(id, postID uint) (string, error) {
	var att models.Attachment
	err := r.db.Where("id = ? AND post_id = ?", id, postID).First(&att).Error
	if err != nil {
		return "", err
	}
	return att.Filename, nil
}

func (r *AttachmentRepo) Delete(id, postID uint) error {
	return r.db.Where("id = ? AND post_id = ?", id, postID).
		Delete(&models.Attachment{}).Error
}

// ListStoredNames returns the on-disk names of every attachment a post owns.
func (r *AttachmentRepo) ListStoredNames(postID uint) ([]string, error) {
	var names []string
	err := r.db.Model(&models.Attachment{}).
		Where("post_id = ?", postID).
		Pluck("filename", &names).Error
	return names, err
}

// AllStoredNames returns every attachment file name referenced by a row.
// Used by the orphan sweeper.
func (r *AttachmentRepo) AllStoredNames() ([]string, error) {
	var names []string
	err := r.db.Model(&models.Attachment{}).Pluck("filename", &names).Error
	return names, err
}
