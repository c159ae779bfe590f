package repositories

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cbpp-kr/postboard/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_fk=1"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Post{}, &models.Attachment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func mustCreatePost(t *testing.T, repo *PostRepo, title, body, image string) uint {
	t.Helper()
	post := models.Post{Title: title, Body: body, Image: image}
	if err := repo.Create(&post); err != nil {
		t.Fatalf("create post %q: %v", title, err)
	}
	return post.ID
}

func mustInsertAttachment(t *testing.T, repo *AttachmentRepo, postID uint, stored, original string) uint {
	t.Helper()
	att := models.Attachment{PostID: postID, Filename: stored, OriginalName: original, FileSize: 42}
	if err := repo.Insert(&att); err != nil {
		t.Fatalf("insert attachment %q: %v", stored, err)
	}
	return att.ID
}
