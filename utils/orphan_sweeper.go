package utils

import (
	"time"

	"github.com/cbpp-kr/postboard/config"
	"github.com/cbpp-kr/postboard/repositories"
	"github.com/cbpp-kr/postboard/storage"
)

// StartOrphanSweeper launches a background goroutine that periodically
// removes files from the upload directories that no database row references.
// Such files are left behind when compensation after a failed request could
// not finish. Best-effort: failures are logged and retried next round.
//
// Files younger than minAge are skipped so a sweep cannot race a request
// that has written its file but not yet inserted the row.
func StartOrphanSweeper(store *storage.DiskStore, posts *repositories.PostRepo, attachments *repositories.AttachmentRepo, interval, minAge time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			if !config.Get().OrphanSweepEnabled {
				continue
			}
			sweepKind(store, storage.KindImage, minAge, posts.AllImageNames)
			sweepKind(store, storage.KindAttachment, minAge, attachments.AllStoredNames)
		}
	}()
}

func sweepKind(store *storage.DiskStore, kind storage.Kind, minAge time.Duration, referenced func() ([]string, error)) {
	names, err := referenced()
	if err != nil {
		Sugar.Warnf("orphan sweep: listing %s rows failed: %v", kind, err)
		return
	}
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	onDisk, err := store.ListNames(kind)
	if err != nil {
		Sugar.Warnf("orphan sweep: reading %s directory failed: %v", kind, err)
		return
	}

	cutoff := time.Now().Add(-minAge)
	removed := 0
	for name, info := range onDisk {
		if known[name] || info.ModTime().After(cutoff) {
			continue
		}
		if err := store.Delete(kind, name); err != nil {
			Sugar.Warnf("orphan sweep: deleting %s/%s failed: %v", kind, name, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		Sugar.Infof("orphan sweep: removed %d stale %s file(s)", removed, kind)
	}
}
