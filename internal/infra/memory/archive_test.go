package memory

import (
	"context"
	"testing"

	"live-quiz-service/internal/domain"
)

func TestArchiveKeepsNewestEntries(t *testing.T) {
	archive := NewArchive(2)
	for _, code := range []string{"11111", "22222", "33333"} {
		if err := archive.Archive(context.Background(), domain.RoomArchive{Code: code}); err != nil {
			t.Fatalf("archive: %v", err)
		}
	}
	entries := archive.Entries()
	if len(entries) != 2 || entries[0].Code != "22222" || entries[1].Code != "33333" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}
