package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/pkg/dropbox"
)

func TestDecide(t *testing.T) {
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	remote := dropbox.FileMetadata{
		ID:             "id:abc123",
		Name:           "report.pdf",
		ServerModified: modified,
		ContentHash:    "hash-1",
	}

	t.Run("no existing record is a new file", func(t *testing.T) {
		decision, refresh := Decide(remote, nil, false)
		assert.Equal(t, DecisionNew, decision)
		assert.False(t, refresh)
	})

	t.Run("force overrides all dedup checks", func(t *testing.T) {
		existing := &model.DropboxFile{
			DropboxModifiedAt:  &modified,
			DropboxContentHash: "hash-1",
		}
		decision, refresh := Decide(remote, existing, true)
		assert.Equal(t, DecisionReprocess, decision)
		assert.False(t, refresh)
	})

	t.Run("matching modified date skips without refresh", func(t *testing.T) {
		existing := &model.DropboxFile{
			DropboxModifiedAt:  &modified,
			DropboxContentHash: "hash-stale",
		}
		decision, refresh := Decide(remote, existing, false)
		assert.Equal(t, DecisionSkip, decision)
		assert.False(t, refresh)
	})

	t.Run("changed date but same hash skips and refreshes date", func(t *testing.T) {
		older := modified.Add(-24 * time.Hour)
		existing := &model.DropboxFile{
			DropboxModifiedAt:  &older,
			DropboxContentHash: "hash-1",
		}
		decision, refresh := Decide(remote, existing, false)
		assert.Equal(t, DecisionSkip, decision)
		assert.True(t, refresh)
	})

	t.Run("changed date and changed hash reprocesses", func(t *testing.T) {
		older := modified.Add(-24 * time.Hour)
		existing := &model.DropboxFile{
			DropboxModifiedAt:  &older,
			DropboxContentHash: "hash-0",
		}
		decision, refresh := Decide(remote, existing, false)
		assert.Equal(t, DecisionReprocess, decision)
		assert.False(t, refresh)
	})

	t.Run("missing remote hash never matches", func(t *testing.T) {
		noHash := remote
		noHash.ContentHash = ""
		older := modified.Add(-24 * time.Hour)
		existing := &model.DropboxFile{
			DropboxModifiedAt:  &older,
			DropboxContentHash: "",
		}
		decision, refresh := Decide(noHash, existing, false)
		assert.Equal(t, DecisionReprocess, decision)
		assert.False(t, refresh)
	})

	t.Run("record without modified date falls through to hash check", func(t *testing.T) {
		existing := &model.DropboxFile{DropboxContentHash: "hash-1"}
		decision, refresh := Decide(remote, existing, false)
		assert.Equal(t, DecisionSkip, decision)
		assert.True(t, refresh)
	})
}
