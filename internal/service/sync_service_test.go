package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/pkg/dropbox"
	"dropbox-rag-go/pkg/queue"
)

// fakeFileRepo 是 FileRepository 的内存实现，供本包测试共享。
type fakeFileRepo struct {
	records map[string]*model.DropboxFile // 以 ID 为键
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{records: make(map[string]*model.DropboxFile)}
}

func (r *fakeFileRepo) FindByID(id string) (*model.DropboxFile, error) {
	if rec, ok := r.records[id]; ok {
		copied := *rec
		return &copied, nil
	}
	return nil, nil
}

func (r *fakeFileRepo) FindByDropboxID(dropboxFileID string) (*model.DropboxFile, error) {
	for _, rec := range r.records {
		if rec.DropboxFileID == dropboxFileID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeFileRepo) Upsert(record *model.DropboxFile) (*model.DropboxFile, error) {
	existing, _ := r.FindByDropboxID(record.DropboxFileID)
	if existing == nil {
		record.ID = uuid.NewString()
		record.CreatedAt = time.Now()
	} else {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		record.Attempts = existing.Attempts
		record.LastError = existing.LastError
	}
	copied := *record
	r.records[record.ID] = &copied
	return record, nil
}

func (r *fakeFileRepo) UpdateDropboxModifiedAt(id string, modifiedAt *time.Time) error {
	rec, ok := r.records[id]
	if !ok {
		return errors.New("record not found")
	}
	rec.DropboxModifiedAt = modifiedAt
	return nil
}

func (r *fakeFileRepo) List(status, fileType string, page, pageSize int) ([]model.DropboxFile, int64, error) {
	var out []model.DropboxFile
	for _, rec := range r.records {
		if status != "" && rec.Status != status {
			continue
		}
		if fileType != "" && rec.FileType != fileType {
			continue
		}
		out = append(out, *rec)
	}
	return out, int64(len(out)), nil
}

func (r *fakeFileRepo) MarkProcessing(id string) (bool, error) {
	rec, ok := r.records[id]
	if !ok {
		return false, nil
	}
	rec.Status = model.StatusProcessing
	rec.Attempts++
	return true, nil
}

func (r *fakeFileRepo) MarkCompleted(id, markdownKey string, chunkCount int, seconds float64) error {
	rec, ok := r.records[id]
	if !ok {
		return errors.New("record not found")
	}
	rec.Status = model.StatusCompleted
	rec.MarkdownKey = markdownKey
	rec.ChunkCount = chunkCount
	rec.ProcessingSeconds = seconds
	return nil
}

func (r *fakeFileRepo) MarkFailed(id, lastError string) error {
	rec, ok := r.records[id]
	if !ok {
		return errors.New("record not found")
	}
	rec.Status = model.StatusFailed
	rec.LastError = lastError
	return nil
}

type fakeSource struct {
	files    []dropbox.FileMetadata
	contents map[string][]byte
}

func (s *fakeSource) ListFiles(folderPath string, recursive bool, fileTypes []string) ([]dropbox.FileMetadata, error) {
	return s.files, nil
}

func (s *fakeSource) Download(dropboxPath string) ([]byte, error) {
	data, ok := s.contents[dropboxPath]
	if !ok {
		return nil, fmt.Errorf("not found: %s", dropboxPath)
	}
	return data, nil
}

type fakeUploader struct {
	uploads map[string][]byte
}

func (u *fakeUploader) Upload(ctx context.Context, objectName string, data []byte, contentType string) error {
	u.uploads[objectName] = data
	return nil
}

type fakeEnqueuer struct {
	msgs []queue.FileMessage
	err  error
}

func (e *fakeEnqueuer) EnqueueFile(ctx context.Context, msg queue.FileMessage) error {
	if e.err != nil {
		return e.err
	}
	e.msgs = append(e.msgs, msg)
	return nil
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	l.acquired++
	return true, nil
}

func (l *fakeLocker) Unlock(ctx context.Context) error {
	l.held = false
	l.released++
	return nil
}

func newSyncFixture() (*SyncService, *fakeFileRepo, *fakeSource, *fakeUploader, *fakeEnqueuer, *fakeLocker) {
	repo := newFakeFileRepo()
	source := &fakeSource{contents: make(map[string][]byte)}
	store := &fakeUploader{uploads: make(map[string][]byte)}
	producer := &fakeEnqueuer{}
	locker := &fakeLocker{}
	svc := NewSyncService(source, store, repo, producer, locker, config.SyncConfig{
		SupportedTypes: []string{"pdf", "txt", "md"},
		LockTTLSeconds: 1800,
	}, "/kb")
	return svc, repo, source, store, producer, locker
}

func remoteFile(id, name, path, hash string, modified time.Time) dropbox.FileMetadata {
	return dropbox.FileMetadata{
		ID:             id,
		Name:           name,
		PathDisplay:    path,
		Size:           100,
		Rev:            "rev-1",
		ServerModified: modified,
		ContentHash:    hash,
	}
}

func TestSyncService_NewFile(t *testing.T) {
	svc, repo, source, store, producer, locker := newSyncFixture()
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source.files = []dropbox.FileMetadata{remoteFile("id:1", "report.pdf", "/kb/report.pdf", "dbx-hash", modified)}
	source.contents["/kb/report.pdf"] = []byte("pdf bytes")

	result, err := svc.Sync(context.Background(), model.SyncRequest{Recursive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 0, result.Skipped)

	// 记录落库为 pending，blob key 以本地 SHA256 为前缀
	record, err := repo.FindByDropboxID("id:1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, model.StatusPending, record.Status)
	assert.Equal(t, "pdf", record.FileType)
	assert.Equal(t, "system", record.UserID)

	sum := sha256.Sum256([]byte("pdf bytes"))
	wantBlobKey := fmt.Sprintf("dropbox/%s/report.pdf", hex.EncodeToString(sum[:]))
	assert.Equal(t, wantBlobKey, record.BlobKey)
	assert.Contains(t, store.uploads, wantBlobKey)

	// 消息引用落库后的记录
	require.Len(t, producer.msgs, 1)
	assert.Equal(t, record.ID, producer.msgs[0].FileID)
	assert.Equal(t, wantBlobKey, producer.msgs[0].BlobKey)
	assert.Equal(t, "report.pdf", producer.msgs[0].Filename)

	// 锁成对获取和释放
	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
}

func TestSyncService_UnchangedFileIsSkipped(t *testing.T) {
	svc, _, source, _, producer, _ := newSyncFixture()
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source.files = []dropbox.FileMetadata{remoteFile("id:1", "report.pdf", "/kb/report.pdf", "dbx-hash", modified)}
	source.contents["/kb/report.pdf"] = []byte("pdf bytes")

	first, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Queued)

	// 同一元数据再同步一次：修改时间命中，直接跳过
	second, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Queued)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, producer.msgs, 1)
}

func TestSyncService_HashMatchRefreshesModifiedAt(t *testing.T) {
	svc, repo, source, _, producer, _ := newSyncFixture()
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source.files = []dropbox.FileMetadata{remoteFile("id:1", "report.pdf", "/kb/report.pdf", "dbx-hash", modified)}
	source.contents["/kb/report.pdf"] = []byte("pdf bytes")

	_, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)

	// 修改时间变了但 Dropbox 内容哈希没变：跳过并刷新本地修改时间
	touched := modified.Add(48 * time.Hour)
	source.files[0].ServerModified = touched

	result, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, producer.msgs, 1)

	record, err := repo.FindByDropboxID("id:1")
	require.NoError(t, err)
	require.NotNil(t, record.DropboxModifiedAt)
	assert.True(t, record.DropboxModifiedAt.Equal(touched))
}

func TestSyncService_ChangedContentReprocesses(t *testing.T) {
	svc, repo, source, _, producer, _ := newSyncFixture()
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source.files = []dropbox.FileMetadata{remoteFile("id:1", "report.pdf", "/kb/report.pdf", "dbx-hash", modified)}
	source.contents["/kb/report.pdf"] = []byte("pdf bytes v1")

	_, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)
	firstRecord, _ := repo.FindByDropboxID("id:1")

	source.files[0].ServerModified = modified.Add(time.Hour)
	source.files[0].ContentHash = "dbx-hash-v2"
	source.contents["/kb/report.pdf"] = []byte("pdf bytes v2")

	result, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	require.Len(t, producer.msgs, 2)

	// 同一源文件的记录 ID 不变
	secondRecord, _ := repo.FindByDropboxID("id:1")
	assert.Equal(t, firstRecord.ID, secondRecord.ID)
	assert.Equal(t, producer.msgs[0].FileID, producer.msgs[1].FileID)
	assert.Equal(t, "dbx-hash-v2", secondRecord.DropboxContentHash)
}

func TestSyncService_ForceReprocess(t *testing.T) {
	svc, _, source, _, producer, _ := newSyncFixture()
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source.files = []dropbox.FileMetadata{remoteFile("id:1", "report.pdf", "/kb/report.pdf", "dbx-hash", modified)}
	source.contents["/kb/report.pdf"] = []byte("pdf bytes")

	_, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)

	result, err := svc.Sync(context.Background(), model.SyncRequest{ForceReprocess: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Len(t, producer.msgs, 2)
}

func TestSyncService_LockConflict(t *testing.T) {
	svc, _, _, _, _, locker := newSyncFixture()
	locker.held = true

	_, err := svc.Sync(context.Background(), model.SyncRequest{})
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestSyncService_PerFileFailureDoesNotAbortBatch(t *testing.T) {
	svc, _, source, _, producer, locker := newSyncFixture()
	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source.files = []dropbox.FileMetadata{
		remoteFile("id:1", "broken.pdf", "/kb/broken.pdf", "h1", modified),
		remoteFile("id:2", "good.txt", "/kb/good.txt", "h2", modified),
	}
	// broken.pdf 没有内容，下载会失败
	source.contents["/kb/good.txt"] = []byte("hello")

	result, err := svc.Sync(context.Background(), model.SyncRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, producer.msgs, 1)
	assert.Equal(t, "good.txt", producer.msgs[0].Filename)
	assert.Equal(t, 1, locker.released)
}
