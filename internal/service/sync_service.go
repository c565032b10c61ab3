package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/repository"
	"dropbox-rag-go/pkg/dropbox"
	"dropbox-rag-go/pkg/log"
	"dropbox-rag-go/pkg/queue"
)

// ErrSyncInProgress 表示已有一次同步在运行中，本次请求被拒绝。
var ErrSyncInProgress = errors.New("another sync is already in progress")

// DropboxSource 是同步编排需要的远端文件源能力。
type DropboxSource interface {
	ListFiles(folderPath string, recursive bool, fileTypes []string) ([]dropbox.FileMetadata, error)
	Download(dropboxPath string) ([]byte, error)
}

// BlobUploader 是同步编排需要的对象存储写入能力。
type BlobUploader interface {
	Upload(ctx context.Context, objectName string, data []byte, contentType string) error
}

// FileEnqueuer 是同步编排需要的队列写入能力。
type FileEnqueuer interface {
	EnqueueFile(ctx context.Context, msg queue.FileMessage) error
}

// SyncService 编排一次 Dropbox 同步：列举远端文件、去重、
// 下载并归档原始字节、落库记录、发送处理消息。
// 全程持有全局互斥锁，保证同一时刻只有一次同步在跑。
type SyncService struct {
	source   DropboxSource
	store    BlobUploader
	files    repository.FileRepository
	producer FileEnqueuer
	locker   SyncLocker
	syncCfg  config.SyncConfig
	rootPath string
}

// NewSyncService 创建一个新的 SyncService 实例。
func NewSyncService(
	source DropboxSource,
	store BlobUploader,
	files repository.FileRepository,
	producer FileEnqueuer,
	locker SyncLocker,
	syncCfg config.SyncConfig,
	rootPath string,
) *SyncService {
	return &SyncService{
		source:   source,
		store:    store,
		files:    files,
		producer: producer,
		locker:   locker,
		syncCfg:  syncCfg,
		rootPath: rootPath,
	}
}

// Sync 执行一次同步。单个文件的失败只计入 Skipped，不会中断整批。
// 已有同步在运行时返回 ErrSyncInProgress。
func (s *SyncService) Sync(ctx context.Context, req model.SyncRequest) (model.SyncResult, error) {
	ok, err := s.locker.TryLock(ctx, s.syncCfg.LockTTL())
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("获取同步锁失败: %w", err)
	}
	if !ok {
		return model.SyncResult{}, ErrSyncInProgress
	}
	defer func() {
		if err := s.locker.Unlock(context.Background()); err != nil {
			log.Warnf("[SyncService] 释放同步锁失败: %v", err)
		}
	}()

	path := req.Path
	if path == "" {
		path = s.rootPath
	}
	fileTypes := s.resolveFileTypes(req.FileTypes)

	remoteFiles, err := s.source.ListFiles(path, req.Recursive, fileTypes)
	if err != nil {
		return model.SyncResult{}, err
	}

	var result model.SyncResult
	for _, remote := range remoteFiles {
		queued, err := s.syncOne(ctx, remote, req.ForceReprocess)
		if err != nil {
			log.Errorf("[SyncService] 同步文件失败, path: %s, error: %v", remote.PathDisplay, err)
			result.Skipped++
			continue
		}
		if queued {
			result.Queued++
		} else {
			result.Skipped++
		}
	}

	log.Infof("[SyncService] 同步完成, path: %s, 入队: %d, 跳过: %d",
		path, result.Queued, result.Skipped)
	return result, nil
}

// syncOne 处理单个远端文件，返回是否入队。
func (s *SyncService) syncOne(ctx context.Context, remote dropbox.FileMetadata, force bool) (bool, error) {
	existing, err := s.files.FindByDropboxID(remote.ID)
	if err != nil {
		return false, err
	}

	decision, refreshModifiedAt := Decide(remote, existing, force)
	if decision == DecisionSkip {
		if refreshModifiedAt {
			modified := remote.ServerModified
			if err := s.files.UpdateDropboxModifiedAt(existing.ID, &modified); err != nil {
				log.Warnf("[SyncService] 刷新修改时间失败, fileID: %s, error: %v", existing.ID, err)
			}
		}
		log.Infof("[SyncService] 文件未变化, 跳过, path: %s", remote.PathDisplay)
		return false, nil
	}

	data, err := s.source.Download(remote.PathDisplay)
	if err != nil {
		return false, err
	}

	// 以本地计算的 SHA256 作为 blob 的存储身份，内容相同的文件共享前缀
	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])
	blobKey := fmt.Sprintf("dropbox/%s/%s", fileHash, remote.Name)

	if err := s.store.Upload(ctx, blobKey, data, "application/octet-stream"); err != nil {
		return false, fmt.Errorf("归档原始文件失败: %w", err)
	}

	modified := remote.ServerModified
	record, err := s.files.Upsert(&model.DropboxFile{
		DropboxPath:        remote.PathDisplay,
		DropboxFileID:      remote.ID,
		DropboxRev:         remote.Rev,
		Filename:           remote.Name,
		FileType:           dropbox.FileExtension(remote.Name),
		BlobKey:            blobKey,
		FileHash:           fileHash,
		DropboxContentHash: remote.ContentHash,
		FileSize:           remote.Size,
		UserID:             "system",
		Status:             model.StatusPending,
		ChunkCount:         0,
		DropboxModifiedAt:  &modified,
	})
	if err != nil {
		return false, fmt.Errorf("写入文件记录失败: %w", err)
	}

	err = s.producer.EnqueueFile(ctx, queue.FileMessage{
		FileID:        record.ID,
		DropboxPath:   record.DropboxPath,
		DropboxFileID: record.DropboxFileID,
		BlobKey:       record.BlobKey,
		Filename:      record.Filename,
		FileType:      record.FileType,
		UserID:        record.UserID,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("发送处理消息失败: %w", err)
	}

	log.Infof("[SyncService] 文件已入队, path: %s, fileID: %s", remote.PathDisplay, record.ID)
	return true, nil
}

// resolveFileTypes 把请求里的类型过滤到受支持的范围，空请求表示全部支持类型。
func (s *SyncService) resolveFileTypes(requested []string) []string {
	if len(requested) == 0 {
		return s.syncCfg.SupportedTypes
	}
	supported := make(map[string]bool, len(s.syncCfg.SupportedTypes))
	for _, t := range s.syncCfg.SupportedTypes {
		supported[t] = true
	}
	var out []string
	for _, t := range requested {
		if supported[t] {
			out = append(out, t)
		}
	}
	return out
}
