package service

import (
	"errors"

	"dropbox-rag-go/internal/repository"
	"dropbox-rag-go/pkg/log"
)

// ErrFileNotFound 表示消息引用的文件记录不存在，
// 多半是消息和数据库状态不一致，重投递无法修复。
var ErrFileNotFound = errors.New("file record not found")

// StatusTracker 维护文件记录的处理状态机：
// pending → processing → {completed, failed}。
type StatusTracker struct {
	files repository.FileRepository
}

// NewStatusTracker 创建一个新的 StatusTracker 实例。
func NewStatusTracker(files repository.FileRepository) *StatusTracker {
	return &StatusTracker{files: files}
}

// MarkProcessing 将记录置为 processing 并累加尝试次数。
// 记录不存在时返回 ErrFileNotFound。
func (t *StatusTracker) MarkProcessing(id string) error {
	found, err := t.files.MarkProcessing(id)
	if err != nil {
		return err
	}
	if !found {
		return ErrFileNotFound
	}
	return nil
}

// MarkCompleted 将记录置为 completed 并写入处理产物信息。
func (t *StatusTracker) MarkCompleted(id, markdownKey string, chunkCount int, seconds float64) error {
	return t.files.MarkCompleted(id, markdownKey, chunkCount, seconds)
}

// MarkFailed 将记录置为 failed。状态写入失败只记日志，
// 消息的了结不依赖这一步成功。
func (t *StatusTracker) MarkFailed(id, lastError string) {
	if err := t.files.MarkFailed(id, lastError); err != nil {
		log.Errorf("[StatusTracker] 写入失败状态出错, fileID: %s, error: %v", id, err)
	}
}
