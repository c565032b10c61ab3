// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"dropbox-rag-go/internal/model"
)

// FileRepository 接口定义了 dropbox_files 表的数据持久化操作。
type FileRepository interface {
	FindByID(id string) (*model.DropboxFile, error)
	FindByDropboxID(dropboxFileID string) (*model.DropboxFile, error)
	// Upsert 以 dropbox_file_id 为键写入记录：不存在则插入（生成新 ID），
	// 存在则覆盖内容相关字段但保留原 ID 与 created_at。返回落库后的记录。
	Upsert(record *model.DropboxFile) (*model.DropboxFile, error)
	UpdateDropboxModifiedAt(id string, modifiedAt *time.Time) error
	List(status, fileType string, page, pageSize int) ([]model.DropboxFile, int64, error)

	// 状态机写入，由 StatusTracker 调用。
	MarkProcessing(id string) (bool, error)
	MarkCompleted(id, markdownKey string, chunkCount int, seconds float64) error
	MarkFailed(id, lastError string) error
}

// fileRepository 是 FileRepository 接口的 GORM 实现。
type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

// FindByID 根据主键检索文件记录，未找到时返回 (nil, nil)。
func (r *fileRepository) FindByID(id string) (*model.DropboxFile, error) {
	var record model.DropboxFile
	err := r.db.Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByDropboxID 根据 Dropbox 文件 ID 检索记录，未找到时返回 (nil, nil)。
func (r *fileRepository) FindByDropboxID(dropboxFileID string) (*model.DropboxFile, error) {
	var record model.DropboxFile
	err := r.db.Where("dropbox_file_id = ?", dropboxFileID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert 以 dropbox_file_id 为键插入或覆盖文件记录。
func (r *fileRepository) Upsert(record *model.DropboxFile) (*model.DropboxFile, error) {
	existing, err := r.FindByDropboxID(record.DropboxFileID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		record.ID = uuid.NewString()
		if err := r.db.Create(record).Error; err != nil {
			return nil, err
		}
		return record, nil
	}

	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	// 重处理时保留既有的失败诊断信息，只覆盖内容相关字段
	record.Attempts = existing.Attempts
	record.LastError = existing.LastError
	if err := r.db.Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateDropboxModifiedAt 仅刷新记录的 Dropbox 修改时间（哈希命中路径的副作用）。
func (r *fileRepository) UpdateDropboxModifiedAt(id string, modifiedAt *time.Time) error {
	return r.db.Model(&model.DropboxFile{}).Where("id = ?", id).
		Update("dropbox_modified_at", modifiedAt).Error
}

// List 按状态和文件类型过滤文件记录，按 updated_at 倒序分页。
func (r *fileRepository) List(status, fileType string, page, pageSize int) ([]model.DropboxFile, int64, error) {
	query := r.db.Model(&model.DropboxFile{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if fileType != "" {
		query = query.Where("file_type = ?", fileType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var files []model.DropboxFile
	err := query.Order("updated_at desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&files).Error
	return files, total, err
}

// MarkProcessing 将记录置为 processing 并累加 attempts。
// 返回值表示记录是否存在。
func (r *fileRepository) MarkProcessing(id string) (bool, error) {
	result := r.db.Model(&model.DropboxFile{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   model.StatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkCompleted 将记录置为 completed，并写入转换结果位置、分块数与处理耗时。
func (r *fileRepository) MarkCompleted(id, markdownKey string, chunkCount int, seconds float64) error {
	return r.db.Model(&model.DropboxFile{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":             model.StatusCompleted,
			"markdown_key":       markdownKey,
			"chunk_count":        chunkCount,
			"processing_seconds": seconds,
		}).Error
}

// MarkFailed 将记录置为 failed 并写入触发错误的描述。
func (r *fileRepository) MarkFailed(id, lastError string) error {
	return r.db.Model(&model.DropboxFile{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.StatusFailed,
			"last_error": lastError,
		}).Error
}
