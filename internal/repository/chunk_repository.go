package repository

import (
	"gorm.io/gorm"

	"dropbox-rag-go/internal/model"
)

// ChunkRepository 定义了对 dropbox_chunks 表的数据操作接口。
type ChunkRepository interface {
	BatchCreate(chunks []*model.DropboxChunk) error
	FindByFileID(fileID string) ([]model.DropboxChunk, error)
	DeleteByFileID(fileID string) error
	CountByFileID(fileID string) (int64, error)
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// BatchCreate 批量创建文档分块记录。
func (r *chunkRepository) BatchCreate(chunks []*model.DropboxChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error // 每100条记录一批
}

// FindByFileID 根据文件 ID 查找所有分块记录，按 chunk_index 升序。
func (r *chunkRepository) FindByFileID(fileID string) ([]model.DropboxChunk, error) {
	var chunks []model.DropboxChunk
	err := r.db.Where("file_id = ?", fileID).Order("chunk_index asc").Find(&chunks).Error
	return chunks, err
}

// DeleteByFileID 删除一个文件的全部分块记录（重处理前的幂等清理）。
func (r *chunkRepository) DeleteByFileID(fileID string) error {
	return r.db.Where("file_id = ?", fileID).Delete(&model.DropboxChunk{}).Error
}

// CountByFileID 统计一个文件当前持久化的分块数量。
func (r *chunkRepository) CountByFileID(fileID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.DropboxChunk{}).Where("file_id = ?", fileID).Count(&count).Error
	return count, err
}
