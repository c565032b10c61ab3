package service

import (
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/repository"
)

// FileService 提供文件记录与分块的只读查询。
type FileService struct {
	files  repository.FileRepository
	chunks repository.ChunkRepository
}

// NewFileService 创建一个新的 FileService 实例。
func NewFileService(files repository.FileRepository, chunks repository.ChunkRepository) *FileService {
	return &FileService{files: files, chunks: chunks}
}

// Get 返回单个文件记录，未找到时返回 (nil, nil)。
func (s *FileService) Get(id string) (*model.DropboxFile, error) {
	return s.files.FindByID(id)
}

// List 按状态和文件类型过滤文件记录，分页返回。
func (s *FileService) List(status, fileType string, page, pageSize int) ([]model.DropboxFile, int64, error) {
	return s.files.List(status, fileType, page, pageSize)
}

// Chunks 返回一个文件的全部分块（按 chunk_index 升序）。
// 文件不存在时返回 ErrFileNotFound。
func (s *FileService) Chunks(fileID string) ([]model.DropboxChunk, error) {
	record, err := s.files.FindByID(fileID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrFileNotFound
	}
	return s.chunks.FindByFileID(fileID)
}
