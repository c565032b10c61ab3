package model

import "time"

// 分块类型，按内容形状分类。
const (
	ChunkTypeText    = "text"
	ChunkTypeList    = "list"
	ChunkTypeTable   = "table"
	ChunkTypeHeading = "heading"
)

// DropboxChunk 对应于数据库中的 dropbox_chunks 表。
// 文件处理成功时整批写入；对已完成的文件，chunk_index 恰好为 0..chunk_count-1。
type DropboxChunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID     string    `gorm:"type:varchar(36);not null;index" json:"fileId"`
	ChunkIndex int       `gorm:"not null" json:"chunkIndex"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	TokenCount int       `gorm:"not null;default:0" json:"tokenCount"`
	ChunkType  string    `gorm:"type:varchar(16);not null;default:text" json:"chunkType"`
	Embedding  []float32 `gorm:"serializer:json;type:json" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DropboxChunk) TableName() string {
	return "dropbox_chunks"
}
