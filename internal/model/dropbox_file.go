// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 文件处理状态。状态只允许 pending → processing → {completed, failed} 流转，
// failed 仅能通过同一条消息的重投递回到 processing。
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// DropboxFile 定义了 dropbox_files 表的 ORM 模型。
// 每个 Dropbox 源文件对应唯一一条记录（以 dropbox_file_id 为准）。
type DropboxFile struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	DropboxPath        string     `gorm:"type:varchar(512);not null" json:"dropboxPath"`
	DropboxFileID      string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"dropboxFileId"`
	DropboxRev         string     `gorm:"type:varchar(64)" json:"dropboxRev"`
	Filename           string     `gorm:"type:varchar(255);not null" json:"filename"`
	FileType           string     `gorm:"type:varchar(16);not null" json:"fileType"`
	BlobKey            string     `gorm:"type:varchar(640)" json:"blobKey"`
	MarkdownKey        string     `gorm:"type:varchar(255)" json:"markdownKey"`
	FileHash           string     `gorm:"type:varchar(64);index" json:"fileHash"`
	DropboxContentHash string     `gorm:"type:varchar(64)" json:"dropboxContentHash"`
	FileSize           int64      `gorm:"not null;default:0" json:"fileSize"`
	UserID             string     `gorm:"type:varchar(64);not null;default:system" json:"userId"`
	Status             string     `gorm:"type:varchar(16);not null;default:pending" json:"processingStatus"`
	ChunkCount         int        `gorm:"not null;default:0" json:"chunkCount"`
	Attempts           int        `gorm:"not null;default:0" json:"attempts"`
	LastError          string     `gorm:"type:text" json:"lastError"`
	ProcessingSeconds  float64    `gorm:"default:0" json:"processingSeconds"`
	DropboxModifiedAt  *time.Time `json:"dropboxModifiedAt"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DropboxFile) TableName() string {
	return "dropbox_files"
}
