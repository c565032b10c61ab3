// Package queue 提供基于 Kafka 的工作队列：
// 生产者发送文件处理消息，接收方以确认/放回/死信三种方式了结消息。
package queue

import (
	"errors"
	"fmt"
	"time"
)

// MessageTypeDropboxFile 是文件处理消息的固定判别值。
const MessageTypeDropboxFile = "dropbox_file"

// FileMessage 是一条文件处理消息的线上结构（JSON）。
type FileMessage struct {
	MessageType   string            `json:"message_type"`
	FileID        string            `json:"file_id"`
	DropboxPath   string            `json:"dropbox_path"`
	DropboxFileID string            `json:"dropbox_file_id"`
	BlobKey       string            `json:"blob_url"`
	Filename      string            `json:"filename"`
	FileType      string            `json:"file_type"`
	UserID        string            `json:"user_id"`
	Metadata      map[string]string `json:"metadata"`
	Timestamp     time.Time         `json:"timestamp"`
}

// ErrInvalidMessage 表示消息结构不合法，重投递不会让它变得合法。
var ErrInvalidMessage = errors.New("invalid work message")

// Validate 做严格的结构校验：缺少任一必填字段即失败关闭，
// 不做任何“尽力解读”的兜底分支。
func (m *FileMessage) Validate() error {
	missing := ""
	switch {
	case m.FileID == "":
		missing = "file_id"
	case m.BlobKey == "":
		missing = "blob_url"
	case m.Filename == "":
		missing = "filename"
	case m.FileType == "":
		missing = "file_type"
	}
	if missing != "" {
		return fmt.Errorf("%w: 缺少必填字段 %s", ErrInvalidMessage, missing)
	}
	return nil
}
