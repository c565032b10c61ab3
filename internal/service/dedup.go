// Package service 实现了业务逻辑层，封装了对 repository 的操作。
package service

import (
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/pkg/dropbox"
)

// Decision 是对单个远端文件的去重决策。
type Decision int

const (
	// DecisionNew 本地没有记录，当作新文件入队。
	DecisionNew Decision = iota
	// DecisionSkip 内容未变化，跳过。
	DecisionSkip
	// DecisionReprocess 内容有变化（或强制重处理），重新入队。
	DecisionReprocess
)

// Decide 判断一个远端文件是否需要（重新）处理。
// 两步判断：先比修改时间（最廉价），再比 Dropbox 内容哈希。
// 哈希命中但时间不同说明只是改了时间戳，此时刷新本地记录的修改时间，
// 让下一轮同步走廉价路径。
func Decide(remote dropbox.FileMetadata, existing *model.DropboxFile, force bool) (Decision, bool) {
	if existing == nil {
		return DecisionNew, false
	}
	if force {
		return DecisionReprocess, false
	}
	if existing.DropboxModifiedAt != nil && existing.DropboxModifiedAt.Equal(remote.ServerModified) {
		return DecisionSkip, false
	}
	if remote.ContentHash != "" && existing.DropboxContentHash == remote.ContentHash {
		return DecisionSkip, true
	}
	return DecisionReprocess, false
}
