package model

// SyncRequest 是手动触发 Dropbox 同步的请求体。
type SyncRequest struct {
	Path           string   `json:"path"`
	Recursive      bool     `json:"recursive"`
	FileTypes      []string `json:"file_types"`
	ForceReprocess bool     `json:"force_reprocess"`
}

// SyncResult 是一次同步的统计结果。
// 单个文件的失败只会累加 Skipped，不会中断整批同步。
type SyncResult struct {
	Queued  int `json:"files_queued"`
	Skipped int `json:"files_skipped"`
}
