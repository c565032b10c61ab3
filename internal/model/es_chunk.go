package model

// EsChunk 是写入 Elasticsearch 的文档结构，供外部检索层查询。
// 文档 ID 为 "<file_id>_<chunk_index>"。
type EsChunk struct {
	ChunkID     string    `json:"chunk_id"`
	FileID      string    `json:"file_id"`
	ChunkIndex  int       `json:"chunk_index"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"embedding"`
	ChunkType   string    `json:"chunk_type"`
	Filename    string    `json:"filename"`
	FileType    string    `json:"file_type"`
	DropboxPath string    `json:"dropbox_path"`
}
