package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/repository"
	"dropbox-rag-go/pkg/embedding"
	"dropbox-rag-go/pkg/log"
	"dropbox-rag-go/pkg/queue"
	"dropbox-rag-go/pkg/retry"
)

// BlobStore 是处理器需要的对象存储能力。
type BlobStore interface {
	Download(ctx context.Context, objectName, localPath string) error
	Upload(ctx context.Context, objectName string, data []byte, contentType string) error
}

// Converter 将任意格式的文档转换为纯文本 / Markdown。
type Converter interface {
	ExtractText(fileReader io.Reader, fileName string) (string, error)
}

// SearchIndexer 是处理器需要的检索索引能力。
type SearchIndexer interface {
	IndexChunk(ctx context.Context, doc model.EsChunk) error
	DeleteByFileID(ctx context.Context, fileID string) error
}

// Result 是一次成功处理的产物。
type Result struct {
	MarkdownKey string
	ChunkCount  int
}

// Processor 执行单个文件的完整处理流程：
// 下载原始字节 -> 文本转换 -> 归档 Markdown -> 切分 -> 向量化 -> 持久化。
// 每个阶段的失败都带上 Kind 标识，由消费者决定了结方式。
type Processor struct {
	store     BlobStore
	converter Converter
	embedder  embedding.Client
	chunker   *Chunker
	chunkRepo repository.ChunkRepository
	indexer   SearchIndexer
	policy    retry.Policy
	tempDir   string
}

// NewProcessor 组装处理器并确保临时目录存在。
func NewProcessor(
	store BlobStore,
	converter Converter,
	embedder embedding.Client,
	chunker *Chunker,
	chunkRepo repository.ChunkRepository,
	indexer SearchIndexer,
	cfg config.WorkerConfig,
) (*Processor, error) {
	if err := os.MkdirAll(cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建临时目录 '%s' 失败: %w", cfg.TempDir, err)
	}
	return &Processor{
		store:     store,
		converter: converter,
		embedder:  embedder,
		chunker:   chunker,
		chunkRepo: chunkRepo,
		indexer:   indexer,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxRetries,
			DelayBase:   cfg.RetryDelayBase,
		},
		tempDir: cfg.TempDir,
	}, nil
}

// Process 处理一条文件消息。返回的错误可通过 KindOf 判断失败阶段。
func (p *Processor) Process(ctx context.Context, msg queue.FileMessage) (Result, error) {
	log.Infof("[Processor] 开始处理文件, fileID: %s, filename: %s", msg.FileID, msg.Filename)

	// 1. 把原始字节下载到临时文件，函数退出时无条件清理
	scratch, err := os.CreateTemp(p.tempDir, "dropbox-*")
	if err != nil {
		return Result{}, &Error{Kind: KindRetrieval, Err: fmt.Errorf("创建临时文件失败: %w", err)}
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer func() {
		if rmErr := os.Remove(scratchPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warnf("[Processor] 清理临时文件 '%s' 失败: %v", scratchPath, rmErr)
		}
	}()

	err = p.policy.Do(ctx, func() error {
		return p.store.Download(ctx, msg.BlobKey, scratchPath)
	})
	if err != nil {
		return Result{}, &Error{Kind: KindRetrieval, Err: fmt.Errorf("下载原始文件 '%s' 失败: %w", msg.BlobKey, err)}
	}

	// 2. 文本转换。转换是确定性的，失败不重试
	f, err := os.Open(scratchPath)
	if err != nil {
		return Result{}, &Error{Kind: KindRetrieval, Err: fmt.Errorf("打开临时文件失败: %w", err)}
	}
	text, err := p.converter.ExtractText(f, msg.Filename)
	f.Close()
	if err != nil {
		return Result{}, &Error{Kind: KindConversion, Err: err}
	}
	// 只有完全空的转换结果算转换失败；
	// 纯空白文本会在切分后得到 0 块，按空文档的成功终态处理
	if text == "" {
		return Result{}, &Error{Kind: KindConversion, Err: errors.New("转换结果为空文本")}
	}

	// 3. 归档转换产物
	markdownKey := fmt.Sprintf("markdown/%s.md", msg.FileID)
	if err := p.store.Upload(ctx, markdownKey, []byte(text), "text/markdown"); err != nil {
		return Result{}, &Error{Kind: KindPersistence, Err: fmt.Errorf("归档 Markdown 失败: %w", err)}
	}

	// 4. 切分。全空白文档切出 0 块，是合法的成功终态
	chunks := p.chunker.Split(text)
	if len(chunks) == 0 {
		log.Warnf("[Processor] 文件切分结果为空, fileID: %s", msg.FileID)
		return Result{MarkdownKey: markdownKey, ChunkCount: 0}, nil
	}

	// 5. 整批向量化
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := p.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return Result{}, &Error{Kind: KindEmbedding, Err: err}
	}

	// 个别分块缺向量时丢弃并重新编号，保持落库后 chunk_index 连续
	records := make([]*model.DropboxChunk, 0, len(chunks))
	esDocs := make([]model.EsChunk, 0, len(chunks))
	for i, ch := range chunks {
		if i >= len(vectors) || vectors[i] == nil {
			log.Warnf("[Processor] 分块缺少向量, 跳过, fileID: %s, index: %d", msg.FileID, ch.Index)
			continue
		}
		idx := len(records)
		records = append(records, &model.DropboxChunk{
			FileID:     msg.FileID,
			ChunkIndex: idx,
			Content:    ch.Content,
			TokenCount: ch.TokenCount,
			ChunkType:  ch.Type,
			Embedding:  vectors[i],
		})
		esDocs = append(esDocs, model.EsChunk{
			ChunkID:     fmt.Sprintf("%s_%d", msg.FileID, idx),
			FileID:      msg.FileID,
			ChunkIndex:  idx,
			Content:     ch.Content,
			Embedding:   vectors[i],
			ChunkType:   ch.Type,
			Filename:    msg.Filename,
			FileType:    msg.FileType,
			DropboxPath: msg.DropboxPath,
		})
	}
	if len(records) == 0 {
		return Result{}, &Error{Kind: KindEmbedding, Err: errors.New("没有任何分块获得向量")}
	}

	// 6. 持久化：先清掉上一代分块，保证重处理幂等
	if err := p.chunkRepo.DeleteByFileID(msg.FileID); err != nil {
		return Result{}, &Error{Kind: KindPersistence, Err: fmt.Errorf("清理旧分块失败: %w", err)}
	}
	if err := p.indexer.DeleteByFileID(ctx, msg.FileID); err != nil {
		return Result{}, &Error{Kind: KindPersistence, Err: fmt.Errorf("清理旧索引文档失败: %w", err)}
	}
	if err := p.chunkRepo.BatchCreate(records); err != nil {
		return Result{}, &Error{Kind: KindPersistence, Err: fmt.Errorf("写入分块失败: %w", err)}
	}
	for _, doc := range esDocs {
		if err := p.indexer.IndexChunk(ctx, doc); err != nil {
			return Result{}, &Error{Kind: KindPersistence, Err: fmt.Errorf("索引分块 '%s' 失败: %w", doc.ChunkID, err)}
		}
	}

	log.Infof("[Processor] 文件处理完成, fileID: %s, 分块数: %d", msg.FileID, len(records))
	return Result{MarkdownKey: markdownKey, ChunkCount: len(records)}, nil
}
