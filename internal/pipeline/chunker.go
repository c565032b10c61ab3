package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/pkg/log"
)

// markdownSeparators 按语义强弱排序：优先在标题和段落边界切分，
// 退而求其次才在句子、单词边界切，空串兜底表示逐字符切。
var markdownSeparators = []string{
	"\n\n## ",
	"\n\n### ",
	"\n\n",
	"\n",
	". ",
	" ",
	"",
}

// Chunk 是切分后的一个文本块。Index 在最终落库前保证从 0 连续递增。
type Chunk struct {
	Index      int
	Content    string
	TokenCount int
	Type       string
}

// Chunker 将 Markdown 文本递归切分为带 token 预算的块。
// chunkSize / chunkOverlap 以 token 计，内部预算放大 4 倍后
// 用 token 计数器度量（一个 token 约等于 4 个字符）。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	enc          *tiktoken.Tiktoken
}

// NewChunker 创建切分器。cl100k_base 编码表加载失败时退化为
// 按字符数 /4 估算 token，只影响预算精度，不影响切分结构。
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warnf("[Chunker] 加载 cl100k_base 编码表失败, 退化为字符估算: %v", err)
		enc = nil
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		enc:          enc,
	}
}

// CountTokens 返回文本的 token 数。
func (c *Chunker) CountTokens(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	// 近似: 平均 4 个字符一个 token
	return utf8.RuneCountInString(text)/4 + 1
}

// Split 将文本切分为块，去掉空白块并重新编号，保证 Index 连续。
func (c *Chunker) Split(text string) []Chunk {
	pieces := c.splitText(text, markdownSeparators)

	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		content := strings.TrimSpace(p)
		if content == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Content:    content,
			TokenCount: c.CountTokens(content),
			Type:       classifyChunk(content),
		})
	}
	return chunks
}

// splitText 用 separators 中第一个在文本里出现的分隔符切分，
// 超出预算的片段带着剩余分隔符继续递归，最后按 overlap 合并。
func (c *Chunker) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	budget := c.chunkSize * 4

	var final []string
	var goodSplits []string
	for _, s := range splitKeepSeparator(text, separator) {
		if c.CountTokens(s) < budget {
			goodSplits = append(goodSplits, s)
			continue
		}
		// 先把积累的小片段合并输出，再处理这个超大片段
		if len(goodSplits) > 0 {
			final = append(final, c.mergeSplits(goodSplits)...)
			goodSplits = nil
		}
		if len(rest) == 0 {
			final = append(final, s)
		} else {
			final = append(final, c.splitText(s, rest)...)
		}
	}
	if len(goodSplits) > 0 {
		final = append(final, c.mergeSplits(goodSplits)...)
	}
	return final
}

// mergeSplits 将相邻小片段拼成尽量接近预算的块，
// 块与块之间保留 chunkOverlap 对应的重叠窗口。
func (c *Chunker) mergeSplits(splits []string) []string {
	budget := c.chunkSize * 4
	overlap := c.chunkOverlap * 4

	var docs []string
	var current []string
	total := 0

	for _, s := range splits {
		l := c.CountTokens(s)
		if total+l > budget && len(current) > 0 {
			docs = append(docs, strings.Join(current, ""))
			// 从队首弹出，直到剩余部分能作为下一块的重叠前缀
			for total > overlap || (total+l > budget && total > 0) {
				total -= c.CountTokens(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += l
	}
	if len(current) > 0 {
		docs = append(docs, strings.Join(current, ""))
	}
	return docs
}

// splitKeepSeparator 切分文本并把分隔符保留在后一个片段的开头，
// 这样标题标记不会和标题正文分家。空分隔符表示逐字符切分。
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	segments := strings.Split(text, sep)
	out := make([]string, 0, len(segments))
	for i, s := range segments {
		if i > 0 {
			s = sep + s
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// classifyChunk 根据内容的结构特征给块打类型标签。
func classifyChunk(content string) string {
	if strings.Contains(content, "|") && strings.Contains(content, "---") {
		return model.ChunkTypeTable
	}
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		return model.ChunkTypeList
	}
	if strings.HasPrefix(trimmed, "#") {
		return model.ChunkTypeHeading
	}
	return model.ChunkTypeText
}
