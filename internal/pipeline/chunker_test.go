package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dropbox-rag-go/internal/model"
)

// testChunker 不加载编码表，走字符估算分支，测试结果与网络环境无关。
func testChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

func TestChunker_EmptyInput(t *testing.T) {
	c := testChunker(512, 50)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\n  \t  "))
}

func TestChunker_SmallDocumentIsSingleChunk(t *testing.T) {
	c := testChunker(512, 50)

	chunks := c.Split("Hello world. This is a tiny document.")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Hello world. This is a tiny document.", chunks[0].Content)
	assert.Equal(t, model.ChunkTypeText, chunks[0].Type)
	assert.Greater(t, chunks[0].TokenCount, 0)
}

func TestChunker_IndexesAreContiguous(t *testing.T) {
	c := testChunker(8, 2)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("This paragraph talks about durable queues and document chunking at some length.\n\n")
	}

	chunks := c.Split(sb.String())
	require.Greater(t, len(chunks), 1)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.NotEmpty(t, ch.Content)
		assert.Equal(t, ch.Content, strings.TrimSpace(ch.Content))
		assert.Greater(t, ch.TokenCount, 0)
	}
}

func TestChunker_SplitsOnHeadingBoundaries(t *testing.T) {
	c := testChunker(16, 0)

	text := "Intro paragraph before any heading. It sets the stage for everything that follows below." +
		"\n\n## First Section\n\nThe first section body is long enough to stand on its own as a chunk of text." +
		"\n\n## Second Section\n\nThe second section body also carries enough words to avoid being merged away."

	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	var headings int
	for _, ch := range chunks {
		if strings.HasPrefix(ch.Content, "## ") {
			headings++
			assert.Equal(t, model.ChunkTypeHeading, ch.Type)
		}
	}
	assert.GreaterOrEqual(t, headings, 1, "标题标记应保留在块的开头")
}

func TestClassifyChunk(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"markdown table", "| Name | Age |\n|------|-----|\n| Bob | 42 |", model.ChunkTypeTable},
		{"dash list", "- first item\n- second item", model.ChunkTypeList},
		{"star list", "* first item\n* second item", model.ChunkTypeList},
		{"heading", "## Quarterly Report", model.ChunkTypeHeading},
		{"plain text", "Nothing special about this paragraph.", model.ChunkTypeText},
		{"pipe without table rule is text", "a | b | c", model.ChunkTypeText},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyChunk(tc.content))
		})
	}
}

func TestSplitKeepSeparator(t *testing.T) {
	t.Run("separator stays attached to the following piece", func(t *testing.T) {
		pieces := splitKeepSeparator("alpha\n\nbeta\n\ngamma", "\n\n")
		assert.Equal(t, []string{"alpha", "\n\nbeta", "\n\ngamma"}, pieces)
	})

	t.Run("leading separator drops the empty head", func(t *testing.T) {
		pieces := splitKeepSeparator("\n\nalpha", "\n\n")
		assert.Equal(t, []string{"\n\nalpha"}, pieces)
	})

	t.Run("empty separator splits per character", func(t *testing.T) {
		pieces := splitKeepSeparator("héllo", "")
		assert.Equal(t, []string{"h", "é", "l", "l", "o"}, pieces)
	})
}

func TestChunker_CountTokensFallback(t *testing.T) {
	c := testChunker(512, 50)

	short := c.CountTokens("word")
	long := c.CountTokens(strings.Repeat("word ", 100))
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)
}
