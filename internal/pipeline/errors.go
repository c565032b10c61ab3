// Package pipeline 定义了文件处理的核心流程。
package pipeline

import (
	"errors"
	"fmt"
)

// Kind 标识管道失败发生在哪个阶段，供消费者判断重试价值，
// 不需要靠字符串匹配错误信息。
type Kind int

const (
	// KindRetrieval 原始字节下载失败（重试耗尽后）。
	KindRetrieval Kind = iota + 1
	// KindConversion 文本转换失败或结果为空，对同一文件通常是永久性的。
	KindConversion
	// KindEmbedding 向量化整体失败。
	KindEmbedding
	// KindPersistence 落库或索引失败，状态保持 processing 以便重投递重试。
	KindPersistence
)

// String 返回阶段的可读名称。
func (k Kind) String() string {
	switch k {
	case KindRetrieval:
		return "retrieval"
	case KindConversion:
		return "conversion"
	case KindEmbedding:
		return "embedding"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error 是带阶段标识的管道错误。
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf 提取错误所属的管道阶段，非管道错误返回零值。
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
