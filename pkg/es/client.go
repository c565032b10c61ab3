// Package es 提供了与 Elasticsearch 交互的客户端功能。
// 分块向量写入这里，供外部检索层做向量查询；本服务只写不查。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/pkg/log"
)

// Client 封装了绑定到单一索引的 Elasticsearch 客户端。
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient 初始化 Elasticsearch 客户端，并在索引不存在时按向量维度创建它。
func NewClient(cfg config.ElasticsearchConfig, dims int) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}

	c := &Client{es: es, index: cfg.IndexName}
	if err := c.createIndexIfNotExists(dims); err != nil {
		return nil, err
	}
	return c, nil
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func (c *Client) createIndexIfNotExists(dims int) error {
	res, err := c.es.Indices.Exists([]string{c.index})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	// 如果 res.StatusCode 是 200，说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", c.index, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 向量维度由部署使用的 embedding 模型决定，通过配置传入
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"file_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"content": { "type": "text" },
				"embedding": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"chunk_type": { "type": "keyword" },
				"filename": { "type": "keyword" },
				"file_type": { "type": "keyword" },
				"dropbox_path": { "type": "keyword" }
			}
		}
	}`, dims)

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", c.index, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", c.index, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", c.index)
	return nil
}

// IndexChunk 将单个分块文档索引到 Elasticsearch。
func (c *Client) IndexChunk(ctx context.Context, doc model.EsChunk) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: doc.ChunkID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}

	return nil
}

// DeleteByFileID 删除一个文件的全部分块文档（重处理前的幂等清理）。
func (c *Client) DeleteByFileID(ctx context.Context, fileID string) error {
	query := fmt.Sprintf(`{"query": {"term": {"file_id": %q}}}`, fileID)

	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		strings.NewReader(query),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("按 file_id 删除 Elasticsearch 文档出错: %s", res.String())
		return errors.New("failed to delete documents by file_id")
	}

	return nil
}
