// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"bytes"
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/pkg/log"
)

// Client 封装了一个绑定到单一存储桶的 MinIO 客户端。
type Client struct {
	mc     *minio.Client
	bucket string
}

// NewClient 初始化 MinIO 客户端并确保指定的存储桶存在。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	// 检查存储桶是否存在，如果不存在则创建
	ctx := context.Background()
	exists, err := mc.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := mc.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	} else {
		log.Infof("存储桶 '%s' 已存在", cfg.BucketName)
	}

	return &Client{mc: mc, bucket: cfg.BucketName}, nil
}

// Upload 将一段内存中的数据写入指定对象，已存在时覆盖。
func (c *Client) Upload(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Download 将指定对象下载到本地文件路径。
func (c *Client) Download(ctx context.Context, objectName, localPath string) error {
	return c.mc.FGetObject(ctx, c.bucket, objectName, localPath, minio.GetObjectOptions{})
}

// Remove 删除指定对象。
func (c *Client) Remove(ctx context.Context, objectName string) error {
	return c.mc.RemoveObject(ctx, c.bucket, objectName, minio.RemoveObjectOptions{})
}
