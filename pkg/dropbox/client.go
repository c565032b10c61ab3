// Package dropbox 封装了对远端文件存储（Dropbox）的窄接口：
// 列举、下载与 webhook 签名校验。
package dropbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"

	"dropbox-rag-go/internal/config"
	"dropbox-rag-go/pkg/log"
)

// FileMetadata 是远端列举返回的文件元数据。
// ContentHash 是 Dropbox 自己上报的内容哈希，仅用于去重判断，
// 不作为本地 blob 的存储身份（那个由下载后本地计算的 SHA256 承担）。
type FileMetadata struct {
	ID             string
	Name           string
	PathDisplay    string
	Size           int64
	Rev            string
	ClientModified time.Time
	ServerModified time.Time
	ContentHash    string
}

// Client 是 Dropbox API 的客户端。
type Client struct {
	files     files.Client
	appSecret string
}

// NewClient 创建一个新的 Dropbox 客户端实例。
func NewClient(cfg config.DropboxConfig) *Client {
	dbxCfg := dropbox.Config{
		Token:    cfg.AccessToken,
		LogLevel: dropbox.LogOff,
	}
	return &Client{
		files:     files.New(dbxCfg),
		appSecret: cfg.AppSecret,
	}
}

// ListFiles 列举指定目录下的文件，可选递归并按扩展名过滤。
// fileTypes 为空时不过滤类型。
func (c *Client) ListFiles(folderPath string, recursive bool, fileTypes []string) ([]FileMetadata, error) {
	typeSet := make(map[string]bool, len(fileTypes))
	for _, t := range fileTypes {
		typeSet[strings.ToLower(t)] = true
	}

	arg := files.NewListFolderArg(folderPath)
	arg.Recursive = recursive

	res, err := c.files.ListFolder(arg)
	if err != nil {
		return nil, fmt.Errorf("列举 Dropbox 目录 '%s' 失败: %w", folderPath, err)
	}

	var out []FileMetadata
	for {
		for _, entry := range res.Entries {
			f, ok := entry.(*files.FileMetadata)
			if !ok {
				continue // 目录等非文件条目
			}
			if len(typeSet) > 0 && !typeSet[FileExtension(f.Name)] {
				continue
			}
			out = append(out, FileMetadata{
				ID:             f.Id,
				Name:           f.Name,
				PathDisplay:    f.PathDisplay,
				Size:           int64(f.Size),
				Rev:            f.Rev,
				ClientModified: f.ClientModified,
				ServerModified: f.ServerModified,
				ContentHash:    f.ContentHash,
			})
		}
		if !res.HasMore {
			break
		}
		res, err = c.files.ListFolderContinue(files.NewListFolderContinueArg(res.Cursor))
		if err != nil {
			return nil, fmt.Errorf("继续列举 Dropbox 目录 '%s' 失败: %w", folderPath, err)
		}
	}

	log.Infof("[Dropbox] 从 '%s' 列举到 %d 个文件", folderPath, len(out))
	return out, nil
}

// Download 下载一个文件的完整内容。
func (c *Client) Download(dropboxPath string) ([]byte, error) {
	_, content, err := c.files.Download(files.NewDownloadArg(dropboxPath))
	if err != nil {
		return nil, fmt.Errorf("下载 Dropbox 文件 '%s' 失败: %w", dropboxPath, err)
	}
	defer content.Close()

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("读取 Dropbox 文件 '%s' 内容失败: %w", dropboxPath, err)
	}
	return data, nil
}

// VerifyWebhookSignature 校验 X-Dropbox-Signature 请求头：
// 即请求体的 HMAC-SHA256（密钥为 app secret）的十六进制表示。
func (c *Client) VerifyWebhookSignature(signature string, body []byte) bool {
	if c.appSecret == "" {
		log.Warnf("[Dropbox] 未配置 app secret，无法校验 webhook 签名")
		return false
	}
	mac := hmac.New(sha256.New, []byte(c.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// FileExtension 返回小写、不带点的文件扩展名，没有扩展名时返回空串。
func FileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
