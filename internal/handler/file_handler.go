package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/service"
	"dropbox-rag-go/pkg/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FileHandler 负责处理文件记录与分块的查询请求。
type FileHandler struct {
	fileService *service.FileService
}

// NewFileHandler 创建一个新的 FileHandler 实例。
func NewFileHandler(fileService *service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// GetFile 处理 GET /api/v1/files/:id。
func (h *FileHandler) GetFile(c *gin.Context) {
	record, err := h.fileService.Get(c.Param("id"))
	if err != nil {
		log.Error("GetFile: 查询文件记录失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "文件不存在"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListFiles 处理 GET /api/v1/files，支持 status / file_type 过滤和分页。
func (h *FileHandler) ListFiles(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	files, total, err := h.fileService.List(c.Query("status"), c.Query("file_type"), page, pageSize)
	if err != nil {
		log.Error("ListFiles: 查询文件列表失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files":     files,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetChunks 处理 GET /api/v1/files/:id/chunks。
func (h *FileHandler) GetChunks(c *gin.Context) {
	chunks, err := h.fileService.Chunks(c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "文件不存在"})
			return
		}
		log.Error("GetChunks: 查询分块失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks, "count": len(chunks)})
}

// statusUpdate 是状态订阅推送的消息结构。
type statusUpdate struct {
	FileID     string `json:"file_id"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	LastError  string `json:"last_error,omitempty"`
}

// WatchFile 处理 GET /api/v1/files/:id/watch 的 WebSocket 升级：
// 周期性推送文件的处理状态，进入终态后推送最后一次并关闭连接。
func (h *FileHandler) WatchFile(c *gin.Context) {
	id := c.Param("id")
	record, err := h.fileService.Get(id)
	if err != nil || record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "文件不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WatchFile: WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		record, err := h.fileService.Get(id)
		if err != nil || record == nil {
			return
		}

		update := statusUpdate{
			FileID:     record.ID,
			Status:     record.Status,
			ChunkCount: record.ChunkCount,
			LastError:  record.LastError,
		}
		if err := conn.WriteJSON(update); err != nil {
			return // 客户端已断开
		}
		if record.Status == model.StatusCompleted || record.Status == model.StatusFailed {
			return
		}

		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
