// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/service"
	"dropbox-rag-go/pkg/log"
)

// SyncTrigger 是同步接口需要的编排能力。
type SyncTrigger interface {
	Sync(ctx context.Context, req model.SyncRequest) (model.SyncResult, error)
}

// SyncHandler 负责处理手动触发 Dropbox 同步的 API 请求。
type SyncHandler struct {
	syncService SyncTrigger
}

// NewSyncHandler 创建一个新的 SyncHandler 实例。
func NewSyncHandler(syncService SyncTrigger) *SyncHandler {
	return &SyncHandler{syncService: syncService}
}

// TriggerSync 处理 POST /api/v1/dropbox/sync。
// 请求体可省略，省略时同步配置的根目录下全部支持类型。
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req model.SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
			return
		}
	}

	result, err := h.syncService.Sync(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "已有同步任务在运行中"})
			return
		}
		log.Error("TriggerSync: 同步失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		return
	}

	c.JSON(http.StatusOK, result)
}
