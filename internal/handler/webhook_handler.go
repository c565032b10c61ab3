package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"dropbox-rag-go/internal/model"
	"dropbox-rag-go/internal/service"
	"dropbox-rag-go/pkg/log"
)

// SignatureVerifier 校验 Dropbox webhook 请求的签名。
type SignatureVerifier interface {
	VerifyWebhookSignature(signature string, body []byte) bool
}

// WebhookHandler 负责处理 Dropbox webhook 回调。
type WebhookHandler struct {
	verifier    SignatureVerifier
	syncService SyncTrigger
}

// NewWebhookHandler 创建一个新的 WebhookHandler 实例。
func NewWebhookHandler(verifier SignatureVerifier, syncService SyncTrigger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, syncService: syncService}
}

// Verify 处理 GET /api/v1/dropbox/webhook：Dropbox 的接入校验，
// 要求把 challenge 参数原样以纯文本返回。
func (h *WebhookHandler) Verify(c *gin.Context) {
	challenge := c.Query("challenge")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/plain", []byte(challenge))
}

// Notify 处理 POST /api/v1/dropbox/webhook：校验签名后在后台
// 触发一次默认同步。Dropbox 要求回调在 10 秒内返回，同步不能同步执行。
func (h *WebhookHandler) Notify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取请求体失败"})
		return
	}

	signature := c.GetHeader("X-Dropbox-Signature")
	if !h.verifier.VerifyWebhookSignature(signature, body) {
		log.Warnf("[Webhook] 签名校验失败, 拒绝请求")
		c.JSON(http.StatusForbidden, gin.H{"error": "签名校验失败"})
		return
	}

	go func() {
		_, err := h.syncService.Sync(context.Background(), model.SyncRequest{Recursive: true})
		if err != nil && !errors.Is(err, service.ErrSyncInProgress) {
			log.Errorf("[Webhook] 后台同步失败: %v", err)
		}
	}()

	c.Status(http.StatusOK)
}
