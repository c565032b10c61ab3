package dropbox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"

	"dropbox-rag-go/internal/config"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := NewClient(config.DropboxConfig{AppSecret: "app-secret"})
	body := []byte(`{"list_folder":{"accounts":["dbid:abc"]}}`)

	t.Run("valid signature", func(t *testing.T) {
		assert.True(t, c.VerifyWebhookSignature(sign("app-secret", body), body))
	})

	t.Run("wrong secret", func(t *testing.T) {
		assert.False(t, c.VerifyWebhookSignature(sign("other-secret", body), body))
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := sign("app-secret", body)
		assert.False(t, c.VerifyWebhookSignature(sig, []byte(`{}`)))
	})

	t.Run("empty signature", func(t *testing.T) {
		assert.False(t, c.VerifyWebhookSignature("", body))
	})

	t.Run("no app secret configured rejects everything", func(t *testing.T) {
		bare := NewClient(config.DropboxConfig{})
		assert.False(t, bare.VerifyWebhookSignature(sign("", body), body))
	})
}

func TestFileExtension(t *testing.T) {
	cases := map[string]string{
		"report.PDF":     "pdf",
		"notes.md":       "md",
		"archive.tar.gz": "gz",
		"noext":          "",
		"trailingdot.":   "",
		".hidden":        "hidden",
	}
	for name, want := range cases {
		assert.Equal(t, want, FileExtension(name), name)
	}
}
