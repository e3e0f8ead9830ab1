package handlers

import (
	"net/http"

	"github.com/docflow/docflow/client/internal/storage"
	"github.com/docflow/docflow/client/pkg/middleware"
	"github.com/gin-gonic/gin"
)

const maxUploadSize = 32 << 20

// Upload takes a multipart "file" and stores it under the caller's uid.
func (g *Gateway) Upload(c *gin.Context) {
	claims := middleware.Claims(c)
	if claims == nil || claims.UserID == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "token carries no user id"})
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	if fh.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	if _, err := storage.ObjectKey(string(claims.UserID), fh.Filename); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	s := g.scope(c)
	presigner := g.presigner
	if presigner == nil {
		presigner = storage.NewRemotePresigner(s.client)
	}
	loc, err := storage.NewUploader(presigner, s.client).Upload(c.Request.Context(), string(claims.UserID), fh.Filename, f, fh.Size)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": loc, "filename": fh.Filename})
}
