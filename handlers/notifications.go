package handlers

import (
	"net/http"
	"strconv"

	"github.com/docflow/docflow/client/internal/notification"
	"github.com/gin-gonic/gin"
)

func (g *Gateway) registerNotifications(a *gin.RouterGroup) {
	a.GET("/notifications", g.ListNotifications)
	a.PATCH("/notifications/:id", g.MarkNotification)
}

// ListNotifications accepts ?unread=true, ?type=, ?limit= and ?offset=.
func (g *Gateway) ListNotifications(c *gin.Context) {
	var f notification.Filter
	if v := c.Query("unread"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unread must be a boolean"})
			return
		}
		isRead := !unread
		f.IsRead = &isRead
	}
	f.Type = notification.Type(c.Query("type"))
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	s := g.scope(c)
	list, err := s.notifications().List(c.Request.Context(), f)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkNotification sets the read flag; an empty body marks it read.
func (g *Gateway) MarkNotification(c *gin.Context) {
	req := struct {
		IsRead *bool `json:"isRead"`
	}{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	isRead := true
	if req.IsRead != nil {
		isRead = *req.IsRead
	}
	s := g.scope(c)
	n, err := s.notifications().MarkRead(c.Request.Context(), c.Param("id"), isRead)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
