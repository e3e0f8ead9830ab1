package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (g *Gateway) registerDirectory(a *gin.RouterGroup) {
	a.GET("/groups", g.ListGroups)
	a.GET("/groups/names", g.GroupNames)
	a.GET("/groups/:id/reviewers", g.GroupReviewers)
	a.GET("/users/:id/username", g.Username)
}

// ListGroups lists every realm; the auth service restricts it to admins.
func (g *Gateway) ListGroups(c *gin.Context) {
	s := g.scope(c)
	groups, err := s.directory(g).Groups(c.Request.Context())
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GroupNames maps the caller's realm ids to display names.
func (g *Gateway) GroupNames(c *gin.Context) {
	s := g.scope(c)
	names, err := s.directory(g).GroupNames(c.Request.Context())
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

func (g *Gateway) GroupReviewers(c *gin.Context) {
	s := g.scope(c)
	reviewers, err := s.directory(g).Reviewers(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviewers": reviewers})
}

func (g *Gateway) Username(c *gin.Context) {
	s := g.scope(c)
	name, err := s.directory(g).Username(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "username": name})
}
