package handlers

import (
	"net/http"
	"strconv"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/document"
	"github.com/docflow/docflow/client/internal/document/service"
	"github.com/gin-gonic/gin"
)

// RealmFailure names a realm whose documents are missing from a listing.
type RealmFailure struct {
	Realm string `json:"realm"`
	Error string `json:"error"`
}

func (g *Gateway) registerDocuments(a *gin.RouterGroup) {
	a.GET("/documents", g.ListDocuments)
	a.POST("/realms/:realm/documents", g.CreateDocument)
	a.GET("/documents/:id", g.GetDocument)
	a.PATCH("/documents/:id", g.PatchDocument)
	a.PUT("/documents/:id", g.PutDocument)
	a.GET("/documents/:id/content", g.GetDocumentContent)
	a.POST("/documents/:id/submit", g.SubmitDocument)
	a.POST("/documents/:id/review", g.ReviewDocument)
	a.GET("/documents/:id/history", g.ReviewHistory)
}

func listOptions(c *gin.Context) (service.ListOptions, error) {
	opts := service.ListOptions{
		Status:    document.Status(c.Query("status")),
		CreatorID: c.Query("creator"),
	}
	var err error
	if v := c.Query("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit < 0 {
			return opts, api.ErrInvalidInput
		}
	}
	if v := c.Query("offset"); v != "" {
		if opts.Offset, err = strconv.Atoi(v); err != nil || opts.Offset < 0 {
			return opts, api.ErrInvalidInput
		}
	}
	return opts, nil
}

// ListDocuments aggregates the caller's documents across realms. Realms that
// failed are reported next to the documents, never as an error.
func (g *Gateway) ListDocuments(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit and offset must be non-negative integers"})
		return
	}
	s := g.scope(c)
	agg, err := s.documents(g).Collect(c.Request.Context(), opts)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	if s.loggedOut(g) {
		g.fail(c, s, api.ErrUnauthorized)
		return
	}
	failed := make([]RealmFailure, 0, len(agg.Failures))
	for _, f := range agg.Failures {
		failed = append(failed, RealmFailure{Realm: f.Realm, Error: f.Err.Error()})
	}
	c.JSON(http.StatusOK, gin.H{"documents": agg.Documents, "realms": agg.Realms, "failedRealms": failed})
}

// CreateDocument creates a document in the realm from the path and returns
// the upstream body untouched.
func (g *Gateway) CreateDocument(c *gin.Context) {
	var req service.NewDocument
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	s := g.scope(c)
	raw, err := s.documents(g).CreateDocument(c.Request.Context(), c.Param("realm"), req)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.Data(http.StatusCreated, "application/json; charset=utf-8", raw)
}

func (g *Gateway) GetDocument(c *gin.Context) {
	s := g.scope(c)
	doc, err := s.documents(g).GetDocumentDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetDocumentContent streams the document body from its content URL.
func (g *Gateway) GetDocumentContent(c *gin.Context) {
	s := g.scope(c)
	docs := s.documents(g)
	doc, err := docs.GetDocumentDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, s, err)
		return
	}
	if doc.ContentURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "document has no content"})
		return
	}
	body, err := docs.GetContent(c.Request.Context(), doc)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", body)
}

// PatchDocument forwards the allow-listed subset of the body.
func (g *Gateway) PatchDocument(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := g.scope(c)
	doc, err := s.documents(g).UpdateDocumentFields(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (g *Gateway) PutDocument(c *gin.Context) {
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := g.scope(c)
	doc, err := s.documents(g).UpdateDocument(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// SubmitDocument sends the document to a reviewer.
func (g *Gateway) SubmitDocument(c *gin.Context) {
	var req struct {
		ReviewerID document.ID `json:"reviewerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := g.scope(c)
	doc, err := s.documents(g).SubmitForReview(c.Request.Context(), c.Param("id"), string(req.ReviewerID))
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ReviewDocument approves or rejects a document under review.
func (g *Gateway) ReviewDocument(c *gin.Context) {
	var req struct {
		Action document.ReviewAction `json:"action" binding:"required"`
		Reason string                `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := g.scope(c)
	res, err := s.documents(g).ReviewDocument(c.Request.Context(), c.Param("id"), req.Action, req.Reason)
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (g *Gateway) ReviewHistory(c *gin.Context) {
	s := g.scope(c)
	history, err := s.documents(g).ReviewHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, s, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
