package flowtest

import (
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/docflow/docflow/client/internal/token"
	"github.com/gin-gonic/gin"
)

func claimsOf(c *gin.Context) *token.Claims {
	v, _ := c.Get("claims")
	cl, _ := v.(*token.Claims)
	if cl == nil {
		return &token.Claims{}
	}
	return cl
}

func uidOf(c *gin.Context) int {
	n, _ := strconv.Atoi(string(claimsOf(c).UserID))
	return n
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": name + " must be an integer"})
		return 0, false
	}
	return n, true
}

func (s *Server) login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	s.mu.Lock()
	acc, ok := s.accounts[username]
	s.mu.Unlock()
	if !ok || acc.password != password {
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
		return
	}
	raw, err := token.Sign(s.Secret, &acc.claims, time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": raw, "token_type": "bearer"})
}

func (s *Server) listGroups(c *gin.Context) {
	c.JSON(http.StatusOK, s.Repo.Groups())
}

func (s *Server) groupNames(c *gin.Context) {
	out := gin.H{}
	for _, realm := range claimsOf(c).RealmIDs() {
		id, err := strconv.Atoi(realm)
		if err != nil {
			continue
		}
		if name, ok := s.Repo.GroupName(id); ok {
			out[realm] = name
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) groupReviewers(c *gin.Context) {
	m, ok := s.Repo.Reviewers(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Group with ID " + c.Param("id") + " not found."})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) username(c *gin.Context) {
	name, ok := s.Repo.Username(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "User with ID " + c.Param("id") + " not found."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": name})
}

func (s *Server) listRealm(c *gin.Context) {
	realm := c.Param("id")
	s.mu.Lock()
	status, fail := s.failRealm[realm]
	wait := s.delay[realm]
	s.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-c.Request.Context().Done():
			return
		}
	}
	if fail {
		c.JSON(status, gin.H{"detail": "realm " + realm + " unavailable"})
		return
	}
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	docs := s.Repo.Realm(id)
	if st := c.Query("status_filter"); st != "" {
		kept := docs[:0]
		for _, d := range docs {
			if d.Status == st {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	c.JSON(http.StatusOK, docs)
}

func (s *Server) createDocument(c *gin.Context) {
	realm, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	d := s.Repo.AddDocument(Doc{Title: req.Title, Description: req.Description, CreatorID: uidOf(c), RealmID: realm})
	c.JSON(http.StatusCreated, d)
}

func (s *Server) updateDocument(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var fields map[string]interface{}
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	d, err := s.Repo.Update(id, fields)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found."})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) documentDetail(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	d, err := s.Repo.Document(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found."})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) submitForReview(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		ReviewerID int `json:"reviewer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	d, err := s.Repo.Document(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found."})
		return
	}
	if d.Status != "draft" && d.Status != "rejected" {
		c.JSON(http.StatusConflict, gin.H{"detail": "Document cannot be submitted from status " + d.Status})
		return
	}
	d, _ = s.Repo.Update(id, map[string]interface{}{"status": "pending_review", "current_reviewer_id": float64(req.ReviewerID)})
	sender := uidOf(c)
	s.Repo.AddNotification(Notification{SenderID: &sender, RecipientID: req.ReviewerID, DocumentID: &id,
		Type: "document_for_review", Message: "Document '" + d.Title + "' assigned for your review."})
	c.JSON(http.StatusOK, d)
}

func (s *Server) reviewAction(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Action          string  `json:"action"`
		RejectionReason *string `json:"rejection_reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	d, err := s.Repo.Document(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found."})
		return
	}
	if d.Status != "pending_review" {
		c.JSON(http.StatusConflict, gin.H{"detail": "Document is not pending review."})
		return
	}
	switch req.Action {
	case "approve":
	case "reject":
		if req.RejectionReason == nil || *req.RejectionReason == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Rejection reason is required when rejecting a document."})
			return
		}
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "unknown action"})
		return
	}
	rec, updated, _ := s.Repo.Review(id, uidOf(c), req.Action, req.RejectionReason)
	c.JSON(http.StatusOK, gin.H{"review_record": rec, "updated_document": updated})
}

func (s *Server) reviewHistory(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	if _, err := s.Repo.Document(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Document not found."})
		return
	}
	c.JSON(http.StatusOK, s.Repo.History(id))
}

func (s *Server) listNotifications(c *gin.Context) {
	list := s.Repo.Notifications(uidOf(c))
	out := make([]Notification, 0, len(list))
	for _, n := range list {
		if v := c.Query("is_read"); v != "" && strconv.FormatBool(n.IsRead) != v {
			continue
		}
		if v := c.Query("type"); v != "" && n.Type != v {
			continue
		}
		out = append(out, n)
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) markNotification(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		IsRead *bool `json:"is_read"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.IsRead == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "is_read is required"})
		return
	}
	n, err := s.Repo.SetRead(id, *req.IsRead)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Notification not found."})
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) presign(c *gin.Context) {
	var req struct {
		Filename string `json:"filename"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Filename == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "filename is required"})
		return
	}
	var folder string
	switch strings.ToLower(path.Ext(req.Filename)) {
	case ".md", ".markdown":
		folder = "markdown"
	case ".png", ".jpg", ".jpeg":
		folder = "images"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unsupported file type"})
		return
	}
	url := s.URL + "/objects/" + c.Param("uid") + "/" + folder + "/" + req.Filename + "?X-Amz-Expires=3600"
	c.JSON(http.StatusOK, gin.H{"message": "Upload URL generated successfully", "url": url})
}
