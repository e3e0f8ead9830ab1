package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/document"
)

// NewDocument is the body of a create request.
type NewDocument struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func docPath(id string, suffix string) string {
	return "/flow/documents/" + url.PathEscape(id) + suffix
}

// CreateDocument creates a document in realm and returns the backend's
// representation as is.
func (s *Service) CreateDocument(ctx context.Context, realm string, in NewDocument) (json.RawMessage, error) {
	if realm == "" {
		return nil, fmt.Errorf("%w: realm is required", api.ErrInvalidInput)
	}
	var raw json.RawMessage
	if err := s.client.Post(ctx, docPath(realm, ""), in, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// UpdateDocument sends a full update (PUT) restricted to the updatable fields.
func (s *Service) UpdateDocument(ctx context.Context, id string, data map[string]interface{}) (document.Document, error) {
	return s.write(ctx, "PUT", id, document.Allow(data))
}

// UpdateDocumentFields sends a partial update (PATCH). Keys outside
// document.Updatable are dropped.
func (s *Service) UpdateDocumentFields(ctx context.Context, id string, updateData map[string]interface{}) (document.Document, error) {
	fields := document.Allow(updateData)
	if len(fields) == 0 {
		return document.Document{}, fmt.Errorf("%w: no updatable fields", api.ErrInvalidInput)
	}
	return s.write(ctx, "PATCH", id, fields)
}

// SaveChanges patches only the fields that differ between before and after.
// Nothing is sent when nothing changed.
func (s *Service) SaveChanges(ctx context.Context, before, after document.Document) (document.Document, error) {
	fields := document.Diff(before, after)
	if len(fields) == 0 {
		return before, nil
	}
	return s.write(ctx, "PATCH", string(before.ID), fields)
}

func (s *Service) write(ctx context.Context, method, id string, fields document.Fields) (document.Document, error) {
	if id == "" {
		return document.Document{}, fmt.Errorf("%w: document id is required", api.ErrInvalidInput)
	}
	var raw json.RawMessage
	if err := s.client.Do(ctx, method, docPath(id, ""), nil, fields, &raw); err != nil {
		return document.Document{}, err
	}
	return decodeOne(raw)
}

// GetDocumentDetail fetches one document.
func (s *Service) GetDocumentDetail(ctx context.Context, id string) (document.Document, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, docPath(id, "/details"), nil, &raw); err != nil {
		return document.Document{}, err
	}
	return decodeOne(raw)
}

// SubmitForReview assigns reviewerID; the backend moves the document to
// pending_review.
func (s *Service) SubmitForReview(ctx context.Context, id, reviewerID string) (document.Document, error) {
	if reviewerID == "" {
		return document.Document{}, fmt.Errorf("%w: reviewer is required", api.ErrInvalidInput)
	}
	body := map[string]interface{}{"reviewer_id": document.ID(reviewerID)}
	var raw json.RawMessage
	if err := s.client.Post(ctx, docPath(id, "/submit-for-review"), body, &raw); err != nil {
		return document.Document{}, err
	}
	return decodeOne(raw)
}

// ReviewDocument records a decision. A rejection needs a reason.
func (s *Service) ReviewDocument(ctx context.Context, id string, action document.ReviewAction, rejectionReason string) (document.ReviewResult, error) {
	switch action {
	case document.ActionApprove:
	case document.ActionReject:
		if rejectionReason == "" {
			return document.ReviewResult{}, fmt.Errorf("%w: rejection reason is required", api.ErrInvalidInput)
		}
	default:
		return document.ReviewResult{}, fmt.Errorf("%w: unknown review action %q", api.ErrInvalidInput, action)
	}
	body := map[string]interface{}{"action": action}
	if rejectionReason != "" {
		body["rejection_reason"] = rejectionReason
	}
	var raw json.RawMessage
	if err := s.client.Post(ctx, docPath(id, "/review-action"), body, &raw); err != nil {
		return document.ReviewResult{}, err
	}
	res, err := document.NormalizeReviewResult(raw)
	if err != nil {
		return document.ReviewResult{}, fmt.Errorf("decode review result: %w", err)
	}
	return res, nil
}

// ReviewHistory lists the review records of a document, oldest first.
func (s *Service) ReviewHistory(ctx context.Context, id string) ([]document.ReviewRecord, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, docPath(id, "/review-history"), nil, &raw); err != nil {
		return nil, err
	}
	recs, err := document.NormalizeHistory(raw)
	if err != nil {
		return nil, fmt.Errorf("decode review history: %w", err)
	}
	return recs, nil
}

// GetContent downloads the markdown body behind doc.ContentURL.
func (s *Service) GetContent(ctx context.Context, doc document.Document) ([]byte, error) {
	if doc.ContentURL == "" {
		return nil, fmt.Errorf("%w: document %s has no content url", api.ErrInvalidInput, doc.ID)
	}
	return s.client.Fetch(ctx, doc.ContentURL)
}

func decodeOne(raw json.RawMessage) (document.Document, error) {
	d, err := document.Normalize(raw, "")
	if err != nil {
		return document.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return d, nil
}
