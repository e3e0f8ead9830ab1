// Package document holds the normalized document model shared by the
// aggregation service, the gateway and the CLI.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusRejected      Status = "rejected"
	StatusPublished     Status = "published"
)

type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
)

// ID is a backend identifier. The flow service emits integers; the client
// keeps them as strings and sends numeric ones back as numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	// only canonical integers go out bare; "007" or "+3" stay strings
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Time accepts RFC 3339 and the zone-less ISO timestamps the flow service
// writes. Zone-less values are read as UTC.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var firstErr error
	for _, layout := range timeLayouts {
		v, err := time.Parse(layout, s)
		if err == nil {
			t.Time = v.UTC()
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Document is the camelCase shape handed to callers.
type Document struct {
	ID                ID     `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Status            Status `json:"status"`
	CreatorID         ID     `json:"creatorId"`
	RealmID           string `json:"realmId"`
	CurrentReviewerID *ID    `json:"currentReviewerId"`
	LastEditorID      *ID    `json:"lastEditorId,omitempty"`
	PublishedAt       *Time  `json:"publishedAt"`
	CreatedAt         *Time  `json:"createdAt"`
	UpdatedAt         *Time  `json:"updatedAt"`
	ContentURL        string `json:"contentUrl,omitempty"`
}

// wireDocument is the snake_case representation served by the flow service.
type wireDocument struct {
	ID                ID     `json:"id"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	Status            Status `json:"status"`
	CreatorID         ID     `json:"creator_id"`
	RealmID           ID     `json:"realm_id"`
	CurrentReviewerID *ID    `json:"current_reviewer_id"`
	LastEditorID      *ID    `json:"last_editor_id"`
	PublishedAt       *Time  `json:"published_at"`
	CreatedAt         *Time  `json:"created_at"`
	UpdatedAt         *Time  `json:"updated_at"`
	ContentURL        string `json:"content_url"`
	URL               string `json:"url"`
}

func (w wireDocument) normalize(realmID string) Document {
	d := Document{
		ID:                w.ID,
		Title:             w.Title,
		Description:       w.Description,
		Status:            w.Status,
		CreatorID:         w.CreatorID,
		RealmID:           string(w.RealmID),
		CurrentReviewerID: w.CurrentReviewerID,
		LastEditorID:      w.LastEditorID,
		PublishedAt:       w.PublishedAt,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
		ContentURL:        w.ContentURL,
	}
	if d.ContentURL == "" {
		d.ContentURL = w.URL
	}
	if realmID != "" {
		d.RealmID = realmID
	}
	return d
}

// Normalize decodes one backend document. A non-empty realmID overrides the
// realm the backend reported.
func Normalize(raw []byte, realmID string) (Document, error) {
	var w wireDocument
	if err := json.Unmarshal(raw, &w); err != nil {
		return Document{}, err
	}
	return w.normalize(realmID), nil
}

// NormalizeList decodes a JSON array of backend documents, tagging each with
// realmID.
func NormalizeList(raw []byte, realmID string) ([]Document, error) {
	var ws []wireDocument
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize(realmID))
	}
	return out, nil
}

// ReviewRecord is one entry of a document's review history.
type ReviewRecord struct {
	ID              ID           `json:"id"`
	DocumentID      ID           `json:"documentId"`
	ReviewerID      ID           `json:"reviewerId"`
	Action          ReviewAction `json:"action"`
	Status          Status       `json:"status"`
	RejectionReason string       `json:"rejectionReason,omitempty"`
	ReviewedAt      *Time        `json:"reviewedAt"`
}

type wireReviewRecord struct {
	ID              ID           `json:"id"`
	DocumentID      ID           `json:"document_id"`
	ReviewerID      ID           `json:"reviewer_id"`
	Action          ReviewAction `json:"action"`
	Status          Status       `json:"status"`
	RejectionReason *string      `json:"rejection_reason"`
	ReviewedAt      *Time        `json:"reviewed_at"`
}

func (w wireReviewRecord) normalize() ReviewRecord {
	r := ReviewRecord{
		ID:         w.ID,
		DocumentID: w.DocumentID,
		ReviewerID: w.ReviewerID,
		Action:     w.Action,
		Status:     w.Status,
		ReviewedAt: w.ReviewedAt,
	}
	if w.RejectionReason != nil {
		r.RejectionReason = *w.RejectionReason
	}
	return r
}

// ReviewResult is the answer to a review action.
type ReviewResult struct {
	Record   ReviewRecord `json:"reviewRecord"`
	Document Document     `json:"document"`
}

// NormalizeReviewResult decodes {review_record, updated_document}.
func NormalizeReviewResult(raw []byte) (ReviewResult, error) {
	var w struct {
		ReviewRecord    wireReviewRecord `json:"review_record"`
		UpdatedDocument wireDocument     `json:"updated_document"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return ReviewResult{}, err
	}
	return ReviewResult{Record: w.ReviewRecord.normalize(), Document: w.UpdatedDocument.normalize("")}, nil
}

// NormalizeHistory decodes a JSON array of review records.
func NormalizeHistory(raw []byte) ([]ReviewRecord, error) {
	var ws []wireReviewRecord
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, err
	}
	out := make([]ReviewRecord, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize())
	}
	return out, nil
}
