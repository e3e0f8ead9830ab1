// Package notification lists and updates the workflow notifications of the
// signed-in user.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/document"
)

type Type string

const (
	TypeForReview   Type = "document_for_review"
	TypeApproved    Type = "document_approved"
	TypeRejected    Type = "document_rejection"
	TypeStateChange Type = "document_state_change"
)

type Notification struct {
	ID          document.ID    `json:"id"`
	SenderID    *document.ID   `json:"senderId"`
	RecipientID document.ID    `json:"recipientId"`
	DocumentID  *document.ID   `json:"documentId"`
	Type        Type           `json:"type"`
	Message     string         `json:"message"`
	IsRead      bool           `json:"isRead"`
	CreatedAt   *document.Time `json:"createdAt"`
}

type wireNotification struct {
	ID          document.ID    `json:"id"`
	SenderID    *document.ID   `json:"sender_id"`
	RecipientID document.ID    `json:"recipient_id"`
	DocumentID  *document.ID   `json:"document_id"`
	Type        Type           `json:"type"`
	Message     string         `json:"message"`
	IsRead      bool           `json:"is_read"`
	CreatedAt   *document.Time `json:"created_at"`
}

func (w wireNotification) normalize() Notification {
	return Notification(w)
}

// Filter narrows a listing. Zero values mean "no filter".
type Filter struct {
	IsRead *bool
	Type   Type
	Limit  int
	Offset int
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.IsRead != nil {
		q.Set("is_read", strconv.FormatBool(*f.IsRead))
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

type Service struct {
	client *api.Client
}

func New(client *api.Client) *Service {
	return &Service{client: client}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Notification, error) {
	var ws []wireNotification
	if err := s.client.Get(ctx, "/flow/notifications/", f.query(), &ws); err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.normalize())
	}
	return out, nil
}

// Unread is List restricted to unread notifications.
func (s *Service) Unread(ctx context.Context) ([]Notification, error) {
	unread := false
	return s.List(ctx, Filter{IsRead: &unread})
}

// MarkRead sets the read flag of one notification.
func (s *Service) MarkRead(ctx context.Context, id string, isRead bool) (Notification, error) {
	if id == "" {
		return Notification{}, fmt.Errorf("%w: notification id is required", api.ErrInvalidInput)
	}
	var raw json.RawMessage
	if err := s.client.Patch(ctx, "/flow/notifications/"+url.PathEscape(id), map[string]bool{"is_read": isRead}, &raw); err != nil {
		return Notification{}, err
	}
	var w wireNotification
	if err := json.Unmarshal(raw, &w); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return w.normalize(), nil
}
