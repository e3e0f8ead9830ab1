package flowtest

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"
)

var ErrNotFound = errors.New("not found")

// Doc is a stored document in the flow service's wire shape.
type Doc struct {
	ID                int        `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Status            string     `json:"status"`
	CreatorID         int        `json:"creator_id"`
	RealmID           int        `json:"realm_id"`
	CurrentReviewerID *int       `json:"current_reviewer_id"`
	LastEditorID      *int       `json:"last_editor_id"`
	PublishedAt       *time.Time `json:"published_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	ContentURL        string     `json:"content_url,omitempty"`
}

type Review struct {
	ID              int       `json:"id"`
	DocumentID      int       `json:"document_id"`
	ReviewerID      int       `json:"reviewer_id"`
	Action          string    `json:"action"`
	Status          string    `json:"status"`
	RejectionReason *string   `json:"rejection_reason"`
	ReviewedAt      time.Time `json:"reviewed_at"`
}

type Notification struct {
	ID          int       `json:"id"`
	SenderID    *int      `json:"sender_id"`
	RecipientID int       `json:"recipient_id"`
	DocumentID  *int      `json:"document_id"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type Group struct {
	ID        int       `json:"id"`
	Name      string    `json:"group_name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repo is the in-memory state behind the fake upstream.
type Repo struct {
	mu            sync.RWMutex
	nextID        int
	docs          map[int]*Doc
	reviews       []Review
	notifications map[int]*Notification
	groups        []Group
	usernames     map[string]string
	reviewers     map[string]map[string]string
}

func NewRepo() *Repo {
	return &Repo{
		nextID:        1,
		docs:          make(map[int]*Doc),
		notifications: make(map[int]*Notification),
		usernames:     make(map[string]string),
		reviewers:     make(map[string]map[string]string),
	}
}

func (r *Repo) id() int {
	id := r.nextID
	r.nextID++
	return id
}

// AddDocument stores d, assigning an id when it has none.
func (r *Repo) AddDocument(d Doc) Doc {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == 0 {
		d.ID = r.id()
	} else if d.ID >= r.nextID {
		r.nextID = d.ID + 1
	}
	if d.Status == "" {
		d.Status = "draft"
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	r.docs[d.ID] = &d
	return d
}

func (r *Repo) Document(id int) (Doc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.docs[id]; ok {
		return *d, nil
	}
	return Doc{}, ErrNotFound
}

// Realm lists the documents of one realm ordered by id.
func (r *Repo) Realm(realm int) []Doc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Doc, 0)
	for _, d := range r.docs {
		if d.RealmID == realm {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Update applies fields to a document the way the flow service does.
func (r *Repo) Update(id int, fields map[string]interface{}) (Doc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			d.Title, _ = v.(string)
		case "description":
			d.Description, _ = v.(string)
		case "status":
			d.Status, _ = v.(string)
		case "current_reviewer_id":
			d.CurrentReviewerID = intPtr(v)
		}
	}
	d.UpdatedAt = time.Now().UTC()
	return *d, nil
}

// Review records an action and moves the document accordingly.
func (r *Repo) Review(id, reviewer int, action string, reason *string) (Review, Doc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return Review{}, Doc{}, ErrNotFound
	}
	now := time.Now().UTC()
	if action == "approve" {
		d.Status = "published"
		d.PublishedAt = &now
	} else {
		d.Status = "rejected"
	}
	d.CurrentReviewerID = nil
	d.UpdatedAt = now
	rec := Review{ID: r.id(), DocumentID: id, ReviewerID: reviewer, Action: action, Status: d.Status, RejectionReason: reason, ReviewedAt: now}
	r.reviews = append(r.reviews, rec)
	return rec, *d, nil
}

func (r *Repo) History(id int) []Review {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Review, 0)
	for _, rec := range r.reviews {
		if rec.DocumentID == id {
			out = append(out, rec)
		}
	}
	return out
}

func (r *Repo) AddNotification(n Notification) Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == 0 {
		n.ID = r.id()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.notifications[n.ID] = &n
	return n
}

// Notifications lists a recipient's notifications ordered by id.
func (r *Repo) Notifications(recipient int) []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Notification, 0)
	for _, n := range r.notifications {
		if n.RecipientID == recipient {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Repo) SetRead(id int, read bool) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	n.IsRead = read
	return *n, nil
}

func (r *Repo) AddGroup(id int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	r.groups = append(r.groups, Group{ID: id, Name: name, CreatedAt: now, UpdatedAt: now})
}

// GroupName returns the name of group id.
func (r *Repo) GroupName(id int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.ID == id {
			return g.Name, true
		}
	}
	return "", false
}

func (r *Repo) Groups() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Group(nil), r.groups...)
}

func (r *Repo) SetUsername(uid, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usernames[uid] = name
}

func (r *Repo) Username(uid string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.usernames[uid]
	return n, ok
}

// SetReviewers maps reviewer uid to username for one group.
func (r *Repo) SetReviewers(group string, byUID map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviewers[group] = byUID
}

func (r *Repo) Reviewers(group string) (map[string]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.reviewers[group]
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, ok
}

func intPtr(v interface{}) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return &i
		}
	}
	return nil
}
