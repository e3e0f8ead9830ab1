package service

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/docflow/docflow/client/internal/api"
	"github.com/docflow/docflow/client/internal/config"
	"github.com/docflow/docflow/client/internal/document"
	"github.com/docflow/docflow/client/internal/flowtest"
	"github.com/docflow/docflow/client/internal/session"
	"github.com/docflow/docflow/client/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNav struct {
	mu        sync.Mutex
	loc       string
	redirects []string
}

func (n *recordingNav) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loc
}

func (n *recordingNav) Redirect(p string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, p)
	n.loc = p
}

type staticRealms []string

func (s staticRealms) RealmIDs(context.Context) ([]string, error) { return s, nil }

type fixture struct {
	srv    *flowtest.Server
	svc    *Service
	handle *session.Handle
	nav    *recordingNav
}

func setup(t *testing.T, rawToken string, realms RealmLister, opts Options) *fixture {
	t.Helper()
	srv := flowtest.New(t)
	handle := session.NewHandle(session.NewMemoryStore(), session.TokenKey)
	if rawToken != "" {
		require.NoError(t, handle.Save(context.Background(), rawToken))
	}
	nav := &recordingNav{loc: "/"}
	client := api.New(api.Options{BaseURL: srv.URL, Timeout: 2 * time.Second, Tokens: handle, Navigator: nav})
	return &fixture{srv: srv, svc: New(client, handle, realms, opts), handle: handle, nav: nav}
}

func roles(pairs ...string) token.RealmRoles {
	var out token.RealmRoles
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, token.RealmRole{Realm: pairs[i], Roles: []string{pairs[i+1]}})
	}
	return out
}

func signed(t *testing.T, claims token.Claims) string {
	raw, err := token.Sign([]byte("service-test-secret-xxxxxxxxxxxx"), &claims, time.Hour)
	require.NoError(t, err)
	return raw
}

func TestGetAllDocuments_NoToken(t *testing.T) {
	f := setup(t, "", nil, Options{})

	_, err := f.svc.GetAllDocuments(context.Background())
	require.ErrorIs(t, err, api.ErrAuthentication)
	var ae *api.AuthenticationError
	require.True(t, errors.As(err, &ae))
	assert.Empty(t, f.srv.Calls())
}

func TestGetAllDocuments_UndecodableToken(t *testing.T) {
	f := setup(t, "not.a-token", nil, Options{})

	_, err := f.svc.GetAllDocuments(context.Background())
	require.ErrorIs(t, err, api.ErrAuthentication)
	assert.ErrorIs(t, err, token.ErrMalformed)
	assert.Empty(t, f.srv.Calls())
}

func TestGetAllDocuments_EmptyRealmRoles(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4", GlobalRole: "user"}), nil, Options{})

	docs, err := f.svc.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.Empty(t, f.srv.CallsTo(http.MethodGet, "/flow/documents/"))
}

func TestGetAllDocuments_PartialFailure(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4", RealmRoles: roles("1", "user", "2", "reviewer")}), nil, Options{})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "a1", RealmID: 1})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "b1", RealmID: 2})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "b2", RealmID: 2})
	f.srv.FailRealm("1", http.StatusInternalServerError)

	agg, err := f.svc.Collect(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, agg.Documents, 2)
	for _, d := range agg.Documents {
		assert.Equal(t, "2", d.RealmID)
	}
	assert.Equal(t, "b1", agg.Documents[0].Title)
	require.Len(t, agg.Failures, 1)
	assert.Equal(t, "1", agg.Failures[0].Realm)
	assert.Equal(t, http.StatusInternalServerError, api.StatusOf(agg.Failures[0]))
}

func TestGetAllDocuments_RepeatedRealmFetchedOnce(t *testing.T) {
	payload := `{"uid":4,"realm_roles":{"1":"user","2":"user","1":"reviewer"}}`
	raw := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".c2ln"
	f := setup(t, raw, nil, Options{})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "a1", RealmID: 1})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "b1", RealmID: 2})

	agg, err := f.svc.Collect(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, agg.Realms)
	require.Len(t, agg.Documents, 2)
	assert.Equal(t, "a1", agg.Documents[0].Title)
	assert.Equal(t, "b1", agg.Documents[1].Title)
	assert.Len(t, f.srv.CallsTo(http.MethodGet, "/flow/documents/1"), 1)
}

func TestSubmitForReview_LeadingZeroReviewerID(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "9"}), nil, Options{})
	stored := f.srv.Repo.AddDocument(flowtest.Doc{Title: "t", RealmID: 1})
	id := itoa(stored.ID)

	// the id is sent as a string, the flow service rejects it as not an int
	_, err := f.svc.SubmitForReview(context.Background(), id, "007")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, api.StatusOf(err))
	calls := f.srv.CallsTo(http.MethodPost, "/flow/documents/"+id+"/submit-for-review")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"reviewer_id":"007"}`, string(calls[0].Body))
}

func TestGetAllDocuments_RealmOrderNotArrivalOrder(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4", RealmRoles: roles("1", "editor", "2", "reviewer")}), nil, Options{})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "from-1", RealmID: 1})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "from-2", RealmID: 2})
	f.srv.DelayRealm("1", 150*time.Millisecond)

	docs, err := f.svc.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "from-1", docs[0].Title)
	assert.Equal(t, "1", docs[0].RealmID)
	assert.Equal(t, "from-2", docs[1].Title)
	assert.Equal(t, "2", docs[1].RealmID)

	calls := f.srv.CallsTo(http.MethodGet, "/flow/documents/")
	require.Len(t, calls, 2)
	paths := []string{calls[0].Path, calls[1].Path}
	assert.ElementsMatch(t, []string{"/flow/documents/1", "/flow/documents/2"}, paths)
	for _, c := range calls {
		assert.Contains(t, c.Auth, token.BearerPrefix)
	}
}

func TestGetAllDocuments_TokenOrderWins(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4", RealmRoles: roles("2", "user", "1", "user")}), nil, Options{Concurrency: 1})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "from-1", RealmID: 1})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "from-2", RealmID: 2})

	docs, err := f.svc.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []string{"2", "1"}, []string{docs[0].RealmID, docs[1].RealmID})
}

func TestGetAllDocuments_NormalizesFields(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4", RealmRoles: roles("3", "user")}), nil, Options{})
	reviewer := 9
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "t", Description: "d", CreatorID: 4, RealmID: 3, CurrentReviewerID: &reviewer, Status: "pending_review"})

	docs, err := f.svc.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	d := docs[0]
	assert.Equal(t, document.ID("4"), d.CreatorID)
	require.NotNil(t, d.CurrentReviewerID)
	assert.Equal(t, document.ID("9"), *d.CurrentReviewerID)
	assert.Equal(t, document.StatusPendingReview, d.Status)
	require.NotNil(t, d.CreatedAt)
	assert.False(t, d.CreatedAt.IsZero())
}

func TestGetAllDocuments_AdminAllRealms(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "1", GlobalRole: "admin"}), staticRealms{"1", "2", "3"}, Options{})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "x", RealmID: 1})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "y", RealmID: 3})

	docs, err := f.svc.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].RealmID)
	assert.Equal(t, "3", docs[1].RealmID)
	assert.Len(t, f.srv.CallsTo(http.MethodGet, "/flow/documents/"), 3)
}

func TestGetAllDocuments_AdminDefaultRealm(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "1", GlobalRole: "admin"}), staticRealms{"1", "2"},
		Options{AdminPolicy: config.AdminRealmsDefault, DefaultRealm: "2"})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "x", RealmID: 1})
	f.srv.Repo.AddDocument(flowtest.Doc{Title: "y", RealmID: 2})

	docs, err := f.svc.GetAllDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "y", docs[0].Title)
}

func TestGetAllDocuments_UnauthorizedLogsOut(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4", RealmRoles: roles("1", "user", "2", "user")}), nil, Options{Concurrency: 1})
	f.srv.RejectTokens(true)

	docs, err := f.svc.GetAllDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	tok, err := f.handle.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
	assert.Equal(t, []string{"/login"}, f.nav.redirects)
}

func TestCreateDocument_ReturnsRaw(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4", RealmRoles: roles("1", "user")}), nil, Options{})

	raw, err := f.svc.CreateDocument(context.Background(), "1", NewDocument{Title: "t", Description: "d"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"creator_id":4`)

	calls := f.srv.CallsTo(http.MethodPost, "/flow/documents/1")
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]interface{}{"title": "t", "description": "d"}, calls[0].JSON())

	_, err = f.svc.CreateDocument(context.Background(), "", NewDocument{})
	assert.ErrorIs(t, err, api.ErrInvalidInput)
}

func TestUpdateDocumentFields_AllowList(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4"}), nil, Options{})
	d := f.srv.Repo.AddDocument(flowtest.Doc{Title: "old", RealmID: 1})

	got, err := f.svc.UpdateDocumentFields(context.Background(), itoa(d.ID), map[string]interface{}{
		"title":     "x",
		"evil":      "y",
		"creatorId": 99,
	})
	require.NoError(t, err)
	assert.Equal(t, "x", got.Title)

	calls := f.srv.CallsTo(http.MethodPatch, "/flow/documents/")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"title":"x"}`, string(calls[0].Body))

	_, err = f.svc.UpdateDocumentFields(context.Background(), itoa(d.ID), map[string]interface{}{"evil": "y"})
	assert.ErrorIs(t, err, api.ErrInvalidInput)
	assert.Len(t, f.srv.CallsTo(http.MethodPatch, "/flow/documents/"), 1)
}

func TestUpdateDocument_PutFiltered(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4"}), nil, Options{})
	d := f.srv.Repo.AddDocument(flowtest.Doc{Title: "old", RealmID: 1})

	_, err := f.svc.UpdateDocument(context.Background(), itoa(d.ID), map[string]interface{}{"description": "new", "realm_id": 5})
	require.NoError(t, err)
	calls := f.srv.CallsTo(http.MethodPut, "/flow/documents/")
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"description":"new"}`, string(calls[0].Body))
}

func TestSaveChanges_OnlyChangedFields(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "4"}), nil, Options{})
	stored := f.srv.Repo.AddDocument(flowtest.Doc{Title: "t", Description: "d", RealmID: 1})

	before, err := f.svc.GetDocumentDetail(context.Background(), itoa(stored.ID))
	require.NoError(t, err)

	unchanged, err := f.svc.SaveChanges(context.Background(), before, before)
	require.NoError(t, err)
	assert.Equal(t, before, unchanged)
	assert.Empty(t, f.srv.CallsTo(http.MethodPatch, "/flow/documents/"))

	after := before
	after.Description = "changed"
	got, err := f.svc.SaveChanges(context.Background(), before, after)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Description)

	calls := f.srv.CallsTo(http.MethodPatch, "/flow/documents/")
	require.Len(t, calls, 1)
	assert.Equal(t, "/flow/documents/"+itoa(stored.ID), calls[0].Path)
	assert.JSONEq(t, `{"description":"changed"}`, string(calls[0].Body))
}

func TestSubmitReviewAndHistory(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "9"}), nil, Options{})
	stored := f.srv.Repo.AddDocument(flowtest.Doc{Title: "t", RealmID: 1, CreatorID: 4})
	id := itoa(stored.ID)
	ctx := context.Background()

	d, err := f.svc.SubmitForReview(ctx, id, "9")
	require.NoError(t, err)
	assert.Equal(t, document.StatusPendingReview, d.Status)
	submit := f.srv.CallsTo(http.MethodPost, "/flow/documents/"+id+"/submit-for-review")
	require.Len(t, submit, 1)
	assert.JSONEq(t, `{"reviewer_id":9}`, string(submit[0].Body))

	_, err = f.svc.ReviewDocument(ctx, id, document.ActionReject, "")
	require.ErrorIs(t, err, api.ErrInvalidInput)
	assert.Empty(t, f.srv.CallsTo(http.MethodPost, "/flow/documents/"+id+"/review-action"))

	res, err := f.svc.ReviewDocument(ctx, id, document.ActionReject, "needs sources")
	require.NoError(t, err)
	assert.Equal(t, document.StatusRejected, res.Document.Status)
	assert.Equal(t, "needs sources", res.Record.RejectionReason)
	assert.Equal(t, document.ID("9"), res.Record.ReviewerID)

	// resubmission after rejection
	_, err = f.svc.SubmitForReview(ctx, id, "9")
	require.NoError(t, err)
	res, err = f.svc.ReviewDocument(ctx, id, document.ActionApprove, "")
	require.NoError(t, err)
	assert.Equal(t, document.StatusPublished, res.Document.Status)
	require.NotNil(t, res.Document.PublishedAt)

	actions := f.srv.CallsTo(http.MethodPost, "/flow/documents/"+id+"/review-action")
	require.Len(t, actions, 2)
	assert.JSONEq(t, `{"action":"approve"}`, string(actions[1].Body))

	hist, err := f.svc.ReviewHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, document.ActionReject, hist[0].Action)
	assert.Equal(t, document.ActionApprove, hist[1].Action)
}

func TestReviewDocument_UnknownAction(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "9"}), nil, Options{})
	_, err := f.svc.ReviewDocument(context.Background(), "1", "escalate", "")
	assert.ErrorIs(t, err, api.ErrInvalidInput)
}

func TestSingleWriteFailuresPropagate(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "9"}), nil, Options{})
	ctx := context.Background()

	_, err := f.svc.GetDocumentDetail(ctx, "404")
	require.ErrorIs(t, err, api.ErrNotFound)

	stored := f.srv.Repo.AddDocument(flowtest.Doc{Title: "t", RealmID: 1, Status: "published"})
	_, err = f.svc.SubmitForReview(ctx, itoa(stored.ID), "9")
	require.ErrorIs(t, err, api.ErrConflict)
	var ae *api.Error
	require.True(t, errors.As(err, &ae))
	assert.Contains(t, string(ae.Body), "cannot be submitted")
}

func TestGetContent(t *testing.T) {
	f := setup(t, signed(t, token.Claims{UserID: "9"}), nil, Options{})

	body, err := f.svc.GetContent(context.Background(), document.Document{ID: "1", ContentURL: f.srv.URL + "/objects/9/markdown/a.md"})
	require.NoError(t, err)
	assert.Equal(t, "# 9/markdown/a.md\n", string(body))
	calls := f.srv.CallsTo(http.MethodGet, "/objects/")
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Auth)

	_, err = f.svc.GetContent(context.Background(), document.Document{ID: "2"})
	assert.ErrorIs(t, err, api.ErrInvalidInput)
}
