package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knitfamily/knit/pkg/family"
	"github.com/knitfamily/knit/pkg/kin"
	"github.com/knitfamily/knit/pkg/layout"
	"github.com/knitfamily/knit/pkg/observability"
	"github.com/knitfamily/knit/pkg/store"
)

const sampleJSON = `{
  "family_space_id": "smiths",
  "people": [
    {"id": "mum", "first_name": "Mary", "status": "active", "user_id": "u-1"},
    {"id": "dad", "first_name": "John"},
    {"id": "ann", "first_name": "Ann", "status": "invited"}
  ],
  "relationships": [
    {"id": "r1", "type": "partnership", "person_a_id": "mum", "person_b_id": "dad"},
    {"id": "r2", "type": "parent_child", "person_a_id": "mum", "person_b_id": "ann"}
  ]
}`

func newTestServer(t *testing.T, opts Options) (*Server, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	return New(st, nil, logger, opts), st
}

func do(t *testing.T, s *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, s *Server) {
	t.Helper()
	w := do(t, s, http.MethodPut, "/api/v1/spaces/smiths/snapshot", "application/json", sampleJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	w := do(t, s, http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, w.Header().Get("Content-Type"))
}

func TestPutAndGetSnapshot(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	w := do(t, s, http.MethodPut, "/api/v1/spaces/smiths/snapshot", "application/json", sampleJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var put putSnapshotResponse
	decode(t, w, &put)
	assert.Equal(t, "smiths", put.FamilySpaceID)
	assert.Equal(t, 3, put.People)
	assert.Equal(t, 2, put.Relationships)
	assert.Empty(t, put.Warnings)

	w = do(t, s, http.MethodGet, "/api/v1/spaces/smiths/snapshot", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap family.Snapshot
	decode(t, w, &snap)
	assert.Len(t, snap.People, 3)
	assert.Equal(t, family.StatusPlaceholder, snap.People[1].Status)

	w = do(t, s, http.MethodGet, "/api/v1/spaces/smiths/snapshot?format=yaml", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "family_space_id: smiths")
}

func TestPutSnapshotYAML(t *testing.T) {
	s, st := newTestServer(t, Options{})
	body := `
people:
  - id: solo
    first_name: Sam
`
	w := do(t, s, http.MethodPut, "/api/v1/spaces/jones/snapshot", "application/yaml", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	snap, err := st.Snapshot(context.Background(), "jones")
	require.NoError(t, err)
	require.Len(t, snap.People, 1)
	assert.Equal(t, "jones", snap.People[0].FamilySpaceID, "space id comes from the URL")
}

func TestPutSnapshotErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"malformed json", "/api/v1/spaces/smiths/snapshot", "{", http.StatusBadRequest, "INVALID_SNAPSHOT"},
		{"space mismatch", "/api/v1/spaces/jones/snapshot", sampleJSON, http.StatusBadRequest, "INVALID_SNAPSHOT"},
		{"dangling endpoint", "/api/v1/spaces/x/snapshot",
			`{"people":[{"id":"a"}],"relationships":[{"id":"r","type":"parent_child","person_a_id":"a","person_b_id":"ghost"}]}`,
			http.StatusBadRequest, "INVALID_SNAPSHOT"},
		{"unknown status", "/api/v1/spaces/x/snapshot", `{"people":[{"id":"a","status":"zombie"}]}`,
			http.StatusBadRequest, "INVALID_SNAPSHOT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, Options{})
			w := do(t, s, http.MethodPut, tt.path, "application/json", tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			var resp errorResponse
			decode(t, w, &resp)
			assert.Equal(t, tt.wantErr, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestPutSnapshotTooLarge(t *testing.T) {
	s, _ := newTestServer(t, Options{MaxBodyBytes: 16})
	w := do(t, s, http.MethodPut, "/api/v1/spaces/smiths/snapshot", "application/json", sampleJSON)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestListSpaces(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	seed(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/spaces", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Spaces []store.Space `json:"spaces"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Spaces, 1)
	assert.Equal(t, "smiths", resp.Spaces[0].ID)
	assert.Equal(t, 3, resp.Spaces[0].People)
}

func TestLayoutJSON(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	seed(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/spaces/smiths/layout", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "miss", w.Header().Get("X-Knit-Layout-Cache"))

	l, err := layout.UnmarshalLayout(w.Body.Bytes())
	require.NoError(t, err)
	mum, ok := l.Node("mum")
	require.True(t, ok)
	dad, _ := l.Node("dad")
	ann, _ := l.Node("ann")
	assert.Equal(t, 0.0, mum.X)
	assert.Equal(t, 100.0, dad.X)
	assert.Equal(t, 130.0, ann.Y)
	assert.Len(t, l.Edges, 2)
}

func TestLayoutFormats(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	seed(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/spaces/smiths/layout?format=svg&title=Smiths", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("<svg")))
	assert.Contains(t, w.Body.String(), "Smiths")

	w = do(t, s, http.MethodGet, "/api/v1/spaces/smiths/layout?format=dot&detailed=true", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "digraph G {")

	w = do(t, s, http.MethodGet, "/api/v1/spaces/smiths/layout?h_step=200&v_step=50", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	l, err := layout.UnmarshalLayout(w.Body.Bytes())
	require.NoError(t, err)
	ann, _ := l.Node("ann")
	assert.Equal(t, 50.0, ann.Y)
}

func TestLayoutErrors(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	seed(t, s)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/api/v1/spaces/nobody/layout", http.StatusNotFound},
		{"/api/v1/spaces/smiths/layout?format=gif", http.StatusBadRequest},
		{"/api/v1/spaces/smiths/layout?h_step=wide", http.StatusBadRequest},
		{"/api/v1/spaces/smiths/layout?h_step=-5", http.StatusBadRequest},
		{"/api/v1/spaces/smiths/layout?detailed=maybe", http.StatusBadRequest},
		{"/api/v1/spaces/smiths/layout?format=svg&renderer=canvas", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(t, s, http.MethodGet, tt.path, "", "")
		assert.Equal(t, tt.wantCode, w.Code, "%s: %s", tt.path, w.Body.String())
	}
}

func TestValidate(t *testing.T) {
	s, st := newTestServer(t, Options{})
	seed(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/spaces/smiths/validate", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp validateResponse
	decode(t, w, &resp)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Errors)

	// A cycle is a warning, so the store accepts it.
	ctx := context.Background()
	require.NoError(t, st.UpsertRelationship(ctx, family.Relationship{
		FamilySpaceID: "smiths", ID: "r3", Type: family.ParentChild, PersonAID: "ann", PersonBID: "mum",
	}))
	w = do(t, s, http.MethodGet, "/api/v1/spaces/smiths/validate", "", "")
	decode(t, w, &resp)
	assert.True(t, resp.Valid)
	require.NotEmpty(t, resp.Warnings)
	assert.Contains(t, resp.Warnings[len(resp.Warnings)-1].Message, "cycle")
}

func TestRelatives(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	seed(t, s)

	w := do(t, s, http.MethodGet, "/api/v1/spaces/smiths/people/mum/relatives", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var rel kin.Relatives
	decode(t, w, &rel)
	assert.Equal(t, "mum", rel.Person.ID)
	require.NotNil(t, rel.Spouse)
	assert.Equal(t, "dad", rel.Spouse.ID)
	require.Len(t, rel.Children, 1)
	assert.Equal(t, "ann", rel.Children[0].ID)
	assert.Empty(t, rel.Parents)

	w = do(t, s, http.MethodGet, "/api/v1/spaces/smiths/people/ghost/relatives", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "PERSON_NOT_FOUND")
}

func TestCreatePersonAndRelationship(t *testing.T) {
	s, st := newTestServer(t, Options{})
	seed(t, s)

	w := do(t, s, http.MethodPost, "/api/v1/spaces/smiths/people", "application/json",
		`{"first_name": "Bob", "birth_date": "2001-02-03"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bob family.Person
	decode(t, w, &bob)
	assert.NotEmpty(t, bob.ID, "id is generated")
	assert.Equal(t, family.StatusPlaceholder, bob.Status)
	assert.Equal(t, "smiths", bob.FamilySpaceID)

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/relationships", "application/json",
		`{"type": "parent_child", "person_a_id": "dad", "person_b_id": "`+bob.ID+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	snap, err := st.Snapshot(context.Background(), "smiths")
	require.NoError(t, err)
	assert.Len(t, snap.People, 4)
	assert.Len(t, snap.Relationships, 3)

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/relationships", "application/json",
		`{"type": "parent_child", "person_a_id": "dad", "person_b_id": "ghost"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_RELATIONSHIP")

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/relationships", "application/json",
		`{"type": "cousin", "person_a_id": "dad", "person_b_id": "mum"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/people", "application/json", `{"nickname": "x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown fields are rejected")

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/people", "application/json", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestActivate(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	seed(t, s)

	w := do(t, s, http.MethodPost, "/api/v1/spaces/smiths/people/ann/activate", "application/json", `{"user_id": "u-9"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var p family.Person
	decode(t, w, &p)
	assert.Equal(t, family.StatusActive, p.Status)
	assert.Equal(t, "u-9", p.UserID)

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/people/ann/activate", "application/json", `{"user_id": "u-9"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/people/dad/activate", "application/json", `{"user_id": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/spaces/smiths/people/ghost/activate", "application/json", `{"user_id": "u"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotFoundRoutes(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	w := do(t, s, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = do(t, s, http.MethodDelete, "/api/v1/spaces/smiths/snapshot", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimit: 1, RateBurst: 2})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = do(t, s, http.MethodGet, "/healthz", "", "").Code
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "clients are limited independently")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"), "tokens refill")

	now = now.Add(2 * clientIdle)
	rl.Allow("10.0.0.3")
	assert.Len(t, rl.clients, 1, "idle clients are evicted")
}

type recordingServerHooks struct {
	observability.NoopServerHooks
	routes []string
}

func (h *recordingServerHooks) OnRequest(_ context.Context, _, route string, _ int, _ time.Duration) {
	h.routes = append(h.routes, route)
}

func TestServerHooksSeeRoutePattern(t *testing.T) {
	h := &recordingServerHooks{}
	observability.Install(observability.Hooks{Server: h})
	t.Cleanup(observability.Reset)

	s, _ := newTestServer(t, Options{})
	seed(t, s)
	do(t, s, http.MethodGet, "/api/v1/spaces/smiths/people/mum/relatives", "", "")

	require.Len(t, h.routes, 2)
	assert.Equal(t, "/api/v1/spaces/{spaceID}/people/{personID}/relatives", h.routes[1])
}
