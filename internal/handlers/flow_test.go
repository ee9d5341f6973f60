package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/campus/internal/auth"
	"github.com/jason-s-yu/campus/internal/database"
	"github.com/jason-s-yu/campus/internal/models"
	"github.com/jason-s-yu/campus/internal/realtime"
	"github.com/jason-s-yu/campus/internal/storage"
)

var (
	dbOnce sync.Once
	dbErr  error
)

// dbServer is a test server backed by CAMPUS_TEST_DATABASE_URL; the test is skipped without it.
func dbServer(t *testing.T) *testServer {
	t.Helper()
	dsn := os.Getenv("CAMPUS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CAMPUS_TEST_DATABASE_URL not set")
	}
	dbOnce.Do(func() {
		auth.DefaultParams = &auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
		ctx := context.Background()
		if dbErr = database.ConnectDB(ctx, dsn); dbErr != nil {
			return
		}
		dbErr = database.Migrate(ctx, "up")
	})
	require.NoError(t, dbErr)

	s := newTestServer(t)
	s.Source = realtime.DatabaseSource{Publisher: s.Publisher, Logger: s.Logger}
	return s
}

type account struct {
	ID    uuid.UUID
	Token string
}

func signup(t *testing.T, h http.Handler, name string) account {
	t.Helper()
	w := do(t, h, http.MethodPost, "/auth/signup", "", jsonBody(t, map[string]string{
		"name":     name,
		"email":    fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		"password": "secret-password",
	}), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return account{ID: resp.User.ID, Token: resp.Token}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSignupLoginSession(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()

	email := fmt.Sprintf("grace-%s@example.com", uuid.NewString()[:8])
	w := do(t, h, http.MethodPost, "/auth/signup", "", jsonBody(t, map[string]string{
		"name": "Grace", "email": email, "password": "secret-password",
	}), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodPost, "/auth/signup", "", jsonBody(t, map[string]string{
		"name": "Grace", "email": email, "password": "secret-password",
	}), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{
		"email": email, "password": "wrong-password",
	}), "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{
		"email": email, "password": "secret-password",
	}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decode[map[string]any](t, w)["token"].(string)

	w = do(t, h, http.MethodGet, "/auth/session", token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	session := decode[models.Session](t, w)
	assert.Equal(t, email, session.Email)
	assert.Equal(t, []models.Role{models.RoleStudent}, session.Roles)

	// only admins manage roles
	w = do(t, h, http.MethodPut, "/admin/roles", token, jsonBody(t, map[string]string{
		"user_id": session.UserID.String(), "role": "admin",
	}), "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProfileSkillsRoundTrip(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()
	ada := signup(t, h, "ada")

	w := do(t, h, http.MethodPut, "/profiles/me", ada.Token, jsonBody(t, map[string]any{
		"name":   "Ada",
		"skills": []string{" Go ", "", "Go", "SQL"},
	}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"Go", "SQL"}, decode[models.Profile](t, w).Skills)

	w = do(t, h, http.MethodGet, "/profiles/me", ada.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[struct {
		Profile     models.Profile `json:"profile"`
		Connections int            `json:"connections"`
	}](t, w)
	assert.Equal(t, []string{"Go", "SQL"}, me.Profile.Skills)
	assert.Zero(t, me.Connections)
}

func TestConnectionFlowOverHTTP(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()
	alice, bob := signup(t, h, "alice"), signup(t, h, "bob")

	w := do(t, h, http.MethodPost, "/connections", alice.Token,
		jsonBody(t, map[string]string{"receiver_id": bob.ID.String()}), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	conn := decode[models.Connection](t, w)
	assert.Equal(t, models.StatusPending, conn.Status)

	// the reverse direction is a duplicate too
	w = do(t, h, http.MethodPost, "/connections", bob.Token,
		jsonBody(t, map[string]string{"receiver_id": alice.ID.String()}), "application/json")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Connection request already exists")

	// only the receiver answers
	w = do(t, h, http.MethodPost, "/connections/"+conn.ID.String()+"/accept", alice.Token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, h, http.MethodPost, "/connections/"+conn.ID.String()+"/accept", bob.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusAccepted, decode[models.Connection](t, w).Status)

	w = do(t, h, http.MethodPost, "/connections/"+conn.ID.String()+"/reject", bob.Token, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/connections/count", alice.Token, nil, "")
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/connections", bob.Token, nil, "")
	lists := decode[models.ConnectionLists](t, w)
	require.Len(t, lists.Accepted, 1)
	assert.Equal(t, alice.ID, lists.Accepted[0].Profile.UserID)

	w = do(t, h, http.MethodGet, "/teammates?q=bob", alice.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	found := false
	for _, tm := range decode[teammatesResponse](t, w).Teammates {
		if tm.UserID == bob.ID {
			found = true
			assert.Equal(t, models.StatusAccepted, tm.ConnectionStatus)
		}
	}
	assert.True(t, found)

	w = do(t, h, http.MethodDelete, "/connections/"+conn.ID.String(), bob.Token, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestMarkReadPushesUnreadCount(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()
	alice, bob := signup(t, h, "alice"), signup(t, h, "bob")

	for _, text := range []string{"hello", "  are you there?  "} {
		w := do(t, h, http.MethodPost, "/messages", alice.Token,
			jsonBody(t, map[string]string{"receiver_id": bob.ID.String(), "content": text}), "application/json")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	srv := httptest.NewServer(h)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialRealtime(t, ctx, srv, bob.Token, realtimeSubprotocol)
	defer c.Close(websocket.StatusNormalClosure, "")
	require.NoError(t, wsjson.Write(ctx, c, realtime.Request{Type: "subscribe", Topic: realtime.TopicUnreadCount}))
	assert.Equal(t, realtime.FrameSubscribed, readFrame(t, ctx, c).Type)
	assert.JSONEq(t, `{"count":2}`, string(readFrame(t, ctx, c).Data))

	w := do(t, h, http.MethodPost, "/messages/"+alice.ID.String()+"/read", bob.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":2}`, w.Body.String())

	// one refresh per updated row; the last one sees everything read
	readFrame(t, ctx, c)
	assert.JSONEq(t, `{"count":0}`, string(readFrame(t, ctx, c).Data))

	w = do(t, h, http.MethodGet, "/messages/conversations", bob.Token, nil, "")
	convs := decode[[]models.Conversation](t, w)
	require.Len(t, convs, 1)
	assert.Equal(t, "are you there?", convs[0].LastMessage)
	assert.Zero(t, convs[0].UnreadCount)
}

func TestProjectTeamCap(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()
	owner, bob, carol := signup(t, h, "owner"), signup(t, h, "bob"), signup(t, h, "carol")

	w := do(t, h, http.MethodPost, "/projects", owner.Token, jsonBody(t, map[string]any{
		"title": "Campus map", "max_team_size": 1, "required_skills": []string{"Go", "go", " Go"},
	}), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	project := decode[models.Project](t, w)
	assert.True(t, project.IsPublic)
	base := "/projects/" + project.ID.String()

	w = do(t, h, http.MethodPost, base+"/join", owner.Token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	for _, a := range []account{bob, carol} {
		w = do(t, h, http.MethodPost, base+"/join", a.Token, nil, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, base+"/join", bob.Token, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, base+"/members/"+bob.ID.String()+"/accept", bob.Token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, h, http.MethodPost, base+"/members/"+bob.ID.String()+"/accept", owner.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, h, http.MethodPost, base+"/members/"+carol.ID.String()+"/accept", owner.Token, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, base+"/members", owner.Token, nil, "")
	assert.Len(t, decode[[]models.ProjectMember](t, w), 2)
	w = do(t, h, http.MethodGet, base+"/members", carol.Token, nil, "")
	assert.Len(t, decode[[]models.ProjectMember](t, w), 1)

	w = do(t, h, http.MethodGet, "/dashboard", bob.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	dash := decode[struct {
		Stats models.DashboardStats `json:"stats"`
	}](t, w)
	assert.Equal(t, 1, dash.Stats.ProjectsJoined)

	w = do(t, h, http.MethodDelete, base+"/members/me", carol.Token, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodDelete, base, bob.Token, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, h, http.MethodDelete, base, owner.Token, nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestLoginStoreErrorIsServerError(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()

	w := do(t, h, http.MethodPost, "/auth/login", "", jsonBody(t, map[string]string{
		"email": "nobody-" + uuid.NewString()[:8] + "@example.com", "password": "secret-password",
	}), "application/json")
	assert.Equal(t, http.StatusForbidden, w.Code)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]string{
		"email": "grace@example.com", "password": "secret-password",
	})).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "failed to log in", strings.TrimSpace(rr.Body.String()))
}

func TestUploadPhotoKeyFollowsSniffedType(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()
	ada := signup(t, h, "ada")

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	body, ct := multipartBody(t, nil, "photo", "x.html", "image/png", png)
	w := do(t, h, http.MethodPost, "/profiles/me/photo", ada.Token, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	url := decode[map[string]string](t, w)["profile_photo"]
	key := storage.KeyFromURL(url)
	assert.Equal(t, ada.ID.String()+"/profile.png", key)
	assert.False(t, strings.HasSuffix(url, ".html"))

	w = do(t, h, http.MethodGet, strings.TrimPrefix(url, "http://localhost:8080"), "", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestPrivateProjectVisibility(t *testing.T) {
	s := dbServer(t)
	h := s.Routes()
	owner, member, rejected, stranger := signup(t, h, "owner"), signup(t, h, "member"), signup(t, h, "rejected"), signup(t, h, "stranger")

	w := do(t, h, http.MethodPost, "/projects", owner.Token, jsonBody(t, map[string]any{
		"title": "Thesis lab", "is_public": false,
	}), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	private := decode[models.Project](t, w)
	assert.False(t, private.IsPublic)
	base := "/projects/" + private.ID.String()

	// a stranger can neither see nor join it
	w = do(t, h, http.MethodPost, base+"/join", stranger.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, http.MethodGet, base, stranger.Token, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// requests filed while the project was public
	w = do(t, h, http.MethodPut, base, owner.Token, jsonBody(t, map[string]any{
		"title": "Thesis lab", "is_public": true,
	}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	for _, a := range []account{member, rejected, stranger} {
		w = do(t, h, http.MethodPost, base+"/join", a.Token, nil, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodPost, base+"/members/"+member.ID.String()+"/accept", owner.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = do(t, h, http.MethodPost, base+"/members/"+rejected.ID.String()+"/reject", owner.Token, nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPut, base, owner.Token, jsonBody(t, map[string]any{
		"title": "Thesis lab", "is_public": false,
	}), "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, a := range []account{rejected, stranger} {
		w = do(t, h, http.MethodGet, base, a.Token, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		w = do(t, h, http.MethodGet, base+"/members", a.Token, nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	w = do(t, h, http.MethodGet, base, member.Token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, base, owner.Token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
