package http

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"social-chat/internal/domain"
	"social-chat/internal/repository"
	"social-chat/internal/service"
)

type userPair struct{ a, b int64 }

type mockRelRepo struct {
	requests map[int64]domain.FriendRequest
	friends  map[userPair]bool
	follows  map[userPair]bool
	blocks   map[userPair]bool
	nextID   int64
}

func newMockRelRepo() *mockRelRepo {
	return &mockRelRepo{
		requests: make(map[int64]domain.FriendRequest),
		friends:  make(map[userPair]bool),
		follows:  make(map[userPair]bool),
		blocks:   make(map[userPair]bool),
	}
}

func (m *mockRelRepo) CreateFriendRequest(_ context.Context, req domain.FriendRequest) (int64, error) {
	for _, r := range m.requests {
		if r.FromUserID == req.FromUserID && r.ToUserID == req.ToUserID {
			return 0, repository.ErrAlreadyExists
		}
	}
	m.nextID++
	req.ID = m.nextID
	req.Status = domain.FriendRequestPending
	m.requests[req.ID] = req
	return req.ID, nil
}

func (m *mockRelRepo) GetFriendRequest(_ context.Context, id int64) (domain.FriendRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return domain.FriendRequest{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockRelRepo) AcceptFriendRequest(_ context.Context, req domain.FriendRequest) error {
	m.friends[userPair{req.FromUserID, req.ToUserID}] = true
	m.friends[userPair{req.ToUserID, req.FromUserID}] = true
	delete(m.requests, req.ID)
	return nil
}

func (m *mockRelRepo) RejectFriendRequest(_ context.Context, id int64) error {
	r := m.requests[id]
	r.Status = domain.FriendRequestRejected
	m.requests[id] = r
	return nil
}

func (m *mockRelRepo) DeleteFriendRequest(_ context.Context, id int64) error {
	delete(m.requests, id)
	return nil
}

func (m *mockRelRepo) AreFriends(_ context.Context, a, b int64) (bool, error) {
	return m.friends[userPair{a, b}], nil
}

func (m *mockRelRepo) Follows(_ context.Context, a, b int64) (bool, error) {
	return m.follows[userPair{a, b}], nil
}

func (m *mockRelRepo) AddFollow(_ context.Context, a, b int64) error {
	m.follows[userPair{a, b}] = true
	return nil
}

func (m *mockRelRepo) RemoveFollow(_ context.Context, a, b int64) error {
	delete(m.follows, userPair{a, b})
	return nil
}

func (m *mockRelRepo) IsBlocked(_ context.Context, a, b int64) (bool, error) {
	return m.blocks[userPair{a, b}], nil
}

func (m *mockRelRepo) Block(_ context.Context, a, b int64) error {
	m.blocks[userPair{a, b}] = true
	delete(m.friends, userPair{a, b})
	delete(m.friends, userPair{b, a})
	delete(m.follows, userPair{a, b})
	return nil
}

func (m *mockRelRepo) Unblock(_ context.Context, a, b int64) error {
	delete(m.blocks, userPair{a, b})
	return nil
}

type mockReportRepo struct {
	created []domain.Report
}

func (m *mockReportRepo) Create(_ context.Context, report domain.Report) (int64, error) {
	m.created = append(m.created, report)
	return int64(len(m.created)), nil
}

type socialFixture struct {
	users   *mockUserRepo
	rels    *mockRelRepo
	reports *mockReportRepo
	jwt     *service.JWTService
	router  *gin.Engine
	ana     domain.User
	beto    domain.User
}

func setupSocialRouter(t *testing.T) *socialFixture {
	t.Helper()
	f := &socialFixture{
		users:   newMockUserRepo(),
		rels:    newMockRelRepo(),
		reports: &mockReportRepo{},
		jwt:     newTestJWT(),
	}
	f.ana = f.users.add(1, "ana")
	f.beto = f.users.add(2, "beto")

	f.router = NewRouter(zap.NewNop(), RouterConfig{JWT: f.jwt}, Handlers{
		Relationships: NewRelationshipHandler(zap.NewNop(), service.NewRelationshipService(zap.NewNop(), f.users, f.rels)),
		Reports:       NewReportHandler(zap.NewNop(), service.NewReportService(f.users, f.reports)),
	})
	return f
}

func TestRelationshipHandler_FriendRequestFlow(t *testing.T) {
	f := setupSocialRouter(t)
	anaTok := accessToken(t, f.jwt, f.ana)
	betoTok := accessToken(t, f.jwt, f.beto)

	rec := performAuthRequest(f.router, http.MethodPost, "/users/friend-request/2/", anaTok, map[string]string{"message": "hola"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = performAuthRequest(f.router, http.MethodPost, "/users/friend-request/2/", anaTok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for duplicate, got %d", rec.Code)
	}

	actionPath := "/users/friend-request-action/" + itoa(created.ID) + "/"
	rec = performAuthRequest(f.router, http.MethodPost, actionPath, anaTok, map[string]string{"action": "accept"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected sender accept to be 404, got %d", rec.Code)
	}
	rec = performAuthRequest(f.router, http.MethodPost, actionPath, betoTok, map[string]string{"action": "wave"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad action, got %d", rec.Code)
	}
	rec = performAuthRequest(f.router, http.MethodPost, actionPath, betoTok, map[string]string{"action": "accept"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	rec = performAuthRequest(f.router, http.MethodPost, "/users/friend-request/1/", betoTok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 once friends, got %d", rec.Code)
	}
}

func TestRelationshipHandler_FriendRequestTargets(t *testing.T) {
	f := setupSocialRouter(t)
	anaTok := accessToken(t, f.jwt, f.ana)

	rec := performAuthRequest(f.router, http.MethodPost, "/users/friend-request/1/", anaTok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for self, got %d", rec.Code)
	}
	rec = performAuthRequest(f.router, http.MethodPost, "/users/friend-request/42/", anaTok, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	f.rels.blocks[userPair{2, 1}] = true
	rec = performAuthRequest(f.router, http.MethodPost, "/users/friend-request/2/", anaTok, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 when blocked, got %d", rec.Code)
	}
}

func TestRelationshipHandler_FollowAndBlock(t *testing.T) {
	f := setupSocialRouter(t)
	tok := accessToken(t, f.jwt, f.ana)

	steps := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodDelete, "/users/follow/2/", http.StatusBadRequest},
		{http.MethodPost, "/users/follow/2/", http.StatusCreated},
		{http.MethodPost, "/users/follow/2/", http.StatusBadRequest},
		{http.MethodPost, "/users/follow/1/", http.StatusBadRequest},
		{http.MethodPost, "/users/follow/9/", http.StatusNotFound},
		{http.MethodPost, "/users/block/2/", http.StatusCreated},
		{http.MethodPost, "/users/block/2/", http.StatusBadRequest},
		{http.MethodDelete, "/users/follow/2/", http.StatusBadRequest},
		{http.MethodDelete, "/users/block/2/", http.StatusOK},
		{http.MethodDelete, "/users/block/2/", http.StatusBadRequest},
	}
	for i, step := range steps {
		rec := performAuthRequest(f.router, step.method, step.path, tok, nil)
		if rec.Code != step.want {
			t.Fatalf("step %d %s %s: expected %d, got %d", i, step.method, step.path, step.want, rec.Code)
		}
	}
}

func TestReportHandler(t *testing.T) {
	f := setupSocialRouter(t)
	tok := accessToken(t, f.jwt, f.ana)

	rec := performAuthRequest(f.router, http.MethodPost, "/users/report/2/", tok, map[string]string{"reason": "spam", "details": " links "})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if len(f.reports.created) != 1 || f.reports.created[0].Details != "links" {
		t.Fatalf("unexpected stored reports: %+v", f.reports.created)
	}

	cases := []struct {
		path string
		body map[string]string
		want int
	}{
		{"/users/report/2/", map[string]string{}, http.StatusBadRequest},
		{"/users/report/2/", map[string]string{"reason": "boring"}, http.StatusBadRequest},
		{"/users/report/1/", map[string]string{"reason": "spam"}, http.StatusBadRequest},
		{"/users/report/77/", map[string]string{"reason": "spam"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := performAuthRequest(f.router, http.MethodPost, tc.path, tok, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s %v: expected %d, got %d", tc.path, tc.body, tc.want, rec.Code)
		}
	}
}
