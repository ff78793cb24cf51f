package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"social-chat/internal/domain"
	"social-chat/internal/repository"
	"social-chat/internal/service"
)

type mockUserRepo struct {
	mu        sync.Mutex
	usersByID map[int64]domain.User
	nextID    int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByID: make(map[int64]domain.User)}
}

func (m *mockUserRepo) add(id int64, username string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := domain.User{ID: id, Email: username + "@example.com", Username: username, IsVerified: true, CreatedAt: time.Now().UTC()}
	m.usersByID[id] = u
	if id > m.nextID {
		m.nextID = id
	}
	return u
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usersByID {
		if u.Email == user.Email || u.Username == user.Username {
			return 0, repository.ErrAlreadyExists
		}
	}
	m.nextID++
	user.ID = m.nextID
	m.usersByID[user.ID] = user
	return user.ID, nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usersByID {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *mockUserRepo) UpdateOTP(_ context.Context, id int64, otpHash string, otpExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.OtpCodeHash = otpHash
	user.OtpExpiresAt = &otpExpiresAt
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) VerifyEmail(_ context.Context, id int64, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsVerified = true
	user.EmailVerifiedAt = &verifiedAt
	user.OtpCodeHash = ""
	user.OtpExpiresAt = nil
	m.usersByID[id] = user
	return nil
}

type mockEmailSender struct {
	lastTo   string
	lastCode string
	err      error
}

func (m *mockEmailSender) SendVerificationOTP(_ context.Context, toEmail, _ string, code string, _ time.Time) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.err
}

type mockRoomRepo struct {
	mu     sync.Mutex
	rooms  map[int64]domain.ChatRoom
	nextID int64
}

func newMockRoomRepo() *mockRoomRepo {
	return &mockRoomRepo{rooms: make(map[int64]domain.ChatRoom)}
}

func (m *mockRoomRepo) Create(_ context.Context, room domain.ChatRoom) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	room.ID = m.nextID
	m.rooms[room.ID] = room
	return room.ID, nil
}

func (m *mockRoomRepo) GetByID(_ context.Context, id int64) (domain.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return domain.ChatRoom{}, pgx.ErrNoRows
	}
	return room, nil
}

func (m *mockRoomRepo) ListByMember(_ context.Context, userID int64) ([]domain.ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChatRoom
	for _, room := range m.rooms {
		for _, id := range room.MemberIDs {
			if id == userID {
				out = append(out, room)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRoomRepo) IsMember(_ context.Context, userID, roomID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return false, nil
	}
	for _, id := range room.MemberIDs {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type mockMessageRepo struct {
	mu        sync.Mutex
	messages  []domain.ChatMessage
	createErr error
}

func (m *mockMessageRepo) Create(_ context.Context, msg domain.ChatMessage) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return 0, m.createErr
	}
	msg.ID = int64(len(m.messages) + 1)
	m.messages = append(m.messages, msg)
	return msg.ID, nil
}

func (m *mockMessageRepo) ListByRoom(_ context.Context, roomID, beforeID int64, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ChatMessage
	for _, msg := range m.messages {
		if msg.RoomID != roomID || (beforeID > 0 && msg.ID >= beforeID) {
			continue
		}
		out = append(out, msg)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockMessageRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func newTestJWT() *service.JWTService {
	return service.NewJWTServiceWithStore("secret", 15*time.Minute, 30*time.Minute, service.NewMemoryRefreshTokenStore())
}

func accessToken(t *testing.T, jwtSvc *service.JWTService, user domain.User) string {
	t.Helper()
	pair, err := jwtSvc.GeneratePair(user)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	return pair.AccessToken
}

func performRequest(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	return performAuthRequest(r, method, path, "", body)
}

func performAuthRequest(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
