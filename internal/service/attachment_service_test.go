package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"social-chat/internal/domain"
	"social-chat/internal/realtime"
	"social-chat/internal/storage"
)

type mockFileStore struct {
	saveErr error
	saved   []string
	deleted []string
}

func (m *mockFileStore) Save(_ context.Context, name string, body io.Reader) (storage.StoredFile, error) {
	if m.saveErr != nil {
		return storage.StoredFile{}, m.saveErr
	}
	data, _ := io.ReadAll(body)
	path := "chat_files/abc_" + name
	m.saved = append(m.saved, path)
	return storage.StoredFile{
		Path:        path,
		URL:         "/media/" + path,
		Name:        name,
		ContentType: "text/plain",
		Size:        int64(len(data)),
	}, nil
}

func (m *mockFileStore) Delete(_ context.Context, relPath string) error {
	m.deleted = append(m.deleted, relPath)
	return nil
}

type recordingMember struct {
	id string

	mu       sync.Mutex
	payloads [][]byte
}

func (m *recordingMember) ID() string { return m.id }

func (m *recordingMember) Deliver(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, p)
	return nil
}

func (m *recordingMember) Close() {}

func (m *recordingMember) frames(t *testing.T) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.payloads))
	for _, p := range m.payloads {
		var f map[string]any
		if err := json.Unmarshal(p, &f); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

type attachmentFixture struct {
	svc      *AttachmentService
	rooms    *mockRoomRepo
	messages *mockMessageServiceRepo
	files    *mockFileStore
	registry *realtime.Registry
}

func newAttachmentFixture() attachmentFixture {
	rooms := newMockRoomRepo()
	rooms.rooms[5] = domain.ChatRoom{ID: 5, Name: "sala", MemberIDs: []int64{1, 2}}
	messages := &mockMessageServiceRepo{}
	files := &mockFileStore{}
	registry := realtime.NewRegistry(zap.NewNop())
	svc := NewAttachmentService(zap.NewNop(), rooms, NewMessageService(messages), files, registry)
	return attachmentFixture{svc: svc, rooms: rooms, messages: messages, files: files, registry: registry}
}

func TestAttachmentServiceAttach_BroadcastsToRoom(t *testing.T) {
	f := newAttachmentFixture()
	a, b := &recordingMember{id: "a"}, &recordingMember{id: "b"}
	_ = f.registry.Join(realtime.GroupKey(5), a)
	_ = f.registry.Join(realtime.GroupKey(5), b)

	res, err := f.svc.Attach(context.Background(), AttachInput{UserID: 1, RoomID: 5, FileURL: "http://h/media/x.png", FileName: "x.png"})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if res.MessageID != 1 || res.FileURL != "http://h/media/x.png" || res.FileName != "x.png" {
		t.Fatalf("unexpected result %+v", res)
	}

	saved := f.messages.created[0]
	if saved.Content != nil || saved.FileURL == nil || *saved.FileURL != "http://h/media/x.png" {
		t.Fatalf("unexpected persisted message %+v", saved)
	}

	for _, m := range []*recordingMember{a, b} {
		frames := m.frames(t)
		if len(frames) != 1 {
			t.Fatalf("member %s expected 1 frame, got %d", m.id, len(frames))
		}
		got := frames[0]
		if got["message"] != "" || got["file_url"] != "http://h/media/x.png" || got["file_name"] != "x.png" {
			t.Fatalf("unexpected frame %+v", got)
		}
		if got["message_id"] != float64(res.MessageID) || got["user_id"] != float64(1) {
			t.Fatalf("unexpected ids in frame %+v", got)
		}
	}
}

func TestAttachmentServiceAttach_NoConnectedMembers(t *testing.T) {
	f := newAttachmentFixture()

	res, err := f.svc.Attach(context.Background(), AttachInput{UserID: 2, RoomID: 5, FileURL: "/media/x", FileName: "x"})
	if err != nil || res.MessageID == 0 {
		t.Fatalf("expected success without listeners, got %+v, %v", res, err)
	}
}

func TestAttachmentServiceAttach_Errors(t *testing.T) {
	f := newAttachmentFixture()
	m := &recordingMember{id: "a"}
	_ = f.registry.Join(realtime.GroupKey(5), m)
	ctx := context.Background()

	if _, err := f.svc.Attach(ctx, AttachInput{UserID: 3, RoomID: 5, FileURL: "/x"}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound for non-member, got %v", err)
	}
	if _, err := f.svc.Attach(ctx, AttachInput{UserID: 1, RoomID: 77, FileURL: "/x"}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound for missing room, got %v", err)
	}
	if _, err := f.svc.Attach(ctx, AttachInput{UserID: 1, RoomID: 5, FileURL: "  "}); !errors.Is(err, ErrFileRequired) {
		t.Fatalf("expected ErrFileRequired, got %v", err)
	}

	f.messages.createErr = errors.New("db down")
	if _, err := f.svc.Attach(ctx, AttachInput{UserID: 1, RoomID: 5, FileURL: "/x"}); !errors.Is(err, realtime.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if len(m.frames(t)) != 0 {
		t.Fatalf("expected no broadcast on failure")
	}
}

func TestAttachmentServiceUpload(t *testing.T) {
	f := newAttachmentFixture()

	res, err := f.svc.Upload(context.Background(), UploadInput{
		UserID:   1,
		RoomID:   5,
		Filename: "notas.txt",
		Body:     strings.NewReader("hola"),
		BaseURL:  "http://chat.local/",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.FileURL != "http://chat.local/media/chat_files/abc_notas.txt" || res.FileName != "notas.txt" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAttachmentServiceUpload_Errors(t *testing.T) {
	f := newAttachmentFixture()
	ctx := context.Background()

	if _, err := f.svc.Upload(ctx, UploadInput{UserID: 3, RoomID: 5, Body: strings.NewReader("x")}); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if len(f.files.saved) != 0 {
		t.Fatalf("expected nothing stored for non-member")
	}
	if _, err := f.svc.Upload(ctx, UploadInput{UserID: 1, RoomID: 5}); !errors.Is(err, ErrFileRequired) {
		t.Fatalf("expected ErrFileRequired, got %v", err)
	}

	f.files.saveErr = storage.ErrFileTooLarge
	if _, err := f.svc.Upload(ctx, UploadInput{UserID: 1, RoomID: 5, Body: strings.NewReader("x")}); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	f.files.saveErr = storage.ErrEmptyFile
	if _, err := f.svc.Upload(ctx, UploadInput{UserID: 1, RoomID: 5, Body: strings.NewReader("")}); !errors.Is(err, ErrFileRequired) {
		t.Fatalf("expected ErrFileRequired for empty file, got %v", err)
	}

	f.files.saveErr = nil
	f.messages.createErr = errors.New("db down")
	if _, err := f.svc.Upload(ctx, UploadInput{UserID: 1, RoomID: 5, Filename: "a.txt", Body: strings.NewReader("x")}); !errors.Is(err, realtime.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if len(f.files.deleted) != 1 || f.files.deleted[0] != f.files.saved[0] {
		t.Fatalf("expected orphan file deleted, got %+v", f.files.deleted)
	}
}
