package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	chatFilesDir = "chat_files"
	sniffSize    = 512
)

var (
	ErrEmptyFile    = errors.New("empty file")
	ErrFileTooLarge = errors.New("file too large")
)

// StoredFile describe un archivo ya guardado.
type StoredFile struct {
	Path        string
	URL         string
	Name        string
	ContentType string
	Size        int64
}

// FileStore guarda y elimina adjuntos de chat.
type FileStore interface {
	Save(ctx context.Context, name string, body io.Reader) (StoredFile, error)
	Delete(ctx context.Context, relPath string) error
}

// LocalStore guarda los archivos bajo root/chat_files y los expone bajo urlPrefix.
type LocalStore struct {
	root      string
	urlPrefix string
	maxBytes  int64
}

func NewLocalStore(root, urlPrefix string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, chatFilesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &LocalStore{root: root, urlPrefix: urlPrefix, maxBytes: maxBytes}, nil
}

func (s *LocalStore) Save(ctx context.Context, name string, body io.Reader) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}
	name = cleanName(name)

	head := make([]byte, sniffSize)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return StoredFile{}, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return StoredFile{}, ErrEmptyFile
	}
	head = head[:n]

	relPath := path.Join(chatFilesDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	fullPath := filepath.Join(s.root, filepath.FromSlash(relPath))

	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("create file: %w", err)
	}

	src := io.MultiReader(bytes.NewReader(head), body)
	if s.maxBytes > 0 {
		src = io.LimitReader(src, s.maxBytes+1)
	}
	size, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && size > s.maxBytes {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(fullPath)
		if errors.Is(err, ErrFileTooLarge) {
			return StoredFile{}, err
		}
		return StoredFile{}, fmt.Errorf("write file: %w", err)
	}

	return StoredFile{
		Path:        relPath,
		URL:         s.urlPrefix + relPath,
		Name:        name,
		ContentType: mimetype.Detect(head).String(),
		Size:        size,
	}, nil
}

// Delete es idempotente: un archivo inexistente no es error.
func (s *LocalStore) Delete(_ context.Context, relPath string) error {
	clean := path.Clean("/" + relPath)
	if !strings.HasPrefix(clean, "/"+chatFilesDir+"/") {
		return fmt.Errorf("invalid path %q", relPath)
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
