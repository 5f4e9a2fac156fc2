package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	dataFilename = "data"
	metaFilename = "meta.json"
)

// Local はローカルファイルシステム上のコンテンツストア実装です。
// キーごとのディレクトリに本体とメタデータ（JSON）を並べて保存します。
type Local struct {
	baseDir string
}

// NewLocal は Local を作成し、保存先ディレクトリを用意します。
func NewLocal(baseDir string) (*Local, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

// Put は成果物を保存します。contentType が空の場合は内容から推定します。
func (l *Local) Put(ctx context.Context, src io.Reader, name, contentType string, pages int) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := uuid.NewString()
	dir := filepath.Join(l.baseDir, key)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create object dir: %w", err)
	}

	dataPath := filepath.Join(dir, dataFilename)
	file, err := os.OpenFile(dataPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create object file: %w", err)
	}
	size, err := io.Copy(file, src)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	if contentType == "" {
		if detected, detectErr := mimetype.DetectFile(dataPath); detectErr == nil {
			contentType = detected.String()
		} else {
			contentType = "application/octet-stream"
		}
	}

	object := &Object{
		Key:         key,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Pages:       pages,
		CreatedAt:   time.Now().UTC(),
	}
	if err := writeMeta(dir, object); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return object, nil
}

// Stat は成果物のメタデータを取得します。
func (l *Local) Stat(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return readMeta(filepath.Join(l.baseDir, key))
}

// Open は成果物本体を開きます。
func (l *Local) Open(ctx context.Context, key string) (*Object, io.ReadCloser, error) {
	object, err := l.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(filepath.Join(l.baseDir, key, dataFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return object, file, nil
}

func writeMeta(dir string, object *Object) error {
	file, err := os.OpenFile(filepath.Join(dir, metaFilename), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to open meta: %w", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(object)
}

func readMeta(dir string) (*Object, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read meta: %w", err)
	}
	var object Object
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, fmt.Errorf("failed to parse meta: %w", err)
	}
	return &object, nil
}
