// Package store は変換済み成果物を保持するコンテンツストアを提供します。
package store

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound は指定キーの成果物が存在しないことを表します。
var ErrNotFound = errors.New("object not found")

// Object は格納済み成果物のメタデータです。
type Object struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Pages       int       `json:"pages,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ContentStore はキー指定で成果物を出し入れするストレージ抽象です。
type ContentStore interface {
	// Put は成果物を保存し、採番されたキーを含むメタデータを返します。
	Put(ctx context.Context, src io.Reader, name, contentType string, pages int) (*Object, error)
	// Stat はメタデータのみを取得します。
	Stat(ctx context.Context, key string) (*Object, error)
	// Open は成果物本体の読み取りストリームを開きます。
	Open(ctx context.Context, key string) (*Object, io.ReadCloser, error)
}
