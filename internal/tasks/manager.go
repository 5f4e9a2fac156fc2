package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"os"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/yourusername/bookbinder/internal/book"
	"github.com/yourusername/bookbinder/internal/convert"
	"github.com/yourusername/bookbinder/internal/store"
)

const taskTypeRender = "book:render"

// TaskPayload は変換タスクのペイロードです。
type TaskPayload struct {
	TaskID   int64          `json:"taskId"`
	Format   string         `json:"format"`
	MetaBook *book.MetaBook `json:"metabook"`
}

type recordStore interface {
	Create(ctx context.Context) (int64, error)
	Get(ctx context.Context, id int64) (*Record, error)
	MarkFinished(ctx context.Context, id int64, contentKey, disposition string) error
	MarkFailed(ctx context.Context, id int64) error
}

type documentAssembler interface {
	Assemble(ctx context.Context, mb *book.MetaBook) *book.Document
}

type documentConverter interface {
	Convert(ctx context.Context, html string, format string, metadata map[string]string) (*convert.Artifact, error)
}

// Manager は変換タスクの投入と実行を担います。
// 投入はタスク行の作成とキュー投入のみを行い、組み立て・変換・保存は
// バックグラウンドのワーカーが逐次実行します。
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	store     recordStore
	assembler documentAssembler
	invoker   documentConverter
	content   store.ContentStore
	logger    *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(queueRedisURL string, taskStore *Store, assembler *book.Assembler, invoker *convert.Invoker, content store.ContentStore, logger *log.Logger) (*Manager, error) {
	if taskStore == nil {
		return nil, errors.New("taskStore is nil")
	}
	if assembler == nil {
		return nil, errors.New("assembler is nil")
	}
	if invoker == nil {
		return nil, errors.New("invoker is nil")
	}
	if content == nil {
		return nil, errors.New("content store is nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	opt, err := asynq.ParseRedisURI(queueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"books": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client:    client,
		server:    server,
		mux:       mux,
		store:     taskStore,
		assembler: assembler,
		invoker:   invoker,
		content:   content,
		logger:    logger,
	}
	mux.HandleFunc(taskTypeRender, manager.handleRenderTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logger.Printf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Submit は pending 状態のタスク行を作成し、変換パイプラインをキューに投入します。
// 行の作成に失敗した場合はキューに投入せずエラーを返します。
// 呼び出しは変換の完了を待ちません。
func (m *Manager) Submit(ctx context.Context, mb *book.MetaBook, format string) (int64, error) {
	if mb == nil {
		return 0, fmt.Errorf("metabook is nil")
	}
	if strings.TrimSpace(format) == "" {
		return 0, fmt.Errorf("format is required")
	}

	id, err := m.store.Create(ctx)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(&TaskPayload{
		TaskID:   id,
		Format:   format,
		MetaBook: mb,
	})
	if err != nil {
		_ = m.store.MarkFailed(ctx, id)
		return 0, err
	}

	// 失敗したタスクは再投入で新しいIDを採番する運用のため、再試行はしない
	task := asynq.NewTask(taskTypeRender, body, asynq.Queue("books"))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(0)); err != nil {
		_ = m.store.MarkFailed(ctx, id)
		return 0, err
	}
	return id, nil
}

// GetRecord はタスク行を取得します。
func (m *Manager) GetRecord(ctx context.Context, id int64) (*Record, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) handleRenderTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.TaskID == 0 || payload.MetaBook == nil {
		return fmt.Errorf("invalid render payload")
	}
	return m.runTask(ctx, &payload)
}

// runTask は1タスク分のパイプライン（組み立て→変換→保存）を逐次実行します。
// 組み立ては失敗しません。変換以降のどの段階の失敗もタスクを failed で終端させます。
func (m *Manager) runTask(ctx context.Context, payload *TaskPayload) error {
	doc := m.assembler.Assemble(ctx, payload.MetaBook)

	artifact, err := m.invoker.Convert(ctx, doc.HTML, payload.Format, doc.Metadata)
	if err != nil {
		m.logger.Printf("task %d: conversion failed: %v", payload.TaskID, err)
		return m.store.MarkFailed(ctx, payload.TaskID)
	}
	defer func() {
		_ = artifact.Cleanup()
	}()

	pages := 0
	if n, ok := artifact.PDFPageCount(); ok {
		pages = n
	}

	disposition := dispositionFor(doc.Metadata["title"], artifact.Extension)

	file, err := os.Open(artifact.Path)
	if err != nil {
		m.logger.Printf("task %d: failed to open artifact: %v", payload.TaskID, err)
		return m.store.MarkFailed(ctx, payload.TaskID)
	}
	defer file.Close()

	name := disposition
	if name == "" {
		name = "book." + artifact.Extension
	}
	object, err := m.content.Put(ctx, file, name, mime.TypeByExtension("."+artifact.Extension), pages)
	if err != nil {
		m.logger.Printf("task %d: failed to store artifact: %v", payload.TaskID, err)
		return m.store.MarkFailed(ctx, payload.TaskID)
	}

	if err := m.store.MarkFinished(ctx, payload.TaskID, object.Key, disposition); err != nil {
		return err
	}
	m.logger.Printf("task %d: finished (key=%s, size=%d)", payload.TaskID, object.Key, object.Size)
	return nil
}

// dispositionFor は「タイトルの空白をアンダースコアに置換した名前.拡張子」を導出します。
// タイトルか拡張子が欠けている場合は空を返し、ダウンロード時はストア側の名前を使います。
func dispositionFor(title, extension string) string {
	if title == "" || extension == "" {
		return ""
	}
	return strings.ReplaceAll(title, " ", "_") + "." + extension
}
