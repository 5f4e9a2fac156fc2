package main

import (
	"log"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/bookbinder/internal/book"
	"github.com/yourusername/bookbinder/internal/config"
	"github.com/yourusername/bookbinder/internal/convert"
	"github.com/yourusername/bookbinder/internal/store"
	"github.com/yourusername/bookbinder/internal/tasks"
)

type taskDeps struct {
	manager *tasks.Manager
	content store.ContentStore
}

func setupTasks(cfg *config.Config) (*taskDeps, error) {
	opt, err := redis.ParseURL(cfg.TaskRedisURL)
	if err != nil {
		return nil, err
	}
	taskStore := tasks.NewStore(redis.NewClient(opt))

	content, err := store.NewLocal(cfg.StoreDir)
	if err != nil {
		return nil, err
	}

	wiki := book.NewWikiClient(cfg.WikiBaseURL, cfg.Stylesheets, log.Default())
	assembler, err := book.NewAssembler(wiki, wiki, book.AssemblerConfig{
		BaseURL:          cfg.WikiBaseURL,
		MetadataPatterns: cfg.MetadataPatterns,
		MetadataDefaults: cfg.MetadataDefaults,
	}, log.Default())
	if err != nil {
		return nil, err
	}

	invoker := convert.NewInvoker(cfg.RenderCommands, cfg.RenderExtensions, convert.ShellRunner{}, log.Default())

	manager, err := tasks.NewManager(cfg.QueueRedisURL, taskStore, assembler, invoker, content, log.Default())
	if err != nil {
		return nil, err
	}

	return &taskDeps{manager: manager, content: content}, nil
}

func tasksStatusRoute(deps *taskDeps) gin.HandlerFunc {
	return tasks.StatusHandler(deps.manager, deps.content)
}

func tasksDownloadRoute(deps *taskDeps) gin.HandlerFunc {
	return tasks.DownloadHandler(deps.manager, deps.content)
}
