package tasks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/bookbinder/internal/store"
)

// RecordGetter はタスク行を照会できるサービスが実装します。
type RecordGetter interface {
	GetRecord(ctx context.Context, id int64) (*Record, error)
}

// StatusHandler は GET /api/tasks/:id のハンドラーを返します。
// パイプラインの失敗は例外的な応答にせず、必ず pending / failed / finished の
// いずれかの形で返します。未知のIDや成果物を解決できない finished も failed 扱いです。
func StatusHandler(records RecordGetter, content store.ContentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseTaskID(c)
		if !ok {
			return
		}

		record, err := records.GetRecord(c.Request.Context(), id)
		if err != nil || record == nil {
			c.JSON(http.StatusOK, gin.H{"state": StateFailed})
			return
		}

		switch record.State {
		case StatePending:
			c.JSON(http.StatusOK, gin.H{"state": StatePending})
		case StateFinished:
			c.JSON(http.StatusOK, finishedPayload(c, record, content))
		default:
			c.JSON(http.StatusOK, gin.H{"state": StateFailed})
		}
	}
}

func finishedPayload(c *gin.Context, record *Record, content store.ContentStore) gin.H {
	if record.ContentKey == "" {
		return gin.H{"state": StateFailed}
	}
	object, err := content.Stat(c.Request.Context(), record.ContentKey)
	if err != nil {
		return gin.H{"state": StateFailed}
	}

	name := record.Disposition
	if name == "" {
		name = object.Name
	}
	return gin.H{
		"state":               StateFinished,
		"url":                 fmt.Sprintf("/api/tasks/%d/download", record.ID),
		"content_type":        object.ContentType,
		"content_length":      object.Size,
		"content_disposition": contentDisposition(name),
	}
}

// DownloadHandler は GET /api/tasks/:id/download のハンドラーを返します。
// タスクに成果物キーが記録されていない場合は 404 を返します。
func DownloadHandler(records RecordGetter, content store.ContentStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseTaskID(c)
		if !ok {
			return
		}

		record, err := records.GetRecord(c.Request.Context(), id)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "タスク情報の取得に失敗しました。",
			})
			return
		}
		if record == nil || record.ContentKey == "" {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "RESULT_UNAVAILABLE",
				"message": "このタスクの成果物は存在しません。",
			})
			return
		}

		object, reader, err := content.Open(c.Request.Context(), record.ContentKey)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "RESULT_UNAVAILABLE",
				"message": "成果物の取得に失敗しました。",
			})
			return
		}
		defer reader.Close()

		name := record.Disposition
		if name == "" {
			name = object.Name
		}
		c.Header("Content-Type", object.ContentType)
		c.Header("Content-Disposition", contentDisposition(name))
		c.Header("Cache-Control", "no-store")
		c.DataFromReader(http.StatusOK, object.Size, object.ContentType, reader, nil)
	}
}

func parseTaskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "タスクIDを指定してください。",
		})
		return 0, false
	}
	return id, true
}

func contentDisposition(name string) string {
	encoded := url.PathEscape(name)
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", name, encoded)
}
