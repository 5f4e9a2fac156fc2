package book

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Submitter はメタブックの変換タスクを受け付けるサービスが実装します。
type Submitter interface {
	Submit(ctx context.Context, mb *MetaBook, format string) (int64, error)
}

type renderRequest struct {
	MetaBook *MetaBook `json:"metabook"`
	Format   string    `json:"format"`
}

// RenderHandler は POST /api/books/render のハンドラーを返します。
// タスク行の作成に成功した時点で 202 を返し、変換はバックグラウンドで進みます。
func RenderHandler(submitter Submitter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req renderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "metabook をJSONで送信してください。",
			})
			return
		}
		if req.MetaBook == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "metabook を指定してください。",
			})
			return
		}
		if strings.TrimSpace(req.Format) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "format を指定してください。",
			})
			return
		}

		id, err := submitter.Submit(c.Request.Context(), req.MetaBook, req.Format)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "タスクの作成に失敗しました。",
			})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"taskId": id,
			"state":  "pending",
		})
	}
}
