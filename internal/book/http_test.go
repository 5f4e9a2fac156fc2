package book

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type stubSubmitter struct {
	id       int64
	err      error
	lastBook *MetaBook
	lastFmt  string
}

func (s *stubSubmitter) Submit(ctx context.Context, mb *MetaBook, format string) (int64, error) {
	s.lastBook = mb
	s.lastFmt = format
	return s.id, s.err
}

func performRender(t *testing.T, submitter Submitter, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/books/render", RenderHandler(submitter))

	req := httptest.NewRequest(http.MethodPost, "/api/books/render", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRenderHandlerSuccess(t *testing.T) {
	submitter := &stubSubmitter{id: 42}
	rec := performRender(t, submitter, `{
		"metabook": {"title": "Demo", "items": [{"type": "article", "title": "Page1"}]},
		"format": "epub"
	}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: %d (%s)", rec.Code, rec.Body.String())
	}
	var resp struct {
		TaskID int64  `json:"taskId"`
		State  string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.TaskID != 42 || resp.State != "pending" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if submitter.lastFmt != "epub" || submitter.lastBook == nil || submitter.lastBook.Title != "Demo" {
		t.Fatalf("submitter received wrong arguments: %q %#v", submitter.lastFmt, submitter.lastBook)
	}
}

func TestRenderHandlerMissingFormat(t *testing.T) {
	rec := performRender(t, &stubSubmitter{}, `{"metabook": {"items": []}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRenderHandlerMissingMetaBook(t *testing.T) {
	rec := performRender(t, &stubSubmitter{}, `{"format": "epub"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRenderHandlerInvalidJSON(t *testing.T) {
	rec := performRender(t, &stubSubmitter{}, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestRenderHandlerSubmitFailure(t *testing.T) {
	rec := performRender(t, &stubSubmitter{err: errors.New("redis down")}, `{
		"metabook": {"items": []},
		"format": "epub"
	}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
