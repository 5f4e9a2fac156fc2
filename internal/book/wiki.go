package book

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WikiClient はホストWikiのHTTP APIから記事本文とスタイルシートを取得します。
type WikiClient struct {
	baseURL     string
	stylesheets []string
	client      *http.Client
	logger      *log.Logger
}

// NewWikiClient は WikiClient を作成します。
func NewWikiClient(baseURL string, stylesheets []string, logger *log.Logger) *WikiClient {
	if logger == nil {
		logger = log.Default()
	}
	return &WikiClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		stylesheets: stylesheets,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

type wikiRenderResponse struct {
	Title  string `json:"title"`
	HTML   string `json:"html"`
	Author string `json:"author,omitempty"`
}

// Render は記事のレンダリング済みHTMLを取得します。
// 記事が存在しない場合やテキストでない場合は ErrNotRenderable を返します。
func (w *WikiClient) Render(ctx context.Context, title string) (*RenderedArticle, error) {
	endpoint := w.baseURL + "/api/render?title=" + url.QueryEscape(title)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotRenderable
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("wiki render failed for %q: status %d", title, resp.StatusCode)
	}

	var payload wikiRenderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, ErrNotRenderable
	}

	return &RenderedArticle{
		HTML:      payload.HTML,
		FullTitle: payload.Title,
		Author:    payload.Author,
	}, nil
}

// Stylesheets は設定されたスタイルシート名のうちホストWikiに実在するものを返します。
func (w *WikiClient) Stylesheets(ctx context.Context) []Stylesheet {
	var found []Stylesheet
	for _, name := range w.stylesheets {
		target := w.baseURL + "/stylesheets/" + url.PathEscape(name)
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			continue
		}
		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Printf("stylesheet %q unavailable: %v", name, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			found = append(found, Stylesheet{Name: name, URL: target})
		}
	}
	return found
}
