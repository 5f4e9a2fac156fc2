package book

import (
	"context"
	"errors"
)

// ErrNotRenderable は記事が存在しない、またはテキストとして描画できないことを表します。
var ErrNotRenderable = errors.New("content is not renderable")

// RenderedArticle は1記事のレンダリング結果を表します。
type RenderedArticle struct {
	// HTML はレンダリング済みの本文です。
	HTML string
	// FullTitle は記事の完全なタイトルです。
	FullTitle string
	// Author は記事の作成者の帰属表示です。
	Author string
}

// ArticleRenderer は記事本文のレンダリング機能を抽象化します。
// 存在しないコンテンツは ErrNotRenderable で通知し、panicや致命的エラーにはしません。
type ArticleRenderer interface {
	Render(ctx context.Context, title string) (*RenderedArticle, error)
}

// Stylesheet は書籍へ取り込むスタイルシートを表します。
type Stylesheet struct {
	Name string
	URL  string
}

// StylesheetResolver は設定されたスタイルシート名のうち実在するものとそのURLを返します。
type StylesheetResolver interface {
	Stylesheets(ctx context.Context) []Stylesheet
}
