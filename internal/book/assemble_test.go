package book

import (
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

type stubRenderer struct {
	pages map[string]*RenderedArticle
}

func (s *stubRenderer) Render(ctx context.Context, title string) (*RenderedArticle, error) {
	page, ok := s.pages[title]
	if !ok {
		return nil, ErrNotRenderable
	}
	return page, nil
}

type stubStylesheets struct {
	sheets []Stylesheet
}

func (s *stubStylesheets) Stylesheets(ctx context.Context) []Stylesheet {
	return s.sheets
}

func newTestAssembler(t *testing.T, renderer ArticleRenderer, cfg AssemblerConfig) *Assembler {
	t.Helper()
	assembler, err := NewAssembler(renderer, &stubStylesheets{sheets: []Stylesheet{
		{Name: "book.css", URL: "http://wiki.example/stylesheets/book.css"},
	}}, cfg, log.New(&strings.Builder{}, "", 0))
	if err != nil {
		t.Fatalf("NewAssembler failed: %v", err)
	}
	return assembler
}

func TestAssembleEmptyMetaBook(t *testing.T) {
	assembler := newTestAssembler(t, &stubRenderer{}, AssemblerConfig{})

	doc := assembler.Assemble(context.Background(), &MetaBook{})
	if !strings.Contains(doc.HTML, "<html>") || !strings.Contains(doc.HTML, "<body>") {
		t.Fatalf("expected a valid document shell: %s", doc.HTML)
	}
	if len(doc.TOC) != 0 {
		t.Fatalf("expected no toc entries: %#v", doc.TOC)
	}
}

func TestAssembleBookTitleAndSubtitle(t *testing.T) {
	assembler := newTestAssembler(t, &stubRenderer{}, AssemblerConfig{})

	doc := assembler.Assemble(context.Background(), &MetaBook{Title: "Demo", Subtitle: "A sample"})
	if !strings.Contains(doc.HTML, `<h1 id="bookTitle">Demo</h1>`) {
		t.Fatalf("missing book title heading: %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `<h2 id="bookSubtitle">A sample</h2>`) {
		t.Fatalf("missing book subtitle heading: %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "<title>Demo</title>") {
		t.Fatalf("missing head title: %s", doc.HTML)
	}
	if doc.Metadata["title"] != "Demo" {
		t.Fatalf("book title should seed metadata: %#v", doc.Metadata)
	}
	if !strings.Contains(doc.HTML, `href="http://wiki.example/stylesheets/book.css"`) {
		t.Fatalf("missing stylesheet link: %s", doc.HTML)
	}
}

func TestAssembleHeadingShiftByChapterDepth(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"Page1": {HTML: "<h3>Section</h3><h6>Bottom</h6>"},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{})

	// 章1段: h3 → h4
	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{
		Chapter{Title: "Part", Items: []Item{Article{Title: "Page1"}}},
	}})
	if !strings.Contains(doc.HTML, "<h4>Section</h4>") {
		t.Fatalf("expected h4 after one chapter: %s", doc.HTML)
	}

	// 章2段: h3 → h5、h6 は飽和して h6 のまま
	doc = assembler.Assemble(context.Background(), &MetaBook{Items: []Item{
		Chapter{Title: "Part", Items: []Item{
			Chapter{Title: "Sub", Items: []Item{Article{Title: "Page1"}}},
		}},
	}})
	if !strings.Contains(doc.HTML, "<h5>Section</h5>") {
		t.Fatalf("expected h5 after two chapters: %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "<h6>Bottom</h6>") {
		t.Fatalf("h6 should saturate: %s", doc.HTML)
	}
}

func TestAssembleArticleHeadingAndSeparator(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"Page1": {HTML: "<p>Hello</p>", FullTitle: "Page One", Author: "jane"},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{})

	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{
		Article{Title: "Page1", DisplayTitle: "First Page"},
	}})
	if !strings.Contains(doc.HTML, "<h1>First Page</h1>\n<p>Hello</p>\n\n") {
		t.Fatalf("unexpected article block: %s", doc.HTML)
	}
	if doc.Metadata["title"] != "Page One" {
		t.Fatalf("first article should seed title: %#v", doc.Metadata)
	}
	if doc.Metadata["creator-user"] != "jane" {
		t.Fatalf("first article should seed creator-user: %#v", doc.Metadata)
	}
}

func TestAssembleMetadataFirstWriteWins(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"A": {HTML: "<p>a</p>", FullTitle: "Alpha", Author: "alice"},
		"B": {HTML: "<p>b</p>", FullTitle: "Beta", Author: "bob"},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{})

	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{
		Article{Title: "A"},
		Article{Title: "B"},
	}})
	if doc.Metadata["creator-user"] != "alice" {
		t.Fatalf("later article must not overwrite creator-user: %#v", doc.Metadata)
	}
	if doc.Metadata["title"] != "Alpha" {
		t.Fatalf("later article must not overwrite title: %#v", doc.Metadata)
	}
}

func TestAssembleMetadataPatternExtraction(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"Page1": {HTML: "Author=Jane Doe\nmore text"},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{
		MetadataPatterns: map[string]string{
			"creator": `Author=([^\n]+)`,
			"flag":    `more`, // キャプチャグループなし
		},
	})

	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{Article{Title: "Page1"}}})
	if doc.Metadata["creator"] != "Jane Doe" {
		t.Fatalf("unexpected creator: %#v", doc.Metadata)
	}
	if value, ok := doc.Metadata["flag"]; !ok || value != "" {
		t.Fatalf("pattern without group should record empty string: %#v", doc.Metadata)
	}
}

func TestAssembleInvalidMetadataPattern(t *testing.T) {
	_, err := NewAssembler(&stubRenderer{}, nil, AssemblerConfig{
		MetadataPatterns: map[string]string{"bad": `([`},
	}, nil)
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestAssembleSkipsFailedArticles(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"Good": {HTML: "<p>ok</p>"},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{})

	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{
		Article{Title: "Missing"},
		Article{Title: "Good"},
	}})
	if strings.Contains(doc.HTML, "Missing") {
		t.Fatalf("failed article should contribute nothing: %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "<p>ok</p>") {
		t.Fatalf("assembly should continue past a failed article: %s", doc.HTML)
	}
}

func TestAssembleDefaultsNeverOverride(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"Page1": {HTML: "<p>x</p>", FullTitle: "Derived"},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{
		MetadataDefaults: map[string]string{
			"title":   "Default Title",
			"license": "CC-BY",
		},
	})

	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{Article{Title: "Page1"}}})
	if doc.Metadata["title"] != "Derived" {
		t.Fatalf("default must not override derived title: %#v", doc.Metadata)
	}
	if doc.Metadata["license"] != "CC-BY" {
		t.Fatalf("unset key should receive default: %#v", doc.Metadata)
	}
}

func TestAssembleAbsolutizesImageSources(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"Page1": {HTML: `<img src="/images/a.png" /><img src="//cdn.example/b.png" /><img src="http://x/c.png" />`},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{BaseURL: "http://wiki.example/"})

	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{Article{Title: "Page1"}}})
	if !strings.Contains(doc.HTML, `src="http://wiki.example/images/a.png"`) {
		t.Fatalf("root-relative src should be absolutized: %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `src="//cdn.example/b.png"`) {
		t.Fatalf("protocol-relative src should be untouched: %s", doc.HTML)
	}
	if !strings.Contains(doc.HTML, `src="http://x/c.png"`) {
		t.Fatalf("absolute src should be untouched: %s", doc.HTML)
	}
}

func TestAssembleCollectsTocAcrossArticles(t *testing.T) {
	renderer := &stubRenderer{pages: map[string]*RenderedArticle{
		"A": {HTML: `<div id="toc"><ul><li class="toclevel-1"><a href="#S"><span class="toctext">S</span></a></li></ul></div><h2>S</h2>`},
		"B": {HTML: `<div id="toc"><ul><li class="toclevel-1"><a href="#S"><span class="toctext">S</span></a></li></ul></div><h2>S</h2>`},
	}}
	assembler := newTestAssembler(t, renderer, AssemblerConfig{})

	doc := assembler.Assemble(context.Background(), &MetaBook{Items: []Item{
		Article{Title: "A"},
		Article{Title: "B"},
	}})
	if len(doc.TOC) != 2 {
		t.Fatalf("expected toc entries from both articles: %#v", doc.TOC)
	}
	// キーは記事間で重複し得る（重複排除はしない）
	if doc.TOC[0].Key != "A-S" || doc.TOC[1].Key != "B-S" {
		t.Fatalf("unexpected keys: %#v", doc.TOC)
	}
	if strings.Contains(doc.HTML, `id="toc"`) {
		t.Fatalf("toc containers should be stripped from the document: %s", doc.HTML)
	}
}

var errBoom = errors.New("boom")

type failingRenderer struct{}

func (failingRenderer) Render(ctx context.Context, title string) (*RenderedArticle, error) {
	return nil, errBoom
}

func TestAssembleNeverFailsOnRendererErrors(t *testing.T) {
	assembler := newTestAssembler(t, failingRenderer{}, AssemblerConfig{})
	doc := assembler.Assemble(context.Background(), &MetaBook{Title: "Demo", Items: []Item{
		Article{Title: "X"},
		Chapter{Title: "P", Items: []Item{Article{Title: "Y"}}},
	}})
	if !strings.Contains(doc.HTML, "<body>") {
		t.Fatalf("document shell should still be produced: %s", doc.HTML)
	}
}
