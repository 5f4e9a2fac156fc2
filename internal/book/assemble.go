package book

import (
	"context"
	"fmt"
	"html"
	"log"
	"regexp"
	"sort"
	"strings"
)

// AssemblerConfig は組み立て時の挙動を決める設定です。
type AssemblerConfig struct {
	// BaseURL はホストWikiの正規オリジンです。ルート相対の画像URLの絶対化に使用します。
	BaseURL string
	// MetadataPatterns はメタデータキーごとの抽出用正規表現です。
	MetadataPatterns map[string]string
	// MetadataDefaults は組み立て後に未設定キーへ補われるデフォルト値です。
	MetadataDefaults map[string]string
}

type metadataPattern struct {
	key     string
	pattern *regexp.Regexp
}

// Assembler はメタブックの目次ツリーを1つのHTML文書へ組み立てます。
type Assembler struct {
	renderer    ArticleRenderer
	stylesheets StylesheetResolver
	baseURL     string
	patterns    []metadataPattern
	defaults    map[string]string
	logger      *log.Logger
}

// NewAssembler は Assembler を初期化します。抽出用正規表現はここでコンパイルされ、
// 不正なパターンはエラーになります。
func NewAssembler(renderer ArticleRenderer, stylesheets StylesheetResolver, cfg AssemblerConfig, logger *log.Logger) (*Assembler, error) {
	if renderer == nil {
		return nil, fmt.Errorf("renderer is nil")
	}
	if logger == nil {
		logger = log.Default()
	}

	keys := make([]string, 0, len(cfg.MetadataPatterns))
	for key := range cfg.MetadataPatterns {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	patterns := make([]metadataPattern, 0, len(keys))
	for _, key := range keys {
		re, err := regexp.Compile(cfg.MetadataPatterns[key])
		if err != nil {
			return nil, fmt.Errorf("invalid metadata pattern for %q: %w", key, err)
		}
		patterns = append(patterns, metadataPattern{key: key, pattern: re})
	}

	defaults := map[string]string{}
	for key, value := range cfg.MetadataDefaults {
		defaults[key] = value
	}

	return &Assembler{
		renderer:    renderer,
		stylesheets: stylesheets,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		patterns:    patterns,
		defaults:    defaults,
		logger:      logger,
	}, nil
}

// Assemble はメタブック全体を1つのHTML文書にまとめ、導出したメタデータと
// 文書順の目次項目を返します。個々の記事のレンダリング失敗は文書全体を
// 失敗させず、その記事を空として扱います。
func (a *Assembler) Assemble(ctx context.Context, mb *MetaBook) *Document {
	meta := map[string]string{}
	var toc []TocEntry
	var body strings.Builder

	if mb.Title != "" {
		setIfUnset(meta, "title", mb.Title)
		body.WriteString("<h1 id=\"bookTitle\">" + html.EscapeString(mb.Title) + "</h1>\n")
	}
	if mb.Subtitle != "" {
		body.WriteString("<h2 id=\"bookSubtitle\">" + html.EscapeString(mb.Subtitle) + "</h2>\n")
	}

	body.WriteString(a.assembleItems(ctx, mb.Items, meta, &toc))

	// デフォルト値は導出済みの値を決して上書きしない
	for key, value := range a.defaults {
		setIfUnset(meta, key, value)
	}

	document := a.wrapDocument(ctx, mb.Title, body.String())
	document = a.absolutizeImageSources(document)

	return &Document{HTML: document, Metadata: meta, TOC: toc}
}

func (a *Assembler) assembleItems(ctx context.Context, items []Item, meta map[string]string, toc *[]TocEntry) string {
	var sb strings.Builder
	for _, item := range items {
		switch it := item.(type) {
		case Chapter:
			// 章は子要素を組み立てたうえで見出しを1段深くする
			sb.WriteString(ShiftHeadings(a.assembleItems(ctx, it.Items, meta, toc), 1))
		case Article:
			sb.WriteString(a.assembleArticle(ctx, it, meta, toc))
		}
	}
	return sb.String()
}

func (a *Assembler) assembleArticle(ctx context.Context, article Article, meta map[string]string, toc *[]TocEntry) string {
	display := article.ResolvedTitle()

	rendered, err := a.renderer.Render(ctx, article.Title)
	if err != nil {
		a.logger.Printf("skipping article %q: %v", article.Title, err)
		return ""
	}

	fullTitle := rendered.FullTitle
	if fullTitle == "" {
		fullTitle = display
	}
	setIfUnset(meta, "title", fullTitle)
	if rendered.Author != "" {
		setIfUnset(meta, "creator-user", rendered.Author)
	}

	for _, p := range a.patterns {
		if _, ok := meta[p.key]; ok {
			continue
		}
		m := p.pattern.FindStringSubmatch(rendered.HTML)
		if m == nil {
			continue
		}
		if len(m) > 1 {
			meta[p.key] = m[1]
		} else {
			meta[p.key] = ""
		}
	}

	stripped, entries := ExtractTOC(rendered.HTML, display)
	*toc = append(*toc, entries...)

	var sb strings.Builder
	sb.WriteString("<h1>" + html.EscapeString(display) + "</h1>\n")
	sb.WriteString(stripped)
	sb.WriteString("\n\n")
	return sb.String()
}

func (a *Assembler) wrapDocument(ctx context.Context, title string, body string) string {
	var sb strings.Builder
	sb.WriteString("<html>\n<head>\n")
	if a.stylesheets != nil {
		for _, ss := range a.stylesheets.Stylesheets(ctx) {
			sb.WriteString("<link rel=\"stylesheet\" href=\"" + html.EscapeString(ss.URL) + "\" />\n")
		}
	}
	if title != "" {
		sb.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	}
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

var rootRelativeSrc = regexp.MustCompile(`(?i)\bsrc=(["'])(/[^"']*)`)

// absolutizeImageSources はルート相対の画像URLをホストWikiの絶対URLへ書き換えます。
// 変換ツールは別プロセスで動くため、相対URLを解決できません。
func (a *Assembler) absolutizeImageSources(document string) string {
	if a.baseURL == "" {
		return document
	}
	return rootRelativeSrc.ReplaceAllStringFunc(document, func(attr string) string {
		m := rootRelativeSrc.FindStringSubmatch(attr)
		path := m[2]
		if strings.HasPrefix(path, "//") {
			// プロトコル相対URLは対象外
			return attr
		}
		return "src=" + m[1] + a.baseURL + path
	})
}

func setIfUnset(meta map[string]string, key, value string) {
	if _, ok := meta[key]; ok {
		return
	}
	meta[key] = value
}
