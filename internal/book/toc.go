package book

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var toclevelClass = regexp.MustCompile(`\btoclevel-(\d+)\b`)

// ExtractTOC はHTML断片から目次ブロックを探し、各項目の(レベル, キー, ラベル)を収集した上で
// ブロック自体を断片から取り除きます。目次は下流の変換ツールが再生成するため、
// 残しておくと二重になります。
//
// 目次ブロックが見つからない場合（解析不能な断片を含む）は入力をそのまま返します。
// キーは「<title>-<アンカー>」の形式で、アンカーはリンクhrefの#以降から取ります。
func ExtractTOC(fragment string, title string) (string, []TocEntry) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment, nil
	}

	container := doc.Find("#toc").First()
	if container.Length() == 0 {
		return fragment, nil
	}

	var entries []TocEntry
	container.Find("li").Each(func(_ int, li *goquery.Selection) {
		level := 0
		if class, ok := li.Attr("class"); ok {
			if m := toclevelClass.FindStringSubmatch(class); m != nil {
				if n, convErr := strconv.Atoi(m[1]); convErr == nil {
					level = n
				}
			}
		}

		fragmentID := ""
		if href, ok := li.Find("a").First().Attr("href"); ok {
			if idx := strings.Index(href, "#"); idx >= 0 {
				fragmentID = href[idx+1:]
			}
		}

		label := strings.TrimSpace(li.Find(".toctext").First().Text())

		entries = append(entries, TocEntry{
			Level: level,
			Key:   title + "-" + fragmentID,
			Label: label,
		})
	})

	container.Remove()

	stripped, err := doc.Find("body").Html()
	if err != nil {
		return fragment, entries
	}
	return stripped, entries
}
