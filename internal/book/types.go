// Package book はメタブックの組み立てと変換タスクの受付機能を提供します。
package book

import (
	"encoding/json"
	"fmt"
)

// ItemType は目次項目の種別を表します。
type ItemType string

const (
	ItemTypeChapter ItemType = "chapter"
	ItemTypeArticle ItemType = "article"
)

// Item は目次ツリーのノード（章または記事）を表します。
type Item interface {
	itemNode()
}

// Chapter は記事をまとめる章を表します。入れ子にできます。
type Chapter struct {
	Title string
	Items []Item
}

// Article はレンダリング対象のコンテンツを参照する葉ノードです。
type Article struct {
	Title        string
	DisplayTitle string
}

func (Chapter) itemNode() {}
func (Article) itemNode() {}

// ResolvedTitle は表示用タイトルを返します（DisplayTitleが空ならTitle）。
func (a Article) ResolvedTitle() string {
	if a.DisplayTitle != "" {
		return a.DisplayTitle
	}
	return a.Title
}

// MetaBook は1回の変換ジョブの入力仕様です。
type MetaBook struct {
	Title    string
	Subtitle string
	Items    []Item
}

type rawItem struct {
	Type         ItemType  `json:"type"`
	Title        string    `json:"title"`
	DisplayTitle string    `json:"displaytitle,omitempty"`
	Items        []rawItem `json:"items,omitempty"`
}

type rawMetaBook struct {
	Title    string    `json:"title,omitempty"`
	Subtitle string    `json:"subtitle,omitempty"`
	Items    []rawItem `json:"items"`
}

// UnmarshalJSON は type タグで章と記事を判別してツリーを復元します。
func (m *MetaBook) UnmarshalJSON(data []byte) error {
	var raw rawMetaBook
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	items, err := decodeItems(raw.Items)
	if err != nil {
		return err
	}
	m.Title = raw.Title
	m.Subtitle = raw.Subtitle
	m.Items = items
	return nil
}

// MarshalJSON はツリーを type タグ付きのJSONへ変換します。
func (m MetaBook) MarshalJSON() ([]byte, error) {
	return json.Marshal(rawMetaBook{
		Title:    m.Title,
		Subtitle: m.Subtitle,
		Items:    encodeItems(m.Items),
	})
}

func decodeItems(raw []rawItem) ([]Item, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		switch r.Type {
		case ItemTypeChapter:
			children, err := decodeItems(r.Items)
			if err != nil {
				return nil, err
			}
			items = append(items, Chapter{Title: r.Title, Items: children})
		case ItemTypeArticle:
			items = append(items, Article{Title: r.Title, DisplayTitle: r.DisplayTitle})
		default:
			return nil, fmt.Errorf("unknown item type: %q", r.Type)
		}
	}
	return items, nil
}

func encodeItems(items []Item) []rawItem {
	raw := make([]rawItem, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case Chapter:
			raw = append(raw, rawItem{
				Type:  ItemTypeChapter,
				Title: it.Title,
				Items: encodeItems(it.Items),
			})
		case Article:
			raw = append(raw, rawItem{
				Type:         ItemTypeArticle,
				Title:        it.Title,
				DisplayTitle: it.DisplayTitle,
			})
		}
	}
	return raw
}

// TocEntry は抽出された目次1項目を表します。
// Key は「表示タイトル-アンカー」の形式で、記事間で一意とは限りません。
type TocEntry struct {
	Level int    `json:"level"`
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Document は組み立て済みのHTML文書とその付随情報です。
type Document struct {
	HTML     string
	Metadata map[string]string
	TOC      []TocEntry
}
