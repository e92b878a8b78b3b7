// Package feed は最近共有された場所のRSS 2.0フィードを生成する。
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hitoshi/placeshare/internal/model"
)

// DefaultLimit はフィードに含める場所の件数。
const DefaultLimit = 20

// Lister は新しい順に場所を取得するインターフェース。place.Serviceが満たす。
type Lister interface {
	Recent(ctx context.Context, limit int) ([]*model.Place, error)
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description,omitempty"`
	Author      string  `xml:"author,omitempty"`
	Enclosure   *rssEnc `xml:"enclosure,omitempty"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnc struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length int64  `xml:"length,attr"`
}

// Generator はRSSフィードを生成する。
type Generator struct {
	places  Lister
	baseURL string
	title   string
	limit   int
}

// NewGenerator はGeneratorを生成する。baseURLは末尾のスラッシュを除いて保持する。
func NewGenerator(places Lister, baseURL string) *Generator {
	return &Generator{
		places:  places,
		baseURL: strings.TrimRight(baseURL, "/"),
		title:   "placeshare",
		limit:   DefaultLimit,
	}
}

// Write は最新の場所からRSSを生成してwに書き出す。
func (g *Generator) Write(ctx context.Context, w io.Writer) error {
	places, err := g.places.Recent(ctx, g.limit)
	if err != nil {
		return fmt.Errorf("failed to load recent places: %w", err)
	}
	return g.encode(w, places)
}

func (g *Generator) encode(w io.Writer, places []*model.Place) error {
	doc := rss{
		Version: "2.0",
		Channel: rssChannel{
			Title:       g.title,
			Link:        g.baseURL + "/places",
			Description: "Recently shared places",
		},
	}
	if len(places) > 0 {
		doc.Channel.LastBuildDate = places[0].CreatedAt.UTC().Format(time.RFC1123Z)
	}

	for _, p := range places {
		link := g.baseURL + "/places/" + string(p.ID)
		item := rssItem{
			Title:       p.Name,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: true, Value: link},
			Description: p.Description,
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
		}
		if p.Author != nil {
			item.Author = p.Author.Handle
		}
		if p.MediaRef != "" {
			item.Enclosure = &rssEnc{URL: g.absolute(p.MediaRef), Type: mediaType(p.MediaRef)}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write feed header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	return nil
}

func (g *Generator) absolute(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return g.baseURL + "/" + strings.TrimLeft(ref, "/")
}

// mediaType は保存時の拡張子から画像のMIMEタイプを返す。
func mediaType(ref string) string {
	switch {
	case strings.HasSuffix(ref, ".png"):
		return "image/png"
	case strings.HasSuffix(ref, ".gif"):
		return "image/gif"
	case strings.HasSuffix(ref, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
