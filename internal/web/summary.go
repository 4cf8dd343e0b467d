package web

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

// maxLinks caps the number of links kept in a summary.
const maxLinks = 50

var ErrUnsupportedContent = errors.New("unsupported content type: binary files like images or PDFs are not supported")

type PageSummary struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Text        string   `json:"text"`
	Links       []string `json:"links"`
}

// Summarize renders a fetched body as readable text. HTML is reduced to its
// visible content and converted to Markdown; other text is returned as is.
// An empty contentType is sniffed from the body.
func Summarize(pageURL string, body []byte, contentType string) (*PageSummary, error) {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	lowerCT := strings.ToLower(contentType)
	isHTML := strings.Contains(lowerCT, "text/html")
	isText := strings.HasPrefix(lowerCT, "text/")
	if !isText {
		return nil, ErrUnsupportedContent
	}
	if !isHTML {
		return &PageSummary{URL: pageURL, Text: string(body)}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	// Remove non-visible elements
	doc.Find("script, style, noscript, iframe, object, embed, img, video, picture, svg, canvas, audio, source, track, map, area, form, label, input, button, select, textarea, progress, ins, applet").Remove()

	ps := &PageSummary{URL: pageURL}
	ps.Title = strings.TrimSpace(doc.Find("head > title").First().Text())
	ps.Description = strings.TrimSpace(doc.Find("meta[name=description]").AttrOr("content", ""))
	plainText := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	ps.Links = extractLinks(doc, pageURL)

	// Links are already collected; drop anchors and page chrome before converting.
	doc.Find("a").Remove()
	doc.Find("header, footer, aside").Remove()

	htmlStr, err := doc.Html()
	if err != nil {
		return nil, err
	}
	markdown, err := htmltomarkdown.ConvertString(htmlStr)
	if err != nil {
		ps.Text = plainText
	} else {
		ps.Text = strings.TrimSpace(markdown)
	}
	return ps, nil
}

// extractLinks returns up to maxLinks sorted absolute links without
// fragments, skipping javascript, mailto and tel targets.
func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	canonicalSet := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		if !u.IsAbs() && base != nil {
			u = base.ResolveReference(u)
		}
		switch u.Scheme {
		case "javascript", "mailto", "tel", "":
			return
		}
		u.Fragment = ""
		canonicalSet[u.String()] = struct{}{}
	})

	links := make([]string, 0, len(canonicalSet))
	for canon := range canonicalSet {
		links = append(links, canon)
	}
	sort.Strings(links)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	return links
}

// Markdown renders a summary as a single Markdown document.
func (ps *PageSummary) Markdown() string {
	var sb strings.Builder
	if ps.Title != "" {
		sb.WriteString("# ")
		sb.WriteString(ps.Title)
		sb.WriteString("\n\n")
	}
	if ps.Description != "" {
		sb.WriteString(ps.Description)
		sb.WriteString("\n\n")
	}
	if len(ps.Links) > 0 {
		sb.WriteString("## Links\n")
		for _, l := range ps.Links {
			sb.WriteString("- ")
			sb.WriteString(l)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(ps.Text)
	return sb.String()
}
