package artifact

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/google/uuid"

	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// adPatterns strips the boilerplate the teacher's HTML-clean executor
// treats as noise: ads, social widgets, cookie banners, sidebars.
var adPatterns = []string{
	"[class*='ad-']", "[class*='ads-']", "[class*='advertisement']",
	"[id*='ad-']", "[id*='ads-']", "[id*='advertisement']",
	"[class*='social']", "[class*='share']", "[class*='sharing']",
	"[class*='sidebar']", "[class*='widget']",
	"[class*='cookie']", "[class*='gdpr']", "[class*='consent']",
	"[class*='popup']", "[class*='modal']", "[class*='overlay']",
	"[class*='newsletter']", "[class*='subscribe']",
	"[class*='related']", "[class*='recommendation']",
	"[class*='comment']", "[id*='comment']",
}

var whitespaceRunRE = regexp.MustCompile(`\n\s*\n+`)

// ImportChapterFromHTML fetches no network resource itself — html is the
// already-retrieved source document — sanitizes it with goquery and runs
// go-shiori/go-readability's article extraction, appending the result as a
// new chapter under parentID (nil for a root chapter). Falls back to a
// goquery main-content heuristic when readability can't find an article.
func (s *Service) ImportChapterFromHTML(ctx context.Context, bookID string, parentID *string, sourceURL string, html io.Reader) (*pkgmodels.Chapter, error) {
	raw, err := io.ReadAll(html)
	if err != nil {
		return nil, fmt.Errorf("read source html: %w", err)
	}

	cleaned, err := sanitizeHTML(string(raw))
	if err != nil {
		return nil, fmt.Errorf("sanitize source html: %w", err)
	}

	title, body := extractReadable(cleaned, sourceURL)

	idx, err := s.ChapterTree(ctx, bookID)
	if err != nil {
		return nil, err
	}
	depth := 0
	parentKey := ""
	if parentID != nil {
		parent := idx.ByID(*parentID)
		if parent == nil {
			return nil, pkgmodels.ErrChapterNotFound
		}
		depth = parent.Depth + 1
		parentKey = *parentID
	}

	now := time.Now()
	chapter := &pkgmodels.Chapter{
		ID:          uuid.NewString(),
		BookID:      bookID,
		ParentID:    parentID,
		Depth:       depth,
		OrderIndex:  len(idx.Children(parentKey)),
		Title:       title,
		ContentMode: pkgmodels.ChapterModeInline,
		InlineHTML:  body,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.AddChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

// sanitizeHTML removes scripts, styles, forms, comments, hidden elements,
// inline event handlers and boilerplate ad/tracking containers.
func sanitizeHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, iframe, frame, frameset, object, embed, applet, form").Remove()
	doc.Find("*").Contents().FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return goquery.NodeName(sel) == "#comment"
	}).Remove()
	doc.Find("[hidden], [style*='display:none'], [style*='display: none'], [aria-hidden='true']").Remove()
	for _, pattern := range adPatterns {
		doc.Find(pattern).Remove()
	}
	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{
			"onclick", "onload", "onerror", "onmouseover", "onmouseout",
			"onfocus", "onblur", "onchange", "onsubmit", "onreset",
			"onkeydown", "onkeypress", "onkeyup",
		} {
			sel.RemoveAttr(attr)
		}
		sel.RemoveAttr("style")
	})

	return doc.Html()
}

// extractReadable runs readability's article extraction over the
// sanitized HTML, falling back to a goquery main-content heuristic when it
// can't identify an article body.
func extractReadable(cleanedHTML, sourceURL string) (title, body string) {
	parsed, _ := url.Parse(sourceURL)
	if parsed == nil {
		parsed, _ = url.Parse("http://localhost")
	}

	article, err := readability.FromReader(strings.NewReader(cleanedHTML), parsed)
	if err != nil {
		return fallbackExtract(cleanedHTML)
	}
	return article.Title, normalizeWhitespace(article.Content)
}

func fallbackExtract(cleanedHTML string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return "", cleanedHTML
	}
	main := doc.Find("main, article, .main-content, #content, .content, .post, .entry").First()
	if main.Length() == 0 {
		main = doc.Find("body")
	}
	title := doc.Find("title").First().Text()
	content, _ := main.Html()
	return title, normalizeWhitespace(content)
}

func normalizeWhitespace(html string) string {
	return strings.TrimSpace(whitespaceRunRE.ReplaceAllString(html, "\n\n"))
}
