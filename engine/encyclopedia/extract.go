// Package encyclopedia scrapes the MedlinePlus medical encyclopedia: the A-Z
// index pages are crawled for article links, and each article page is reduced
// to a normalized document.
package encyclopedia

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/Secantwave/Health-Advisor/engine/domain"
)

// minContentLen excludes short placeholder pages from the knowledge base.
const minContentLen = 100

const sourceName = "MedlinePlus Encyclopedia"

// Article is one scraped encyclopedia entry.
type Article struct {
	Title   string
	Content string
	URL     string
}

// Link is an article reference discovered on an index page.
type Link struct {
	URL         string
	AnchorTitle string
}

var (
	h1Re       = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	anchorRe   = regexp.MustCompile(`(?is)<a[^>]*\bhref="([^"]+)"[^>]*>(.*?)</a>`)
	indexRefRe = regexp.MustCompile(`^/?ency/encyclopedia_[A-Z0-9]\.htm$`)
	scriptRe   = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
	wsRe       = regexp.MustCompile(`\s+`)
)

// stripTags flattens an HTML fragment to text with collapsed whitespace.
func stripTags(fragment string) string {
	fragment = scriptRe.ReplaceAllString(fragment, " ")
	fragment = styleRe.ReplaceAllString(fragment, " ")
	fragment = tagRe.ReplaceAllString(fragment, " ")
	fragment = html.UnescapeString(fragment)
	return strings.TrimSpace(wsRe.ReplaceAllString(fragment, " "))
}

// container returns the inner HTML of the first <tag id="id"> element,
// tracking nesting of the same tag to find the matching close.
func container(page, tag, id string) (string, bool) {
	openRe := regexp.MustCompile(`(?is)<` + tag + `[^>]*\bid="` + regexp.QuoteMeta(id) + `"[^>]*>`)
	loc := openRe.FindStringIndex(page)
	if loc == nil {
		return "", false
	}
	rest := page[loc[1]:]

	nestRe := regexp.MustCompile(`(?i)<(/?)` + tag + `\b`)
	depth := 1
	for _, m := range nestRe.FindAllStringSubmatchIndex(rest, -1) {
		if m[3] > m[2] { // closing tag
			depth--
			if depth == 0 {
				return rest[:m[0]], true
			}
		} else {
			depth++
		}
	}
	// Unclosed container: take everything that follows.
	return rest, true
}

// ExtractArticle reduces an article page to an Article. The title comes from
// the page's h1, falling back to the anchor text the page was discovered
// under. It returns ok=false when the content container is missing or the
// extracted text is shorter than minContentLen.
func ExtractArticle(page, anchorTitle, pageURL string) (Article, bool) {
	title := anchorTitle
	if m := h1Re.FindStringSubmatch(page); m != nil {
		if t := stripTags(m[1]); t != "" {
			title = t
		}
	}

	inner, found := container(page, "div", "ency_content")
	if !found {
		return Article{}, false
	}
	content := stripTags(inner)
	if len(content) < minContentLen {
		return Article{}, false
	}

	return Article{Title: title, Content: content, URL: pageURL}, true
}

// IndexLinks extracts the A-Z and 0-9 index page URLs from the main
// encyclopedia page, resolved against base.
func IndexLinks(page string, base *url.URL) []string {
	var links []string
	seen := make(map[string]bool)
	for _, m := range anchorRe.FindAllStringSubmatch(page, -1) {
		href := m[1]
		if !indexRefRe.MatchString(href) {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		full := base.ResolveReference(ref).String()
		if !seen[full] {
			seen[full] = true
			links = append(links, full)
		}
	}
	return links
}

// ArticleLinks extracts article links from an index page. Only anchors inside
// the <ul id="index"> list pointing at article/*.htm are considered.
func ArticleLinks(page string, indexURL *url.URL) []Link {
	list, found := container(page, "ul", "index")
	if !found {
		return nil
	}
	var links []Link
	for _, m := range anchorRe.FindAllStringSubmatch(list, -1) {
		href := m[1]
		if !strings.HasPrefix(href, "article/") || !strings.HasSuffix(href, ".htm") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		links = append(links, Link{
			URL:         indexURL.ResolveReference(ref).String(),
			AnchorTitle: stripTags(m[2]),
		})
	}
	return links
}

// BuildDocuments assigns sequential ids to articles in scrape order, starting
// at 1, so an unchanged scrape reproduces identical ids.
func BuildDocuments(articles []Article, prefix string) []domain.Document {
	docs := make([]domain.Document, len(articles))
	for i, a := range articles {
		docs[i] = domain.Document{
			ID:   fmt.Sprintf("%s_%d", prefix, i+1),
			Text: fmt.Sprintf("Title: %s\nContent: %s", a.Title, a.Content),
			Metadata: map[string]string{
				"title":   a.Title,
				"content": a.Content,
				"source":  sourceName,
				"url":     a.URL,
			},
		}
	}
	return docs
}
