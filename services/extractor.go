package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/english-mastery/backend/config"
	"github.com/english-mastery/backend/logger"
)

const (
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguageHeader = "en-US,en;q=0.9"

	minContainerChars  = 200
	minParagraphChars  = 20
	minExtractedChars  = 100
	maxExtractedChars  = 10000
	sentenceCutoffFrom = 8000
)

var (
	removedTags = []string{
		"script", "style", "nav", "header", "footer",
		"aside", "form", "iframe", "noscript", "svg",
		"button", "input", "select", "textarea",
	}

	contentSelectors = []string{
		"article",
		"[role='main']",
		".post-content",
		".article-content",
		".entry-content",
		".content",
		".post",
		".article",
		"main",
		"#content",
		"#main",
	}
)

// ExtractedPage is the cleaned result of fetching one URL.
type ExtractedPage struct {
	Title   string
	Content string
}

// ContentExtractor turns a URL into a title and plain-text body.
type ContentExtractor interface {
	Fetch(ctx context.Context, rawURL string) (*ExtractedPage, error)
}

type WebExtractor struct {
	cfg    config.ScraperConfig
	client *http.Client
	log    *logger.Logger
}

func NewWebExtractor(cfg config.ScraperConfig, log *logger.Logger) *WebExtractor {
	e := &WebExtractor{cfg: cfg, log: log.With("service", "ContentExtractor")}
	e.client = &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return e.validateURL(req.URL)
		},
	}
	return e
}

// ValidateURL checks scheme, host and (when enabled) the domain allow-list
// without touching the network.
func (e *WebExtractor) ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, ErrInvalidParams("invalid URL format")
	}
	if err := e.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (e *WebExtractor) validateURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidParams("only HTTP/HTTPS links are supported")
	}
	if u.Host == "" || u.Hostname() == "" {
		return ErrInvalidParams("invalid URL format")
	}
	if e.cfg.AllowListEnabled && !domainAllowed(u.Hostname(), e.cfg.AllowedDomains) {
		return ErrInvalidParams("this website is not supported yet")
	}
	return nil
}

func domainAllowed(host string, allowed []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range allowed {
		d = strings.ToLower(strings.TrimPrefix(d, "www."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (e *WebExtractor) Fetch(ctx context.Context, rawURL string) (*ExtractedPage, error) {
	u, err := e.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	body, err := e.download(ctx, u)
	if err != nil {
		e.log.Warn("fetch failed", "url", u.String(), "error", err)
		return nil, err
	}

	page, err := e.extract(body, u)
	if err != nil {
		return nil, extractionError(http.StatusBadRequest, CodeExtractionFailed, "failed to parse page", err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(page.Content)) < minExtractedChars {
		return nil, extractionError(http.StatusUnprocessableEntity, CodeInsufficientContent, "could not extract enough article text", nil)
	}

	e.log.Info("page extracted", "url", u.String(), "title", truncateRunes(page.Title, 50), "chars", utf8.RuneCountInString(page.Content))
	return page, nil
}

func (e *WebExtractor) download(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, ErrInvalidParams("invalid URL format")
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, extractionError(http.StatusBadRequest, CodeExtractionFailed,
			fmt.Sprintf("page request failed: HTTP %d", resp.StatusCode), nil)
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return nil, extractionError(http.StatusBadRequest, CodeNotHTML, "the link is not a web page", nil)
	}
	if resp.ContentLength > e.cfg.MaxBytes {
		return nil, errPageTooLarge()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBytes+1))
	if err != nil {
		return nil, classifyFetchError(err)
	}
	if int64(len(body)) > e.cfg.MaxBytes {
		return nil, errPageTooLarge()
	}
	return body, nil
}

func errPageTooLarge() *AppError {
	return extractionError(http.StatusBadRequest, CodePageTooLarge, "page is too large, please choose a shorter article", nil)
}

func extractionError(status, code int, msg string, err error) *AppError {
	return NewAppError(status, code, msg, err)
}

func classifyFetchError(err error) *AppError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return extractionError(http.StatusGatewayTimeout, CodeExtractionTimeout,
			"page load timed out, please retry later or paste the text directly", err)
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return extractionError(http.StatusBadGateway, CodeExtractionFailed,
		fmt.Sprintf("network request failed: %v", err), err)
}

func (e *WebExtractor) extract(body []byte, pageURL *url.URL) (*ExtractedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	title := extractTitle(doc)
	doc.Find(strings.Join(removedTags, ", ")).Remove()

	content := extractMainContent(doc)
	if content == "" {
		content = e.readabilityText(body, pageURL)
	}
	if content == "" {
		content = nodesText(doc.Find("body").Nodes, "\n")
	}

	return &ExtractedPage{Title: title, Content: cleanExtractedText(content)}, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if og = strings.TrimSpace(og); og != "" {
			return og
		}
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if t := strings.TrimSpace(h1.Text()); t != "" {
			return t
		}
	}
	return "Untitled"
}

// extractMainContent tries content containers, then falls back to the
// page's substantial paragraphs.
func extractMainContent(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		candidate := doc.Find(sel).First()
		if candidate.Length() == 0 {
			continue
		}
		if text := nodesText(candidate.Nodes, "\n"); utf8.RuneCountInString(text) > minContainerChars {
			return text
		}
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := nodesText(s.Nodes, ""); utf8.RuneCountInString(text) > minParagraphChars {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

func (e *WebExtractor) readabilityText(body []byte, pageURL *url.URL) string {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		e.log.Debug("readability fallback failed", "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// nodesText joins every non-blank text node under nodes, each trimmed,
// with sep between them.
func nodesText(nodes []*html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}
