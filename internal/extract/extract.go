// Package extract turns fetched pages into raw lead candidates.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-scout/internal/fetcher"
	"github.com/sells-group/lead-scout/internal/model"
)

// Candidate is the unvalidated contact data found on one page.
type Candidate struct {
	URL     string
	Source  string
	Query   string
	Title   string
	Snippet string
	// Text is the visible page text with whitespace collapsed.
	Text string
	// Phones holds raw phone strings, tel: links first.
	Phones   []string
	Emails   []string
	WhatsApp []string
	Telegram []string
	// Names are contact name candidates in order of confidence.
	Names []string
}

// FullText is the text scanned by signal checks: title, snippet and body.
func (c *Candidate) FullText() string {
	return strings.Join([]string{c.Title, c.Snippet, c.Text}, "\n")
}

// Extractor turns a fetched page into a Candidate. Alternative
// implementations (for example model-based) plug in here.
type Extractor interface {
	Extract(resp *fetcher.Response, hit model.SearchResult) (*Candidate, error)
}

var (
	phoneRe  = regexp.MustCompile(`(?:(?:\+|00)49[ \-/.]*(?:\(0\)[ \-/.]*)?\d[\d \-/.]{6,18}\d|\(?0\d{2,5}\)?[ \-/.]*\d[\d \-/.]{4,14}\d)`)
	emailRe  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	atRe     = regexp.MustCompile(`(?i)\s*[\[(]\s*at\s*[\])]\s*`)
	dotRe    = regexp.MustCompile(`(?i)\s*[\[(]\s*(?:dot|punkt)\s*[\])]\s*`)
	waRe     = regexp.MustCompile(`(?i)(?:https?://)?(?:wa\.me|api\.whatsapp\.com|chat\.whatsapp\.com)/[^\s"'<>]+`)
	tgRe     = regexp.MustCompile(`(?i)(?:https?://)?(?:t\.me|telegram\.me)/[A-Za-z0-9_+/]+`)
	nameRe   = regexp.MustCompile(`(?:Ansprechpartner(?:in)?|Kontaktperson|Mein Name ist) *:? *(?:(?:Herr|Frau) +)?([A-ZÄÖÜ][a-zäöüß]+(?:[ \-][A-ZÄÖÜ][a-zäöüß]+){1,2})`)
	hspaceRe = regexp.MustCompile(`[^\S\n]+`)
	lineRe   = regexp.MustCompile(` ?\n\s*`)
)

// HTMLExtractor extracts candidates with goquery.
type HTMLExtractor struct{}

// New returns an HTMLExtractor.
func New() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract implements Extractor. Plain text responses skip DOM parsing.
func (e *HTMLExtractor) Extract(resp *fetcher.Response, hit model.SearchResult) (*Candidate, error) {
	if resp == nil {
		return nil, eris.New("extract: nil response")
	}
	pageURL := resp.FinalURL
	if pageURL == "" {
		pageURL = resp.URL
	}
	c := &Candidate{
		URL:     pageURL,
		Source:  hit.Source,
		Title:   hit.Title,
		Snippet: hit.Snippet,
	}

	if !resp.IsHTML() {
		c.Text = collapse(string(resp.Body))
		scanText(c)
		return c, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	if t := oneLine(doc.Find("title").First().Text()); t != "" {
		c.Title = t
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		lower := strings.ToLower(href)
		switch {
		case strings.HasPrefix(lower, "tel:"):
			if num, err := url.PathUnescape(href[4:]); err == nil {
				c.Phones = appendUnique(c.Phones, strings.TrimSpace(num))
			}
		case strings.HasPrefix(lower, "mailto:"):
			addr := href[7:]
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if addr, err := url.PathUnescape(addr); err == nil && emailRe.MatchString(addr) {
				c.Emails = appendUnique(c.Emails, strings.ToLower(strings.TrimSpace(addr)))
			}
		case waRe.MatchString(href):
			c.WhatsApp = appendUnique(c.WhatsApp, href)
		case tgRe.MatchString(href):
			c.Telegram = appendUnique(c.Telegram, href)
		}
	})

	for _, sel := range []string{`[itemprop="name"]`, "h1"} {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if n := oneLine(s.Text()); n != "" && len(n) <= 80 {
				c.Names = appendUnique(c.Names, n)
			}
		})
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if og = oneLine(og); og != "" {
			if c.Title == "" {
				c.Title = og
			}
			c.Names = appendUnique(c.Names, og)
		}
	}

	doc.Find("script, style, noscript, template, svg").Remove()
	c.Text = collapse(doc.Find("body").Text())
	if c.Text == "" {
		c.Text = collapse(doc.Text())
	}
	scanText(c)
	return c, nil
}

// scanText adds phones, emails, messenger links and "Ansprechpartner"
// names found in the title, snippet and text.
func scanText(c *Candidate) {
	text := c.FullText()

	for _, m := range phoneRe.FindAllString(text, -1) {
		if d := digitCount(m); d >= 8 && d <= 17 {
			c.Phones = appendUnique(c.Phones, strings.TrimSpace(m))
		}
	}

	deobf := dotRe.ReplaceAllString(atRe.ReplaceAllString(text, "@"), ".")
	for _, m := range emailRe.FindAllString(deobf, -1) {
		c.Emails = appendUnique(c.Emails, strings.ToLower(strings.Trim(m, ".")))
	}

	for _, m := range waRe.FindAllString(text, -1) {
		c.WhatsApp = appendUnique(c.WhatsApp, m)
	}
	for _, m := range tgRe.FindAllString(text, -1) {
		c.Telegram = appendUnique(c.Telegram, m)
	}

	var named []string
	for _, m := range nameRe.FindAllStringSubmatch(text, -1) {
		named = appendUnique(named, m[1])
	}
	// Explicit contact names outrank headings.
	c.Names = append(named, slices.DeleteFunc(c.Names, func(n string) bool { return slices.Contains(named, n) })...)
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

// collapse squeezes whitespace runs but keeps line breaks so that
// line-bound patterns do not run across blocks.
func collapse(s string) string {
	return strings.TrimSpace(lineRe.ReplaceAllString(hspaceRe.ReplaceAllString(s, " "), "\n"))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func appendUnique(list []string, v string) []string {
	if v == "" || slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
