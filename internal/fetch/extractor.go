package fetch

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var (
	scriptRe         = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe          = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	excessiveLinesRe = regexp.MustCompile(`\n{4,}`)
)

// minReadableChars is the shortest readability output we accept before
// falling back to whole-page markdown conversion.
const minReadableChars = 200

// Extractor pulls the main article text out of an HTML page. Readability
// extraction is tried first; pages it cannot handle (index pages, sparse
// markup) fall back to a stripped-down markdown conversion of the body.
type Extractor struct {
	converter *md.Converter
}

// NewExtractor creates an extractor.
func NewExtractor() *Extractor {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Extractor{converter: converter}
}

// Extract returns the main text content of the page.
func (e *Extractor) Extract(pageURL string, body []byte) (string, error) {
	if text, ok := e.extractReadable(pageURL, body); ok {
		return text, nil
	}
	return e.convertBody(body)
}

func (e *Extractor) extractReadable(pageURL string, body []byte) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) < minReadableChars {
		return "", false
	}
	if article.Title != "" && !strings.Contains(text, article.Title) {
		text = article.Title + "\n\n" + text
	}
	return text, true
}

func (e *Extractor) convertBody(body []byte) (string, error) {
	cleaned := stripChrome(body)
	markdown, err := e.converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return cleanMarkdown(markdown), nil
}

// stripChrome removes navigation, scripts, and other non-content elements,
// returning the remaining body HTML.
func stripChrome(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		content := scriptRe.ReplaceAllString(string(body), "")
		return styleRe.ReplaceAllString(content, "")
	}

	removeElements(doc, []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "form", "input", "button",
	})

	if node := findElement(doc, "main"); node != nil {
		return renderNode(node)
	}
	if node := findElement(doc, "article"); node != nil {
		return renderNode(node)
	}
	if body := findElement(doc, "body"); body != nil {
		return renderNode(body)
	}
	return string(body)
}

func findElement(n *html.Node, tag string) *html.Node {
	var result *html.Node
	var find func(*html.Node)
	find = func(node *html.Node) {
		if result != nil {
			return
		}
		if node.Type == html.ElementNode && node.Data == tag {
			result = node
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(n)
	return result
}

func removeElements(n *html.Node, tags []string) {
	tagSet := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tagSet[tag] = true
	}

	var toRemove []*html.Node
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.ElementNode && tagSet[node.Data] {
			toRemove = append(toRemove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)

	for _, node := range toRemove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

func cleanMarkdown(content string) string {
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
