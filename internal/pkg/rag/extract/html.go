package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	inlineSpace   = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLines    = regexp.MustCompile(`\n\s*\n+`)
	skippedHTMLEl = map[string]bool{"head": true, "script": true, "style": true, "noscript": true, "template": true}
	blockHTMLEl   = map[string]bool{
		"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "pre": true, "table": true,
	}
)

// HTMLSection 按标题切分出的一段正文，Headers 为从 h1 到当前层级的标题链。
type HTMLSection struct {
	Headers []string
	Text    string
}

// String 标题在前、正文在后，以换行连接。
func (s HTMLSection) String() string {
	parts := make([]string, 0, len(s.Headers)+1)
	parts = append(parts, s.Headers...)
	if s.Text != "" {
		parts = append(parts, s.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// HTMLText 去掉标签、脚本和样式，压缩空白后返回正文。
func HTMLText(raw string) (string, error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("html: parse: %w", err)
	}
	var sb strings.Builder
	collectText(doc, &sb)
	return compact(sb.String()), nil
}

// HTMLSections 按 h1-h6 切分文档，遇到同级或更高级标题时结束上一节。
func HTMLSections(raw string) ([]HTMLSection, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("html: parse: %w", err)
	}

	w := &sectionWalker{}
	w.walk(doc)
	w.flush()
	return w.sections, nil
}

type sectionWalker struct {
	headers  [6]string
	body     strings.Builder
	sections []HTMLSection
}

func (w *sectionWalker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if skippedHTMLEl[n.Data] {
			return
		}
		if level := headerLevel(n.Data); level > 0 {
			w.flush()
			var sb strings.Builder
			collectText(n, &sb)
			w.headers[level-1] = compact(sb.String())
			for i := level; i < len(w.headers); i++ {
				w.headers[i] = ""
			}
			return
		}
	}

	if n.Type == html.TextNode {
		w.body.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
	if n.Type == html.ElementNode && blockHTMLEl[n.Data] {
		w.body.WriteString("\n")
	}
}

// flush 结束当前节，只有标题没有正文时不输出。
func (w *sectionWalker) flush() {
	text := compact(w.body.String())
	w.body.Reset()
	if text == "" {
		return
	}

	var headers []string
	for _, h := range w.headers {
		if h != "" {
			headers = append(headers, h)
		}
	}
	w.sections = append(w.sections, HTMLSection{Headers: headers, Text: text})
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skippedHTMLEl[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
	if n.Type == html.ElementNode && blockHTMLEl[n.Data] {
		sb.WriteString("\n")
	}
}

func headerLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func compact(s string) string {
	s = inlineSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
