package publisher

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderMarkdown converts a manually written Markdown draft into
// WeChat-compatible HTML. AI-generated articles skip this path entirely: the
// model emits inline-styled HTML directly.
func RenderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return normalizeForWeChat(buf.String()), nil
}

// WeChat 会弱化部分列表和标题标签，导致有序列表合并、标题样式丢失。
// 这里在上传前把列表展开、把标题转成带字号的段落，让排版更稳定。
func normalizeForWeChat(html string) string {
	html = convertHeadingsForWeChat(html)
	html = flattenListsForWeChat(html)
	return html
}

var (
	olRe = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulRe = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	liRe = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	hRe  = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
)

func flattenListsForWeChat(html string) string {
	html = olRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			text := strings.TrimSpace(item[1])
			b.WriteString("<p>")
			b.WriteString(fmt.Sprintf("%d. %s", i+1, text))
			b.WriteString("</p>")
		}
		return b.String()
	})

	html = ulRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			text := strings.TrimSpace(item[1])
			b.WriteString("<p>• ")
			b.WriteString(text)
			b.WriteString("</p>")
		}
		return b.String()
	})

	return html
}

func convertHeadingsForWeChat(html string) string {
	sizes := map[string]string{
		"1": "24px",
		"2": "22px",
		"3": "20px",
		"4": "18px",
		"5": "16px",
		"6": "15px",
	}

	return hRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := hRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		size := sizes[parts[1]]
		if size == "" {
			size = "18px"
		}
		text := strings.TrimSpace(parts[2])
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, text)
	})
}

var titleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// ExtractTitle pulls the first level-one heading out of a Markdown draft.
func ExtractTitle(md string) string {
	m := titleRe.FindStringSubmatch(md)
	if len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// DefaultDigest builds a digest by compacting the Markdown source when the
// author did not supply one.
func DefaultDigest(md string, limit int) string {
	joined := strings.Join(strings.Fields(md), " ")
	runes := []rune(joined)
	if len(runes) <= limit {
		return joined
	}
	return string(runes[:limit])
}
