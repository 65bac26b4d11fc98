package generator

import (
	"context"
	"log"
	"strings"

	"github.com/tidwall/gjson"
)

// Record 是模型回复解析后的结构化稿件。
type Record struct {
	Title         string
	Digest        string
	Content       string
	CoverPrompt   string
	FigurePrompts []string
}

// Outcome tells callers how trustworthy the record is.
type Outcome int

const (
	// OutcomeParsed: the reply decoded directly.
	OutcomeParsed Outcome = iota
	// OutcomeRepaired: the reply was malformed but a repair call produced
	// valid output.
	OutcomeRepaired
	// OutcomeFallback: both attempts failed; the record was synthesized from
	// the raw text so the pipeline can still proceed.
	OutcomeFallback
)

const repairSystemPrompt = "你是一个JSON修复专家。用户会提供一段可能格式不正确的文本，请提取其中的信息并返回正确格式的JSON。只返回JSON，不要其他内容。"

const (
	fallbackTitle       = "AI热点资讯"
	fallbackCoverPrompt = "科技感AI主题封面图"
	digestMaxRunes      = 100
)

// Parser turns a free-text model reply into a Record. It never fails outward:
// a malformed reply triggers one repair round through the model, and if that
// also fails a degraded record is synthesized from the raw text.
type Parser struct {
	llm    LLMClient
	logger *log.Logger
}

func NewParser(llm LLMClient, logger *log.Logger) *Parser {
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{llm: llm, logger: logger}
}

// Parse decodes raw into a Record, repairing or degrading as needed.
func (p *Parser) Parse(ctx context.Context, raw string) (Record, Outcome) {
	if doc, ok := decodePayload(raw); ok {
		return extractRecord(doc, raw), OutcomeParsed
	}

	p.logger.Printf("[parser] JSON解析失败，尝试使用LLM修复...")
	repaired, err := p.llm.Complete(ctx, []Message{
		{Role: "system", Content: repairSystemPrompt},
		{Role: "user", Content: "请将以下内容转换为正确的JSON格式（包含title, digest, content, cover_prompt, figure_prompt_list字段，其中figure_prompt_list是数组）：\n\n" + raw},
	})
	if err == nil {
		if doc, ok := decodePayload(repaired); ok {
			return extractRecord(doc, raw), OutcomeRepaired
		}
	} else {
		p.logger.Printf("[parser] 修复调用失败: %v", err)
	}

	p.logger.Printf("[parser] JSON修复失败，使用默认值")
	return Record{
		Title:         fallbackTitle,
		Digest:        "",
		Content:       "<p>" + raw + "</p>",
		CoverPrompt:   fallbackCoverPrompt,
		FigurePrompts: []string{},
	}, OutcomeFallback
}

// decodePayload strips an optional fenced code block and validates the JSON.
func decodePayload(raw string) (gjson.Result, bool) {
	js := stripFence(raw)
	if !gjson.Valid(js) {
		return gjson.Result{}, false
	}
	doc := gjson.Parse(js)
	if !doc.IsObject() {
		return gjson.Result{}, false
	}
	return doc, true
}

func stripFence(s string) string {
	marker := "```json"
	i := strings.Index(s, marker)
	if i < 0 {
		marker = "```"
		i = strings.Index(s, marker)
	}
	if i < 0 {
		return strings.TrimSpace(s)
	}
	rest := s[i+len(marker):]
	if j := strings.Index(rest, "```"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest)
}

func extractRecord(doc gjson.Result, raw string) Record {
	rec := Record{
		Title:       doc.Get("title").String(),
		Digest:      truncateRunes(doc.Get("digest").String(), digestMaxRunes),
		Content:     doc.Get("content").String(),
		CoverPrompt: doc.Get("cover_prompt").String(),
	}
	if rec.Title == "" {
		rec.Title = fallbackTitle
	}
	if rec.Content == "" {
		rec.Content = raw
	}
	rec.FigurePrompts = normalizeFigurePrompts(doc.Get("figure_prompt_list"))
	return rec
}

// normalizeFigurePrompts coerces the loosely typed figure_prompt_list field:
// a bare string becomes a one-element list, anything non-array becomes empty.
func normalizeFigurePrompts(v gjson.Result) []string {
	switch {
	case v.IsArray():
		items := v.Array()
		prompts := make([]string, 0, len(items))
		for _, it := range items {
			prompts = append(prompts, it.String())
		}
		return prompts
	case v.Type == gjson.String:
		if v.String() == "" {
			return []string{}
		}
		return []string{v.String()}
	default:
		return []string{}
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
