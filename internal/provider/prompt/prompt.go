// Package prompt renders the extraction prompt shared by the LLM providers and
// parses their JSON answers.
package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/provider"
)

// ErrMalformedOutput is returned when a model answer holds no JSON object.
var ErrMalformedOutput = errors.New("model output is not a JSON object")

// MaxHits bounds how many search hits are placed in the prompt.
const MaxHits = 10

// maxContent bounds the page text quoted per hit.
const maxContent = 1500

type data struct {
	Query     string
	Entity    string
	QueryType string
	Language  string
	Fields    []string
	Hits      []model.SearchHit
}

var extractTemplate = template.Must(template.New("extract").Funcs(template.FuncMap{
	"inc":      func(i int) int { return i + 1 },
	"truncate": truncate,
}).Parse(extractPromptTemplate))

// Builder renders prompts. A nil Detector skips the language hint.
type Builder struct {
	Detector *LanguageDetector
}

// Render builds the extraction prompt for one row.
func (b *Builder) Render(req provider.ExtractRequest) (string, error) {
	hits := req.Result.Hits
	if len(hits) > MaxHits {
		hits = hits[:MaxHits]
	}
	d := data{
		Query:     req.Query,
		Entity:    req.Entity,
		QueryType: req.QueryType,
		Fields:    req.Fields,
		Hits:      hits,
	}
	if b != nil && b.Detector != nil {
		d.Language = b.Detector.Detect(searchContext(hits))
	}
	var buf bytes.Buffer
	if err := extractTemplate.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render extraction prompt: %w", err)
	}
	return buf.String(), nil
}

// ParseFields decodes the first JSON object in text and returns the values of the
// requested fields it contains. Keys match case-insensitively. Non-string values
// are re-encoded as JSON.
func ParseFields(text string, fields []string) (map[string]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrMalformedOutput
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	byLower := make(map[string]any, len(raw))
	for k, v := range raw {
		byLower[strings.ToLower(strings.TrimSpace(k))] = v
	}

	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v, ok := byLower[strings.ToLower(f)]
		if !ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			out[f] = strings.TrimSpace(val)
		default:
			enc, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[f] = string(enc)
		}
	}
	return out, nil
}

func searchContext(hits []model.SearchHit) string {
	var sb strings.Builder
	for _, h := range hits {
		sb.WriteString(h.Title)
		sb.WriteString(". ")
		sb.WriteString(h.Snippet)
		sb.WriteString("\n")
	}
	return sb.String()
}

func truncate(s string) string {
	if len(s) <= maxContent {
		return s
	}
	cut := maxContent
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

const extractPromptTemplate = `Task: Extract the most relevant information for the following query based on the search results.

Query: "{{.Query}}"
Entity: {{.Entity}}
Query Type: {{.QueryType}}
{{- if .Language}}
Search results language: {{.Language}}
{{- end}}

Search Results:
{{range $i, $h := .Hits}}
[{{inc $i}}] Title: {{$h.Title}}
URL: {{$h.URL}}
Snippet: {{$h.Snippet}}
{{- if $h.Content}}
Page text: {{truncate $h.Content}}
{{- end}}
{{else}}
(no search results)
{{end}}
Instructions:
- Answer with a single JSON object and nothing else.
- Use exactly these keys: {{range $i, $f := .Fields}}{{if $i}}, {{end}}"{{$f}}"{{end}}.
- If you find the exact answer, give it directly and concisely.
- If relevant information is only partially available, summarize it briefly.
- If no relevant information is available for a key, use the value "Data not found".
- Answer in English regardless of the language of the search results.`
