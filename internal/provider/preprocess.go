package provider

import (
	"strings"

	"go-enrich-pipeline/internal/model"
)

// Preprocess trims hit fields and drops hits with neither title nor URL.
func Preprocess(hits []model.SearchHit) []model.SearchHit {
	out := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		h.Title = strings.TrimSpace(h.Title)
		h.URL = strings.TrimSpace(h.URL)
		h.Snippet = strings.TrimSpace(h.Snippet)
		h.Content = strings.TrimSpace(h.Content)
		if h.Title == "" && h.URL == "" {
			continue
		}
		out = append(out, h)
	}
	return out
}
