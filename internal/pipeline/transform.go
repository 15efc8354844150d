package pipeline

import (
	"fmt"
	"strings"

	"go-enrich-pipeline/internal/batch"
	"go-enrich-pipeline/internal/model"
)

// Transformations accepted in a job spec.
const (
	TransformLowercase = "lowercase"
	TransformUppercase = "uppercase"
	TransformTitle     = "title"
)

// missingValues are model answers that mean the same as batch.NotFound.
var missingValues = map[string]bool{
	"":               true,
	"n/a":            true,
	"na":             true,
	"none":           true,
	"null":           true,
	"unknown":        true,
	"not found":      true,
	"not available":  true,
	"data not found": true,
}

// ValidateTransformations rejects unknown transformation names.
func ValidateTransformations(names []string) error {
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case TransformLowercase, TransformUppercase, TransformTitle:
		default:
			return fmt.Errorf("unknown transformation %q", n)
		}
	}
	return nil
}

// TransformResult returns res with its extracted values cleaned. res is not
// modified.
func TransformResult(res model.RowResult, transformations []string) model.RowResult {
	if !res.Succeeded() || len(res.Extracted) == 0 {
		return res
	}
	cleaned := make(map[string]string, len(res.Extracted))
	for field, value := range res.Extracted {
		cleaned[field] = applyTransformations(value, transformations)
	}
	res.Extracted = cleaned
	return res
}

func applyTransformations(value string, transformations []string) string {
	value = strings.Join(strings.Fields(value), " ")
	if missingValues[strings.ToLower(strings.TrimRight(value, "."))] {
		return batch.NotFound
	}
	for _, t := range transformations {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case TransformLowercase:
			value = strings.ToLower(value)
		case TransformUppercase:
			value = strings.ToUpper(value)
		case TransformTitle:
			value = titleCase(value)
		}
	}
	return value
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
