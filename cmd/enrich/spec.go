package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/pkg/utils"
)

// loadSpec reads a YAML job spec. Unknown keys are rejected.
func loadSpec(path string) (model.JobSpec, error) {
	var spec model.JobSpec
	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("failed to read spec: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return spec, fmt.Errorf("failed to parse spec %s: %w", path, err)
	}
	return spec, nil
}

// runFlags are the job settings accepted on the command line.
type runFlags struct {
	specPath    string
	input       string
	sheetURL    string
	sheetName   string
	column      string
	template    string
	fields      string
	output      string
	outputSheet string
	workers     int
	maxRetries  int
	rowDelay    string
	transforms  string
}

// apply overlays the flags that were set onto spec. changed reports whether a
// flag was given explicitly.
func (f *runFlags) apply(spec *model.JobSpec, changed func(string) bool) {
	if f.input != "" {
		spec.Source = model.Source{Path: f.input, SheetName: f.sheetName}
		if strings.HasSuffix(strings.ToLower(f.input), ".xlsx") {
			spec.Source.Type = "xlsx"
		} else {
			spec.Source.Type = "csv"
		}
	}
	if f.sheetURL != "" {
		spec.Source = model.Source{Type: "sheets", SheetURL: f.sheetURL, SheetName: f.sheetName}
	}
	if f.column != "" {
		spec.EntityColumn = f.column
	}
	if f.template != "" {
		spec.QueryTemplate = f.template
	}
	if f.fields != "" {
		spec.Fields = utils.SplitList(f.fields)
	}
	if f.output != "" || f.outputSheet != "" {
		if spec.Export == nil {
			spec.Export = &model.Export{}
		}
		if f.output != "" {
			spec.Export.File = f.output
		}
		if f.outputSheet != "" {
			spec.Export.SheetURL = f.outputSheet
		}
	}
	if changed("workers") {
		spec.Concurrency.Workers = f.workers
	}
	if changed("max-retries") {
		n := f.maxRetries
		spec.Concurrency.MaxRetries = &n
	}
	if f.rowDelay != "" {
		spec.Concurrency.RowDelay = f.rowDelay
	}
	if f.transforms != "" {
		spec.Transformations = utils.SplitList(f.transforms)
	}
}
