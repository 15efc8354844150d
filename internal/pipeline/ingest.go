package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-enrich-pipeline/internal/model"
	"go-enrich-pipeline/internal/sink"
)

// LoadDataset reads a job's source through the matching sink.
func LoadDataset(ctx context.Context, src model.Source, opts sink.Options, logger *zap.Logger) (model.Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	target := sourceTarget(src)
	logger.Info("load: reading source",
		zap.String("type", src.Type),
		zap.String("path", src.Path),
		zap.String("sheet_url", src.SheetURL))

	s, err := sink.Open(ctx, target, opts)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("failed to open source: %w", err)
	}
	ds, err := s.Load(ctx)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("failed to load source: %w", err)
	}

	logger.Info("load: dataset ready", zap.Int("rows", ds.Len()), zap.Strings("columns", ds.Columns))
	return ds, nil
}
