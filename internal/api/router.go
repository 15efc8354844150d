// Package api wires the job handlers onto the router.
package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-enrich-pipeline/docs"
	"go-enrich-pipeline/internal/api/handler"
	"go-enrich-pipeline/pkg/router"
)

// @title Enrichment Pipeline API
// @version 1.0
// @description Enrich spreadsheet rows with web search and LLM extraction.
// @BasePath /api/v1

func RegisterRoutes(r *router.Router, h *handler.JobHandler) {
	r.GET("/health", handler.Health)

	r.POST("/api/v1/datasets/preview", h.PreviewDataset)
	r.POST("/api/v1/jobs", h.CreateJob)
	r.GET("/api/v1/jobs", h.ListJobs)
	r.GET("/api/v1/jobs/*", h.GetJob)
	r.DELETE("/api/v1/jobs/*", h.DeleteJob)
	r.GET("/api/v1/jobs/*/progress", h.GetJobProgress)
	r.GET("/api/v1/jobs/*/results", h.GetJobResults)
	r.GET("/api/v1/jobs/*/errors", h.GetJobErrors)
	r.GET("/api/v1/jobs/*/summary", h.GetJobSummary)
	r.GET("/api/v1/jobs/*/export", h.ExportJob)
	r.POST("/api/v1/jobs/*/cancel", h.CancelJob)
	r.POST("/api/v1/jobs/*/retry", h.RetryJob)
	r.POST("/api/v1/jobs/*/sheets", h.UploadJobToSheet)

	r.Mount("/swagger/", httpSwagger.WrapHandler)
}
