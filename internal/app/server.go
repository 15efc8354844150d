package app

import (
	"context"

	"go-enrich-pipeline/internal/api"
	"go-enrich-pipeline/internal/api/handler"
	"go-enrich-pipeline/pkg/router"
	"go-enrich-pipeline/pkg/utils"
)

// Router builds the HTTP routes over the app's job manager.
func (a *App) Router() *router.Router {
	r := router.New(a.Logger)
	api.RegisterRoutes(r, &handler.JobHandler{
		Manager:        a.Manager,
		Outputs:        utils.NewOutputManager(a.Config.Output.Dir),
		MaxUploadBytes: a.Config.Server.MaxUploadMB << 20,
		Logger:         a.Logger,
	})
	return r
}

// Serve runs the API server until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	s := a.Config.Server
	return a.Router().Start(ctx, s.Addr, s.CORSOrigins, s.ShutdownTimeout)
}
