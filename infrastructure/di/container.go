package di

import (
	"net/http"

	"go.uber.org/zap"

	"mindmap-backend/application/services"
	"mindmap-backend/infrastructure/config"
	"mindmap-backend/infrastructure/observability"
	"mindmap-backend/infrastructure/persistence/memory"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    *memory.SessionStore
	Sessions *services.SessionService
	Tracing  *observability.TracerProvider
	Handler  http.Handler
}
