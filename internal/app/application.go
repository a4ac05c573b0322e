package app

import (
	"context"
	"fmt"

	"github.com/mtlprog/chatboot/internal/config"
	"github.com/mtlprog/chatboot/internal/database"
	"github.com/mtlprog/chatboot/internal/httpclient"
	"github.com/mtlprog/chatboot/internal/inspector"
	"github.com/mtlprog/chatboot/internal/repository"
	"github.com/mtlprog/chatboot/internal/rocketchat"
	"github.com/mtlprog/chatboot/internal/service"
)

// Application holds the handles produced by Bootstrap.Run.
type Application struct {
	DB         *database.DB
	Inspector  *inspector.Inspector
	HTTPClient *httpclient.Client
}

// RocketChat returns a client factory bound to the shared HTTP client.
func (a *Application) RocketChat() rocketchat.Factory {
	return rocketchat.Factory{HTTP: a.HTTPClient.HTTP()}
}

// ServerService returns a ServerService over the application's handles.
func (a *Application) ServerService() *service.ServerService {
	return service.NewServerService(
		a.RocketChat(),
		repository.NewServerRepository(a.DB),
		config.RequiredServerVersion,
		config.RecommendedServerVersion,
	)
}

// LoginService returns a LoginService over the application's handles.
func (a *Application) LoginService() *service.LoginService {
	return service.NewLoginService(
		a.RocketChat(),
		repository.NewAccountRepository(a.DB),
		repository.NewTokenRepository(a.DB),
		repository.NewPreferenceRepository(a.DB),
	)
}

// Close stops the inspector and closes the database.
func (a *Application) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	err := a.Inspector.Shutdown(ctx)
	a.DB.Close()
	if err != nil {
		return fmt.Errorf("close application: %w", err)
	}
	return nil
}
