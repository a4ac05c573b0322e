package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtlprog/chatboot/internal/domain"
	"github.com/mtlprog/chatboot/internal/repository"
	"github.com/mtlprog/chatboot/internal/rocketchat"
)

// ServerService checks servers against the supported version range.
type ServerService struct {
	factory     rocketchat.Factory
	servers     *repository.ServerRepository
	validator   *Validator
	required    domain.Version
	recommended domain.Version
	now         func() time.Time
}

// NewServerService creates a new ServerService.
func NewServerService(
	factory rocketchat.Factory,
	servers *repository.ServerRepository,
	required, recommended string,
) *ServerService {
	return &ServerService{
		factory:     factory,
		servers:     servers,
		validator:   NewValidator(),
		required:    domain.ParseVersion(required),
		recommended: domain.ParseVersion(recommended),
		now:         time.Now,
	}
}

// Check fetches the server's version, classifies it and remembers the server.
func (s *ServerService) Check(ctx context.Context, serverURL string) (*domain.ServerCheck, error) {
	if err := s.validator.ValidateServer(serverURL); err != nil {
		return nil, err
	}

	client, err := s.factory.Create(serverURL)
	if err != nil {
		return nil, err
	}

	info, err := client.ServerInfo(ctx)
	if err != nil {
		return nil, err
	}

	var previous string
	switch prev, err := s.servers.GetByURL(ctx, info.URL); {
	case err == nil:
		previous = prev.Version
	case !errors.Is(err, domain.ErrServerNotFound):
		return nil, err
	}

	server := domain.Server{
		URL:       info.URL,
		Version:   info.Version.Full,
		CheckedAt: s.now().UTC(),
	}
	if previous != "" && previous != server.Version {
		slog.Info("server version changed", "server", server.URL, "previous", previous, "version", server.Version)
	}
	if err := s.servers.Save(ctx, server); err != nil {
		return nil, fmt.Errorf("save server: %w", err)
	}

	status := domain.ClassifyVersion(info.Version, s.required, s.recommended)
	switch status {
	case domain.VersionUnsupported:
		slog.Warn("server version is not supported, please upgrade the server",
			"server", server.URL, "version", server.Version, "required", s.required.Full)
	case domain.VersionOutdated:
		slog.Warn("server version is older than recommended",
			"server", server.URL, "version", server.Version, "recommended", s.recommended.Full)
	default:
		slog.Info("server version is supported", "server", server.URL, "version", server.Version)
	}

	return &domain.ServerCheck{
		Server:          server,
		PreviousVersion: previous,
		Status:          status,
		Required:        s.required,
		Recommended:     s.recommended,
	}, nil
}

// Servers lists every server that has been checked.
func (s *ServerService) Servers(ctx context.Context) ([]domain.Server, error) {
	return s.servers.List(ctx)
}
