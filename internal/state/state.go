package state

import (
	"mafia-host-be/internal/config"
	"mafia-host-be/internal/service"
)

type AppState struct {
	Cfg          *config.AppConfig
	RelaySvc     *service.RelayService
	DirectorySvc *service.DirectoryService
}

func NewAppState(
	cfg *config.AppConfig,
	relaySvc *service.RelayService,
	directorySvc *service.DirectoryService,
) *AppState {
	return &AppState{
		Cfg:          cfg,
		RelaySvc:     relaySvc,
		DirectorySvc: directorySvc,
	}
}
