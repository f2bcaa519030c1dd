package ports

import "go.trai.ch/anvil/internal/core/domain"

// ConfigLoader defines the interface for loading engine settings and action plans.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// LoadSettings reads the settings file at path. A missing file yields the defaults.
	LoadSettings(path string) (domain.Settings, error)
	// LoadPlan reads the action plan at path.
	LoadPlan(path string) ([]domain.ActionSpec, error)
}
