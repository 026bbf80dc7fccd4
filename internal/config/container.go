package config

import (
	"tcees-validator/internal/domain"
	"tcees-validator/internal/infra/browser"
	"tcees-validator/internal/service"
	"tcees-validator/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config    domain.Config
	Logger    domain.Logger
	Driver    domain.PortalDriver
	Preflight domain.Preflighter
	Validator domain.Validator
}

// NewContainer creates a new dependency injection container from the environment
func NewContainer() *Container {
	return NewContainerWithConfig(NewConfig())
}

// NewContainerWithConfig wires the container around an existing configuration
func NewContainerWithConfig(config domain.Config) *Container {
	appLogger := logger.NewLogger(config.GetLogLevel())

	// One browser process shared by every validation
	driver := browser.NewDriver(browser.Options{
		DisableProxy: config.IsChromeProxyDisabled(),
	}, appLogger)

	preflight := service.NewPDFPreflight(appLogger)
	validator := service.NewValidatorService(driver, preflight, config, appLogger)

	return &Container{
		Config:    config,
		Logger:    appLogger,
		Driver:    driver,
		Preflight: preflight,
		Validator: validator,
	}
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// GetValidator returns the validator instance
func (c *Container) GetValidator() domain.Validator {
	return c.Validator
}

// Close shuts down the browser and flushes the logger
func (c *Container) Close() error {
	var err error
	if c.Driver != nil {
		err = c.Driver.Close()
	}
	if s, ok := c.Logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return err
}
