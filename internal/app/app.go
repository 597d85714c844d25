package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"sqlplugin/internal/config"
	"sqlplugin/internal/secret"
	"sqlplugin/internal/service"
)

// App is the standalone host: it loads configuration, owns the host container
// and runs the lookup plugin.
type App struct {
	settings   Settings
	fs         afero.Fs
	logger     *log.Logger
	resolver   *secret.Resolver
	pluginOpts []service.Option

	container *HostContainer
	plugin    *service.Plugin
	watcher   *configWatcher
}

// Option configures an App.
type Option func(*App)

// WithResolver replaces the secret resolver used by the host container.
func WithResolver(r *secret.Resolver) Option {
	return func(a *App) { a.resolver = r }
}

// WithPluginOptions passes options through to the plugin.
func WithPluginOptions(opts ...service.Option) Option {
	return func(a *App) { a.pluginOpts = append(a.pluginOpts, opts...) }
}

// New creates an App. Nothing is loaded until Start.
func New(settings Settings, fs afero.Fs, logger *log.Logger, opts ...Option) *App {
	a := &App{settings: settings, fs: fs, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.resolver == nil {
		a.resolver = secret.NewResolver()
	}
	a.container = NewHostContainer(a.resolver, logger)
	return a
}

// LoadProperties merges defaults, the plugin's default file and any explicit files.
func (a *App) LoadProperties() (config.Properties, error) {
	return config.NewLoader(a.fs).Load(
		[]string{a.settings.DefaultConfigFile()},
		a.settings.ConfigFiles,
	)
}

// Start loads configuration and initialises the plugin through the host container.
func (a *App) Start(ctx context.Context) error {
	props, err := a.LoadProperties()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.logger.Debug("Loaded configuration", "keys", props.Len())

	opts := append([]service.Option{service.WithLogger(a.logger)}, a.pluginOpts...)
	a.plugin = service.NewPlugin(a.settings.PluginID, a.settings.Description, props, opts...)
	if err := a.plugin.SetContainer(ctx, a.container); err != nil {
		return fmt.Errorf("initialise plugin %s: %w", a.settings.PluginID, err)
	}
	return nil
}

// Watch reports configuration file changes on the plugin's health until ctx ends.
func (a *App) Watch(ctx context.Context) error {
	if a.plugin == nil {
		return fmt.Errorf("watch: plugin not started")
	}
	a.watcher = newConfigWatcher(a.plugin, a.logger)
	return a.watcher.Start(ctx, a.settings.WatchedFiles())
}

// Plugin returns the running plugin, or nil before Start.
func (a *App) Plugin() *service.Plugin { return a.plugin }

// Container returns the host container.
func (a *App) Container() *HostContainer { return a.container }

// Stop stops watching and shuts the plugin down.
func (a *App) Stop(ctx context.Context) error {
	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
	if a.plugin == nil {
		return nil
	}
	return a.plugin.Shutdown(ctx)
}
