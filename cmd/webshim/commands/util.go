package commands

import (
	"fmt"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/pkg/applet"
	"github.com/marmos91/webshim/pkg/config"
	"github.com/marmos91/webshim/pkg/content"
	"github.com/marmos91/webshim/pkg/content/patch"
	"github.com/marmos91/webshim/pkg/content/registered"
	"github.com/marmos91/webshim/pkg/metrics"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// runtimeEnv bundles the stores, resolver and host a command needs to run
// invocations or resolve documents.
type runtimeEnv struct {
	system   *registered.Store
	contents *registered.Store
	resolver *applet.Resolver
	host     *applet.Host
	title    content.TitleID
}

// openRuntime opens the content stores and wires the offline resolver and
// applet host from configuration. Call Close when done.
func openRuntime(cfg *config.Config) (*runtimeEnv, error) {
	title, err := cfg.Runtime.ParseTitleID()
	if err != nil {
		return nil, err
	}

	system, err := registered.Open(cfg.Content.SystemStoreDir)
	if err != nil {
		return nil, fmt.Errorf("opening system store: %w", err)
	}

	contents, err := registered.Open(cfg.Content.ContentStoreDir)
	if err != nil {
		_ = system.Close()
		return nil, fmt.Errorf("opening content store: %w", err)
	}

	var patches content.PatchManager
	if cfg.Content.PatchDir != "" {
		patches = patch.NewManager(cfg.Content.PatchDir)
	}

	appletMetrics := metrics.NewAppletMetrics()
	resolver := applet.NewResolver(cfg.Cache.Root, system, contents, patches, appletMetrics)
	host := applet.NewHost(nil, resolver, applet.StaticProcess(title), appletMetrics)

	return &runtimeEnv{
		system:   system,
		contents: contents,
		resolver: resolver,
		host:     host,
		title:    title,
	}, nil
}

// Close releases the content stores.
func (e *runtimeEnv) Close() {
	if err := e.contents.Close(); err != nil {
		logger.Error("content store close error", logger.Err(err))
	}
	if err := e.system.Close(); err != nil {
		logger.Error("system store close error", logger.Err(err))
	}
}
