package main

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scriptorium/internal/config"
	"scriptorium/internal/logging"
	"scriptorium/internal/notifications"
	"scriptorium/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	store    *queue.Store
	notifier notifications.Service
	logger   *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// openStore lazily opens the queue database. The store stays open until the
// command finishes.
func (c *commandContext) openStore() (*queue.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	store, err := c.openStore()
	if err != nil {
		return err
	}
	return fn(store)
}

func (c *commandContext) cliLogger() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	logger, err := logging.NewFromConfig(c.config)
	if err != nil {
		logger = logging.NewNop()
	}
	c.logger = logger
	return logger
}

// notifications returns the configured notifier, degrading to a no-op when
// the backends cannot be reached.
func (c *commandContext) notifications() notifications.Service {
	if c.notifier != nil {
		return c.notifier
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		c.notifier = notifications.NewNoop()
		return c.notifier
	}
	notifier, err := notifications.NewService(cfg)
	if err != nil {
		c.cliLogger().Warn("notifications disabled", logging.Error(err))
		notifier = notifications.NewNoop()
	}
	c.notifier = notifier
	return notifier
}

func (c *commandContext) close() error {
	var errs []error
	if c.notifier != nil {
		errs = append(errs, c.notifier.Close())
		c.notifier = nil
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	return errors.Join(errs...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
