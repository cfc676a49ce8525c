// Package di provides dependency injection container
package di

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ssargent/lineartools/pkg/anvil"
	"github.com/ssargent/lineartools/pkg/config"
	"github.com/ssargent/lineartools/pkg/convert"
	"github.com/ssargent/lineartools/pkg/metrics"
	"github.com/ssargent/lineartools/pkg/storage"
)

// Container holds all the dependencies for the application
type Container struct {
	config  *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics

	journalOnce sync.Once
	journal     *storage.Journal
	journalErr  error
}

// NewContainer creates a new dependency injection container. The config
// must already be valid.
func NewContainer(cfg *config.Config, logOutput io.Writer) (*Container, error) {
	logger, err := NewLogger(cfg.Logging.Level, logOutput)
	if err != nil {
		return nil, err
	}
	return &Container{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewMetrics(),
	}, nil
}

// NewLogger builds a text logger at the given level.
func NewLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, &config.ConfigError{Field: "logging.level", Reason: err.Error()}
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger, nil
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the logger
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Metrics returns the metrics collectors
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// Journal opens the journal on first use. It returns nil when no journal
// directory is configured.
func (c *Container) Journal() (*storage.Journal, error) {
	c.journalOnce.Do(func() {
		if c.config.Journal.Dir == "" {
			return
		}
		c.journal, c.journalErr = storage.OpenJournal(c.config.Journal.Dir)
	})
	return c.journal, c.journalErr
}

// NewConverter builds a converter for target from the configuration.
func (c *Container) NewConverter(target convert.Format, output string) (*convert.Converter, error) {
	method, err := c.config.AnvilMethod()
	if err != nil {
		return nil, &config.ConfigError{Field: "anvil.compression", Reason: err.Error()}
	}

	anvilOpts := anvil.DefaultWriteOptions()
	anvilOpts.Compression = method
	anvilOpts.Level = c.config.Anvil.CompressionLevel
	anvilOpts.PreserveCompression = c.config.Anvil.PreserveCompression

	options := []convert.Option{
		convert.WithLogger(c.logger),
		convert.WithMetrics(c.metrics),
	}

	journal, err := c.Journal()
	if err != nil {
		return nil, err
	}
	if journal != nil {
		options = append(options, convert.WithJournal(journal))
	}

	return convert.New(convert.Options{
		Target:      target,
		Output:      output,
		Threads:     c.config.Threads,
		LinearLevel: c.config.Linear.CompressionLevel,
		Anvil:       anvilOpts,
	}, options...)
}

// Close flushes metrics to the configured textfile and closes the journal.
func (c *Container) Close() error {
	var firstErr error
	if c.config.Metrics.File != "" {
		if err := c.metrics.WriteFile(c.config.Metrics.File); err != nil {
			firstErr = err
		}
	}
	if c.journal != nil {
		if err := c.journal.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close journal: %w", err)
		}
	}
	return firstErr
}
