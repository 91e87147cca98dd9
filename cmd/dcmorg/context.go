package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"dcmorg/internal/config"
	"dcmorg/internal/logging"
	"dcmorg/internal/progress"
	"dcmorg/internal/services"
)

type globalFlags struct {
	config    string
	logLevel  string
	logFormat string
}

type commandContext struct {
	flags *globalFlags

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(c.flags.config)
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if level := strings.TrimSpace(c.flags.logLevel); level != "" {
			cfg.Logging.Level = level
		}
		if format := strings.TrimSpace(c.flags.logFormat); format != "" {
			cfg.Logging.Format = format
		}
		if err := reconcile(cfg); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// reconcile re-runs normalization and validation after overrides.
func reconcile(cfg *config.Config) error {
	if err := cfg.Normalize(); err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "normalize", "", err)
	}
	if err := cfg.Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
	}
	return nil
}

// session bundles what one stage command needs: a run-scoped context and a
// logger writing to stderr plus the log file.
type session struct {
	ctx          context.Context
	cfg          *config.Config
	logger       *slog.Logger
	consoleLevel *slog.LevelVar
	close        func()
}

// progressReporter returns the reporter for a stage. When the bar is drawn on
// w, console logging drops to warnings until release is called so log lines
// do not tear the bar; the log file keeps every record.
func (s *session) progressReporter(w io.Writer) (reporter progress.Reporter, release func()) {
	reporter = progress.New(w, s.logger)
	if _, ok := reporter.(*progress.Terminal); !ok {
		return reporter, func() {}
	}
	return reporter, s.quietConsole()
}

// quietConsole raises the console level to warn and returns the restore func.
func (s *session) quietConsole() func() {
	if s.consoleLevel == nil {
		return func() {}
	}
	prev := s.consoleLevel.Level()
	s.consoleLevel.Set(max(prev, slog.LevelWarn))
	return func() { s.consoleLevel.Set(prev) }
}

func (c *commandContext) newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var (
		logFile io.Writer
		closers []func()
	)
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrFilesystem, "logging", "create log directory", dir, err)
		}
		path := filepath.Join(dir, logging.LogFileName)
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, services.Wrap(services.ErrFilesystem, "logging", "open log file", path, err)
		}
		logFile = file
		closers = append(closers, func() { _ = file.Close() })
	}
	logger, consoleLevel, err := logging.NewSplit(cmd.ErrOrStderr(), logFile, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		for _, fn := range closers {
			fn()
		}
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithRunID(ctx, uuid.NewString())
	logging.WithContext(ctx, logger).Debug("run started",
		logging.String("command", cmd.CommandPath()),
		logging.String("config", c.configPath),
		logging.Bool("config_exists", c.configExists),
	)

	return &session{
		ctx:          ctx,
		cfg:          cfg,
		logger:       logger,
		consoleLevel: consoleLevel,
		close: func() {
			for _, fn := range closers {
				fn()
			}
		},
	}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// applyPath overrides a config path when the flag was set explicitly.
func applyPath(cmd *cobra.Command, flag string, target *string) {
	if !cmd.Flags().Changed(flag) {
		return
	}
	value, _ := cmd.Flags().GetString(flag)
	*target = strings.TrimSpace(value)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
