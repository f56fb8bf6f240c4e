// Package cli implements the tasklist command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vyrodovalexey/tasklist/internal/config"
	"github.com/vyrodovalexey/tasklist/internal/events"
	"github.com/vyrodovalexey/tasklist/internal/remote"
	"github.com/vyrodovalexey/tasklist/internal/tasklist"
)

// App holds the flags and the clients shared by every subcommand.
type App struct {
	ConfigPath string
	ServerURL  string
	ListID     string
	APIKey     string

	cfg    *config.ClientConfig
	logger *zap.Logger
	client *remote.Client
}

// NewRootCmd builds the tasklist command tree.
func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "tasklist",
		Short:        "Work with a to-do list stored on a tasklist server",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Open the interactive list
  tasklist tui --list groceries

  # Scriptable commands
  tasklist add --list groceries oat milk
  tasklist ls --list groceries
  tasklist mv <item-id> 1

  # Follow changes made by other clients
  tasklist watch
`),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if app.logger != nil {
				_ = app.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&app.ConfigPath, "config", config.DefaultClientConfigPath(), "Path to the TOML config file")
	flags.StringVar(&app.ServerURL, "server", "", "Server base URL (overrides "+config.EnvClientServerURL+")")
	flags.StringVarP(&app.ListID, "list", "l", "", "List instance id (overrides "+config.EnvClientListID+")")
	flags.StringVar(&app.APIKey, "api-key", "", "API key (overrides "+config.EnvClientAPIKey+")")

	cmd.AddCommand(newLsCmd(app))
	cmd.AddCommand(newAddCmd(app))
	cmd.AddCommand(newDoneCmd(app))
	cmd.AddCommand(newRenameCmd(app))
	cmd.AddCommand(newRmCmd(app))
	cmd.AddCommand(newMvCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newWatchCmd(app))

	return cmd
}

// setup resolves the configuration (file, then environment, then flags)
// and builds the logger and the server client.
func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadClient(a.ConfigPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = a.ServerURL
	}
	if flags.Changed("list") {
		cfg.ListID = a.ListID
	}
	if flags.Changed("api-key") {
		cfg.APIKey = a.APIKey
		cfg.Username, cfg.Password = "", ""
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.LogLevel, cmd.ErrOrStderr())

	opts := []remote.Option{
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		remote.WithLogger(a.logger.Named("remote")),
	}
	switch {
	case cfg.APIKey != "":
		opts = append(opts, remote.WithAPIKey(cfg.APIKey))
	case cfg.Username != "":
		opts = append(opts, remote.WithBasicAuth(cfg.Username, cfg.Password))
	}

	a.client, err = remote.New(cfg.ServerURL, opts...)
	return err
}

// newLogger builds a console logger writing to w.
func newLogger(level string, w io.Writer) *zap.Logger {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.WarnLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zapLevel,
	)
	return zap.New(core)
}

// engine returns an engine for the configured list. Local domain events are
// logged at debug level.
func (a *App) engine() *tasklist.Engine {
	bus := events.NewBus(a.logger)
	bus.Subscribe(func(e events.Event) {
		a.logger.Debug("domain event",
			zap.String("type", string(e.Type)),
			zap.String("item_id", e.ItemID),
			zap.String("name", e.Name),
		)
	})

	return tasklist.NewEngine(a.cfg.ListID, a.client,
		tasklist.WithLogger(a.logger.Named("engine")),
		tasklist.WithPublisher(bus),
	)
}

// loadedEngine returns an engine already holding the server's list.
func (a *App) loadedEngine(ctx context.Context) (*tasklist.Engine, error) {
	e := a.engine()
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// requireItem fails when id is not on the loaded list. The engine ignores
// toggles and deletes of unknown ids, which would hide typos on the command
// line.
func requireItem(e *tasklist.Engine, id string) error {
	if e.IndexOf(id) < 0 {
		return &tasklist.Error{Kind: tasklist.ErrNotFound, Op: "lookup", ItemID: id}
	}
	return nil
}
