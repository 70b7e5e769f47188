package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"clinicsched/internal/config"
	"clinicsched/internal/gcal"
	"clinicsched/internal/ics"
	appLog "clinicsched/internal/log"
	"clinicsched/internal/scheduler"
)

const defaultConfigPath = "/etc/clinicsched/config.yaml"

type App struct {
	Config     *config.Config
	ConfigPath string
	Location   *time.Location
}

// Now returns the current time in the app's configured location.
func (a *App) Now() time.Time {
	return time.Now().In(a.Location)
}

// Pipeline wires the fetcher and, when enabled, the Google syncer.
func (a *App) Pipeline(ctx context.Context) (*scheduler.Pipeline, error) {
	var syncer *gcal.Syncer
	if a.Config.Google.Enabled {
		var err error
		syncer, err = a.Syncer(ctx)
		if err != nil {
			return nil, err
		}
	}
	return scheduler.NewPipeline(a.Config, ics.NewFetcher(a.Config.CacheDir), syncer), nil
}

// Syncer builds an authorized Google Calendar syncer.
func (a *App) Syncer(ctx context.Context) (*gcal.Syncer, error) {
	g := a.Config.Google
	httpClient, err := gcal.HTTPClient(ctx, g.CredentialsPath, g.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("google auth failed: %w", err)
	}
	client, err := gcal.New(ctx, httpClient)
	if err != nil {
		return nil, err
	}
	return gcal.NewSyncer(client, g.CalendarID, a.Location.String()), nil
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clinicsched",
		Short:         "Recurring appointment expansion, agenda and calendar sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is fine.
			_ = godotenv.Load()
		},
	}
	cmd.PersistentFlags().String("config", "", "Path to config file (defaults to $CLINICSCHED_CONFIG or "+defaultConfigPath+")")
	cmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExpandCmd())
	cmd.AddCommand(newAgendaCmd())
	cmd.AddCommand(newRuleCmd())
	cmd.AddCommand(newDescribeCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newSnapshotCmd())

	return cmd
}

func initApp(cmd *cobra.Command) (*App, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath = os.Getenv("CLINICSCHED_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	level := cfg.LogLevel
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		level = v
	}
	appLog.SetLevel(appLog.ParseLevel(level))
	appLog.SetOutput(cmd.ErrOrStderr())

	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}

	return &App{Config: cfg, ConfigPath: cfgPath, Location: loc}, nil
}
