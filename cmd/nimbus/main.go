// Command nimbus is the terminal weather dashboard.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/nimbus/internal/client"
	"github.com/kjstillabower/nimbus/internal/config"
	"github.com/kjstillabower/nimbus/internal/dashboard"
	"github.com/kjstillabower/nimbus/internal/models"
	"github.com/kjstillabower/nimbus/internal/observability"
	"github.com/kjstillabower/nimbus/internal/tui"
	"github.com/kjstillabower/nimbus/internal/validation"
	"github.com/kjstillabower/nimbus/internal/view"
)

// logFileEnv names the file the CLI logs to. The dashboard owns the terminal, so logging is off
// unless it is set.
const logFileEnv = "NIMBUS_LOG_FILE"

type options struct {
	configDir string
	unit      string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "nimbus [location]",
		Short: "Nimbus weather dashboard",
		Long: `Nimbus shows current conditions and a 5-day forecast from WeatherAPI.com.

Run without arguments to open the interactive dashboard on the configured default location.
The API key is read from WEATHER_API_KEY or config/secrets.yaml.`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, opts, strings.Join(args, " "))
		},
	}
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "project root holding config/{ENV_NAME}.yaml")
	root.PersistentFlags().StringVarP(&opts.unit, "unit", "u", "", "temperature unit: celsius or fahrenheit (default from config)")

	root.AddCommand(&cobra.Command{
		Use:   "forecast <location>",
		Short: "Print current weather and the forecast once, then exit",
		Example: `  nimbus forecast London
  nimbus forecast "New York" --unit fahrenheit`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd, opts, strings.Join(args, " "))
		},
	})
	return root
}

// setup loads configuration and builds a dashboard seeded with location (or the configured
// default) and the resolved unit.
func setup(opts *options, location string, logger *zap.Logger) (*config.Config, *dashboard.Dashboard, error) {
	cfg, err := config.LoadFrom(opts.configDir)
	if err != nil {
		return nil, nil, err
	}

	unit := cfg.DefaultUnit
	if opts.unit != "" {
		if unit, err = models.ParseUnit(opts.unit); err != nil {
			return nil, nil, err
		}
	}

	if strings.TrimSpace(location) == "" {
		location = cfg.DefaultLocation
	}
	loc, err := validation.ValidateLocation(location, cfg.LocationMinLength, cfg.LocationMaxLength)
	if err != nil {
		return nil, nil, fmt.Errorf("location %q: %w", location, err)
	}

	weatherClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		return nil, nil, err
	}
	dash := dashboard.New(weatherClient,
		dashboard.InitialState{Location: loc, Unit: unit},
		dashboard.WithLogger(logger),
		dashboard.WithForecastDays(cfg.ForecastDays),
	)
	return cfg, dash, nil
}

func newLogger() (*zap.Logger, error) {
	logger, err := observability.NewFileLogger(os.Getenv(logFileEnv))
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return logger, nil
}

func runDashboard(cmd *cobra.Command, opts *options, location string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, dash, err := setup(opts, location, logger)
	if err != nil {
		return err
	}

	model := tui.New(cmd.Context(), dash, tui.Options{
		SearchTimeout:     cfg.RequestTimeout,
		LocationMinLength: cfg.LocationMinLength,
		LocationMaxLength: cfg.LocationMaxLength,
	})
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		logger.Error("dashboard exited", zap.Error(err))
		return err
	}
	return nil
}

func runForecast(cmd *cobra.Command, opts *options, location string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, dash, err := setup(opts, location, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()
	fetchErr := dash.Mount(ctx)

	printPage(cmd.OutOrStdout(), dash.State(), time.Now())
	if fetchErr != nil {
		return fmt.Errorf("fetch %s: %w", dash.State().Location, fetchErr)
	}
	return nil
}

func printPage(w io.Writer, s dashboard.State, now time.Time) {
	page := view.NewPage(s, view.SearchBar{}, now)
	fmt.Fprintln(w, tui.RenderPage(page, tui.DefaultStyles(), "", ""))
}
