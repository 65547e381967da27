package main

import (
	"fmt"
	"log/slog"
	"os"

	builder "github.com/iss-exp/builder_go/pkg"
	"github.com/spf13/cobra"
)

var (
	logger        Logger
	configuration builder.Configuration
)

var (
	configFilename string
	maxEvents      int
	verbosity      int
)

func init() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	logger = Logger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "builder",
		Short: "Build physics events from a time-sorted hit store",
		Long: "Reads the time-sorted hit stream of one run, reconciles the module clocks,\n" +
			"groups hits into event windows and writes the correlated physics events\n" +
			"to the output event store.",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Flags().StringVarP(&configFilename, "config", "c", "", "Configuration file path")
	rootCmd.Flags().IntVar(&maxEvents, "max-events", 0, "Stop after building this many events")
	rootCmd.Flags().IntVarP(&verbosity, "verbosity", "v", -1, "Override the configured verbosity")

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	var err error
	configuration, err = builder.LoadConfiguration(configFilename)
	if err != nil {
		return fmt.Errorf("error reading configuration file: %w", err)
	}
	if maxEvents > 0 {
		configuration.MaxEvents = maxEvents
	}
	if verbosity >= 0 {
		configuration.Verbosity = verbosity
	}
	builder.SetConfiguration(configuration)
	builder.SetLogger(logger)

	if configuration.Verbosity > 0 {
		message := fmt.Sprintf("Reading configuration file: %s", configFilename)
		logger.Info(message, "main")
		printConfiguration(configuration)
	}

	var settings *builder.Settings
	if configuration.SettingsFile != "" {
		settings, err = builder.LoadSettings(configuration.SettingsFile)
		if err != nil {
			return fmt.Errorf("error reading settings file: %w", err)
		}
	} else {
		logger.Info("No settings file given, using the default wiring", "main")
		settings = builder.DefaultSettings()
	}

	// An unreachable calibration database is not fatal: the run proceeds
	// with passthrough energies and the failure is logged.
	var calibration builder.Calibrator
	if !configuration.NoDB {
		dbConn, err := builder.ConnectToDatabase(configuration.User, configuration.Passwd,
			configuration.Host, configuration.DBName)
		if err != nil {
			message := fmt.Sprintf("calibration database unavailable, using passthrough energies: %v", err)
			logger.Error(message)
		} else {
			defer dbConn.Close()
			calibration, err = builder.LoadCalibrationDB(dbConn, configuration.RunNumber)
			if err != nil {
				message := fmt.Sprintf("error loading calibration, using passthrough energies: %v", err)
				logger.Error(message)
				calibration = nil
			}
		}
	}

	hits, err := builder.OpenHitStore(configuration.FileIn)
	if err != nil {
		return fmt.Errorf("error opening hit store: %w", err)
	}
	defer hits.Close()

	writer, err := builder.NewEventWriter(configuration.FileOut)
	if err != nil {
		return fmt.Errorf("error opening event store: %w", err)
	}
	defer writer.Close()

	evtBuilder, err := builder.NewEventBuilder(configuration, settings, calibration, writer)
	if err != nil {
		return err
	}
	evtBuilder.SetProgressSink(progressLogger{})

	summary, err := evtBuilder.Run(hits)
	if err != nil {
		return err
	}
	if err := writer.WriteSummary(&summary); err != nil {
		return fmt.Errorf("error writing summary: %w", err)
	}

	message := fmt.Sprintf("Total events built: %d", summary.Counters.Events)
	logger.Info(message, "main")
	return nil
}

type progressLogger struct{}

func (progressLogger) Percent(p float64) {
	message := fmt.Sprintf("Progress: %.1f%%", p)
	logger.Info(message, "progress")
}

func printConfiguration(config builder.Configuration) {
	logger.Info(fmt.Sprintf("File in: %s", config.FileIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.FileOut), "config")
	logger.Info(fmt.Sprintf("Settings file: %s", config.SettingsFile), "config")
	logger.Info(fmt.Sprintf("Build window: %d ns", config.BuildWindow), "config")
	logger.Info(fmt.Sprintf("Array prompt window: [%d, %d] ns", config.ArrayPromptLow, config.ArrayPromptHigh), "config")
	logger.Info(fmt.Sprintf("Gamma prompt window: %d ns", config.GammaPrompt), "config")
	logger.Info(fmt.Sprintf("Keep p-only array events: %t", config.KeepArrayPOnly), "config")
	logger.Info(fmt.Sprintf("Array tie-break: %s", config.ArrayTieBreak), "config")
	logger.Info(fmt.Sprintf("Recoil partial policy: %s", config.RecoilPartial), "config")
	logger.Info(fmt.Sprintf("Dedup policy: %s", config.DedupPolicy), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s", config.Host), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
	logger.Info(fmt.Sprintf("Run number: %d", config.RunNumber), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
}
