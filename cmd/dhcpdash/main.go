package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"dhcpdash/internal/config"
	"dhcpdash/internal/logger"
	"dhcpdash/internal/metrics"
	"dhcpdash/internal/monitor"
	"dhcpdash/internal/tui"
	"dhcpdash/internal/web"
)

const (
	configFile = "dhcpdash.ini"
)

var (
	sha1ver   string
	buildTime string
	repoName  string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dhcpdash: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		headless   bool
		debug      bool
	)

	flagSet := pflag.NewFlagSet("dhcpdash", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", configFile, "path to the ini configuration file")
	flagSet.BoolVar(&headless, "headless", false, "serve view state over HTTP instead of the terminal UI")
	flagSet.BoolVar(&debug, "debug", false, "log at debug level")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.New(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flagSet.Changed("headless") {
		cfg.Headless = headless
	}

	// The terminal UI owns the screen, so logs go to a file or nowhere.
	output := cfg.LogFile
	if output == "" && !cfg.Headless {
		output = "discard"
	}
	closer, err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Debug:  debug,
		JSON:   cfg.LogJSON,
		Output: output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer closer.Close()

	log := logger.WithComponent("main")
	log.Info().
		Str("repo", repoName).
		Str("build", sha1ver).
		Str("time", buildTime).
		Str("config", cfg.Path).
		Msg("Starting dhcpdash")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.New()
	mon, err := monitor.New(cfg, recorder)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}
	defer mon.Stop()

	if cfg.Headless {
		err := web.NewServer(cfg, mon, recorder.Registry()).Start(ctx)
		log.Info().Msg("Shutting down...")
		return err
	}

	model := tui.New(mon.Devices(), mon.Pool(), mon.Reservations())
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !(errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil) {
		return fmt.Errorf("terminal UI: %w", err)
	}
	log.Info().Msg("Shutting down...")
	return nil
}
