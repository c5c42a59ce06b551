package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/codefionn/geocopilot/internal/arcgis"
	"github.com/codefionn/geocopilot/internal/catalog"
	"github.com/codefionn/geocopilot/internal/cli"
	"github.com/codefionn/geocopilot/internal/config"
	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/llm"
	"github.com/codefionn/geocopilot/internal/logger"
	"github.com/codefionn/geocopilot/internal/orchestrator"
	"github.com/codefionn/geocopilot/internal/pyexec"
	"github.com/codefionn/geocopilot/internal/securemem"
	"github.com/codefionn/geocopilot/internal/web"
)

type options struct {
	prompt     string
	serve      bool
	check      bool
	saveConfig bool
	backend    string
	model      string
	configPath string
	envFile    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	flagSet := flag.NewFlagSet("geocopilot", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&opts.prompt, "prompt", "", "run a single turn and exit")
	flagSet.BoolVar(&opts.serve, "serve", false, "serve the web UI")
	flagSet.BoolVar(&opts.check, "check", false, "probe the model backend and exit")
	flagSet.BoolVar(&opts.saveConfig, "save-config", false, "write the effective configuration to -config and exit")
	flagSet.StringVar(&opts.backend, "backend", "", "model backend: ollama, openai, anthropic, google, rules")
	flagSet.StringVar(&opts.model, "model", "", "model name")
	flagSet.StringVar(&opts.configPath, "config", config.GetConfigPath(), "path to config.json")
	flagSet.StringVar(&opts.envFile, "env", ".env", "dotenv file loaded before the configuration")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	if opts.prompt == "" && flagSet.NArg() > 0 {
		opts.prompt = strings.Join(flagSet.Args(), " ")
	}
	modes := 0
	for _, set := range []bool{opts.prompt != "", opts.serve, opts.check, opts.saveConfig} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return nil, fmt.Errorf("-prompt, -serve, -check and -save-config are mutually exclusive")
	}
	return opts, nil
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", opts.envFile, err)
		}
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if opts.backend != "" {
		cfg.Model.Backend = strings.ToLower(opts.backend)
		cfg.ResolveAPIKey(os.LookupEnv)
	}
	if opts.model != "" {
		cfg.Model.Name = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run() (err error) {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	securemem.Init()
	defer securemem.Purge()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.saveConfig {
		return saveConfig(opts.configPath, cfg, os.Stderr)
	}

	if initErr := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); initErr != nil {
		return fmt.Errorf("failed to initialize logger: %w", initErr)
	}
	defer func() {
		if err != nil {
			logger.Error("Fatal error: %v", err)
		}
		if closeErr := logger.Global().Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", closeErr)
		}
	}()

	logger.Info("geocopilot starting: backend=%s model=%s portal=%s", cfg.Model.Backend, cfg.Model.Name, cfg.Portal.URL)
	if !pyexec.Available {
		logger.Warn("built without cgo: generated scripts cannot be executed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := llm.NewFromConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	portal := arcgis.NewClient(cfg.Portal.URL, arcgis.WithTimeout(cfg.PortalTimeout()))
	orch := orchestrator.New(
		client,
		pyexec.NewExecutor(portal, pyexec.WithMaxSteps(cfg.Executor.MaxSteps)),
		geomap.NewSynthesizer(catalog.Default(), portal),
	)

	switch {
	case opts.check:
		return runCheck(ctx, orch)
	case opts.serve:
		return runServe(ctx, orch, cfg)
	case opts.prompt != "":
		// Single turns match the interactive loop: no per-turn deadline.
		return cli.New(orch).Run(context.Background(), opts.prompt)
	default:
		return cli.New(orch).REPL(ctx)
	}
}

func saveConfig(path string, cfg *config.Config, stderr io.Writer) error {
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(stderr, "configuration written to %s\n", path)
	return nil
}

func runCheck(ctx context.Context, orch *orchestrator.Orchestrator) error {
	report := orch.HealthCheck(ctx)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	if !report.ModelOK {
		return fmt.Errorf("model backend %s is not reachable", report.Model)
	}
	return nil
}

func runServe(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config) error {
	srv := web.NewServer(orch, cfg.Server)
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "geocopilot listening on %s\n", srv.URL())

	<-ctx.Done()
	return srv.Stop()
}
