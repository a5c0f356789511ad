package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goliatone/go-flowise/catalog"
	"github.com/goliatone/go-flowise/client"
	"github.com/goliatone/go-flowise/config"
	"github.com/goliatone/go-flowise/cron"
	"github.com/goliatone/go-flowise/logging"
	"github.com/goliatone/go-flowise/rpc"
	"github.com/goliatone/go-flowise/tools"
)

var version = "dev"

const appName = "flowise-mcp"

// Globals are the flags shared by every command.
type Globals struct {
	Config    string `help:"Path to a YAML or JSON config file." env:"FLOWISE_CONFIG" type:"path"`
	Endpoint  string `help:"Flowise API endpoint, overrides the config file."`
	LogLevel  string `help:"Log level (trace, debug, info, warn, error)."`
	LogFormat string `help:"Log format (console or json)."`
}

// App holds the wired services a command runs against.
type App struct {
	ctx     context.Context
	cfg     config.Config
	logger  logging.Logger
	out     io.Writer
	in      io.Reader
	client  *client.Client
	catalog *catalog.Cache
	server  *rpc.Server
	cron    *cron.Scheduler
}

type appDeps struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	env    func(string) (string, bool)
}

func defaultDeps() appDeps {
	return appDeps{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		env:    os.LookupEnv,
	}
}

func newApp(ctx context.Context, g Globals, deps appDeps) (*App, error) {
	cfg, err := config.Read(g.Config, deps.env)
	if err != nil {
		return nil, err
	}
	if g.Endpoint != "" {
		cfg.Flowise.Endpoint = g.Endpoint
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// stdout carries protocol and command output, so logs go to stderr
	logOpts := cfg.LoggerOptions()
	logOpts.Writer = deps.errOut
	logger := logging.New(logOpts)

	app := &App{
		ctx:    ctx,
		cfg:    cfg,
		logger: logger,
		out:    deps.out,
		in:     deps.in,
	}

	serviceOpts := []tools.Option{tools.WithLogger(logging.With(logger, map[string]any{"component": "tools"}))}
	if cfg.HasRemote() {
		c, err := client.New(cfg.Flowise.Endpoint, cfg.ClientOptions(logging.With(logger, map[string]any{"component": "client"}))...)
		if err != nil {
			return nil, err
		}
		app.client = c
		app.catalog = catalog.New(c,
			catalog.WithTTL(cfg.Catalog.TTL),
			catalog.WithLogger(logging.With(logger, map[string]any{"component": "catalog"})),
		)
		serviceOpts = append(serviceOpts, tools.WithRemote(c), tools.WithCatalog(app.catalog))
	} else {
		logger.Debug("%s not set, remote tools are disabled", config.EnvEndpoint)
	}

	app.server = rpc.NewServer(
		rpc.WithLogger(logger),
		rpc.WithFailureMode(rpc.FailureModeRecover),
		rpc.WithMiddleware(rpc.LoggingMiddleware(logger)),
		rpc.WithServerInfo(appName, version),
	)
	if err := app.server.Register(tools.New(serviceOpts...)); err != nil {
		return nil, err
	}
	return app, nil
}

// startBackground launches the scheduled catalog refresh for long running
// commands.
func (a *App) startBackground() error {
	if a.catalog == nil || a.cfg.Catalog.Refresh == "" {
		return nil
	}
	a.cron = cron.NewScheduler(cron.WithLogger(a.logger))
	if _, err := a.catalog.ScheduleRefresh(a.cron, a.cfg.Catalog.Refresh); err != nil {
		return err
	}
	a.logger.Info("catalog refresh scheduled: %s", a.cfg.Catalog.Refresh)
	return a.cron.Start(a.ctx)
}

func (a *App) Close() {
	if a.cron == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.cron.Stop(ctx); err != nil {
		a.logger.Warn("scheduler stop: %v", err)
	}
}

// call invokes a tool and returns its result payload.
func (a *App) call(method string, params any) (any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	out, err := a.server.Call(a.ctx, method, raw, rpc.RequestMeta{Transport: "cli"})
	if err != nil {
		return nil, err
	}
	data, rpcErr := rpc.Unwrap(out)
	if rpcErr != nil {
		return nil, fmt.Errorf("%s: %s", rpcErr.Code, rpcErr.Message)
	}
	return data, nil
}

// print writes v as indented JSON.
func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
