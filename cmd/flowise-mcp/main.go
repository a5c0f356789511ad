package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-flowise/cli"
)

type rootCLI struct {
	Globals

	Version kong.VersionFlag `help:"Print the version and exit."`
}

func newParser(root *rootCLI, stdout, stderr io.Writer, exit func(int)) (*kong.Kong, error) {
	registry := cli.NewRegistry()
	for _, cmd := range commands() {
		if err := registry.RegisterCommand(cmd); err != nil {
			return nil, err
		}
	}
	if err := registry.Initialize(); err != nil {
		return nil, err
	}
	opts, err := registry.Options()
	if err != nil {
		return nil, err
	}

	opts = append(opts,
		kong.Name(appName),
		kong.Description("Build, validate and deploy Flowise workflows, and serve them as JSON-RPC tools."),
		kong.Vars{"version": version},
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
		kong.UsageOnError(),
	)
	return kong.New(root, opts...)
}

func run(ctx context.Context, args []string, deps appDeps, exit func(int)) error {
	var root rootCLI
	parser, err := newParser(&root, deps.out, deps.errOut, exit)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	app, err := newApp(ctx, root.Globals, deps)
	if err != nil {
		return err
	}
	defer app.Close()

	return kctx.Run(app)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], defaultDeps(), os.Exit); err != nil {
		stop()
		os.Stderr.WriteString(appName + ": " + err.Error() + "\n")
		os.Exit(1)
	}
}
