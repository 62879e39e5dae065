// Package main is the entry point for the endpointls language server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"github.com/dshills/endpointls/internal/catalog"
	"github.com/dshills/endpointls/internal/config"
	"github.com/dshills/endpointls/internal/config/watcher"
	"github.com/dshills/endpointls/internal/engine"
	"github.com/dshills/endpointls/internal/lsp"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type options struct {
	configPath  string
	logLevel    string
	logFile     string
	catalogPath string
	dumpCatalog bool
	checkFile   string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(config.Options{File: opts.configPath, Overrides: opts.overrides()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}
	configureLogging(cfg.Log)
	log := commonlog.GetLogger("endpointls")

	provider := catalog.NewProvider(catalogLoader(cfg.Catalog))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case opts.dumpCatalog:
		return dumpCatalog(ctx, provider)
	case opts.checkFile != "":
		return checkFile(ctx, provider, newEngine(cfg), opts.checkFile)
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "endpointls speaks the Language Server Protocol on stdin and stdout; start it from an editor.")
	}

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	var srv *lsp.Server
	apply := func(next *config.Config) {
		prev := current.Swap(next)
		if changed := prev.Diff(next); len(changed) > 0 {
			log.Info("configuration changed", "paths", changed)
		}
		srv.SetEngine(newEngine(next))
		srv.SetDiagnosticsEnabled(next.Diagnostics.Enabled)
	}

	srv = lsp.NewServer(lsp.Options{
		Name:               "endpointls",
		Version:            version,
		Catalog:            provider,
		Engine:             newEngine(cfg),
		DisableDiagnostics: !cfg.Diagnostics.Enabled,
		OnConfiguration: func(settings map[string]any) {
			next, err := current.Load().With(settings)
			if err != nil {
				log.Warning("ignoring client settings", "error", err)
				return
			}
			apply(next)
		},
	})

	if cfg.File != "" {
		w, err := watchConfig(cfg.File, func() {
			next, err := current.Load().Reload()
			if err != nil {
				log.Warning("config reload failed", "file", cfg.File, "error", err)
				return
			}
			apply(next)
		})
		if err != nil {
			log.Warning("not watching config file", "file", cfg.File, "error", err)
		} else {
			defer w.Stop()
		}
	}

	log.Info("serving", "version", version)
	if err := srv.Serve(ctx, os.Stdin, os.Stdout, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !srv.ShutdownRequested() {
		// The client exited without a shutdown request.
		return 1
	}
	return 0
}

func parseFlags() options {
	var opts options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file (TOML or YAML)")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (critical, error, warning, notice, info, debug)")
	flag.StringVar(&opts.logFile, "log-file", "", "Write logs to this file instead of stderr")
	flag.StringVar(&opts.catalogPath, "catalog", "", "Catalog JSON files or directories, separated by the OS path list separator")
	flag.BoolVar(&opts.dumpCatalog, "dump-catalog", false, "Print the loaded catalog as JSON and exit")
	flag.StringVar(&opts.checkFile, "check", "", "Print diagnostics for a route file and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "endpointls - language server for endpoint URIs\n\n")
		fmt.Fprintf(os.Stderr, "Usage: endpointls [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  endpointls                         Serve over stdio\n")
		fmt.Fprintf(os.Stderr, "  endpointls -catalog ./camel        Add catalog files from a directory\n")
		fmt.Fprintf(os.Stderr, "  endpointls -check routes.xml       Report problems in a file\n")
		fmt.Fprintf(os.Stderr, "  endpointls -dump-catalog           Print the merged catalog\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("endpointls %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.configPath == "" {
		if _, err := os.Stat(config.DefaultPath()); err == nil {
			opts.configPath = config.DefaultPath()
		}
	}
	return opts
}

// overrides returns the flag layer of the configuration.
func (o options) overrides() map[string]any {
	out := make(map[string]any)
	logSettings := make(map[string]any)
	if o.logLevel != "" {
		logSettings["level"] = o.logLevel
	}
	if o.logFile != "" {
		logSettings["file"] = o.logFile
	}
	if len(logSettings) > 0 {
		out["log"] = logSettings
	}
	if o.catalogPath != "" {
		out["catalog"] = map[string]any{"paths": o.catalogPath}
	}
	return out
}

func configureLogging(c config.LogConfig) {
	var path *string
	if c.File != "" {
		path = &c.File
	}
	commonlog.Configure(c.Verbosity(), path)
}

func newEngine(c *config.Config) *engine.Engine {
	return engine.New(
		engine.WithMaxResults(c.Completion.MaxResults),
		engine.WithDeprecatedWarnings(c.Diagnostics.Deprecated),
	)
}

// catalogLoader loads the builtin catalog, then catalog files, then Lua
// scripts. Later sources override earlier components with the same id.
func catalogLoader(c config.CatalogConfig) catalog.LoadFunc {
	return func(ctx context.Context) (catalog.Lookup, error) {
		var sources []catalog.Source
		if c.Builtin {
			sources = append(sources, catalog.Builtin())
		}
		for _, p := range c.Paths {
			sources = append(sources, catalog.NewPathSource(p))
		}
		for _, p := range c.Scripts {
			src, err := catalog.NewLuaFileSource(p)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
		l, err := catalog.LoadAll(ctx, catalog.Filter{Exclude: c.Exclude}, sources...)
		if err != nil {
			return nil, err
		}
		commonlog.GetLogger("endpointls.catalog").Info("catalog loaded", "components", len(l.ComponentIDs()))
		return l, nil
	}
}

func watchConfig(path string, reload func()) (*watcher.Watcher, error) {
	w := watcher.New(watcher.WithErrorHandler(func(err error) {
		commonlog.GetLogger("endpointls.config").Warning("config watch error", "error", err)
	}))
	w.OnChange(func(e watcher.Event) {
		if e.Op == watcher.OpRemove || e.Op == watcher.OpRename {
			return
		}
		reload()
	})
	if err := w.Start(); err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}
