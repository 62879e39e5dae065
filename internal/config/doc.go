// Package config loads the endpointls settings.
//
// Settings are merged from several layers, higher layers overriding lower:
//
//	┌──────────────────────────────────┐
//	│  5. Client settings              │  ← workspace/didChangeConfiguration
//	├──────────────────────────────────┤
//	│  4. Command line flags           │
//	├──────────────────────────────────┤
//	│  3. Environment variables        │  ← ENDPOINTLS_*
//	├──────────────────────────────────┤
//	│  2. Config file                  │  ← config.toml or config.yaml
//	├──────────────────────────────────┤
//	│  1. Built-in defaults            │
//	└──────────────────────────────────┘
//
// Maps merge key by key; lists and scalars replace the lower value.
//
// # Sub-packages
//
//   - loader: TOML, YAML and environment layers
//   - layer: merging and path helpers over nested maps
//   - watcher: change notification for the config file
//
// # Settings
//
//	log.level               critical, error, warning, notice, info or debug
//	log.file                log file; empty logs to stderr
//	catalog.paths           JSON catalog files or directories
//	catalog.scripts         Lua catalog scripts
//	catalog.exclude         component id globs to leave out
//	catalog.builtin         load the bundled catalog
//	completion.maxResults   cap on completion items; 0 means no cap
//	diagnostics.enabled     publish diagnostics
//	diagnostics.deprecated  warn about deprecated options
//
// Catalog settings are read once at startup. The others apply on reload.
//
// # Basic Usage
//
//	cfg, err := config.Load(config.Options{File: config.DefaultPath()})
//	if err != nil {
//	    return err
//	}
//	eng := engine.New(engine.WithMaxResults(cfg.Completion.MaxResults))
package config
