package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgallion1/docrender/internal/config"
)

// app holds state shared by every subcommand.
type app struct {
	v      *viper.Viper
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "docrender",
		Short: "Render large markup documents progressively",
		Long: `docrender splits markup documents into structure-aware chunks, renders
each chunk against a data context and writes the result in order.

Settings come from, highest first: flags, DOCRENDER_<FLAG> environment
variables, a --config file (yaml, json or toml with flag names as keys),
then the service environment (TARGET_CHUNK_BYTES, CACHE_BACKEND, ...) and .env.

Examples:
  docrender render page.html --data data.json -o out.html
  docrender render notes.md --stream --target-chunk-bytes 65536
  docrender render page.html --data data.json --watch
  docrender split page.html --write-dir chunks/
  docrender analyze page.html --critical "#hero"`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.Int("target-chunk-bytes", 0, "target chunk size in bytes")
	pf.Int("small-document-threshold", 0, "documents below this size render without chunking (default: target chunk size)")
	pf.StringSlice("critical", nil, "selectors to treat as critical (tag, #id or .class)")
	pf.Bool("annotate", false, "mark chunk boundaries with comments")
	pf.Int("concurrency", 0, "render this many independent chunks at once")
	pf.Bool("cache", true, "cache rendered output")
	pf.String("cache-backend", "", "cache backend (memory or sqlite)")
	pf.String("cache-path", "", "sqlite cache file")
	pf.String("temp-dir", "", "parent directory for disk staging")
	pf.Duration("render-timeout", 0, "overall render timeout")
	pf.String("render-mode", "", "full writes the output once it is complete; streaming writes each chunk as it is rendered")
	_ = a.v.BindPFlags(pf)

	root.AddCommand(a.renderCmd(), a.splitCmd(), a.analyzeCmd())
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()
	a.stdin = cmd.InOrStdin()

	v := a.v
	v.SetEnvPrefix("DOCRENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	a.log = slog.New(slog.NewJSONHandler(a.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

// config loads the service configuration and applies whatever the flags,
// DOCRENDER_ variables or config file set.
func (a *app) config() (config.Config, error) {
	cfg := config.Load()
	v := a.v
	if v.IsSet("target-chunk-bytes") {
		cfg.TargetChunkBytes = v.GetInt("target-chunk-bytes")
	}
	if v.IsSet("small-document-threshold") {
		cfg.SmallDocumentThreshold = v.GetInt("small-document-threshold")
	}
	if v.IsSet("critical") {
		cfg.CriticalSelectors = v.GetStringSlice("critical")
	}
	if v.IsSet("annotate") {
		cfg.AnnotateBoundaries = v.GetBool("annotate")
	}
	if v.IsSet("concurrency") {
		cfg.RenderConcurrency = v.GetInt("concurrency")
		cfg.IndependentChunks = cfg.RenderConcurrency > 1
	}
	if v.IsSet("cache") {
		cfg.CacheEnabled = v.GetBool("cache")
	}
	if v.IsSet("cache-backend") {
		cfg.CacheBackend = v.GetString("cache-backend")
	}
	if v.IsSet("cache-path") {
		cfg.CachePath = v.GetString("cache-path")
	}
	if v.IsSet("temp-dir") {
		cfg.TempDir = v.GetString("temp-dir")
	}
	if v.IsSet("render-timeout") {
		cfg.RenderTimeout = v.GetDuration("render-timeout")
	}
	if v.IsSet("render-mode") {
		cfg.RenderMode = v.GetString("render-mode")
	}
	if err := cfg.ValidateRender(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
