package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docrender/internal/compiler"
	"github.com/dgallion1/docrender/internal/pipeline"
	"github.com/dgallion1/docrender/internal/source"
)

const watchDebounce = 200 * time.Millisecond

func (a *app) renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a document against a data context",
		Long: `Render a document. Markdown, text, CSV, DOCX and PDF inputs are converted
to markup first; "-" reads markup from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.render(cmd.Context(), args[0])
		},
	}
	f := cmd.Flags()
	f.String("data", "", "JSON file holding the data context")
	f.StringP("out", "o", "", "write output to this file instead of stdout")
	f.Bool("stream", false, "write each chunk as soon as it is rendered (same as --render-mode streaming)")
	f.Bool("stats", false, "print render stats as JSON on stderr")
	f.Bool("passthrough", false, "copy markup through without compiling it")
	f.Bool("watch", false, "render again whenever the input or data file changes")
	_ = a.v.BindPFlags(f)
	return cmd
}

func (a *app) render(ctx context.Context, path string) error {
	cfg, err := a.config()
	if err != nil {
		return err
	}

	var c pipeline.Compiler = compiler.NewTemplate(nil)
	if a.v.GetBool("passthrough") {
		c = compiler.Passthrough{}
	}
	renderer, closeCache, err := pipeline.Setup(ctx, cfg, c, a.log)
	if err != nil {
		return err
	}
	defer closeCache()

	dataPath := a.v.GetString("data")
	run := func() error { return a.renderOnce(ctx, renderer, path, dataPath) }
	if !a.v.GetBool("watch") {
		return run()
	}
	if path == "-" {
		return errors.New("--watch needs a file, not stdin")
	}
	paths := []string{path}
	if dataPath != "" {
		paths = append(paths, dataPath)
	}
	return watch(ctx, paths, watchDebounce, run, a.log)
}

func (a *app) renderOnce(ctx context.Context, renderer *pipeline.Renderer, path, dataPath string) error {
	doc, err := a.readDocument(path)
	if err != nil {
		return err
	}
	data, err := readData(dataPath)
	if err != nil {
		return err
	}
	req := pipeline.Request{Document: doc, Data: data}
	outPath := a.v.GetString("out")

	var (
		res       *pipeline.Result
		renderErr error
	)
	if a.v.GetBool("stream") || renderer.Options().Mode == pipeline.ModeStreaming {
		res, renderErr = a.stream(ctx, renderer, req, outPath)
	} else {
		res, renderErr = renderer.Render(ctx, req, nil)
		if renderErr == nil {
			renderErr = a.write(outPath, res.Output)
		}
	}

	if a.v.GetBool("stats") {
		var stats *pipeline.Stats
		var re *pipeline.RenderError
		switch {
		case res != nil:
			stats = &res.Stats
		case errors.As(renderErr, &re):
			stats = &re.Stats
		}
		if stats != nil {
			enc := json.NewEncoder(a.stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(stats)
		}
	}
	return renderErr
}

// stream writes deliveries to outPath (or stdout) as they arrive.
func (a *app) stream(ctx context.Context, renderer *pipeline.Renderer, req pipeline.Request, outPath string) (*pipeline.Result, error) {
	w := a.stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	opts := renderer.Options()
	opts.Mode = pipeline.ModeStreaming
	req.Options = &opts
	return renderer.Render(ctx, req, func(d pipeline.Delivery) error {
		if d.Failed {
			a.log.Warn("chunk failed, wrote placeholder", "chunk", d.Index)
		}
		_, err := io.WriteString(w, d.Output)
		return err
	})
}

func (a *app) write(outPath, output string) error {
	if outPath == "" {
		_, err := io.WriteString(a.stdout, output)
		return err
	}
	if err := atomic.WriteFile(outPath, strings.NewReader(output)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// readDocument imports path as markup; "-" reads markup from stdin.
func (a *app) readDocument(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	doc, err := source.Import(f, path)
	if err != nil {
		return "", fmt.Errorf("import %s: %w", path, err)
	}
	return doc, nil
}

func readData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return data, nil
}
