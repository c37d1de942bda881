package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docrender/internal/analyzer"
	"github.com/dgallion1/docrender/internal/chunker"
	"github.com/dgallion1/docrender/internal/pipeline"
)

type chunkInfo struct {
	Index    int              `json:"index"`
	Size     int              `json:"size"`
	Offset   int              `json:"offset"`
	Strategy chunker.Strategy `json:"strategy"`
	Priority analyzer.Tier    `json:"priority"`
	File     string           `json:"file,omitempty"`
}

func (a *app) splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Show how a document would be chunked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, chunks, err := a.plan(args[0])
			if err != nil {
				return err
			}
			dir := a.v.GetString("write-dir")
			if dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			out := make([]chunkInfo, len(chunks))
			for i, c := range chunks {
				out[i] = chunkInfo{Index: c.Index, Size: c.Size, Offset: c.Offset, Strategy: c.Strategy, Priority: c.Priority}
				if dir == "" {
					continue
				}
				name := filepath.Join(dir, fmt.Sprintf("chunk-%03d.html", c.Index))
				if err := atomic.WriteFile(name, strings.NewReader(c.Markup)); err != nil {
					return fmt.Errorf("write chunk %d: %w", c.Index, err)
				}
				out[i].File = name
			}
			return a.printJSON(out)
		},
	}
	cmd.Flags().String("write-dir", "", "also write each chunk's standalone markup into this directory")
	_ = a.v.BindPFlags(cmd.Flags())
	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <file>",
		Short: "Print a document's priority map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, _, err := a.plan(args[0])
			if err != nil {
				return err
			}
			if pm.Rules == nil {
				pm.Rules = []analyzer.Rule{}
			}
			return a.printJSON(pm)
		},
	}
}

// plan analyzes and splits a document with the configured options.
func (a *app) plan(path string) (analyzer.PriorityMap, []chunker.Chunk, error) {
	cfg, err := a.config()
	if err != nil {
		return analyzer.PriorityMap{}, nil, err
	}
	doc, err := a.readDocument(path)
	if err != nil {
		return analyzer.PriorityMap{}, nil, err
	}
	r := pipeline.NewRenderer(nil, nil, pipeline.OptionsFromConfig(cfg), a.log)
	pm, chunks := r.Plan(doc, nil)
	return pm, chunks, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
