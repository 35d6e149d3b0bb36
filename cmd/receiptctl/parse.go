package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/PocketPalCo/receipts-service/internal/app"
	"github.com/PocketPalCo/receipts-service/internal/core/pipeline"
	"github.com/PocketPalCo/receipts-service/internal/core/receipts"
	"github.com/PocketPalCo/receipts-service/internal/infra/postgres"
	"github.com/PocketPalCo/receipts-service/pkg/logger"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

type parseOptions struct {
	output string
	images []string
	save   bool
}

type parsedReceipt struct {
	File string `json:"file"`
	*receipts.Receipt
	NeedsReview bool `json:"needs_review"`
}

func newParseCmd(root *rootOptions) *cobra.Command {
	opts := &parseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Run receipts through the pipeline and print the result",
		Long: "Each text file is read as OCR output and each image file as a receipt photo.\n" +
			"Images given with --image are attached to every text receipt.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "json" && opts.output != "yaml" {
				return fmt.Errorf("unsupported output format %q", opts.output)
			}
			return runParse(cmd.Context(), cmd.OutOrStdout(), root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "yaml", "output format: json or yaml")
	cmd.Flags().StringSliceVar(&opts.images, "image", nil, "image attached to every text receipt")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the receipts in the configured database")
	return cmd
}

func runParse(ctx context.Context, out io.Writer, root *rootOptions, opts *parseOptions, files []string) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := logger.NewLogger(&cfg)

	inputs, err := readInputs(files, opts.images)
	if err != nil {
		return err
	}

	var db postgres.DB
	if opts.save {
		pool, err := postgres.Init(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		db = pool
	}

	components, err := app.Build(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer components.Close()

	processed := components.Service.ProcessReceipts(ctx, inputs)

	results := make([]parsedReceipt, 0, len(processed))
	for i, r := range processed {
		if r == nil {
			log.Warn("Receipt skipped", "file", files[i])
			continue
		}
		results = append(results, parsedReceipt{File: files[i], Receipt: r, NeedsReview: r.NeedsReview()})
	}

	return render(out, opts.output, results)
}

// readInputs turns every file into one pipeline input, keyed by its path.
func readInputs(files, extraImages []string) ([]pipeline.Input, error) {
	var shared [][]byte
	for _, path := range extraImages {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", path, err)
		}
		shared = append(shared, data)
	}

	inputs := make([]pipeline.Input, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read receipt %s: %w", path, err)
		}

		in := pipeline.Input{ID: path}
		if imageExtensions[strings.ToLower(filepath.Ext(path))] {
			in.Images = [][]byte{data}
		} else {
			in.RawText = string(data)
			in.Images = shared
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func render(out io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if format == "yaml" {
		if data, err = yaml.JSONToYAML(data); err != nil {
			return fmt.Errorf("failed to convert result to yaml: %w", err)
		}
	} else {
		data = append(data, '\n')
	}

	_, err = out.Write(data)
	return err
}
