package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/galleryharvest/galleryharvest/internal/app"
	"github.com/galleryharvest/galleryharvest/internal/config"
)

// harvestOptions holds the flag values of the 'harvest' subcommand.
type harvestOptions struct {
	links     []string
	linksFile string
	size      string
	count     int
	dir       string
	prevDir   string
}

// newHarvestCmd creates the 'harvest' subcommand, the tool's main mode.
func newHarvestCmd() *cobra.Command {
	var opts harvestOptions

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Crawl gallery links and download their images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg, err = applyFlags(cfg, opts, cmd.Flags().Changed)
			if err != nil {
				return err
			}

			logger, err := buildLogger(cfg.Logging.Development)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := app.New(cfg, logger)
			if err != nil {
				logger.Error("startup failed", zap.Error(err))
				return err
			}
			if err := a.Run(cmd.Context()); err != nil {
				logger.Error("harvest failed", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&opts.links, "links", nil, "gallery links to harvest, comma separated")
	cmd.Flags().StringVar(&opts.linksFile, "links-file", "", "file with one gallery link per line")
	cmd.Flags().StringVar(&opts.size, "size", "", "minimum image size as WxH, e.g. 1920x1080")
	cmd.Flags().IntVar(&opts.count, "count", 0, "stop after this many images (0 harvests until galleries run dry)")
	cmd.Flags().StringVar(&opts.dir, "dir", "", "output directory for downloaded images")
	cmd.Flags().StringVar(&opts.prevDir, "prev-dir", "", "directory of a previous run whose images are skipped")
	cmd.MarkFlagsMutuallyExclusive("links", "links-file")

	return cmd
}

// applyFlags merges user-provided flag values into the loaded config.
// changed reports whether the named flag was set on the command line;
// omitted flags leave config-file values intact.
func applyFlags(cfg config.Config, o harvestOptions, changed func(string) bool) (config.Config, error) {
	if changed("links") {
		cfg.Links = o.links
	}
	if o.linksFile != "" {
		fileLinks, err := readLinksFile(o.linksFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Links = fileLinks
	}
	if o.size != "" {
		w, h, err := parseSize(o.size)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Harvest.MinWidth = w
		cfg.Harvest.MinHeight = h
	}
	if changed("count") {
		cfg.Harvest.Count = o.count
	}
	if o.dir != "" {
		cfg.Harvest.OutputDir = o.dir
	}
	if o.prevDir != "" {
		cfg.Harvest.PrevDir = o.prevDir
	}
	return cfg, nil
}

// readLinksFile loads one link per line, ignoring blanks and '#' comments.
func readLinksFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open links file: %w", err)
	}
	defer f.Close()

	var links []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read links file: %w", err)
	}
	return links, nil
}

// parseSize parses a "WxH" dimension pair, also accepting the '×' glyph
// galleries render.
func parseSize(s string) (int, int, error) {
	norm := strings.ReplaceAll(strings.ToLower(s), "×", "x")
	parts := strings.Split(norm, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size must look like WxH, got %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("size width: %w", err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("size height: %w", err)
	}
	if w < 0 || h < 0 {
		return 0, 0, fmt.Errorf("size dimensions must be >= 0")
	}
	return w, h, nil
}
