package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/soupchef/internal/app"
	"github.com/samvad-hq/soupchef/internal/config"
	"github.com/samvad-hq/soupchef/internal/domain"
	"github.com/samvad-hq/soupchef/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "soupchef [mode] [flags] [input...]",
		Short: "Download recipes from chefkoch.de",
		Long: `soupchef fetches recipes from chefkoch.de and stores them as one file per recipe.

Exactly one mode selects the recipes: the recipe of the day, search terms,
recipe URLs or IDs, random draws, the full listing, or a refresh of everything
already in the index. Recipes in the index are skipped unless --force is set.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCrawl,
	}

	f := cmd.Flags()
	f.BoolP("daily", "d", false, "fetch the recipe of the day")
	f.BoolP("search", "s", false, "search for the given terms")
	f.BoolP("url", "u", false, "fetch the given recipe URLs")
	f.BoolP("id", "i", false, "fetch the given recipe IDs")
	f.Bool("random", false, "fetch random recipes")
	f.BoolP("all", "a", false, "walk the full recipe listing")
	f.Bool("refresh", false, "fetch every indexed recipe again")
	cmd.MarkFlagsOneRequired(config.ModeFlags...)
	cmd.MarkFlagsMutuallyExclusive(config.ModeFlags...)

	f.BoolP("force", "f", false, "fetch recipes even if they are already indexed")
	f.StringP("out", "o", "crawl", "output folder")
	f.IntP("num", "n", 30, "number of recipes to fetch, -1 for no limit")
	f.IntP("recursion", "r", 0, "follow related recipes this many levels deep")
	f.IntP("comments", "c", 100, "comments to fetch per recipe, -1 for all")
	f.StringP("rate-limit", "l", "0.1-0.5", "seconds to wait before each request, a value or a min-max range")
	f.IntP("page", "p", 1, "first result page for search and all")
	f.String("sort", string(domain.SortRelevance), "result order: relevance, daily, date, preptime, difficulty or rating")
	f.String("filenames", "plain", "file naming: plain or title")
	f.String("dirnames", "flat", "directory layout: flat, category or date")
	f.String("format", "json", "recipe file format: json, yaml or markdown")
	f.Bool("index-only", false, "record IDs in the index without downloading recipes")
	f.String("index-type", "file", "index backend: file, bbolt, sqlite or memory")
	f.String("config", "", "config file (default soupchef.yaml in the user config dir or working dir)")
	f.String("publishers", "", "YAML file with recipe event sinks")
	f.String("metrics-file", "", "write run metrics in Prometheus text format to this file")

	f.BoolP("quiet", "q", false, "only print errors")
	f.BoolP("verbose", "v", false, "print progress")
	f.Bool("debug", false, "print debug output")
	cmd.MarkFlagsMutuallyExclusive("quiet", "verbose", "debug")

	// cobra reports its own flag errors before RunE; they are usage errors.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", domain.ErrArgument, err)
	})
	cmd.PreRunE = func(c *cobra.Command, _ []string) error {
		if err := c.ValidateFlagGroups(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrArgument, err)
		}
		return nil
	}

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags(), args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("soupchef starting", "config", cfg)

	ctx := cmd.Context()
	runner, err := app.NewRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the soupchef version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "soupchef", version)
		},
	}
}
