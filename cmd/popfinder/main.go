package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/PopFinder/internal/collect"
	"github.com/TobiSchelling/PopFinder/internal/config"
	"github.com/TobiSchelling/PopFinder/internal/corpus"
	"github.com/TobiSchelling/PopFinder/internal/event"
	"github.com/TobiSchelling/PopFinder/internal/logging"
	"github.com/TobiSchelling/PopFinder/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zerolog.Nop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "popfinder",
	Short:   "Find UK pop-up and market opportunities",
	Long:    "PopFinder gathers event candidates from curated files, a language model and live listings, drops the implausible ones and ranks the rest.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys usually live in .env next to the config.
		_ = godotenv.Load()

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Format)
		if err != nil {
			return err
		}
		log.Logger = logger
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pinsCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("popfinder", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/popfinder/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		corporaDir := config.Default().GetCorporaDir()
		if err := os.MkdirAll(corporaDir, 0o755); err != nil {
			return fmt.Errorf("creating corpora directory: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Printf("Corpora directory: %s\n", corporaDir)
		fmt.Println("Add rules.txt, notes.txt and seed_events.json there, and set OPENAI_API_KEY in .env.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache and search history status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetCacheStats()
		if err != nil {
			return fmt.Errorf("getting cache stats: %w", err)
		}
		runs, err := db.CountSearchRuns()
		if err != nil {
			return fmt.Errorf("counting searches: %w", err)
		}
		recent, err := db.GetRecentSearchRuns(5)
		if err != nil {
			return fmt.Errorf("loading searches: %w", err)
		}

		fmt.Printf("Database: %s\n", db.Path())
		fmt.Printf("Corpora:  %s\n\n", corporaLocation())
		fmt.Println("Source cache:")
		fmt.Printf("  Backend: %s\n", cfg.Cache.Backend)
		fmt.Printf("  SQLite entries: %d (%d expired)\n", stats.Entries, stats.Expired)
		fmt.Println("\nSearches:")
		fmt.Printf("  Total: %d\n", runs)
		for _, r := range recent {
			ranAt := ""
			if r.RanAt != nil {
				ranAt = *r.RanAt
			}
			fallback := ""
			if r.Fallback {
				fallback = " (fallback)"
			}
			fmt.Printf("  %s  %s %q: %d results, %d rejected%s\n", ranAt, r.Region, r.Keywords, r.ResultCount, r.RejectedCount, fallback)
		}
		return nil
	},
}

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <region> [keywords...]",
	Short: "Search for upcoming events in a region",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.engine.Search(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		if len(res.Events) == 0 {
			fmt.Println("No upcoming events found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tSCORE\tDATE\tTITLE\tLOCATION\tSOURCE")
		for i, e := range res.Events {
			fmt.Fprintf(w, "%d\t%.1f\t%s\t%s\t%s\t%s\n", i+1, e.RelevanceScore, e.Date, e.Title, e.Location, e.Trust)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if res.Stats.Fallback {
			fmt.Println("\nGenerator unavailable; results come from curated and scraped sources.")
		}
		return nil
	},
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		a, err := buildApp(reg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Refresh.Schedule != "" {
			c := cron.New()
			_, err := c.AddFunc(cfg.Refresh.Schedule, func() {
				if n, err := a.cache.Purge(ctx); err != nil {
					logger.Warn().Err(err).Msg("cache purge failed")
				} else if n > 0 {
					logger.Info().Int("removed", n).Msg("purged expired cache entries")
				}
				collect.Warm(ctx, a.collectors, cfg.Refresh.Regions, logger)
			})
			if err != nil {
				return fmt.Errorf("scheduling refresh: %w", err)
			}
			c.Start()
			defer c.Stop()
			logger.Info().Str("schedule", cfg.Refresh.Schedule).Msg("collector refresh scheduled")
		}

		port := cfg.Server.Port
		if servePort != 0 {
			port = servePort
		}
		corporaDir := cfg.GetCorporaDir()
		if err := os.MkdirAll(corporaDir, 0o755); err != nil {
			return fmt.Errorf("creating corpora directory: %w", err)
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, server.Deps{
			Searcher: a.engine,
			Corpora:  a.corpora,
			Pins:     corpus.NewPinStore(corporaDir),
			Notes:    corpus.NewNoteStore(corporaDir),
			DB:       a.db,
			Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Logger:   logger,
		}, port)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Validate pins and seed event files",
	Long:  "Checks JSON event files against the event schema. Defaults to pins.json and seed_events.json in the corpora directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args
		if len(files) == 0 {
			dir := cfg.GetCorporaDir()
			files = []string{filepath.Join(dir, corpus.PinsFile), filepath.Join(dir, corpus.SeedsFile)}
		}

		failed := 0
		for _, f := range files {
			data, err := os.ReadFile(f)
			if errors.Is(err, fs.ErrNotExist) && len(args) == 0 {
				fmt.Printf("  skip  %s (not found)\n", f)
				continue
			}
			if err != nil {
				return err
			}
			if err := corpus.ValidateEvents(data); err != nil {
				failed++
				fmt.Printf("  FAIL  %s\n        %v\n", f, err)
				continue
			}
			fmt.Printf("  ok    %s\n", f)
		}
		if failed > 0 {
			return fmt.Errorf("%d file(s) failed validation", failed)
		}
		return nil
	},
}

var pinsCmd = &cobra.Command{
	Use:   "pins",
	Short: "Manage pinned events",
}

var pinsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pinned events",
	RunE: func(cmd *cobra.Command, args []string) error {
		pins, err := corpus.NewPinStore(cfg.GetCorporaDir()).List()
		if err != nil {
			return err
		}
		if len(pins) == 0 {
			fmt.Println("No pinned events. Add one with: popfinder pins add")
			return nil
		}
		for _, p := range pins {
			fmt.Printf("  [%s] %s\n", p.ID, p.Title)
			fmt.Printf("        %s  %s\n", p.Date, p.Location)
		}
		return nil
	},
}

var pinFlags struct {
	date, location, url, description string
}

var pinsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Pin an event",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.GetCorporaDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating corpora directory: %w", err)
		}
		pinned, err := corpus.NewPinStore(dir).Add(event.Candidate{
			Title:       strings.Join(args, " "),
			Date:        pinFlags.date,
			Location:    pinFlags.location,
			URL:         pinFlags.url,
			Description: pinFlags.description,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Pinned [%s] %s\n", pinned.ID, pinned.Title)
		return nil
	},
}

var pinsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Unpin an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := corpus.NewPinStore(cfg.GetCorporaDir()).Remove(args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no pin with id %s", args[0])
		}
		fmt.Printf("Removed pin %s\n", args[0])
		return nil
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Manage operator notes",
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := corpus.NewNoteStore(cfg.GetCorporaDir()).List()
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Println("No notes yet. Add one with: popfinder notes add")
			return nil
		}
		for i, n := range notes {
			fmt.Printf("  %d. %s\n", i+1, n)
		}
		return nil
	},
}

var notesAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.GetCorporaDir()
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating corpora directory: %w", err)
		}
		if err := corpus.NewNoteStore(dir).Add(strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Println("Note added")
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the source cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, c cacheOps) error {
			n, err := c.Purge(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired entries\n", n)
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(cmd.Context(), func(ctx context.Context, c cacheOps) error {
			n, err := c.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d entries\n", n)
			return nil
		})
	},
}

type cacheOps interface {
	Purge(ctx context.Context) (int, error)
	Clear(ctx context.Context) (int, error)
}

func withCache(ctx context.Context, f func(context.Context, cacheOps) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := openCache(db)
	if err != nil {
		return err
	}
	return f(ctx, c)
}

func corporaLocation() string {
	if cfg.Corpora.BaseURL != "" {
		return cfg.Corpora.BaseURL
	}
	return cfg.GetCorporaDir()
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Print the full result as JSON")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")

	pinsAddCmd.Flags().StringVar(&pinFlags.date, "date", "", "Event date, e.g. 2026-07-04")
	pinsAddCmd.Flags().StringVar(&pinFlags.location, "location", "", "Venue or town")
	pinsAddCmd.Flags().StringVar(&pinFlags.url, "url", "", "Event page")
	pinsAddCmd.Flags().StringVar(&pinFlags.description, "description", "", "Free-text description")
	pinsCmd.AddCommand(pinsListCmd, pinsAddCmd, pinsRemoveCmd)

	notesCmd.AddCommand(notesListCmd, notesAddCmd)
	cacheCmd.AddCommand(cachePurgeCmd, cacheClearCmd)
}
