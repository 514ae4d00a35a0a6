package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/robertmeta/pulse/cache"
	"github.com/robertmeta/pulse/config"
	"github.com/robertmeta/pulse/feed"
	"github.com/robertmeta/pulse/model"
	"github.com/robertmeta/pulse/normalize"
	"github.com/robertmeta/pulse/opml"
	"github.com/robertmeta/pulse/store"
	"github.com/robertmeta/pulse/timerange"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "pulse",
		Usage:   "Pull recent community discussion on a topic, with caching and date-trust scoring",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Config file path",
				EnvVars: []string{"PULSE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "cache-dir",
				Value:   config.DefaultCacheDir(),
				Usage:   "Result cache directory",
				EnvVars: []string{"PULSE_CACHE_DIR"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   config.DefaultArchivePath(),
				Usage:   "Archive database path",
				EnvVars: []string{"PULSE_DB"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search watched sources for recent discussion of a topic",
				ArgsUsage: "<topic>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "range",
						Aliases: []string{"r"},
						Usage:   "Time window (e.g. \"2h\", \"3 days\", \"2w\", \"6mo\")",
					},
					&cli.IntFlag{
						Name:  "days",
						Usage: "Time window in whole days (legacy alternative to --range)",
					},
					&cli.StringFlag{
						Name:    "sources",
						Aliases: []string{"s"},
						Value:   "all",
						Usage:   "Source selector: source types or names, comma separated",
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   25,
						Usage:   "Maximum items fetched per source",
					},
					&cli.BoolFlag{
						Name:  "no-cache",
						Usage: "Bypass the result cache",
					},
					&cli.BoolFlag{
						Name:  "require-date",
						Usage: "Drop items whose date could not be determined",
					},
					&cli.BoolFlag{
						Name:  "no-archive",
						Usage: "Skip archiving this search",
					},
				},
				Action: search,
			},
			{
				Name:   "cache-clear",
				Usage:  "Delete every cached result",
				Action: cacheClear,
			},
			{
				Name:      "prefer",
				Usage:     "Show or set the remembered endpoint for a source",
				ArgsUsage: "<source> [value]",
				Action:    prefer,
			},
			{
				Name:   "sources",
				Usage:  "List configured sources",
				Action: listSources,
			},
			{
				Name:      "import",
				Usage:     "Import watched sources from an OPML file",
				ArgsUsage: "<opml-file>",
				Action:    importOPML,
			},
			{
				Name:  "export",
				Usage: "Export watched sources to OPML",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (default: stdout)",
					},
				},
				Action: exportOPML,
			},
			{
				Name:  "history",
				Usage: "List archived searches",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   20,
						Usage:   "Maximum searches to return",
					},
				},
				Action: history,
			},
			{
				Name:      "show",
				Usage:     "Show archived items for a search",
				ArgsUsage: "<search-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum items to return",
					},
					&cli.IntFlag{
						Name:    "offset",
						Aliases: []string{"o"},
						Usage:   "Offset for pagination",
					},
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Restrict to one source type",
					},
					&cli.BoolFlag{
						Name:  "high-confidence",
						Usage: "Only items with high date confidence",
					},
					&cli.IntFlag{
						Name:  "min-recency",
						Usage: "Minimum recency score (0-100)",
					},
				},
				Action: showSearch,
			},
			{
				Name:   "prune",
				Usage:  "Delete archived searches older than the configured retention",
				Action: prune,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func newLogger(c *cli.Context) zerolog.Logger {
	level := zerolog.InfoLevel
	if c.Bool("verbose") {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func getArchive(c *cli.Context) (*store.Store, error) {
	s, err := store.New(c.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return s, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// searchResult is the shape cached and printed by the search command.
type searchResult struct {
	Topic   string             `json:"topic"`
	Label   string             `json:"label"`
	From    string             `json:"from"`
	To      string             `json:"to"`
	Sources string             `json:"sources"`
	Reddit  []model.RedditItem `json:"reddit"`
	X       []model.XItem      `json:"x"`
}

func search(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: pulse search <topic>", ExitUsageError)
	}
	topic := c.Args().Get(0)
	logger := newLogger(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	window, err := resolveSearchWindow(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	from, to := timerange.Window(window, time.Now())
	label := timerange.Label(window)
	ttl := timerange.TTLFor(window)
	selector := c.String("sources")

	sources := cfg.SourcesMatching(selector)
	if len(sources) == 0 {
		return cli.Exit(fmt.Sprintf("no enabled sources match %q", selector), ExitDataError)
	}

	results := cache.NewAt(c.String("cache-dir"))
	key := cache.Key(topic, from, to, selector)
	logger.Debug().Str("key", key).Str("from", from).Str("to", to).Dur("ttl", ttl).Msg("resolved window")

	if !c.Bool("no-cache") {
		var cached searchResult
		if age, ok := results.LoadWithAge(key, ttl, &cached); ok {
			logger.Debug().Float64("age_hours", age.Hours()).Msg("cache hit")
			return outputJSON(map[string]interface{}{
				"cached":          true,
				"cache_age_hours": age.Hours(),
				"result":          cached,
			})
		}
		logger.Debug().Msg("cache miss")
	}

	rawBySource, fetchErrs := fetchSources(sources, c.Int("limit"), logger)

	// Remember which endpoints answered so later runs can report or reuse
	// the last working choice per source.
	for _, src := range sources {
		if _, failed := fetchErrs[src.URL]; !failed {
			results.SetPreference(src.Name, src.URL)
		}
	}

	requireDate := c.Bool("require-date") || cfg.RequireDate
	result := searchResult{
		Topic:   topic,
		Label:   label,
		From:    from,
		To:      to,
		Sources: selector,
		Reddit: normalize.FilterByDateRange(
			matchTopic(normalize.RedditItems(rawBySource[feed.TypeReddit], from, to), topic),
			from, to, requireDate,
		),
		X: normalize.FilterByDateRange(
			matchTopicX(normalize.XItems(rawBySource[feed.TypeX], from, to), topic),
			from, to, requireDate,
		),
	}

	if saved := results.Save(key, result); !saved {
		logger.Debug().Msg("cache write skipped")
	}

	if !c.Bool("no-archive") {
		if err := archiveResult(c, &result, window); err != nil {
			// Archiving, like caching, never fails the search.
			logger.Warn().Err(err).Msg("archive write failed")
		}
	}

	return outputJSON(map[string]interface{}{
		"cached":       false,
		"fetch_errors": fetchErrs,
		"result":       result,
	})
}

// resolveSearchWindow picks the search window from --days (legacy whole-day
// flag), --range, or the configured default, in that order.
func resolveSearchWindow(c *cli.Context, cfg *config.Config) (time.Duration, error) {
	if c.IsSet("days") {
		return timerange.Days(c.Int("days")), nil
	}
	if r := c.String("range"); r != "" {
		return timerange.ParseRange(r)
	}
	return cfg.DefaultRangeDuration(), nil
}

// fetchSources pulls every selected source concurrently and groups raw
// records by source type. Failures are collected per source URL rather than
// aborting the whole search.
func fetchSources(sources []model.Source, limit int, logger zerolog.Logger) (map[string][]map[string]any, map[string]string) {
	fetcher := feed.NewFetcher()
	raw := make(map[string][]map[string]any)
	errs := make(map[string]string)

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, 8) // limit concurrent fetches

	for _, src := range sources {
		wg.Add(1)
		go func(src model.Source) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			started := time.Now()
			records, err := fetcher.Fetch(src.URL, src.Type, limit)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Debug().Err(err).Str("source", src.Name).Msg("fetch failed")
				errs[src.URL] = err.Error()
				return
			}
			logger.Debug().
				Str("source", src.Name).
				Int("records", len(records)).
				Dur("took", time.Since(started)).
				Msg("fetched")
			raw[src.Type] = append(raw[src.Type], records...)
		}(src)
	}

	wg.Wait()
	return raw, errs
}

// matchTopic keeps Reddit items whose title mentions the topic and records
// why. A topic of "all" keeps everything.
func matchTopic(items []model.RedditItem, topic string) []model.RedditItem {
	if topic == "all" {
		return items
	}

	needle := strings.ToLower(topic)
	var kept []model.RedditItem
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Title), needle) {
			item.Relevance = 0.9
			item.WhyRelevant = fmt.Sprintf("title mentions %q", topic)
			kept = append(kept, item)
		}
	}
	return kept
}

// matchTopicX is matchTopic for X items (matching on post text).
func matchTopicX(items []model.XItem, topic string) []model.XItem {
	if topic == "all" {
		return items
	}

	needle := strings.ToLower(topic)
	var kept []model.XItem
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Text), needle) {
			item.Relevance = 0.9
			item.WhyRelevant = fmt.Sprintf("post mentions %q", topic)
			kept = append(kept, item)
		}
	}
	return kept
}

func archiveResult(c *cli.Context, result *searchResult, window time.Duration) error {
	archive, err := getArchive(c)
	if err != nil {
		return err
	}
	defer archive.Close()

	run := &model.Search{
		Topic:   result.Topic,
		From:    result.From,
		To:      result.To,
		Sources: result.Sources,
		Label:   result.Label,
	}
	if err := archive.SaveSearch(run); err != nil {
		return err
	}

	for _, item := range result.Reddit {
		row, err := itemRow(run.ID, feed.TypeReddit, item, item.Date, item.DateConfidence, item.Relevance, window)
		if err != nil {
			continue
		}
		if err := archive.SaveItem(row); err != nil {
			continue // duplicates within one run
		}
	}
	for _, item := range result.X {
		row, err := itemRow(run.ID, feed.TypeX, item, item.Date, item.DateConfidence, item.Relevance, window)
		if err != nil {
			continue
		}
		if err := archive.SaveItem(row); err != nil {
			continue
		}
	}

	return nil
}

func itemRow(searchID int64, source string, item model.Item, date *string, confidence string, relevance float64, window time.Duration) (*store.ItemRow, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}

	recency := 0
	if date != nil {
		recency = timerange.RecencyScore(*date, window)
	}

	return &store.ItemRow{
		SearchID:   searchID,
		Source:     source,
		ItemID:     item.ItemID(),
		URL:        item.Permalink(),
		Date:       date,
		Confidence: confidence,
		Relevance:  relevance,
		Recency:    recency,
		Payload:    payload,
	}, nil
}

func cacheClear(c *cli.Context) error {
	results := cache.NewAt(c.String("cache-dir"))
	removed := results.ClearAll()

	return outputJSON(map[string]interface{}{
		"cleared": removed,
	})
}

func prefer(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: pulse prefer <source> [value]", ExitUsageError)
	}

	results := cache.NewAt(c.String("cache-dir"))
	id := c.Args().Get(0)

	if c.NArg() >= 2 {
		value := c.Args().Get(1)
		saved := results.SetPreference(id, value)
		return outputJSON(map[string]interface{}{
			"source": id,
			"value":  value,
			"saved":  saved,
		})
	}

	value, ok := results.Preference(id)
	if !ok {
		return outputJSON(map[string]interface{}{
			"source":     id,
			"preference": nil,
		})
	}
	return outputJSON(map[string]interface{}{
		"source":     id,
		"preference": value,
	})
}

func listSources(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	return outputJSON(cfg.Sources)
}

func importOPML(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: pulse import <opml-file>", ExitUsageError)
	}

	file, err := os.Open(c.Args().Get(0))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
	}
	defer file.Close()

	imported, err := opml.Parse(file)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to parse OPML: %v", err), ExitDataError)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	// Merge by URL: existing sources win.
	known := make(map[string]bool, len(cfg.Sources))
	for _, s := range cfg.Sources {
		known[s.URL] = true
	}

	added := 0
	skipped := 0
	for _, src := range imported {
		if known[src.URL] {
			skipped++
			continue
		}
		cfg.Sources = append(cfg.Sources, *src)
		added++
	}

	path := c.String("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	if err := config.Save(path, cfg); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save config: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"success": true,
		"added":   added,
		"skipped": skipped,
		"total":   len(imported),
	})
}

func exportOPML(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	var sources []*model.Source
	for i := range cfg.Sources {
		sources = append(sources, &cfg.Sources[i])
	}

	outputPath := c.String("output")
	var writer io.Writer

	if outputPath == "" {
		writer = os.Stdout
	} else {
		file, err := os.Create(outputPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to create output file: %v", err), ExitDataError)
		}
		defer file.Close()
		writer = file
	}

	if err := opml.Generate(writer, sources); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to generate OPML: %v", err), ExitDataError)
	}

	if outputPath != "" {
		return outputJSON(map[string]interface{}{
			"success": true,
			"file":    outputPath,
			"count":   len(sources),
		})
	}

	return nil
}

func history(c *cli.Context) error {
	archive, err := getArchive(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer archive.Close()

	runs, err := archive.Searches(c.Int("limit"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to list searches: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"count":    len(runs),
		"searches": runs,
	})
}

func showSearch(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: pulse show <search-id>", ExitUsageError)
	}

	var id int64
	if _, err := fmt.Sscanf(c.Args().Get(0), "%d", &id); err != nil {
		return cli.Exit("Invalid search ID", ExitUsageError)
	}

	archive, err := getArchive(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer archive.Close()

	run, err := archive.GetSearch(id)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get search: %v", err), ExitDataError)
	}

	opts := store.BuildQueryOptions(
		c.Int("limit"),
		c.Int("offset"),
		c.String("source"),
		c.Bool("high-confidence"),
		c.Int("min-recency"),
	)

	items, err := archive.ItemsForSearch(id, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get items: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"search": run,
		"count":  len(items),
		"items":  items,
	})
}

func prune(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}

	archive, err := getArchive(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer archive.Close()

	cutoff := time.Now().Add(-cfg.RetentionDuration())
	pruned, err := archive.PruneBefore(cutoff)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to prune: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"pruned": pruned,
		"cutoff": cutoff.UTC().Format(time.RFC3339),
	})
}
