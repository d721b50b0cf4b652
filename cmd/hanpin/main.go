package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"hanpin/internal/config"
	"hanpin/internal/dict"
	"hanpin/internal/escalate"
	"hanpin/internal/llm"
	"hanpin/internal/pipeline"
	"hanpin/internal/resolver"
	"hanpin/internal/rules"
	"hanpin/internal/storage"
	"hanpin/internal/tagger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rootCmd = &cobra.Command{
		Use:   "hanpin",
		Short: "Han text to toned-pinyin converter with polyphone disambiguation",
	}
	dbPath     string
	configPath string
	verbose    bool
	logger     = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "hanpin.db", "Path to the run-history database (SQLite)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		l, err := buildLogger(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	}

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(historyCmd)
}

// buildLogger returns a production logger at Info level, raised to
// Debug with --verbose.
func buildLogger(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func loadConfig() *config.Config {
	if configPath != "" {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		return cfg
	}
	if cfg, err := config.LoadConfig("hanpin.yaml"); err == nil {
		return cfg
	}
	return config.Default()
}

var (
	dataDir           string
	reportPath        string
	noWordLikeSpacing bool
	noDoubleCheck     bool
	interactive       bool
	ollamaModel       string
	ollamaHost        string
)

var convertCmd = &cobra.Command{
	Use:   "convert [text]",
	Short: "Convert Han text to toned pinyin",
	Long: `Convert Han text to toned pinyin. The text is taken from the argument,
or from stdin when no argument is given. Protected spans (Latin words,
numbers, URLs, punctuation) pass through unchanged.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text, err := inputText(args)
		if err != nil {
			log.Fatalf("Failed to read input: %v", err)
		}
		if strings.TrimSpace(text) == "" {
			log.Fatal("No input text given")
		}

		cfg := loadConfig()
		if dataDir != "" {
			cfg.Data.Dir = dataDir
		}
		if noWordLikeSpacing {
			off := false
			cfg.Resolve.WordLikeSpacing = &off
		}
		if ollamaModel != "" {
			cfg.AI.Provider = "ollama"
			cfg.AI.Model = ollamaModel
		}
		if ollamaHost != "" {
			cfg.AI.BaseURL = ollamaHost
		}

		ctx := context.Background()

		store, err := dict.NewLoader(logger).LoadDir(cfg.Data.Dir)
		if err != nil {
			log.Fatalf("Failed to load dictionaries: %v", err)
		}
		store.OverrideDisambigThresholds(dict.Thresholds{
			MinSupport: cfg.Resolve.MinSupport,
			MinProb:    cfg.Resolve.MinProb,
			MinMargin:  cfg.Resolve.MinMargin,
		})

		ruleStore := rules.NewStore(cfg.Data.Dir, logger)
		snap, err := ruleStore.LoadSnapshot()
		if err != nil {
			log.Fatalf("Failed to load rules: %v", err)
		}
		src := rules.NewSource(snap)

		var client llm.Client
		if cfg.AI.Model != "" {
			client, err = llm.NewClient(ctx, llm.Options{
				Provider: cfg.AI.Provider,
				APIKey:   cfg.AI.APIKey,
				Model:    cfg.AI.Model,
				BaseURL:  cfg.AI.BaseURL,
			})
			if err != nil {
				log.Fatalf("Failed to create AI client: %v", err)
			}
		}

		var collab tagger.Collaborator
		var verifier escalate.Verifier
		if client != nil {
			collab = client
			if !noDoubleCheck {
				verifier = client
			}
		}

		var chooser escalate.Chooser
		if interactive {
			chooser = &terminalChooser{in: bufio.NewReader(os.Stdin)}
		}

		engine := resolver.NewEngine(store, logger).WithThreshold(cfg.Resolve.Threshold)
		tagSvc := tagger.NewService(collab, store, logger)
		tracker := escalate.NewTracker(verifier, chooser, cfg.Resolve.Threshold, logger)
		if cfg.AI.TimeoutS > 0 {
			d := time.Duration(cfg.AI.TimeoutS) * time.Second
			tagSvc.WithTimeout(d)
			tracker.WithTimeout(d)
		}

		p := pipeline.New(src, tagSvc, engine, tracker, logger).
			WithWordLikeSpacing(cfg.WordLikeSpacing())

		result := p.Convert(ctx, text)

		// Confirmed user choices become override rules; the run is then
		// replayed against the fresh snapshot so the overrides apply.
		if len(result.Confirmed) > 0 {
			generated := generateOverrides(ruleStore, src.Current(), result)
			if len(generated) > 0 {
				snap, err := ruleStore.LoadSnapshot()
				if err != nil {
					log.Fatalf("Failed to reload rules: %v", err)
				}
				src.Swap(snap)
				rerun := p.Convert(ctx, text)
				rerun.Report.GeneratedOverrides = generated
				result = rerun
			}
		}

		fmt.Println(result.OutputText)

		if reportPath != "" {
			data, err := json.MarshalIndent(result.Report, "", "  ")
			if err != nil {
				log.Fatalf("Failed to encode report: %v", err)
			}
			if err := os.WriteFile(reportPath, data, 0o644); err != nil {
				log.Fatalf("Failed to write report: %v", err)
			}
		}

		saveRun(ctx, text, result)
	},
}

func inputText(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func generateOverrides(ruleStore *rules.Store, snap *rules.Snapshot, result *pipeline.Result) []rules.Rule {
	existing, err := ruleStore.OverrideIDs()
	if err != nil {
		log.Fatalf("Failed to read override ids: %v", err)
	}

	gen := rules.NewGenerator(rules.DefaultLadder)
	var generated []rules.Rule
	for _, c := range result.Confirmed {
		rule := gen.Generate(result.Observation(c), snap, existing)
		if err := ruleStore.AppendOverride(rule); err != nil {
			log.Fatalf("Failed to append override: %v", err)
		}
		existing = append(existing, rule.ID)
		generated = append(generated, rule)
		fmt.Printf("Recorded override %s (%s -> %s)\n", rule.ID, c.Item.Char, c.Choice)
	}
	return generated
}

func saveRun(ctx context.Context, input string, result *pipeline.Result) {
	runStore, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Warn("run history unavailable", zap.Error(err))
		return
	}
	defer runStore.Close()

	report, err := json.Marshal(result.Report)
	if err != nil {
		logger.Warn("report not serializable", zap.Error(err))
		return
	}
	run := storage.Run{
		ID:     uuid.NewString(),
		Input:  input,
		Output: result.OutputText,
		Report: report,
	}
	if err := runStore.SaveRun(ctx, run); err != nil {
		logger.Warn("failed to persist run", zap.Error(err))
		return
	}
	for _, rule := range result.Report.GeneratedOverrides {
		raw, err := json.Marshal(rule)
		if err != nil {
			continue
		}
		rec := storage.OverrideRecord{RuleID: rule.ID, RunID: run.ID, Rule: raw}
		if err := runStore.SaveOverride(ctx, rec); err != nil {
			logger.Warn("failed to persist override record", zap.Error(err))
		}
	}
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent conversion runs, or one run in full",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runStore, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open run history: %v", err)
		}
		defer runStore.Close()

		if len(args) == 1 {
			run, err := runStore.GetRun(context.Background(), args[0])
			if err != nil {
				log.Fatalf("Failed to load run: %v", err)
			}
			recs, err := runStore.ListOverrides(context.Background(), run.ID)
			if err != nil {
				log.Fatalf("Failed to load override records: %v", err)
			}
			fmt.Print(formatRun(run, recs))
			return
		}

		runs, err := runStore.ListRuns(context.Background(), historyLimit)
		if err != nil {
			log.Fatalf("Failed to list runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return
		}
		for _, run := range runs {
			fmt.Printf("%s  %s\n  in:  %s\n  out: %s\n",
				run.ID, run.CreatedAt.Local().Format(time.RFC3339), run.Input, run.Output)
		}
	},
}

func init() {
	convertCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory holding dictionary and rule files")
	convertCmd.Flags().StringVar(&reportPath, "report", "", "Write the JSON decision report to this path")
	convertCmd.Flags().BoolVar(&noWordLikeSpacing, "no-word-like-spacing", false, "Do not insert spaces between readings and adjacent Latin/number/URL spans")
	convertCmd.Flags().BoolVar(&noDoubleCheck, "no-double-check", false, "Skip the AI double-check of low-confidence readings")
	convertCmd.Flags().BoolVar(&interactive, "interactive", false, "Ask for confirmation on undecidable readings and record overrides")
	convertCmd.Flags().StringVar(&ollamaModel, "ollama-model", "", "Use a local Ollama model for tagging and double-check")
	convertCmd.Flags().StringVar(&ollamaHost, "ollama-host", "", "Ollama server address")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

// formatRun renders one run in full: metadata, the decision report,
// and any override rules the run produced.
func formatRun(run *storage.Run, recs []storage.OverrideRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run:     %s\n", run.ID)
	fmt.Fprintf(&b, "created: %s\n", run.CreatedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(&b, "input:   %s\n", run.Input)
	fmt.Fprintf(&b, "output:  %s\n", run.Output)

	var report bytes.Buffer
	if err := json.Indent(&report, run.Report, "", "  "); err == nil {
		fmt.Fprintf(&b, "report:\n%s\n", report.String())
	}
	for _, rec := range recs {
		fmt.Fprintf(&b, "override: %s\n", rec.RuleID)
	}
	return b.String()
}

// terminalChooser asks on the terminal for the reading of one
// escalated character. An empty answer skips the item.
type terminalChooser struct {
	in *bufio.Reader
}

func (t *terminalChooser) Choose(item escalate.Item) (string, bool) {
	fmt.Printf("\nUndecided reading for %s in %q (context: %s)\n", item.Char, item.TokenText, item.ContextText)
	for i, c := range item.Candidates {
		marker := " "
		if c == item.Current {
			marker = "*"
		}
		fmt.Printf("  %d%s %s\n", i+1, marker, c)
	}
	fmt.Print("Choose a number or type a reading (empty to skip): ")

	line, err := t.in.ReadString('\n')
	if err != nil {
		return "", false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}
	for i, c := range item.Candidates {
		if line == fmt.Sprintf("%d", i+1) {
			return c, true
		}
	}
	return line, true
}
