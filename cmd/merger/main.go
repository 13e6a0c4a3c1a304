package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"policy-merger/internal/config"
	"policy-merger/internal/engine"
	"policy-merger/internal/fortigate"
	"policy-merger/internal/loader"
	"policy-merger/internal/model"
	"policy-merger/internal/session"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	configPath string

	outFile       string
	sessionFile   string
	minSimilarity float64
	dbDSN         string
	dbDevice      string
	objectsFile   string
	skipObjects   bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "merger",
		Short: "Deduplicate and merge firewall policy rule exports",
		Long: `merger ingests FortiManager policy rule exports from several devices,
finds exact and near duplicate rules, proposes merges, and writes the
result back out as CSV or as a FortiOS configuration script.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(setupLogger(logLevel, logFile))
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Engine configuration YAML file")

	rootCmd.AddCommand(newSummarizeCmd())
	rootCmd.AddCommand(newMergeCmd())
	rootCmd.AddCommand(newSuggestCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newParseCmd())
	rootCmd.AddCommand(newCompareCmd())

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize <export.csv>...",
		Short: "Summarize imported exports and duplicate findings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sets, err := loadSets(args)
			if err != nil {
				return err
			}
			all := model.AllRules(sets)
			fmt.Printf("Loaded %d files, total rules: %d\n", len(sets), len(all))
			for _, ps := range sets {
				fmt.Printf("- %s: %d rules\n", ps.SourceDevice, len(ps.Rules))
			}

			_, removed := engine.DeduplicateIdentical(all)
			fmt.Printf("Exact duplicates (by identity signature): %d\n", removed)

			_, groups := engine.DeduplicateByFiveFields(all)
			multi := 0
			for _, g := range groups {
				if len(g.Rules) > 1 {
					multi++
				}
			}
			fmt.Printf("Five-field duplicate groups: %d\n", multi)

			suggestions := engine.FindSimilarRules(all, similarityOptions(cfg))
			fmt.Printf("Similarity suggestions: %d\n", len(suggestions))
			for i, s := range suggestions {
				if i == 10 {
					break
				}
				fmt.Printf("  ~ %s [%s] vs %s [%s] | score=%.2f\n",
					s.RuleA.Field("name"), s.RuleA.SourceDevice,
					s.RuleB.Field("name"), s.RuleB.SourceDevice, s.Score)
			}
			return nil
		},
	}
	return cmd
}

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <export.csv>...",
		Short: "Batch-deduplicate identical rules and write a merged CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			sets, err := loadInputs(args)
			if err != nil {
				return err
			}
			all := model.AllRules(sets)
			survivors, removed := engine.DeduplicateIdentical(all)
			slog.Info("Deduplicated rules", "total", len(all), "kept", len(survivors), "removed", removed)

			columns := model.UnionColumns(sets)
			if err := loader.WriteMergedCSV(outFile, survivors, columns); err != nil {
				return err
			}
			fmt.Printf("Merged %d files: kept %d/%d rules (removed %d duplicates)\n",
				len(sets), len(survivors), len(all), removed)

			if sessionFile != "" {
				audit := []session.AuditEntry{{
					Time:   time.Now().UTC(),
					Action: "dedup",
					Detail: fmt.Sprintf("removed %d exact duplicates", removed),
				}}
				snap := session.FromRules(columns, survivors, audit)
				if err := session.Save(sessionFile, snap); err != nil {
					return err
				}
				slog.Info("Session saved", "path", sessionFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "merged.csv", "Path to write the merged CSV")
	cmd.Flags().StringVar(&sessionFile, "session", "", "Optional session snapshot to write")
	cmd.Flags().StringVar(&dbDSN, "db", "", "MariaDB DSN to load staged rules from instead of CSV files")
	cmd.Flags().StringVar(&dbDevice, "device", "", "Restrict DB loading to one device")
	return cmd
}

func newSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <export.csv>...",
		Short: "Report similar-rule pairs and single-field merge groups",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("min-similarity") {
				cfg.MinSimilarity = minSimilarity
			}
			sets, err := loadSets(args)
			if err != nil {
				return err
			}
			all := model.AllRules(sets)
			survivors, removed := engine.DeduplicateIdentical(all)
			if removed > 0 {
				fmt.Printf("Dropped %d exact duplicates before matching\n", removed)
			}

			opts := similarityOptions(cfg)
			suggestions := engine.FindSimilarRules(survivors, opts)
			fmt.Printf("Similarity suggestions: %d\n", len(suggestions))
			for _, s := range suggestions {
				fmt.Printf("~ %s [%s] vs %s [%s] | score=%.2f\n",
					s.RuleA.Field("name"), s.RuleA.SourceDevice,
					s.RuleB.Field("name"), s.RuleB.SourceDevice, s.Score)
				fmt.Printf("  %s\n", engine.BuildSuggestionReason(s))
			}

			groups := engine.FindSingleFieldMergeGroups(survivors, opts)
			fmt.Printf("Single-field merge groups: %d\n", len(groups))
			for _, g := range groups {
				names := make([]string, len(g.Rules))
				for i, r := range g.Rules {
					names[i] = r.Field("name")
				}
				fmt.Printf("* %s: %s -> %s\n", g.Field, strings.Join(names, ", "), strings.Join(g.Union, " "))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&minSimilarity, "min-similarity", 0.2, "Minimum similarity score to report a pair")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <export.csv>...",
		Short: "Generate a FortiOS CLI script from merged rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sets, err := loadSets(args)
			if err != nil {
				return err
			}
			survivors, removed := engine.DeduplicateIdentical(model.AllRules(sets))
			slog.Info("Rules prepared for generation", "rules", len(survivors), "duplicates_removed", removed)

			catalog := fortigate.NewObjectCatalog()
			if objectsFile != "" {
				data, err := os.ReadFile(objectsFile)
				if err != nil {
					return fmt.Errorf("read objects config: %w", err)
				}
				catalog = fortigate.Parse(string(data))
				slog.Info("Object catalog loaded", "names", len(catalog.Names()))
			}

			opts := generateOptions(cfg)
			opts.IncludeObjects = !skipObjects && objectsFile != ""
			script := fortigate.Generate(survivors, catalog, opts)

			if outFile == "-" {
				fmt.Print(script)
				return nil
			}
			if err := os.WriteFile(outFile, []byte(script), 0o644); err != nil {
				return fmt.Errorf("write script: %w", err)
			}
			fmt.Printf("Wrote %d policies to %s\n", len(survivors), outFile)
			return nil
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "policies.conf", "Output script path ('-' for stdout)")
	cmd.Flags().StringVar(&objectsFile, "objects", "", "Existing FortiOS config supplying the object catalog")
	cmd.Flags().BoolVar(&skipObjects, "policies-only", false, "Emit only the policy block")
	return cmd
}

func newParseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <config.conf>",
		Short: "Parse a FortiOS config into its object catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			catalog := fortigate.Parse(string(data))
			fmt.Printf("addresses: %d\n", len(catalog.Addresses))
			fmt.Printf("address groups: %d\n", len(catalog.AddrGroups))
			fmt.Printf("services: %d\n", len(catalog.Services))
			fmt.Printf("service groups: %d\n", len(catalog.ServiceGroups))
			fmt.Printf("vips: %d\n", len(catalog.VIPs))
			fmt.Printf("ippools: %d\n", len(catalog.IPPools))
			fmt.Printf("policies: %d\n", len(catalog.Policies))

			names := make([]string, 0, len(catalog.Names()))
			for n := range catalog.Names() {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Println("  " + n)
			}
			return nil
		},
	}
	return cmd
}

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <a.csv> <b.csv>",
		Short: "Show two exports as a unified diff of their rule tables",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			a, err := loader.ReadPolicyCSV(args[0])
			if err != nil {
				return err
			}
			b, err := loader.ReadPolicyCSV(args[1])
			if err != nil {
				return err
			}
			diff := difflib.UnifiedDiff{
				A:        difflib.SplitLines(renderRules(a, cfg.IdentityFields)),
				B:        difflib.SplitLines(renderRules(b, cfg.IdentityFields)),
				FromFile: a.SourceDevice,
				ToFile:   b.SourceDevice,
				Context:  3,
			}
			text, err := difflib.GetUnifiedDiffString(diff)
			if err != nil {
				return err
			}
			if text == "" {
				fmt.Println("No differences on the identity fields.")
				return nil
			}
			fmt.Print(text)
			return nil
		},
	}
	return cmd
}

// renderRules formats a rule set one line per rule over the identity
// fields, so the diff reflects rule semantics rather than raw CSV.
func renderRules(ps *model.RuleSet, fields []string) string {
	var b strings.Builder
	for _, r := range ps.Rules {
		parts := make([]string, 0, len(fields)+1)
		parts = append(parts, "name="+model.NormalizeSpace(r.Field("name")))
		for _, f := range fields {
			parts = append(parts, f+"="+model.NormalizeSpace(r.Field(f)))
		}
		b.WriteString(strings.Join(parts, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

// loadInputs loads from the database when a DSN is set, otherwise
// from the CSV paths.
func loadInputs(paths []string) ([]*model.RuleSet, error) {
	if dbDSN != "" {
		l, err := loader.NewMariaDBLoader(dbDSN, dbDevice)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		defer l.Close()
		return l.Load()
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input files provided")
	}
	return loadSets(paths)
}

// loadSets reads the exports concurrently; results keep argument
// order so downstream passes stay deterministic.
func loadSets(paths []string) ([]*model.RuleSet, error) {
	sets := make([]*model.RuleSet, len(paths))
	errs := make([]error, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sets[i], errs[i] = loader.ReadPolicyCSV(path)
		}(i, path)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		slog.Debug("Export loaded", "path", paths[i], "rules", len(sets[i].Rules))
	}
	return sets, nil
}

func similarityOptions(cfg *config.EngineConfig) engine.SimilarityOptions {
	return engine.SimilarityOptions{
		CandidateFields: cfg.CandidateFields,
		ExcludedFields:  cfg.ExcludedFields(),
		AnchorFields:    cfg.AnchorFields,
		KeyFields:       cfg.KeyFields,
		MinSimilarity:   cfg.MinSimilarity,
	}
}

func generateOptions(cfg *config.EngineConfig) fortigate.GenerateOptions {
	return fortigate.GenerateOptions{
		Interfaces: fortigate.InterfaceMap{
			SSLVPNPlaceholder: cfg.SSLVPNPlaceholder,
			SSLVPNInterface:   cfg.SSLVPNInterface,
			ZonePrefix:        cfg.ZonePrefix,
		},
		NATTruthy:     cfg.NATTruthy,
		MaxNameLength: cfg.MaxNameLength,
	}
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err == nil {
			logWriter = f
		}
		// Fall back to stderr silently; the logger isn't up yet.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}
