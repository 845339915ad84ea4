package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"nfc.app/facilitator/common/id"
	"nfc.app/facilitator/common/llm"
	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/core/config"
	"nfc.app/facilitator/internal/facilitator"
	"nfc.app/facilitator/internal/generator"
)

var (
	policyPath    string
	templatesPath string
	articlesPath  string
	seed          uint64
	draw          float64
	useLLM        bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "replay [transcript.jsonl]",
	Short: "Replay a chat transcript through the facilitator",
	Long:  `Feeds a JSONL transcript through the message flow against an in-memory
store and prints every intervention the facilitator would have made.

Each line is {"community_id": "...", "author_id": "...", "content": "...", "at": "RFC3339"}.
Reads stdin when no file is given.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runReplay,
}

func init() {
	rootCmd.Flags().StringVar(&policyPath, "policy", "", "observer policy YAML (defaults to the embedded policy)")
	rootCmd.Flags().StringVar(&templatesPath, "templates", "", "template set YAML (defaults to the embedded templates)")
	rootCmd.Flags().StringVar(&articlesPath, "articles", "", "article catalog YAML (defaults to the embedded catalog)")
	rootCmd.Flags().Uint64Var(&seed, "seed", 1, "seed for the probability sampler")
	rootCmd.Flags().Float64Var(&draw, "draw", -1, "fixed sampler draw in [0,1); negative samples randomly")
	rootCmd.Flags().BoolVar(&useLLM, "llm", false, "generate with the configured LLM, templates as fallback")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log engine decisions to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(config.ServiceTypeReplay)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogger(verbose)

	if err := id.Init(cfg.NodeID); err != nil {
		return fmt.Errorf("initializing id generator: %w", err)
	}

	in := io.Reader(os.Stdin)
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening transcript: %w", err)
		}
		defer f.Close()
		in = f
	}

	lines, err := readTranscript(in)
	if err != nil {
		return err
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	summary, err := newReplayer(opts).run(ctx, lines, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	summary.print(cmd.OutOrStdout())
	return nil
}

func buildOptions(cfg config.Config) (replayOptions, error) {
	policy := facilitator.DefaultPolicy()
	if policyPath != "" {
		p, err := facilitator.LoadPolicy(policyPath)
		if err != nil {
			return replayOptions{}, err
		}
		policy = p
	}

	templates := generator.DefaultTemplates()
	if templatesPath != "" {
		t, err := generator.LoadTemplates(templatesPath)
		if err != nil {
			return replayOptions{}, err
		}
		templates = t
	}

	articles := generator.DefaultArticles()
	if articlesPath != "" {
		a, err := generator.LoadArticles(articlesPath)
		if err != nil {
			return replayOptions{}, err
		}
		articles = a
	}

	var gen facilitator.Generator = generator.NewTemplateGenerator(templates)
	if useLLM {
		if !cfg.LLM.Enabled() {
			return replayOptions{}, fmt.Errorf("--llm needs FACILITATOR_LLM_API_KEY and a supported provider")
		}
		client, err := llm.New(llm.Config{
			Provider:    cfg.LLM.Provider,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return replayOptions{}, fmt.Errorf("creating llm client: %w", err)
		}
		gen = generator.NewFallback(generator.NewLLMGenerator(client), gen)
	}

	var sampler facilitator.Sampler
	if draw >= 0 {
		fixed := draw
		sampler = facilitator.SamplerFunc(func() float64 { return fixed })
	} else {
		sampler = facilitator.SamplerFunc(rand.New(rand.NewPCG(seed, seed)).Float64)
	}

	return replayOptions{
		Facilitator: cfg.Facilitator,
		Policy:      policy,
		Generator:   gen,
		Articles:    generator.NewStaticCatalog(articles),
		Sampler:     sampler,
	}, nil
}

func setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(logger.NewTraceHandler(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	)))
}
