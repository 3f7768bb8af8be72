package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pressgen/pressgen/config"
	"github.com/pressgen/pressgen/internal/agent"
	"github.com/pressgen/pressgen/provider"
	"github.com/pressgen/pressgen/tools/web_fetch"
	"github.com/pressgen/pressgen/tools/web_search"
)

// generateCMD runs the pipeline once without the server. Output goes to
// stdout or, with --out, to a file. No cache or database is touched.
func generateCMD() *cobra.Command {
	var (
		cfgPath    string
		topic      string
		questions  []string
		maxSources int
		audience   string
		tone       string
		useLLM     bool
		outPath    string
	)

	var generate = &cobra.Command{
		Use:   "generate",
		Short: "Generate one post to stdout or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			llm, err := provider.NewProvider(provider.OpenAI, cfg.LLM)
			if err != nil {
				return err
			}
			searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search.APIKey, cfg.Search.MaxResults, cfg.Search.Timeout)
			if err != nil {
				return err
			}
			fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Fetch.Fetcher), web_fetch.Options{
				Timeout:  cfg.Fetch.Timeout,
				MaxChars: cfg.Fetch.MaxChars,
				Retries:  cfg.Fetch.Retries,
				Backoff:  cfg.Fetch.Backoff,
			})
			if err != nil {
				return err
			}

			orch := agent.NewOrchestrator(agent.OrchestratorOptions{
				Researcher: agent.NewResearcher(searcher, fetcher, cfg.Fetch.MinChars, cfg.Fetch.MaxChars, nil),
				Analyst:    agent.NewAnalyst(llm, nil),
				Strategist: agent.NewStrategist(llm, nil),
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.General.DefaultTimeout)
			defer cancel()

			res, err := orch.GeneratePostStream(ctx, agent.GenerateInput{
				Topic:           topic,
				TargetQuestions: questions,
				MaxSources:      maxSources,
				Audience:        audience,
				Tone:            tone,
				UseLLM:          useLLM,
			}, func(phase, message string) {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", phase, message)
			})
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(res.Post.Markdown), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "wrote %s (%d words, ~%d min read)\n", outPath, res.WordCount, res.ReadingTime)
				return nil
			}
			fmt.Println(res.Post.Markdown)
			return nil
		},
	}

	generate.Flags().StringVar(&topic, "topic", "", "post topic (required)")
	generate.Flags().StringArrayVarP(&questions, "question", "q", nil, "target question (repeatable, required)")
	generate.Flags().IntVar(&maxSources, "max-sources", 0, "source cap, 3-10")
	generate.Flags().StringVar(&audience, "audience", "", "target audience")
	generate.Flags().StringVar(&tone, "tone", "", "writing tone")
	generate.Flags().BoolVar(&useLLM, "llm", false, "use the language model for analysis and prose")
	generate.Flags().StringVarP(&outPath, "out", "o", "", "write markdown to file instead of stdout")
	generate.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	_ = generate.MarkFlagRequired("topic")
	_ = generate.MarkFlagRequired("question")

	return generate
}
