package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/timmy/helloreadme/internal/app"
	"github.com/timmy/helloreadme/internal/llm"
)

var vectorizeCmd = &cobra.Command{
	Use:   "vectorize",
	Short: "Embed stored projects into the vector index",
	Long: `Embed projects that have not been indexed yet.

Projects whose content changed since they were indexed are only re-embedded
with --refresh-changed; otherwise they are reported as pending.`,
	Args: cobra.NoArgs,
	RunE: runVectorize,
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Find projects semantically similar to a description",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask for project recommendations",
	Long: `Answer a question using the most similar indexed projects as context.

Examples:
  collect ask "a lightweight web framework for Go"
  collect ask --top-k 5 "vector databases with a Python client"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(vectorizeCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)

	vectorizeCmd.Flags().Int("limit", 100, "Maximum projects to process")
	vectorizeCmd.Flags().Bool("refresh-changed", false, "Re-embed projects whose content changed")
	queryCmd.Flags().Int("top-k", 10, "Number of results")
	queryCmd.Flags().String("language", "", "Only return projects in this language")
	askCmd.Flags().Int("top-k", 3, "Number of projects used as context")
}

func runVectorize(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	refresh, _ := cmd.Flags().GetBool("refresh-changed")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		res, err := a.Vectorizer.Run(ctx, limit, refresh)
		if err != nil {
			return err
		}
		fmt.Printf("Candidates: %d\n", res.Candidates)
		fmt.Printf("Inserted:   %d\n", res.Inserted)
		fmt.Printf("Refreshed:  %d\n", res.Refreshed)
		fmt.Printf("Skipped:    %d\n", res.Skipped)
		fmt.Printf("Pending:    %d\n", res.Pending)
		fmt.Printf("Failed:     %d\n", res.Failed)
		if res.Failed > 0 {
			return fmt.Errorf("%d projects failed to vectorize", res.Failed)
		}
		return nil
	})
}

func runQuery(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")
	language, _ := cmd.Flags().GetString("language")
	text := strings.Join(args, " ")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Index.Initialize(ctx); err != nil {
			return err
		}
		hits, err := a.Index.QueryLanguage(ctx, text, topK, language)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			fmt.Println("No similar projects found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SIMILARITY\tNAME\tLANGUAGE\tSTARS")
		for _, h := range hits {
			_, _ = fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", h.Similarity, h.FullName, h.Language, humanize.Comma(int64(h.Stars)))
		}
		return w.Flush()
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	topK, _ := cmd.Flags().GetInt("top-k")
	question := strings.Join(args, " ")

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.LLM.Initialize(ctx); err != nil && !errors.Is(err, llm.ErrNoProvider) {
			return err
		}
		if err := a.Index.Initialize(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: vector index unavailable: %v\n", err)
		}

		answer, err := a.RAG.Ask(ctx, question, topK)
		if err != nil {
			return err
		}
		fmt.Println(answer.Answer)
		if len(answer.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, s := range answer.Sources {
				fmt.Printf("  - %s (%.3f)\n", s.FullName, s.Similarity)
			}
		}
		fmt.Printf("\n[%s/%s]\n", answer.Provider, answer.Model)
		return nil
	})
}
