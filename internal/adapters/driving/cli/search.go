package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingsdigitallab/refida/internal/core/domain"
	"github.com/kingsdigitallab/refida/internal/core/services"
	"github.com/kingsdigitallab/refida/internal/logger"
)

// maxSnippetRunes caps the text printed for a hit without an explanation.
const maxSnippetRunes = 240

var (
	searchMode      string
	searchLimit     int
	searchOffset    int
	searchMinScore  float64
	searchJSON      bool
	searchNoExplain bool
)

var searchCmd = &cobra.Command{
	Use:   "search [phrase]",
	Short: "Search indexed documents",
	Long: `Searches the dataset with one of three modes:

  semantic-docs       rank documents by their whole-document embedding
  semantic-sentences  rank documents by their best-matching sentence
  lexical             BM25 keyword search over the inverted index

Document hits are explained by the sentences that best match the phrase.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", string(domain.SearchModeSemanticDocs),
		"search mode: semantic-docs, semantic-sentences or lexical")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results (default search.limit)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of results to skip")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", -1, "minimum semantic score (default search.min_score)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchNoExplain, "no-explain", false, "do not explain document hits")
	rootCmd.AddCommand(searchCmd)
}

// searchResult is a hit with its rendered snippet.
type searchResult struct {
	domain.Hit
	Snippet     string              `json:"snippet"`
	Explanation *domain.Explanation `json:"explanation,omitempty"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	phrase := args[0]

	mode := domain.SearchMode(searchMode)
	if !mode.IsValid() {
		return fmt.Errorf("unknown search mode %q (want semantic-docs, semantic-sentences or lexical)", searchMode)
	}

	if err := ensureServices(cmd, Options{}); err != nil {
		return err
	}
	if searchService == nil {
		return errors.New("search service not configured")
	}

	search := currentSearchSettings()
	opts := domain.SearchOptions{
		Limit:    searchLimit,
		Offset:   searchOffset,
		MinScore: search.MinScore,
	}
	if searchMinScore >= 0 {
		opts.MinScore = searchMinScore
	}

	ctx := cmd.Context()
	hits, err := searchService.SearchPhrase(ctx, mode, phrase, opts)
	if err != nil {
		return searchError(mode, err)
	}

	results := make([]searchResult, len(hits))
	for i, hit := range hits {
		results[i] = searchResult{Hit: hit, Snippet: truncate(hit.Text, maxSnippetRunes)}
		if searchNoExplain {
			continue
		}
		switch mode {
		case domain.SearchModeSemanticDocs:
			exp, err := searchService.Explain(ctx, hit, phrase, search.MaxSnippets)
			if err != nil {
				logger.Warn("explaining %s: %v", hit.ID, err)
				exp = domain.Explanation{Warning: services.ExplanationFailedWarning}
			}
			results[i].Explanation = &exp
			if exp.Preview != "" {
				results[i].Snippet = exp.Preview
			}
		case domain.SearchModeLexical:
			text, err := searchService.GetHighlightedTextFromHit(ctx, hit, phrase, search.MaxSnippets)
			if err != nil {
				logger.Warn("highlighting %s: %v", hit.ID, err)
				continue
			}
			results[i].Snippet = truncate(text, maxSnippetRunes)
		}
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

// searchError turns a search failure into an actionable message.
func searchError(mode domain.SearchMode, err error) error {
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		return fmt.Errorf("the %s index has not been built. Run `refida reindex` to build it", mode)
	case errors.Is(err, domain.ErrMalformedQuery):
		return fmt.Errorf("search failed: the query could not be parsed (%w)", err)
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return fmt.Errorf("%s search needs an embedding provider: configure one with "+
			"`refida settings set embedding.provider ...` or use --mode lexical", mode)
	default:
		return fmt.Errorf("search failed: %w", err)
	}
}

// currentSearchSettings returns the configured search settings, or the
// defaults when no settings service is available.
func currentSearchSettings() domain.SearchSettings {
	defaults := domain.DefaultAppSettings().Search
	if settingsService == nil {
		return defaults
	}
	settings, err := settingsService.Get()
	if err != nil {
		logger.Warn("reading settings: %v", err)
		return defaults
	}
	return settings.Search
}

func outputSearchJSON(cmd *cobra.Command, results []searchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []searchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		// Format: [N] ID (Score)
		cmd.Printf("  [%d] %s (%.2f)\n", searchOffset+i+1, r.ID, r.Score)
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		if r.Explanation != nil && r.Explanation.Warning != "" {
			cmd.Printf("      %s\n", r.Explanation.Warning)
		}
		cmd.Println()
	}
	return nil
}

// truncate shortens s to at most n runes, collapsing whitespace.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "..."
}
