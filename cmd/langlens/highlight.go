package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/langlens/internal/highlight"
	"github.com/dshills/langlens/internal/linecache"
	"github.com/dshills/langlens/internal/lsp"
)

var flagTheme string

func init() {
	highlightCmd.Flags().StringVar(&flagTheme, "theme", "default", "color theme: default, monokai")
}

var highlightCmd = &cobra.Command{
	Use:   "highlight <file>",
	Short: "Tokenize a file and print its highlight spans",
	Long: `Tokenizes every line of a file with the built-in grammars and prints
the resulting span tree as JSON, one array per line. Files beyond the
batch threshold exercise the parallel worker path.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		lines := strings.Split(string(content), "\n")

		language := flagLanguage
		if language == "" {
			language = lsp.DetectLanguageID(path)
		}

		var theme *highlight.Theme
		switch flagTheme {
		case "monokai":
			theme = highlight.MonokaiTheme()
		default:
			theme = highlight.DefaultTheme()
		}

		cache := linecache.New(highlight.NewTokenizer(nil, theme), language)
		defer cache.Dispose()

		done := make(chan struct{})
		cache.PreHighlight(0, len(lines)-1, func(i int) string {
			return lines[i]
		}, func() {
			close(done)
		})
		<-done

		out := make([][]highlight.Span, len(lines))
		for i, line := range lines {
			out[i] = cache.LineSpan(i, line)
		}

		stats := cache.Stats()
		fmt.Fprintf(os.Stderr, "%d lines, cache hits %d misses %d\n", len(lines), stats.Hits, stats.Misses)
		return printJSON(out)
	},
}
