package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/langlens/internal/lsp"
)

var (
	flagServer    string
	flagServerArg []string
	flagSocket    string
	flagRoot      string
	flagLanguage  string
	flagTimeout   time.Duration
	flagLogLevel  string
)

// defaultServers maps a language id to the conventional server command.
var defaultServers = map[string][]string{
	"go":              {"gopls"},
	"rust":            {"rust-analyzer"},
	"python":          {"pylsp"},
	"typescript":      {"typescript-language-server", "--stdio"},
	"typescriptreact": {"typescript-language-server", "--stdio"},
	"javascript":      {"typescript-language-server", "--stdio"},
	"javascriptreact": {"typescript-language-server", "--stdio"},
	"c":               {"clangd"},
	"cpp":             {"clangd"},
	"lua":             {"lua-language-server"},
	"zig":             {"zls"},
}

var rootCmd = &cobra.Command{
	Use:   "langlens",
	Short: "Language intelligence queries from the command line",
	Long: `langlens drives a Language Server Protocol session for a single file
and prints the result of one query as JSON.

The server command is inferred from the file's language when --server is
not given (gopls for Go, rust-analyzer for Rust, and so on). Positions
are 0-based line and character, matching the protocol convention.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Level
		switch strings.ToLower(flagLogLevel) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "language server command (default: inferred from language)")
	rootCmd.PersistentFlags().StringArrayVar(&flagServerArg, "server-arg", nil, "extra language server argument (repeatable)")
	rootCmd.PersistentFlags().StringVar(&flagSocket, "socket", "", "WebSocket URL of a running server, instead of spawning one")
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&flagLanguage, "language", "", "language id override (default: detected from extension)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 30*time.Second, "overall query timeout")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(completionsCmd, hoverCmd, definitionCmd, referencesCmd, diagnosticsCmd, highlightCmd)
}

var completionsCmd = &cobra.Command{
	Use:   "complete <file> <line> <character>",
	Short: "List completions at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(args, func(ctx context.Context, s *lsp.Session, line, character int) (any, error) {
			return s.Completions(ctx, line, character)
		})
	},
}

var hoverCmd = &cobra.Command{
	Use:   "hover <file> <line> <character>",
	Short: "Show hover documentation at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(args, func(ctx context.Context, s *lsp.Session, line, character int) (any, error) {
			return s.Hover(ctx, line, character)
		})
	},
}

var definitionCmd = &cobra.Command{
	Use:   "def <file> <line> <character>",
	Short: "Show the definition target at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(args, func(ctx context.Context, s *lsp.Session, line, character int) (any, error) {
			return s.Definition(ctx, line, character)
		})
	},
}

var referencesCmd = &cobra.Command{
	Use:   "refs <file> <line> <character>",
	Short: "List references to the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(args, func(ctx context.Context, s *lsp.Session, line, character int) (any, error) {
			return s.References(ctx, line, character)
		})
	},
}

var diagnosticsCmd = &cobra.Command{
	Use:   "diagnostics <file>",
	Short: "Wait for the server's first diagnostics push and print it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
		defer cancel()

		session, err := newSession(args[0])
		if err != nil {
			return err
		}
		defer session.Dispose()

		notes, unsubscribe := session.Subscribe()
		defer unsubscribe()

		if err := session.Initialize(ctx); err != nil {
			return err
		}
		if err := session.OpenDocument(ctx); err != nil {
			return err
		}

		for {
			select {
			case <-ctx.Done():
				return fmt.Errorf("no diagnostics received: %w", ctx.Err())
			case note, ok := <-notes:
				if !ok {
					return fmt.Errorf("session closed before diagnostics arrived")
				}
				if params, ok := lsp.DecodeDiagnostics(note); ok {
					return printJSON(params)
				}
			}
		}
	},
}

// queryFn runs one positional query against a ready session.
type queryFn func(ctx context.Context, s *lsp.Session, line, character int) (any, error)

func runQuery(args []string, query queryFn) error {
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("bad line %q: %w", args[1], err)
	}
	character, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad character %q: %w", args[2], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	defer cancel()

	session, err := newSession(args[0])
	if err != nil {
		return err
	}
	defer session.Dispose()

	if err := session.Initialize(ctx); err != nil {
		return err
	}
	if err := session.OpenDocument(ctx); err != nil {
		return err
	}

	result, err := query(ctx, session, line, character)
	if err != nil {
		return err
	}
	if err := printJSON(result); err != nil {
		return err
	}

	return session.Shutdown(ctx)
}

// newSession builds the transport (socket or spawned server) and binds a
// session to the given file.
func newSession(path string) (*lsp.Session, error) {
	root := flagRoot
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace root: %w", err)
		}
		root = cwd
	}

	language := flagLanguage
	if language == "" {
		language = lsp.DetectLanguageID(path)
	}

	transport, err := newTransport(language, root)
	if err != nil {
		return nil, err
	}

	return lsp.NewSession(transport, path, root, lsp.WithLanguageID(language)), nil
}

func newTransport(language, root string) (lsp.Transport, error) {
	if flagSocket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
		defer cancel()
		return lsp.DialSocket(ctx, flagSocket)
	}

	command := flagServer
	args := flagServerArg
	if command == "" {
		server, ok := defaultServers[language]
		if !ok {
			return nil, fmt.Errorf("no default server for language %q, use --server", language)
		}
		command = server[0]
		args = append(server[1:], args...)
	}

	return lsp.NewStdioTransport(command, args, lsp.WithWorkDir(root))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
