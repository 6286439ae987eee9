// Package main is the entry point for the InsightLens CLI. InsightLens
// analyzes code with a local on-device model or the hosted Gemini API,
// routing each request by the apiMode setting.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/normanking/insightlens/internal/bus"
	"github.com/normanking/insightlens/internal/config"
	"github.com/normanking/insightlens/internal/detect"
	"github.com/normanking/insightlens/internal/llm"
	"github.com/normanking/insightlens/internal/logging"
	"github.com/normanking/insightlens/internal/orchestrator"
	"github.com/normanking/insightlens/internal/relay"
	"github.com/normanking/insightlens/internal/snippets"
)

var (
	version        = "0.1.0"
	cfgPath        string
	verbose        bool
	conversationID string
	log            *logging.Logger
)

var (
	startStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func main() {
	lipgloss.SetColorProfile(termenv.ColorProfile())

	rootCmd := &cobra.Command{
		Use:   "insightlens",
		Short: "InsightLens - AI code analysis with local or hosted models",
		Long: `InsightLens analyzes code selections with an AI backend:

  Review code:       insightlens review main.go
  Security check:    cat handler.go | insightlens security -
  Generate tests:    insightlens tests parser.go
  Ask a question:    insightlens ask "why does this leak?" --context main.go

The apiMode setting picks the backend: "local" runs against an on-device
model served by Ollama, "gemini" uses the hosted Gemini API. Switch with
insightlens config set apiMode gemini.`,
		PersistentPreRunE: initLogging,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.insightlens/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&conversationID, "conversation", "c", "", "conversation id for multi-turn context")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("InsightLens v%s\n", version)
		},
	})

	rootCmd.AddCommand(analysisCmd("review", "Review code for bugs and improvements"))
	rootCmd.AddCommand(analysisCmd("security", "Check code for security issues"))
	rootCmd.AddCommand(analysisCmd("tests", "Generate test cases for code"))
	rootCmd.AddCommand(analysisCmd("explain", "Explain what code does"))
	rootCmd.AddCommand(analysisCmd("refactor", "Suggest refactors that keep behavior identical"))
	rootCmd.AddCommand(answerCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(savedCmd())
	rootCmd.AddCommand(relayCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log = logging.New(logging.Config{Level: level, Console: true})
	logging.SetGlobal(log)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// ANALYSIS COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

// analysisCmd builds one code-analysis command. They all share the same
// shape: code from a file argument or stdin, one orchestrator call, rendered
// Markdown out.
func analysisCmd(op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " [file]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(args)
			if err != nil {
				return err
			}
			if !detect.IsLikelyCode(code) {
				log.Warn("input does not look like code (score %d)", detect.Score(code))
			}

			app, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			var text string
			switch op {
			case "review":
				text, err = app.orch.ReviewSmart(cmd.Context(), code, conversationID)
			case "security":
				text, err = app.orch.SecuritySmart(cmd.Context(), code, conversationID)
			case "tests":
				text, err = app.orch.TestsSmart(cmd.Context(), code, conversationID)
			case "explain":
				text, err = app.orch.ExplainSmart(cmd.Context(), code, conversationID)
			case "refactor":
				text, err = app.orch.RefactorSmart(cmd.Context(), code, conversationID)
			}
			if err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render(text))
				return err
			}
			return printMarkdown(text)
		},
	}
}

func answerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "answer <question>",
		Short: "Answer a free-form question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := app.orch.AnswerSmart(cmd.Context(), strings.Join(args, " "), conversationID)
			if err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render(text))
				return err
			}
			return printMarkdown(text)
		},
	}
}

func askCmd() *cobra.Command {
	var contextFile string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about code, optionally continuing a conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var codeContext string
			if contextFile != "" {
				data, err := os.ReadFile(contextFile)
				if err != nil {
					return fmt.Errorf("read context file: %w", err)
				}
				codeContext = string(data)
			}

			app, cleanup, err := initializeApp()
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := app.orch.AskSmart(cmd.Context(), strings.Join(args, " "), codeContext, conversationID)
			if err != nil {
				fmt.Fprintln(os.Stderr, errorStyle.Render(text))
				return err
			}
			return printMarkdown(text)
		},
	}
	cmd.Flags().StringVar(&contextFile, "context", "", "file with code context for the question")
	return cmd
}

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [file]",
		Short: "Report whether text looks like source code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args)
			if err != nil {
				return err
			}
			score := detect.Score(text)
			if detect.IsLikelyCode(text) {
				fmt.Printf("code (score %d)\n", score)
			} else {
				fmt.Printf("not code (score %d)\n", score)
			}
			return nil
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// SAVED SNIPPETS
// ═══════════════════════════════════════════════════════════════════════════════

func savedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved code snippets",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> [file]",
		Short: "Save a code snippet under a name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readInput(args[1:])
			if err != nil {
				return err
			}
			store, err := openSnippets()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Save(cmd.Context(), args[0], code); err != nil {
				return err
			}
			fmt.Printf("Saved code under name: %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved snippets",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSnippets()
			if err != nil {
				return err
			}
			defer store.Close()

			all, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(all) == 0 {
				fmt.Println("No snippets saved.")
				return nil
			}
			fmt.Printf("%d snippets saved:\n\n", len(all))
			for _, sn := range all {
				fmt.Printf("  %s  (%d bytes, updated %s)\n",
					sn.Name, len(sn.Code), sn.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print a saved snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSnippets()
			if err != nil {
				return err
			}
			defer store.Close()

			sn, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(sn.Code)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a saved snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openSnippets()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted code under name: %s\n", args[0])
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// RELAY COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func relayCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the background relay that serves hosted-API requests",
		Long: `The relay accepts fetchGeminiResponse requests over WebSocket and
answers them with the hosted Gemini API, so clients never hold the API key
themselves. Point clients at it with the relay.url setting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}

			gemini := newGeminiProvider(store)
			server := relay.NewServer(relay.NewLocal(gemini), log)

			if listen == "" {
				listen, _ = store.Get("relay.listen")
			}
			if listen == "" {
				listen = "127.0.0.1:8743"
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Relay listening on ws://%s/relay\n", listen)
			return server.ListenAndServe(ctx, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from relay.listen setting)")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the settings the router reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}

			fmt.Println("InsightLens Settings:")
			fmt.Println("─────────────────────")
			for _, key := range []string{
				config.KeyAPIMode,
				config.KeyResponseStyle,
				config.KeyNotifications,
			} {
				value, _ := store.Get(key)
				fmt.Printf("%-15s %s\n", key+":", value)
			}
			if key, _ := store.Get(config.KeyUserAPIKey); key != "" {
				fmt.Printf("%-15s %s\n", config.KeyUserAPIKey+":", "(set)")
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}
			value, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update one setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}
			if err := store.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("%s = %s\n", args[0], args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the settings file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadStore()
			if err != nil {
				return err
			}
			fmt.Println(store.Path())
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// WIRING
// ═══════════════════════════════════════════════════════════════════════════════

type app struct {
	orch   *orchestrator.Orchestrator
	events *bus.Bus
}

// initializeApp wires the settings store, backends, event bus, and the
// orchestrator, plus a subscriber that prints toast notifications.
func initializeApp() (*app, func(), error) {
	store, err := loadStore()
	if err != nil {
		return nil, nil, err
	}

	ollamaEndpoint, _ := store.Get("llm.ollama.endpoint")
	ollamaModel, _ := store.Get("llm.ollama.model")
	local := llm.NewOllamaModel(llm.Config{
		Endpoint: ollamaEndpoint,
		Model:    ollamaModel,
	})

	remote, closeRemote, err := buildRemote(store)
	if err != nil {
		return nil, nil, err
	}

	events := bus.New()
	events.Subscribe(bus.EventNotification, printToast)

	orch := orchestrator.New(store, local, remote, events, log)

	cleanup := func() {
		closeRemote()
		events.Close()
	}
	return &app{orch: orch, events: events}, cleanup, nil
}

// buildRemote picks the hosted-API path: a WebSocket relay when relay.url is
// configured, otherwise the Gemini provider in-process.
func buildRemote(store *config.Store) (relay.Relay, func(), error) {
	url, _ := store.Get("relay.url")
	if url == "" {
		return relay.NewLocal(newGeminiProvider(store)), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := relay.Dial(ctx, url, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to relay %s: %w", url, err)
	}
	return client, func() { client.Close() }, nil
}

func newGeminiProvider(store *config.Store) *llm.GeminiProvider {
	endpoint, _ := store.Get("llm.gemini.endpoint")
	model, _ := store.Get("llm.gemini.model")
	apiKey, _ := store.Get(config.KeyUserAPIKey)
	provider := llm.NewGeminiProvider(llm.Config{
		Endpoint: endpoint,
		Model:    model,
		APIKey:   apiKey,
	})
	// Key edits apply without restarting.
	store.Watch(config.KeyUserAPIKey, provider.SetAPIKey)
	return provider
}

func loadStore() (*config.Store, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

func openSnippets() (*snippets.Store, error) {
	store, err := loadStore()
	if err != nil {
		return nil, err
	}
	dbPath, _ := store.Get("snippets.db_path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, ".insightlens", "snippets.db")
	}
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, strings.TrimPrefix(dbPath, "~"))
	}
	return snippets.Open(dbPath)
}

// ═══════════════════════════════════════════════════════════════════════════════
// OUTPUT
// ═══════════════════════════════════════════════════════════════════════════════

// printToast renders a notification event as a one-line status on stderr,
// the CLI's stand-in for the extension's toast-and-sound notifications.
func printToast(event bus.Event) {
	style := startStyle
	prefix := "▶"
	switch event.Sound {
	case bus.SoundSuccess:
		style, prefix = successStyle, "✓"
	case bus.SoundError:
		style, prefix = errorStyle, "✗"
	}
	fmt.Fprintln(os.Stderr, style.Render(prefix+" "+event.Message))
}

// printMarkdown renders text as terminal Markdown, falling back to plain
// output when rendering fails or stdout is not a terminal.
func printMarkdown(text string) error {
	if !isTerminal(os.Stdout) {
		fmt.Println(text)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Println(text)
		return nil
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		fmt.Println(text)
		return nil
	}
	fmt.Print(rendered)
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// readInput returns the contents of the file argument, or stdin when the
// argument is missing or "-".
func readInput(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("read input file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("no input: pass a file argument or pipe text on stdin")
	}
	return string(data), nil
}
