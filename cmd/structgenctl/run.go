package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cexll/structgen/pkg/config"
	"github.com/cexll/structgen/pkg/generate"
	"github.com/cexll/structgen/pkg/mcp"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/model/anthropic"
	"github.com/cexll/structgen/pkg/model/openai"
	"github.com/cexll/structgen/pkg/schema"
	"github.com/cexll/structgen/pkg/session"
	"github.com/cexll/structgen/pkg/telemetry"
	"github.com/cexll/structgen/pkg/tool"
	toolbuiltin "github.com/cexll/structgen/pkg/tool/builtin"
)

func runCommand(ctx context.Context, argv []string, cfgPath string, streams ioStreams) error {
	set := flag.NewFlagSet("run", flag.ContinueOnError)
	set.SetOutput(streams.err)
	var (
		providerFlag = set.String("provider", "", "Override the configured provider (anthropic, openai).")
		modelFlag    = set.String("model", "", "Override the configured model.")
		schemaFlag   = set.String("schema", "", "Path to a JSON Schema file constraining the output.")
		sessionFlag  = set.String("session", "", "Session ID; the conversation is journaled and resumable.")
		streamFlag   = set.Bool("stream", false, "Stream partial output instead of waiting for completion.")
		configFlag   = set.String("config", cfgPath, "Path to config file.")
	)
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: structgenctl run [flags] \"prompt\"")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
		fmt.Fprintln(streams.err, "\nExamples:")
		fmt.Fprintln(streams.err, "  structgenctl run \"summarize the release notes\"")
		fmt.Fprintln(streams.err, "  structgenctl run --schema person.json \"extract the author\"")
		fmt.Fprintln(streams.err, "  structgenctl run --stream --session review \"list open risks\"")
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	prompt := strings.TrimSpace(strings.Join(set.Args(), " "))
	if prompt == "" {
		return errors.New("run requires a prompt")
	}

	cfg, err := loadSettings(*configFlag, *providerFlag, *modelFlag)
	if err != nil {
		return err
	}

	if cfg.Telemetry.Enabled {
		mgr, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName:    "structgenctl",
			ServiceVersion: version,
			Environment:    cfg.Telemetry.Environment,
		}, cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		telemetry.SetDefault(mgr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mgr.Shutdown(shutdownCtx)
		}()
	}

	backend, err := backendFor(cfg)
	if err != nil {
		return err
	}
	registry, closers, err := buildRegistry(ctx, cfg)
	defer closeAll(closers)
	if err != nil {
		return err
	}

	target, err := loadTarget(*schemaFlag)
	if err != nil {
		return err
	}

	var journal *session.Journal
	history := message.NewHistory()
	if *sessionFlag != "" {
		journal, err = session.Open(*sessionFlag, sessionRoot(cfg))
		if err != nil {
			return err
		}
		defer journal.Close()
		history = journal.History()
	}
	persistFrom := history.Len()
	history.Append(message.User(prompt))

	logger := slog.New(slog.NewTextHandler(streams.err, &slog.HandlerOptions{Level: slog.LevelWarn}))
	gen, err := generate.New(backend,
		generate.WithTools(registry),
		generate.WithLogger(logger),
		generate.WithTelemetry(telemetry.Default()),
		generate.WithRequestOptions(model.Options{
			Model:        cfg.Model,
			MaxTokens:    int(cfg.MaxTokens),
			Temperature:  cfg.Temperature,
			SystemPrompt: cfg.SystemPrompt,
		}),
	)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var result *generate.Result
	if *streamFlag {
		result, err = streamRun(runCtx, gen, history, target, streams.out)
	} else {
		result, err = gen.Generate(runCtx, history, target)
	}
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if journal != nil {
		if err := journal.AppendAll(result.Messages[persistFrom:]...); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}
	if !*streamFlag {
		writeResult(streams.out, result)
	}
	return nil
}

func streamRun(ctx context.Context, gen *generate.Generator, history *message.History, target *schema.Schema, out io.Writer) (*generate.Result, error) {
	st, err := gen.GenerateStream(ctx, history, target)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	var printed string
	for st.Next() {
		partial := st.Current()
		if partial.Value.IsNull() {
			printed = printDelta(out, printed, partial.Text)
			continue
		}
		encoded, err := json.Marshal(partial.Value)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%s\n", encoded)
	}
	fmt.Fprintln(out)
	return st.Result()
}

// printDelta writes the unseen tail of text. A tool turn restarts the
// partial text from scratch; when the new text no longer extends what was
// printed, start a fresh block instead of diffing against the old turn.
func printDelta(out io.Writer, printed, text string) string {
	if !strings.HasPrefix(text, printed) {
		fmt.Fprintln(out)
		printed = ""
	}
	fmt.Fprint(out, text[len(printed):])
	return text
}

func writeResult(out io.Writer, result *generate.Result) {
	if result.Structured {
		if encoded, err := json.MarshalIndent(result.Value, "", "  "); err == nil {
			fmt.Fprintf(out, "%s\n", encoded)
		}
	} else {
		fmt.Fprintln(out, result.Text)
	}
	fmt.Fprintf(out, "\n[tokens: %d in / %d out, tool turns: %d]\n",
		result.Usage.PromptTokens, result.Usage.CompletionTokens, result.ToolTurns)
}

func loadSettings(path, provider, modelName string) (*config.Settings, error) {
	loader, err := config.NewLoader(path)
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	cfg = cfg.Clone()
	if provider != "" {
		cfg.Provider = provider
	}
	if modelName != "" {
		cfg.Model = modelName
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func backendFor(cfg *config.Settings) (model.Backend, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return anthropic.New(key, cfg.BaseURL), nil
	case config.ProviderOpenAI:
		return openai.New(key, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Provider)
	}
}

// buildRegistry registers the builtins passing the allowlist, then tools from
// every configured MCP server. The returned closers tear down MCP sessions.
func buildRegistry(ctx context.Context, cfg *config.Settings) (*tool.Registry, []io.Closer, error) {
	registry := tool.NewRegistry()
	var closers []io.Closer

	builtins := []func() (tool.Tool, error){
		toolbuiltin.Calculator,
		func() (tool.Tool, error) { return toolbuiltin.Fetch(nil) },
	}
	for _, build := range builtins {
		t, err := build()
		if err != nil {
			return registry, closers, err
		}
		if !cfg.AllowsTool(t.Name()) {
			continue
		}
		if err := registry.Register(t); err != nil {
			return registry, closers, err
		}
	}

	for _, srv := range cfg.MCPServers {
		client, err := mcp.Dial(ctx, srv, version)
		if err != nil {
			return registry, closers, err
		}
		closers = append(closers, client)
		if err := client.RegisterTools(ctx, registry, cfg.AllowsTool); err != nil {
			return registry, closers, err
		}
	}
	return registry, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

func loadTarget(path string) (*schema.Schema, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	var node map[string]any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return schema.FromJSON(node, name)
}

func sessionRoot(cfg *config.Settings) string {
	if cfg.SessionDir != "" {
		return cfg.SessionDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessions"
	}
	return filepath.Join(home, ".structgen", "sessions")
}
