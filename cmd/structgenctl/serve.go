package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cexll/structgen/pkg/config"
	"github.com/cexll/structgen/pkg/event"
	"github.com/cexll/structgen/pkg/generate"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/schema"
)

// newBackend is indirected so handler tests can substitute a stub provider.
var newBackend = backendFor

// server runs generations over HTTP and fans lifecycle events out to SSE
// clients on /events. Settings swap in place when the config file changes.
type server struct {
	events *event.Stream
	logger *slog.Logger

	mu  sync.RWMutex
	cfg *config.Settings
}

func (s *server) settings() *config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *server) swap(cfg *config.Settings) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

type generateRequest struct {
	Prompt string         `json:"prompt"`
	Schema map[string]any `json:"schema,omitempty"`
}

type generateResponse struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text,omitempty"`
	Value          any    `json:"value,omitempty"`
	Structured     bool   `json:"structured"`
	ToolTurns      int    `json:"tool_turns"`
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	var target *schema.Schema
	if req.Schema != nil {
		converted, err := schema.FromJSON(req.Schema, "request")
		if err != nil {
			http.Error(w, fmt.Sprintf("convert schema: %v", err), http.StatusBadRequest)
			return
		}
		target = converted
	}

	cfg := s.settings()
	backend, err := newBackend(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	registry, closers, err := buildRegistry(r.Context(), cfg)
	defer closeAll(closers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conversationID := uuid.NewString()
	gen, err := generate.New(backend,
		generate.WithTools(registry),
		generate.WithLogger(s.logger),
		generate.WithEvents(s.events, conversationID),
		generate.WithRequestOptions(model.Options{
			Model:        cfg.Model,
			MaxTokens:    int(cfg.MaxTokens),
			Temperature:  cfg.Temperature,
			SystemPrompt: cfg.SystemPrompt,
		}),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	runCtx, cancel := context.WithTimeout(r.Context(), cfg.Timeout)
	defer cancel()
	result, err := gen.Generate(runCtx, message.NewHistory(message.User(req.Prompt)), target)
	if err != nil {
		http.Error(w, fmt.Sprintf("generate: %v", err), http.StatusBadGateway)
		return
	}

	resp := generateResponse{
		ConversationID: conversationID,
		Structured:     result.Structured,
		ToolTurns:      result.ToolTurns,
	}
	if result.Structured {
		resp.Value = result.Value.ToAny()
	} else {
		resp.Text = result.Text
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/events", s.events)
	mux.HandleFunc("/generate", s.handleGenerate)
	return mux
}

func serveCommand(ctx context.Context, argv []string, cfgPath string, streams ioStreams) error {
	set := flag.NewFlagSet("serve", flag.ContinueOnError)
	set.SetOutput(streams.err)
	var (
		addrFlag   = set.String("addr", "127.0.0.1:8080", "Listen address.")
		configFlag = set.String("config", cfgPath, "Path to config file.")
	)
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: structgenctl serve [flags]")
		fmt.Fprintln(streams.err, "\nServes POST /generate and an SSE event feed on GET /events.")
		fmt.Fprintln(streams.err, "Config file changes apply to subsequent requests without a restart.")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	loader, err := config.NewLoader(*configFlag)
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(streams.err, &slog.HandlerOptions{Level: slog.LevelInfo}))
	srv := &server{events: event.NewStream(), logger: logger, cfg: cfg}

	updates, err := loader.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	go func() {
		for cfg := range updates {
			srv.swap(cfg)
			logger.Info("settings reloaded", slog.String("provider", cfg.Provider), slog.String("model", cfg.Model))
		}
	}()

	httpSrv := &http.Server{Addr: *addrFlag, Handler: srv.handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(streams.out, "listening on http://%s\n", *addrFlag)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
