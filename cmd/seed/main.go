package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"maizey-chat/internal/app"
	"maizey-chat/internal/config"
	"maizey-chat/internal/domain/model"
	"maizey-chat/internal/infra/logging"
	"maizey-chat/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	force := flag.Bool("force", false, "seed even when chats already exist")
	provider := flag.String("provider", "noop", "assistant provider to validate against; empty keeps the configured one")
	flag.Parse()

	if err := run(*cfgPath, *provider, *force); err != nil {
		log.Fatal(err)
	}
}

// run returns instead of exiting so the deferred Close flushes the store.
func run(cfgPath, provider string, force bool) error {
	// ---- Config ----
	cfg, err := config.LoadConfigWith(cfgPath, false, providerOverride(provider))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Log.Level = "warn"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.Build(ctx, cfg, logging.New(cfg.Log, false), "seed")
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() { _ = a.Close(context.Background()) }()

	if !a.History.Available() {
		return fmt.Errorf("store backend %q is not available; nothing to seed", cfg.Store.Backend)
	}

	// If chats already exist, do nothing
	if existing := a.History.ListRecent(ctx, 1); len(existing) > 0 && !force {
		fmt.Println("chat history already present. No changes.")
		return nil
	}

	n := seed(ctx, a.History, cfg.UI.Examples)
	fmt.Printf("seeded %d sample chats into %s\n", n, a.Backend)
	return nil
}

// Seeding never talks to the assistant, so it need not hold its credentials.
func providerOverride(provider string) func(*config.Config) {
	if provider == "" {
		return nil
	}
	return func(c *config.Config) { c.Assistant.Provider = provider }
}

func seed(ctx context.Context, history usecase.HistoryUseCase, examples []string) int {
	n := 0
	for _, q := range examples {
		msgs := []model.Message{
			model.NewMessage(model.RoleUser, q),
			model.NewMessage(model.RoleAssistant, sampleReply(q)),
		}
		history.Save(ctx, uuid.NewString(), msgs)
		n++
	}
	return n
}

func sampleReply(q string) string {
	return fmt.Sprintf("Here is a starting point for %q.\n\n```python\nimport requests\n\nresp = requests.get(\"https://api.umich.edu/\", timeout=10)\nprint(resp.status_code)\n```\n\nReplace the path with the endpoint you need.", q)
}
