package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"
)

// OllamaOptions locates a local Ollama server and the vision model to use.
type OllamaOptions struct {
	BaseURL string
	Port    int
	Model   string
}

// OllamaDescriber describes images with a local vision model through an agent.
type OllamaDescriber struct {
	provider *ollama.Provider
	logger   *slog.Logger
}

// NewOllamaDescriber checks that Ollama is reachable and selects the model.
func NewOllamaDescriber(ctx context.Context, opts OllamaOptions, logger *slog.Logger) (*OllamaDescriber, error) {
	if err := pingOllama(ctx, opts); err != nil {
		return nil, err
	}

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: opts.BaseURL,
		Port:    opts.Port,
	})
	provider.UseModel(ctx, &types.Model{
		ID: opts.Model,
	})

	return &OllamaDescriber{provider: provider, logger: logger}, nil
}

func pingOllama(ctx context.Context, opts OllamaOptions) error {
	url := fmt.Sprintf("%s:%d/api/tags", strings.TrimSuffix(opts.BaseURL, "/"), opts.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}
	return nil
}

// Describe runs a fresh agent per frame so no conversation history is shared
// between captions.
func (d *OllamaDescriber) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	a := agent.NewAgent(&agent.NewAgentConfig{
		Provider:     d.provider,
		Logger:       d.logger,
		SystemPrompt: req.SystemPrompt,
	})

	response := a.Run(
		ctx,
		agent.WithInput(req.Instruction),
		agent.WithImagePath(req.ImagePath),
	)
	if response.Err != nil {
		return "", response.Err
	}

	if len(response.Messages) == 0 {
		return "", errors.New("no response messages received from model")
	}

	// The last message is the model's answer, not the prompt.
	content := strings.TrimSpace(response.Messages[len(response.Messages)-1].Content)
	if content == "" {
		return "", errors.New("empty response from model")
	}
	d.logger.Debug("ollama response", slog.Int("chars", len(content)))
	return content, nil
}
