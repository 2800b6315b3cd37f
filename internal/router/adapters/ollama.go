package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/smiling-critters/critter-gateway/internal/config"
	"github.com/smiling-critters/critter-gateway/internal/types"
)

// OllamaAdapter talks to a local Ollama-compatible server.
type OllamaAdapter struct {
	client *http.Client
	cfg    func() config.RoutingConfig
}

func NewOllamaAdapter(client *http.Client, cfg func() config.RoutingConfig) *OllamaAdapter {
	return &OllamaAdapter{client: client, cfg: cfg}
}

func (a *OllamaAdapter) Name() string { return "local" }

func (a *OllamaAdapter) Stream(ctx context.Context, systemPrompt string, messages []types.Message, cfg config.RouterConfig) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		rc := a.cfg()
		ctx := ctx
		if rc.StreamTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, rc.StreamTimeout)
			defer cancel()
		}

		req, err := a.newChatRequest(ctx, rc, systemPrompt, messages, cfg)
		if err != nil {
			yield("", err)
			return
		}

		resp, err := a.client.Do(req)
		if err != nil {
			yield("", fmt.Errorf("local chat request: %w", stripURL(err)))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
			yield("", &StatusError{Backend: a.Name(), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, scannerInitialBuffer), scannerMaxBuffer)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var chunk ollamaChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				yield("", fmt.Errorf("local backend: %s", chunk.Error))
				return
			}
			if chunk.Message.Content != "" {
				if !yield(chunk.Message.Content, nil) {
					return
				}
			}
			if chunk.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("read local stream: %w", err))
		}
	}
}

func (a *OllamaAdapter) newChatRequest(ctx context.Context, rc config.RoutingConfig, systemPrompt string, messages []types.Message, cfg config.RouterConfig) (*http.Request, error) {
	msgs := make([]types.Message, 0, len(messages)+1)
	msgs = append(msgs, types.Message{Role: types.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, messages...)

	data, err := json.Marshal(ollamaChatRequest{
		Model:    cfg.LocalModel,
		Stream:   true,
		Messages: msgs,
		Options: ollamaOptions{
			Temperature: rc.Temperature,
			NumPredict:  rc.MaxOutputTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal local request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.LocalEndpoint+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// ListModels returns the model names installed on the local server.
func (a *OllamaAdapter) ListModels(ctx context.Context, endpoint string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(endpoint, "/")+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list local models: %w", stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Backend: a.Name(), StatusCode: resp.StatusCode}
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// HasModel reports whether model, or another tag of it, is installed.
func HasModel(installed []string, model string) bool {
	base, _, _ := strings.Cut(model, ":")
	for _, name := range installed {
		if name == model {
			return true
		}
		if b, _, _ := strings.Cut(name, ":"); b == base {
			return true
		}
	}
	return false
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Messages []types.Message `json:"messages"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
