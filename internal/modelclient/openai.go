package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AGENTMESH/internal/types"
)

// DefaultCallTimeout bounds one chat completion request
const DefaultCallTimeout = 120 * time.Second

// providerEnv maps a provider prefix to its API key variable and base URL
var providerEnv = map[string]struct {
	keyVar  string
	baseURL string
}{
	"openai":    {"OPENAI_API_KEY", "https://api.openai.com/v1"},
	"anthropic": {"ANTHROPIC_API_KEY", "https://api.anthropic.com/v1"},
	"zai":       {"ZAI_API_KEY", "https://api.z.ai/api/paas/v4"},
	"groq":      {"GROQ_API_KEY", "https://api.groq.com/openai/v1"},
}

// OpenAIClient talks to any OpenAI-compatible chat completions
// endpoint. Model strings carry a provider prefix ("zai:glm-4.5");
// the prefix selects base URL and API key, the remainder is the wire
// model id.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// HTTPConfig overrides endpoint resolution. Empty fields fall back to
// the provider prefix of each call's model string.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewOpenAI builds an HTTP-backed client
func NewOpenAI(cfg HTTPConfig) *OpenAIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// endpoint resolves base URL and key for a provider-prefixed model
func (c *OpenAIClient) endpoint(model string) (baseURL, apiKey, wireModel string, err error) {
	provider := ""
	wireModel = model
	if i := strings.IndexByte(model, ':'); i >= 0 {
		provider = model[:i]
		wireModel = model[i+1:]
	}

	baseURL, apiKey = c.baseURL, c.apiKey
	if env, ok := providerEnv[provider]; ok {
		if baseURL == "" {
			baseURL = env.baseURL
		}
		if apiKey == "" {
			apiKey = os.Getenv(env.keyVar)
		}
	}
	if baseURL == "" {
		return "", "", "", fmt.Errorf("no endpoint for model %q", model)
	}
	return baseURL, apiKey, wireModel, nil
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Call performs one non-streaming chat completion
func (c *OpenAIClient) Call(ctx context.Context, model string, msgs []types.Message, tools []ToolSpec, opts CallOptions) (*Result, error) {
	baseURL, apiKey, wireModel, err := c.endpoint(model)
	if err != nil {
		return nil, err
	}

	body := c.buildRequestBody(wireModel, msgs, tools, opts)
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model call failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed oaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return c.parseResponse(&parsed), nil
}

func (c *OpenAIClient) buildRequestBody(model string, msgs []types.Message, tools []ToolSpec, opts CallOptions) map[string]any {
	wire := make([]map[string]any, 0, len(msgs)+1)
	if opts.SystemPrompt != "" {
		wire = append(wire, map[string]any{
			"role":    "system",
			"content": opts.SystemPrompt,
		})
	}
	for _, m := range msgs {
		msg := map[string]any{"role": string(m.Role)}

		// Assistant tool-call messages may carry no text; the wire
		// format rejects an explicit empty content there.
		if m.Content != "" || len(m.ToolCalls) == 0 {
			msg["content"] = m.Content
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Arguments)
				calls[i] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": string(argsJSON),
					},
				}
			}
			msg["tool_calls"] = calls
		}
		if m.ToolCallID != "" {
			msg["tool_call_id"] = m.ToolCallID
		}
		wire = append(wire, msg)
	}

	body := map[string]any{
		"model":    model,
		"messages": wire,
	}
	if len(tools) > 0 {
		wireTools := make([]map[string]any, len(tools))
		for i, t := range tools {
			schema := t.Schema
			if schema == nil {
				schema = map[string]any{"type": "object"}
			}
			wireTools[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  schema,
				},
			}
		}
		body["tools"] = wireTools
		body["tool_choice"] = "auto"
	}
	if opts.MaxTokens > 0 {
		body["max_tokens"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		body["temperature"] = opts.Temperature
	}
	return body
}

func (c *OpenAIClient) parseResponse(resp *oaiResponse) *Result {
	result := &Result{}
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		result.Text = msg.Content
		for _, tc := range msg.ToolCalls {
			args := make(map[string]any)
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
			result.ToolCalls = append(result.ToolCalls, types.ToolCall{
				ID:        tc.ID,
				Name:      strings.TrimSpace(tc.Function.Name),
				Arguments: args,
			})
		}
	}
	if resp.Usage != nil {
		result.Usage = types.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}
	}
	return result
}
