package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AGENTMESH/internal/types"
)

func TestOpenAIClient_Call(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Error(err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"content": "hello"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer ts.Close()

	c := NewOpenAI(HTTPConfig{BaseURL: ts.URL, APIKey: "test-key"})
	result, err := c.Call(context.Background(), "zai:glm-4.5",
		[]types.Message{{Role: types.RoleUser, Content: "hi"}},
		nil, CallOptions{SystemPrompt: "be brief", MaxTokens: 100})
	if err != nil {
		t.Fatal(err)
	}

	if result.Text != "hello" {
		t.Errorf("text = %q", result.Text)
	}
	if result.Usage.InputTokens != 12 || result.Usage.OutputTokens != 3 {
		t.Errorf("usage = %+v", result.Usage)
	}

	// Provider prefix is stripped on the wire
	if captured["model"] != "glm-4.5" {
		t.Errorf("model = %v", captured["model"])
	}
	msgs := captured["messages"].([]any)
	first := msgs[0].(map[string]any)
	if first["role"] != "system" || first["content"] != "be brief" {
		t.Errorf("system message = %+v", first)
	}
	if captured["max_tokens"] != float64(100) {
		t.Errorf("max_tokens = %v", captured["max_tokens"])
	}
}

func TestOpenAIClient_ToolCalls(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": "",
					"tool_calls": []map[string]any{{
						"id": "call-1",
						"function": map[string]any{
							"name":      "file_read",
							"arguments": `{"path":"main.go"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	}))
	defer ts.Close()

	c := NewOpenAI(HTTPConfig{BaseURL: ts.URL, APIKey: "k"})
	result, err := c.Call(context.Background(), "zai:glm-4.5",
		[]types.Message{{Role: types.RoleUser, Content: "read it"}},
		[]ToolSpec{{Name: "file_read", Description: "read a file"}},
		CallOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if len(result.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", result.ToolCalls)
	}
	call := result.ToolCalls[0]
	if call.ID != "call-1" || call.Name != "file_read" || call.Arguments["path"] != "main.go" {
		t.Errorf("call = %+v", call)
	}

	// Tools go out in the function wrapper format
	tools := captured["tools"].([]any)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "file_read" {
		t.Errorf("wire tool = %+v", fn)
	}
	if captured["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v", captured["tool_choice"])
	}
}

func TestOpenAIClient_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c := NewOpenAI(HTTPConfig{BaseURL: ts.URL, APIKey: "k"})
	_, err := c.Call(context.Background(), "zai:glm-4.5",
		[]types.Message{{Role: types.RoleUser, Content: "hi"}}, nil, CallOptions{})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v", err)
	}
}

func TestOpenAIClient_UnknownProviderWithoutBaseURL(t *testing.T) {
	c := NewOpenAI(HTTPConfig{})
	_, err := c.Call(context.Background(), "mystery:model-1",
		[]types.Message{{Role: types.RoleUser, Content: "hi"}}, nil, CallOptions{})
	if err == nil {
		t.Error("unknown provider without base URL should fail")
	}
}

func TestOpenAIClient_ToolRoundTripWireFormat(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"content": "done"},
			}},
		})
	}))
	defer ts.Close()

	c := NewOpenAI(HTTPConfig{BaseURL: ts.URL, APIKey: "k"})
	history := []types.Message{
		{Role: types.RoleUser, Content: "read it"},
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{
			{ID: "call-1", Name: "file_read", Arguments: map[string]any{"path": "main.go"}},
		}},
		{Role: types.RoleTool, ToolCallID: "call-1", Content: "package main"},
	}
	if _, err := c.Call(context.Background(), "zai:glm-4.5", history, nil, CallOptions{}); err != nil {
		t.Fatal(err)
	}

	msgs := captured["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("messages = %+v", msgs)
	}
	assistant := msgs[1].(map[string]any)
	if _, hasContent := assistant["content"]; hasContent {
		t.Error("assistant tool-call message must omit empty content")
	}
	call := assistant["tool_calls"].([]any)[0].(map[string]any)
	if call["type"] != "function" {
		t.Errorf("call = %+v", call)
	}
	args := call["function"].(map[string]any)["arguments"].(string)
	if !strings.Contains(args, `"path":"main.go"`) {
		t.Errorf("arguments = %s", args)
	}
	toolMsg := msgs[2].(map[string]any)
	if toolMsg["tool_call_id"] != "call-1" || toolMsg["content"] != "package main" {
		t.Errorf("tool message = %+v", toolMsg)
	}
}
