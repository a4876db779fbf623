package tools

import (
	"errors"
	"testing"
)

type fakeTool struct {
	name string
	ran  bool
}

func (f *fakeTool) Name() string            { return f.name }
func (f *fakeTool) Description() string     { return "fake" }
func (f *fakeTool) Schema() map[string]any  { return map[string]any{"type": "object"} }
func (f *fakeTool) Run(params map[string]any, tc Context) (string, error) {
	f.ran = true
	return "ok:" + tc.AgentName, nil
}

func TestRegistry_RefusesUnknownNames(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(&fakeTool{name: "summon_demon"}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("register err = %v, want ErrUnknownTool", err)
	}
	if _, err := r.Invoke("summon_demon", nil, Context{}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("invoke err = %v, want ErrUnknownTool", err)
	}
	// Known in the catalog but not registered is still refused
	if _, err := r.Invoke(ToolFileRead, nil, Context{}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("invoke unregistered err = %v, want ErrUnknownTool", err)
	}
}

func TestRegistry_InvokeInjectsContext(t *testing.T) {
	r := NewRegistry()
	ft := &fakeTool{name: ToolFileRead}
	if err := r.Register(ft); err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := r.Invoke(ToolFileRead, nil, Context{AgentName: "coder"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "ok:coder" || !ft.ran {
		t.Errorf("out = %q, ran = %v", out, ft.ran)
	}
}

func TestRegistry_ResolveFailsOnAnyUnknown(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeTool{name: ToolFileRead}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := r.Resolve([]string{ToolFileRead, "nonsense"}); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("resolve err = %v, want ErrUnknownTool", err)
	}
	resolved, err := r.Resolve([]string{ToolFileRead})
	if err != nil || len(resolved) != 1 {
		t.Errorf("resolve = %v, %v", resolved, err)
	}
}

func TestSpecs_SkipUnknownPreferRegistered(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeTool{name: ToolFileWrite}); err != nil {
		t.Fatalf("register: %v", err)
	}

	specs := r.Specs([]string{ToolFileWrite, ToolFileRead, "bogus"})
	if len(specs) != 2 {
		t.Fatalf("specs = %+v", specs)
	}
	if specs[0].Name != ToolFileWrite || specs[0].Schema == nil || specs[0].Description != "fake" {
		t.Errorf("registered spec = %+v", specs[0])
	}
	if specs[1].Name != ToolFileRead || specs[1].Description == "" {
		t.Errorf("catalog spec = %+v", specs[1])
	}
}

// The catalog is a contract: role whitelists and external tool
// implementations resolve against these exact names.
func TestCatalogCoversContractNames(t *testing.T) {
	for _, name := range []string{
		"file_read", "file_write", "file_edit", "file_search",
		"content_search", "directory_list", "shell", "git",
		"decision_log", "decision_query",
		"sub_agent", "lsp_diagnostics",
		"team_spawn", "team_assign", "team_progress", "team_dissolve",
		"peer_message", "peer_discovery", "peer_claim_region",
		"peer_review", "peer_create_task", "peer_ask_question",
		"peer_answer_question", "peer_forward_question",
		"context_retrieve", "context_offload",
	} {
		if !Known(name) {
			t.Errorf("catalog missing %s", name)
		}
	}
}
