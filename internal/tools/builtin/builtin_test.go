package builtin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AGENTMESH/internal/memory"
	"github.com/AGENTMESH/internal/tools"
)

func projectContext(t *testing.T) tools.Context {
	t.Helper()
	return tools.Context{
		ProjectPath: t.TempDir(),
		TeamID:      "t1",
		AgentName:   "coder-1",
	}
}

func TestReadWriteListRoundTrip(t *testing.T) {
	tc := projectContext(t)

	out, err := FileWrite{}.Run(map[string]any{
		"path": "pkg/main.go", "content": "package main\n",
	}, tc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "13 bytes") {
		t.Errorf("out = %q", out)
	}

	content, err := FileRead{}.Run(map[string]any{"path": "pkg/main.go"}, tc)
	if err != nil {
		t.Fatal(err)
	}
	if content != "package main\n" {
		t.Errorf("content = %q", content)
	}

	listing, err := DirectoryList{}.Run(map[string]any{"path": "pkg"}, tc)
	if err != nil {
		t.Fatal(err)
	}
	if listing != "main.go" {
		t.Errorf("listing = %q", listing)
	}
}

func TestPathConfinement(t *testing.T) {
	tc := projectContext(t)
	secret := filepath.Join(filepath.Dir(tc.ProjectPath), "secret.txt")
	if err := os.WriteFile(secret, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// Clean collapses the traversal inside the project root, so the
	// read resolves to a nonexistent project file, never the sibling.
	if out, err := (FileRead{}).Run(map[string]any{"path": "../secret.txt"}, tc); err == nil {
		t.Errorf("escape read returned %q", out)
	}
	if _, err := (FileRead{}).Run(map[string]any{"path": "x"}, tools.Context{}); err == nil {
		t.Error("read without project path should fail")
	}
}

func TestContentSearch(t *testing.T) {
	tc := projectContext(t)
	os.WriteFile(filepath.Join(tc.ProjectPath, "a.go"), []byte("package a\nfunc Hello() {}\n"), 0644)
	os.WriteFile(filepath.Join(tc.ProjectPath, "b.go"), []byte("package b\n"), 0644)

	out, err := ContentSearch{}.Run(map[string]any{"pattern": "Hello"}, tc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "a.go:2") || strings.Contains(out, "b.go") {
		t.Errorf("out = %q", out)
	}

	out, err = ContentSearch{}.Run(map[string]any{"pattern": "Goodbye"}, tc)
	if err != nil || out != "no matches" {
		t.Errorf("out = %q, err = %v", out, err)
	}
}

func TestFileSearch(t *testing.T) {
	tc := projectContext(t)
	os.MkdirAll(filepath.Join(tc.ProjectPath, "internal/parser"), 0755)
	os.WriteFile(filepath.Join(tc.ProjectPath, "internal/parser/lexer.go"), []byte("package parser\n"), 0644)
	os.WriteFile(filepath.Join(tc.ProjectPath, "README.md"), []byte("docs\n"), 0644)

	out, err := FileSearch{}.Run(map[string]any{"pattern": "lexer"}, tc)
	if err != nil {
		t.Fatal(err)
	}
	if out != filepath.Join("internal", "parser", "lexer.go") {
		t.Errorf("out = %q", out)
	}

	out, err = FileSearch{}.Run(map[string]any{"pattern": "missing"}, tc)
	if err != nil || out != "no matches" {
		t.Errorf("out = %q, err = %v", out, err)
	}
}

func TestShell(t *testing.T) {
	tc := projectContext(t)

	out, err := Shell{}.Run(map[string]any{"command": "echo hello"}, tc)
	if err != nil || out != "hello" {
		t.Errorf("out = %q, err = %v", out, err)
	}

	if _, err := (Shell{}).Run(map[string]any{"command": "exit 3"}, tc); err == nil {
		t.Error("failing command should error")
	}
	if _, err := (Shell{}).Run(map[string]any{}, tc); err == nil {
		t.Error("missing command should error")
	}
}

func TestGit_RejectsUnknownOperation(t *testing.T) {
	tc := projectContext(t)

	if _, err := (Git{}).Run(map[string]any{"operation": "rebase"}, tc); err == nil {
		t.Error("unknown operation should error")
	}
	if _, err := (Git{}).Run(map[string]any{"operation": "commit"}, tc); err == nil {
		t.Error("commit without message should error")
	}
	if _, err := (Git{}).Run(map[string]any{"operation": "status"}, tools.Context{}); err == nil {
		t.Error("status without project path should error")
	}
}

func TestDecisionLogAndQuery(t *testing.T) {
	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "mesh.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	tc := tools.Context{TeamID: "t1", AgentName: "coder-1"}

	out, err := DecisionLog{Store: store}.Run(map[string]any{
		"node_type": "decision", "title": "use sqlite", "confidence": float64(80),
	}, tc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "logged decision node") {
		t.Errorf("out = %q", out)
	}

	result, err := DecisionQuery{Store: store}.Run(map[string]any{"node_type": "decision"}, tc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "use sqlite") || !strings.Contains(result, "confidence 80") {
		t.Errorf("result = %q", result)
	}

	// Other teams' nodes are invisible
	other, err := DecisionQuery{Store: store}.Run(map[string]any{}, tools.Context{TeamID: "t2"})
	if err != nil || other != "no matching decision nodes" {
		t.Errorf("other = %q, err = %v", other, err)
	}
}

func TestRegisterAll(t *testing.T) {
	store, err := memory.NewSQLiteStore(filepath.Join(t.TempDir(), "mesh.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	reg := tools.NewRegistry()
	if err := RegisterAll(reg, store); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{
		tools.ToolFileRead, tools.ToolFileWrite, tools.ToolDirectoryList,
		tools.ToolContentSearch, tools.ToolFileSearch,
		tools.ToolShell, tools.ToolGit,
		tools.ToolDecisionLog, tools.ToolDecisionQuery,
	} {
		if _, err := reg.Get(name); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}
