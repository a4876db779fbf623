package teamtable

import (
	"testing"

	"github.com/AGENTMESH/internal/types"
)

func TestRegistry_Lifecycle(t *testing.T) {
	reg := NewRegistry()

	table := reg.Create("t1")
	if table == nil {
		t.Fatal("Create returned nil")
	}
	if !reg.Exists("t1") {
		t.Error("team should exist")
	}
	if reg.Get("t1") != table {
		t.Error("Get returned a different table")
	}

	reg.Drop("t1")
	if reg.Exists("t1") {
		t.Error("team should be gone after Drop")
	}
	if reg.Get("t1") != nil {
		t.Error("Get after Drop should return nil")
	}

	// Dropping twice is harmless
	reg.Drop("t1")
}

func TestRoster(t *testing.T) {
	table := NewTable()

	table.RegisterAgent(types.AgentInfo{Name: "coder", Role: "coder", Status: types.StatusIdle})
	table.RegisterAgent(types.AgentInfo{Name: "alice", Role: "lead", Status: types.StatusIdle})

	agents := table.ListAgents()
	if len(agents) != 2 || agents[0].Name != "alice" {
		t.Errorf("unexpected roster: %+v", agents)
	}

	if ok := table.UpdateAgent("coder", func(a *types.AgentInfo) {
		a.Status = types.StatusWorking
	}); !ok {
		t.Fatal("UpdateAgent failed")
	}
	info, ok := table.GetAgent("coder")
	if !ok || info.Status != types.StatusWorking {
		t.Errorf("update not applied: %+v", info)
	}

	if ok := table.UpdateAgent("ghost", func(*types.AgentInfo) {}); ok {
		t.Error("UpdateAgent on missing entry should fail")
	}

	table.RemoveAgent("coder")
	if _, ok := table.GetAgent("coder"); ok {
		t.Error("agent should be removed")
	}
}

func TestTaskCacheAndSubTeams(t *testing.T) {
	table := NewTable()

	table.CacheTask(TaskSummary{ID: "t-1", Title: "build", Status: types.TaskPending})
	table.CacheTask(TaskSummary{ID: "t-1", Title: "build", Status: types.TaskAssigned, Owner: "coder"})

	summary, ok := table.CachedTask("t-1")
	if !ok || summary.Status != types.TaskAssigned || summary.Owner != "coder" {
		t.Errorf("unexpected cached task: %+v", summary)
	}
	if got := len(table.CachedTasks()); got != 1 {
		t.Errorf("CachedTasks = %d entries, want 1", got)
	}

	table.AddSubTeam("child-1")
	table.AddSubTeam("child-2")
	table.RemoveSubTeam("child-1")
	subs := table.SubTeams()
	if len(subs) != 1 || subs[0] != "child-2" {
		t.Errorf("unexpected sub-teams: %v", subs)
	}
}

func TestMeta(t *testing.T) {
	table := NewTable()

	if _, ok := table.GetMeta(); ok {
		t.Error("meta should be absent initially")
	}

	table.SetMeta(Meta{ParentTeamID: "root", SpawningAgent: "lead", Depth: 1, ProjectPath: "/repo"})
	meta, ok := table.GetMeta()
	if !ok || meta.Depth != 1 || meta.SpawningAgent != "lead" {
		t.Errorf("unexpected meta: %+v", meta)
	}
}
