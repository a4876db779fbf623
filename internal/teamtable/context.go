package teamtable

import (
	"sort"

	"github.com/AGENTMESH/internal/types"
)

// Agent roster

// RegisterAgent adds or replaces a roster entry
func (t *Table) RegisterAgent(info types.AgentInfo) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[Key{Kind: KindAgent, A: info.Name}] = info
}

// UpdateAgent applies fn to an existing roster entry
func (t *Table) UpdateAgent(name string, fn func(*types.AgentInfo)) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	info, ok := t.entries[Key{Kind: KindAgent, A: name}].(types.AgentInfo)
	if !ok {
		return false
	}
	fn(&info)
	t.entries[Key{Kind: KindAgent, A: name}] = info
	return true
}

// GetAgent returns a roster entry by name
func (t *Table) GetAgent(name string) (types.AgentInfo, bool) {
	if t == nil {
		return types.AgentInfo{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.entries[Key{Kind: KindAgent, A: name}].(types.AgentInfo)
	return info, ok
}

// RemoveAgent deletes a roster entry
func (t *Table) RemoveAgent(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, Key{Kind: KindAgent, A: name})
}

// ListAgents returns all roster entries sorted by name
func (t *Table) ListAgents() []types.AgentInfo {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var agents []types.AgentInfo
	for key, value := range t.entries {
		if key.Kind == KindAgent {
			if info, ok := value.(types.AgentInfo); ok {
				agents = append(agents, info)
			}
		}
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents
}

// Discoveries

// AddDiscovery appends a finding to the team's discovery log and
// returns its assigned sequence number.
func (t *Table) AddDiscovery(from, discType, content string) int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	d := types.Discovery{
		Seq:       t.seq,
		From:      from,
		Type:      discType,
		Content:   content,
		CreatedAt: t.now(),
	}
	t.entries[Key{Kind: KindDiscovery, A: seqKey(t.seq)}] = d
	return t.seq
}

// ListDiscoveries returns discoveries in sequence order, optionally
// filtered by type ("" matches all).
func (t *Table) ListDiscoveries(discType string) []types.Discovery {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []types.Discovery
	for key, value := range t.entries {
		if key.Kind != KindDiscovery {
			continue
		}
		d, ok := value.(types.Discovery)
		if !ok {
			continue
		}
		if discType != "" && d.Type != discType {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Task summary cache

// CacheTask stores a denormalized task summary
func (t *Table) CacheTask(summary TaskSummary) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[Key{Kind: KindTask, A: summary.ID}] = summary
}

// CachedTask returns a task summary by id
func (t *Table) CachedTask(taskID string) (TaskSummary, bool) {
	if t == nil {
		return TaskSummary{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[Key{Kind: KindTask, A: taskID}].(TaskSummary)
	return s, ok
}

// CachedTasks returns all cached task summaries
func (t *Table) CachedTasks() []TaskSummary {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []TaskSummary
	for key, value := range t.entries {
		if key.Kind == KindTask {
			if s, ok := value.(TaskSummary); ok {
				out = append(out, s)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pair sessions

// PutPair stores an active pair session
func (t *Table) PutPair(session PairSession) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[Key{Kind: KindPair, A: session.ID}] = session
}

// GetPair returns a pair session by id
func (t *Table) GetPair(pairID string) (PairSession, bool) {
	if t == nil {
		return PairSession{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[Key{Kind: KindPair, A: pairID}].(PairSession)
	return s, ok
}

// DeletePair removes a pair session
func (t *Table) DeletePair(pairID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, Key{Kind: KindPair, A: pairID})
}

// Sub-team links

// AddSubTeam records a child team id
func (t *Table) AddSubTeam(teamID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[Key{Kind: KindSubTeam, A: teamID}] = teamID
}

// RemoveSubTeam deletes a child team link
func (t *Table) RemoveSubTeam(teamID string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, Key{Kind: KindSubTeam, A: teamID})
}

// SubTeams lists child team ids
func (t *Table) SubTeams() []string {
	if t == nil {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for key := range t.entries {
		if key.Kind == KindSubTeam {
			out = append(out, key.A)
		}
	}
	sort.Strings(out)
	return out
}

// seqKey formats a sequence number as a fixed-width sortable key
func seqKey(seq int64) string {
	const digits = "0123456789"
	buf := [20]byte{}
	i := len(buf)
	for seq > 0 {
		i--
		buf[i] = digits[seq%10]
		seq /= 10
	}
	for i > 0 {
		i--
		buf[i] = '0'
	}
	return string(buf[:])
}
