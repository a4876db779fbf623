package teamtable

import (
	"sort"
	"time"

	"github.com/AGENTMESH/internal/types"
)

// ClaimTTL is how long a region claim stays live. Expired claims are
// ignored by listing and by conflict checks; sweeping is lazy at read
// time, there is no background reaper.
const ClaimTTL = 5 * time.Minute

// ClaimRegion inserts a claim unless another agent holds an
// overlapping, non-expired claim on the same path. On conflict the
// blocking claim is returned and ok is false. An agent never conflicts
// with its own claims; re-claiming replaces them.
func (t *Table) ClaimRegion(agent, path string, region types.Region) (conflict *types.RegionClaim, ok bool) {
	if t == nil {
		return nil, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, value := range t.entries {
		if key.Kind != KindClaim || key.A != path {
			continue
		}
		claim, isClaim := value.(types.RegionClaim)
		if !isClaim {
			continue
		}
		if expired(claim, now) {
			delete(t.entries, key)
			continue
		}
		if claim.Agent == agent {
			continue
		}
		if claim.Region.Overlaps(region) {
			c := claim
			return &c, false
		}
	}

	t.entries[Key{Kind: KindClaim, A: path, B: agent}] = types.RegionClaim{
		Agent:     agent,
		Path:      path,
		Region:    region,
		ClaimedAt: now,
	}
	return nil, true
}

// ReleaseRegion drops an agent's claim on a path. Releasing a claim
// that does not exist is a no-op.
func (t *Table) ReleaseRegion(agent, path string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, Key{Kind: KindClaim, A: path, B: agent})
}

// ListClaims returns the live claims on one path
func (t *Table) ListClaims(path string) []types.RegionClaim {
	return t.listClaims(func(c types.RegionClaim) bool { return c.Path == path })
}

// ListAllClaims returns every live claim in the team
func (t *Table) ListAllClaims() []types.RegionClaim {
	return t.listClaims(func(types.RegionClaim) bool { return true })
}

func (t *Table) listClaims(match func(types.RegionClaim) bool) []types.RegionClaim {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var out []types.RegionClaim
	for key, value := range t.entries {
		if key.Kind != KindClaim {
			continue
		}
		claim, ok := value.(types.RegionClaim)
		if !ok {
			continue
		}
		if expired(claim, now) {
			delete(t.entries, key)
			continue
		}
		if match(claim) {
			out = append(out, claim)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Agent < out[j].Agent
	})
	return out
}

// expired reports whether a claim has aged out. The threshold is
// strict: a claim exactly ClaimTTL old is already expired.
func expired(claim types.RegionClaim, now time.Time) bool {
	return now.Sub(claim.ClaimedAt) >= ClaimTTL
}
