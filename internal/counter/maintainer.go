package counter

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"nuggetcore/internal/store"
	"nuggetcore/pkg/domain"
)

// PoolMaintainer keeps every team's Remaining consistent with the live sum
// of its users' counts. It subscribes to the user store's change feed and
// adjusts pools incrementally: credit the previous count back to the old
// team, debit the new count from the new team. Cost per user mutation is
// O(1) regardless of team size, and a user moved between teams carries its
// nuggets across automatically.
type PoolMaintainer struct {
	teams *store.Store[domain.Team]
	log   *zap.Logger
	drift atomic.Int64
}

// NewPoolMaintainer constructs a maintainer adjusting the given team store.
func NewPoolMaintainer(teams *store.Store[domain.Team], log *zap.Logger) *PoolMaintainer {
	if log == nil {
		log = zap.NewNop()
	}
	return &PoolMaintainer{teams: teams, log: log}
}

// Attach subscribes the maintainer to the user store's change feed and
// returns the unsubscribe handle.
func (m *PoolMaintainer) Attach(users *store.Store[domain.User]) func() {
	return users.OnChange(m.handle)
}

// DriftEvents reports how many pool adjustments have failed since startup.
// A non-zero value means at least one team's Remaining may be inconsistent
// until the next reconciliation pass.
func (m *PoolMaintainer) DriftEvents() int64 {
	return m.drift.Load()
}

// handle runs synchronously inside the user commit. Both adjustments touch
// team keys, never the triggering user key, so they serialize on the team's
// own lock. A failed adjustment is logged and counted, never rolled back;
// Reconcile is the repair path.
func (m *PoolMaintainer) handle(ev domain.Event[domain.User]) {
	ctx := context.Background()
	if ev.Action != domain.ActionCreate {
		m.adjust(ctx, ev.Before.TeamID, ev.Before.Count)
	}
	if ev.Action != domain.ActionDelete {
		m.adjust(ctx, ev.After.TeamID, -ev.After.Count)
	}
}

func (m *PoolMaintainer) adjust(ctx context.Context, teamID string, delta int) {
	_, err := m.teams.Modify(ctx, teamID, func(t domain.Team) domain.Team {
		t.Remaining += delta
		return t
	})
	if err != nil {
		m.drift.Add(1)
		m.log.Error("pool adjustment failed",
			zap.String("team", teamID),
			zap.Int("delta", delta),
			zap.Error(err))
	}
}
