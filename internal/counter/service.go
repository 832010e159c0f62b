// Package counter exposes the nugget counting operations on top of the
// record stores: joining teams, incrementing and decrementing personal
// counts, and the derived team views, with the pool invariant maintained
// on every mutation.
package counter

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nuggetcore/internal/store"
	"nuggetcore/pkg/domain"
)

// UsersByTeamView names the single permitted grouping of users by team.
const UsersByTeamView = "users_by_team"

// Service wires the team and user stores, the users-by-team view, and the
// pool maintainer into the operation surface consumed by the web layer.
type Service struct {
	teams      *store.Store[domain.Team]
	users      *store.Store[domain.User]
	byTeam     *store.View[domain.User, string]
	maintainer *PoolMaintainer
	detach     func()
	metrics    MetricsRecorder
	log        *zap.Logger
	nowFn      func() time.Time
	newID      func() string
}

// NewService builds the service, registering the users-by-team view (ordered
// by user name) and attaching the pool maintainer to the user change feed.
// Construct it before any writer touches the stores.
func NewService(teams *store.Store[domain.Team], users *store.Store[domain.User], metrics MetricsRecorder, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewExpvarRecorder("")
	}
	byTeam, err := store.NewView(users, UsersByTeamView,
		func(u domain.User) string { return u.TeamID },
		func(a, b domain.User) bool { return a.Name < b.Name })
	if err != nil {
		return nil, err
	}
	maintainer := NewPoolMaintainer(teams, log)
	return &Service{
		teams:      teams,
		users:      users,
		byTeam:     byTeam,
		maintainer: maintainer,
		detach:     maintainer.Attach(users),
		metrics:    metrics,
		log:        log,
		nowFn:      func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}, nil
}

// Close detaches the maintainer and releases the view registration.
func (s *Service) Close() {
	s.detach()
	s.byTeam.Close()
}

// Maintainer exposes the pool maintainer for drift inspection.
func (s *Service) Maintainer() *PoolMaintainer { return s.maintainer }

// JoinTeam creates a user with a fresh opaque session token on the named
// team, provisioning the team with a full pool if it does not exist yet.
func (s *Service) JoinTeam(ctx context.Context, teamID, name string) (domain.User, error) {
	start := s.nowFn()
	user, err := s.joinTeam(ctx, teamID, name)
	s.metrics.RecordOperation("join_team", s.nowFn().Sub(start), err)
	return user, err
}

func (s *Service) joinTeam(ctx context.Context, teamID, name string) (domain.User, error) {
	teamID = strings.TrimSpace(teamID)
	name = strings.TrimSpace(name)
	if teamID == "" {
		return domain.User{}, domain.ValidationError{Field: "team", Msg: "name required"}
	}
	if name == "" {
		return domain.User{}, domain.ValidationError{Field: "name", Msg: "name required"}
	}
	now := s.nowFn()
	team := domain.NewTeam(teamID)
	team.CreatedAt = now
	team.UpdatedAt = now
	if _, created, err := s.teams.PutIfAbsent(ctx, teamID, team); err != nil {
		return domain.User{}, err
	} else if created {
		s.log.Info("team created", zap.String("team", teamID))
	}
	user := domain.User{
		Base:   domain.Base{ID: s.newID(), CreatedAt: now, UpdatedAt: now},
		TeamID: teamID,
		Name:   name,
	}
	if err := s.users.Put(ctx, user.ID, user); err != nil {
		return domain.User{}, err
	}
	s.log.Info("user joined team", zap.String("team", teamID), zap.String("user", name))
	return user, nil
}

// Increment adds one nugget to the user's count. No upper bound.
func (s *Service) Increment(ctx context.Context, userID string) (domain.User, error) {
	start := s.nowFn()
	user, err := s.users.Modify(ctx, userID, func(u domain.User) domain.User {
		u.Count++
		u.UpdatedAt = s.nowFn()
		return u
	})
	s.metrics.RecordOperation("increment", s.nowFn().Sub(start), err)
	return user, err
}

// Decrement removes one nugget from the user's count, clamped at zero per
// step. Decrementing a zero count commits nothing and fires no events.
func (s *Service) Decrement(ctx context.Context, userID string) (domain.User, error) {
	start := s.nowFn()
	user, err := s.users.Modify(ctx, userID, func(u domain.User) domain.User {
		if u.Count == 0 {
			return u
		}
		u.Count--
		u.UpdatedAt = s.nowFn()
		return u
	})
	s.metrics.RecordOperation("decrement", s.nowFn().Sub(start), err)
	return user, err
}

// GetTeam returns the team record.
func (s *Service) GetTeam(teamID string) (domain.Team, error) {
	team, ok := s.teams.Get(teamID)
	if !ok {
		return domain.Team{}, domain.NotFoundError{Kind: s.teams.Kind(), Key: teamID}
	}
	return team, nil
}

// GetUser resolves a session token to its user record.
func (s *Service) GetUser(userID string) (domain.User, error) {
	user, ok := s.users.Get(userID)
	if !ok {
		return domain.User{}, domain.NotFoundError{Kind: s.users.Kind(), Key: userID}
	}
	return user, nil
}

// ListUsersByTeam returns the team's members ordered by name. The result
// reflects every change committed before the call.
func (s *Service) ListUsersByTeam(teamID string) []domain.User {
	return s.byTeam.MembersOf(teamID)
}

// TeamDrift describes one repaired team from a reconciliation pass.
type TeamDrift struct {
	TeamID   string `json:"team_id"`
	Observed int    `json:"observed"`
	Expected int    `json:"expected"`
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	CheckedTeams int         `json:"checked_teams"`
	Repaired     []TeamDrift `json:"repaired,omitempty"`
}

// Reconcile recomputes every team's Remaining from the full user sum and
// repairs any divergence. It is the out-of-band recovery tool for drift
// left by failed pool adjustments; the live path never calls it.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	start := s.nowFn()
	report, err := s.reconcile(ctx)
	s.metrics.RecordOperation("reconcile", s.nowFn().Sub(start), err)
	return report, err
}

func (s *Service) reconcile(ctx context.Context) (ReconcileReport, error) {
	sums := make(map[string]int)
	for _, user := range s.users.List() {
		sums[user.TeamID] += user.Count
	}
	var report ReconcileReport
	for teamID, team := range s.teams.Snapshot() {
		report.CheckedTeams++
		expected := team.Allotment - sums[teamID]
		if team.Remaining == expected {
			continue
		}
		if _, err := s.teams.Modify(ctx, teamID, func(t domain.Team) domain.Team {
			t.Remaining = t.Allotment - sums[teamID]
			return t
		}); err != nil {
			return report, err
		}
		s.log.Warn("repaired team pool",
			zap.String("team", teamID),
			zap.Int("observed", team.Remaining),
			zap.Int("expected", expected))
		report.Repaired = append(report.Repaired, TeamDrift{TeamID: teamID, Observed: team.Remaining, Expected: expected})
	}
	return report, nil
}
