package quota

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vinkalabs/membot/internal/tenant"
)

type PeriodKind string

const (
	PeriodMonth PeriodKind = "month"
	PeriodDay   PeriodKind = "day"
)

// PeriodKey is the calendar bucket a usage counter accumulates over.
func PeriodKey(kind PeriodKind, t time.Time) string {
	switch kind {
	case PeriodDay:
		return t.UTC().Format("2006-01-02")
	default:
		return t.UTC().Format("2006-01")
	}
}

// Decision is the outcome of an admission check. SubjectID identifies who
// would be charged, so that CommitUsage charges the same subject the check
// admitted.
type Decision struct {
	Allowed   bool
	SubjectID string
	Used      int64
	Limit     int
}

// Enforcer answers admit/deny before any completion call and charges usage
// after a message has actually been processed. Tenant-level quota is
// authoritative when the user is bound to a tenant, user-level otherwise.
type Enforcer struct {
	repo         *Repo
	tenants      *tenant.Registry
	kind         PeriodKind
	defaultLimit int // 0 = unlimited for subjects with no plan
	now          func() time.Time
	logger       *zap.Logger
}

func NewEnforcer(repo *Repo, tenants *tenant.Registry, kind PeriodKind, defaultLimit int, logger *zap.Logger) *Enforcer {
	if kind != PeriodDay {
		kind = PeriodMonth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{
		repo:         repo,
		tenants:      tenants,
		kind:         kind,
		defaultLimit: defaultLimit,
		now:          time.Now,
		logger:       logger,
	}
}

// SetClock overrides the time source. Tests use it to force period
// rollovers.
func (e *Enforcer) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

func (e *Enforcer) subject(ctx context.Context, userID string) (string, int, error) {
	res, err := e.tenants.Resolve(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	if !res.Bound {
		return "user:" + userID, e.defaultLimit, nil
	}

	limit := e.defaultLimit
	if res.PlanName != "" {
		plan, err := e.repo.GetPlan(ctx, res.PlanName)
		if err != nil {
			return "", 0, err
		}
		if plan != nil {
			limit = plan.MessageLimit
		}
	}
	return "tenant:" + res.ClientCode, limit, nil
}

// Admit decides whether the subject may proceed. It never mutates the
// counter. A stored period different from the current one counts as zero
// usage; the stored key advances on the next CommitUsage.
func (e *Enforcer) Admit(ctx context.Context, userID string) (Decision, error) {
	subjectID, limit, err := e.subject(ctx, userID)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Allowed: true, SubjectID: subjectID, Limit: limit}

	counter, err := e.repo.GetCounter(ctx, subjectID)
	if err != nil {
		return Decision{}, err
	}
	if counter == nil {
		return d, nil
	}
	if counter.IsPro {
		d.Used = counter.MessagesUsed
		return d, nil
	}

	if counter.Period == PeriodKey(e.kind, e.now()) {
		d.Used = counter.MessagesUsed
	}
	if limit > 0 && d.Used >= int64(limit) {
		d.Allowed = false
	}
	return d, nil
}

// CommitUsage charges one message to the subject for the current period.
// Call it only after the turn has actually been processed.
func (e *Enforcer) CommitUsage(ctx context.Context, subjectID string) error {
	used, err := e.repo.IncrementUsage(ctx, subjectID, PeriodKey(e.kind, e.now()), 1)
	if err != nil {
		return err
	}
	e.logger.Debug("usage committed",
		zap.String("subject_id", subjectID),
		zap.Int64("messages_used", used),
	)
	return nil
}

// SetPro grants or revokes the unconditional limit bypass for a subject.
func (e *Enforcer) SetPro(ctx context.Context, subjectID string, pro bool) error {
	return e.repo.SetPro(ctx, subjectID, PeriodKey(e.kind, e.now()), pro)
}
