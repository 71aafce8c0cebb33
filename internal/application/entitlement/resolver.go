// Package entitlement resolves whether a user's plan permits an action:
// plan feature flags, daily free-tier counters, and storage/file-count
// quotas, per spec.md §4.2.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/aidocs/platform/internal/infrastructure/logger"
	pkgmodels "github.com/aidocs/platform/pkg/models"
)

// Decision is the outcome of an entitlement check.
type Decision struct {
	Allow       bool   `json:"allow"`
	Reason      string `json:"reason,omitempty"`
	UpgradeHint string `json:"upgrade_hint,omitempty"`
}

// Allowed is the canonical success decision.
var Allowed = Decision{Allow: true}

// Deny builds a denial decision with a reason and upgrade hint.
func Deny(reason, upgradeHint string) Decision {
	return Decision{Allow: false, Reason: reason, UpgradeHint: upgradeHint}
}

// Rule is a named plan-feature predicate compiled from an expr-lang
// expression over the env below, e.g. `"images" in features`.
type Rule struct {
	Action     string
	Expression string
}

// env is the variable set visible to a compiled rule expression.
type env struct {
	Features   []string       `expr:"features"`
	Quotas     map[string]int `expr:"quotas"`
	Usage      map[string]int `expr:"usage"`
	DailyCount int            `expr:"daily_count"`
}

// ledgerRepo is the narrow repository contract the resolver needs for the
// daily-counter reset-and-increment side effect.
type ledgerRepo interface {
	GetAccountByID(ctx context.Context, id string) (*pkgmodels.Account, error)
	ResetAndIncrementDailyCounter(ctx context.Context, accountID string, now, nextResetAt time.Time) (int, error)
}

type planRepo interface {
	GetByID(ctx context.Context, id string) (*pkgmodels.Plan, error)
}

// Resolver evaluates entitlement rules against an account's plan.
type Resolver struct {
	ledger  ledgerRepo
	plans   planRepo
	log     *logger.Logger
	rules   map[string]*vm.Program
	freeTierDailyChatLimit int
}

// NewResolver constructs a Resolver, compiling the given rules up front so a
// malformed rule expression fails fast at startup rather than mid-request.
func NewResolver(ledger ledgerRepo, plans planRepo, log *logger.Logger, rules []Rule, freeTierDailyChatLimit int) (*Resolver, error) {
	compiled := make(map[string]*vm.Program, len(rules))
	for _, rule := range rules {
		program, err := expr.Compile(rule.Expression, expr.Env(env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w: action %s: %v", pkgmodels.ErrInvalidRule, rule.Action, err)
		}
		compiled[rule.Action] = program
	}
	return &Resolver{
		ledger:                 ledger,
		plans:                  plans,
		log:                    log,
		rules:                  compiled,
		freeTierDailyChatLimit: freeTierDailyChatLimit,
	}, nil
}

// Check evaluates whether an account may perform action, given its current
// resource usage counts (keyed the same as the plan's quotas map, e.g.
// "files", "storage_bytes"). It does not mutate any counter; callers call
// RecordFreeChatUsage after the action actually proceeds.
func (r *Resolver) Check(ctx context.Context, accountID, action string, usage map[string]int) (Decision, error) {
	account, err := r.ledger.GetAccountByID(ctx, accountID)
	if err != nil {
		return Decision{}, err
	}
	if account.Status != pkgmodels.SubscriptionStatusActive {
		return Deny("account_suspended", ""), nil
	}
	plan, err := r.plans.GetByID(ctx, account.PlanID)
	if err != nil {
		return Decision{}, err
	}

	if program, ok := r.rules[action]; ok {
		out, err := expr.Run(program, env{
			Features:   plan.Features,
			Quotas:     plan.Quotas,
			Usage:      usage,
			DailyCount: account.DailyChatCount,
		})
		if err != nil {
			return Decision{}, fmt.Errorf("evaluate rule for action %s: %w", action, err)
		}
		if allowed, _ := out.(bool); !allowed {
			return Deny("plan_does_not_allow", "upgrade your plan for this feature"), nil
		}
	}

	for resource, limit := range plan.Quotas {
		if used, tracked := usage[resource]; tracked && used >= limit {
			return Deny(fmt.Sprintf("%s_quota_exceeded", resource), "upgrade your plan for a higher quota"), nil
		}
	}

	if action == "chat_default_llm" && !plan.HasFeature("unlimited_chat") {
		if r.dailyChatCount(account) >= r.freeTierDailyChatLimit {
			return Deny("daily_chat_limit_reached", "upgrade for unlimited chat"), nil
		}
	}

	return Allowed, nil
}

// RecordFreeChatUsage increments the account's daily free-tier chat counter,
// rolling it over first if its reset time has passed. Callers invoke this
// only after Check has already allowed the action, per spec.md §4.2.
func (r *Resolver) RecordFreeChatUsage(ctx context.Context, accountID string, now time.Time) error {
	_, err := r.ledger.ResetAndIncrementDailyCounter(ctx, accountID, now, startOfNextDay(now))
	return err
}

// dailyChatCount returns the account's current free-tier chat count, as of
// its last recorded reset (the caller is responsible for treating a stale
// reset window as zero via RecordFreeChatUsage's own rollover).
func (r *Resolver) dailyChatCount(account *pkgmodels.Account) int {
	if !account.DailyChatResetAt.IsZero() && time.Now().Before(account.DailyChatResetAt) {
		return account.DailyChatCount
	}
	return 0
}

// startOfNextDay returns midnight UTC of the day after now, the reset point
// spec.md §4.2 calls `start_of_next_day(now, user_tz_or_utc)`.
func startOfNextDay(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
