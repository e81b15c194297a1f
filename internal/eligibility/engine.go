package eligibility

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shaiso/Matchcore/internal/domain"
)

// SelectionSource — чтение рёбер выбора.
type SelectionSource interface {
	// ListSelections возвращает все рёбра владельцев; nil — всех.
	ListSelections(ctx context.Context, owners []string) ([]domain.SelectionEdge, error)

	// ListOwnersTargeting возвращает владельцев рёбер, ведущих к entityID.
	ListOwnersTargeting(ctx context.Context, entityID string) ([]string, error)
}

// EntitySource — чтение флагов и версий сущностей.
type EntitySource interface {
	GetEntities(ctx context.Context, ids []string) (map[string]domain.Entity, error)
}

// EvaluationSource — чтение записей о выполненных оценках.
type EvaluationSource interface {
	GetEvaluations(ctx context.Context, pairs []domain.PairKey) (map[domain.PairKey]domain.EvaluationRecord, error)
}

// Scope ограничивает вычисление.
type Scope struct {
	// EntityID — только пары с этой сущностью; пусто — полный скан.
	EntityID string

	// Targets — дополнительно только пары EntityID с этими сущностями.
	Targets []string
}

// IsFull возвращает true для полного скана.
func (s Scope) IsFull() bool {
	return s.EntityID == ""
}

// Engine вычисляет eligible-пары.
type Engine struct {
	selections  SelectionSource
	entities    EntitySource
	evaluations EvaluationSource

	cap          int
	rotationSeed func(time.Time) string
	now          func() time.Time
	logger       *slog.Logger
}

// Config — конфигурация Engine.
type Config struct {
	Selections  SelectionSource
	Entities    EntitySource
	Evaluations EvaluationSource

	// Cap — лимит рёбер на владельца (default: 200).
	Cap int

	// RotationSeed — seed семплера по времени (default: ISO-неделя).
	RotationSeed func(time.Time) string

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт Engine.
func New(cfg Config) *Engine {
	limit := cfg.Cap
	if limit <= 0 {
		limit = DefaultCap
	}

	rotationSeed := cfg.RotationSeed
	if rotationSeed == nil {
		rotationSeed = RotationSeed
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		selections:   cfg.Selections,
		entities:     cfg.Entities,
		evaluations:  cfg.Evaluations,
		cap:          limit,
		rotationSeed: rotationSeed,
		now:          now,
		logger:       logger,
	}
}

type directedEdge struct {
	from, to string
}

// candidate — пара после канонизации, до проверки сущностей.
type candidate struct {
	key       domain.PairKey
	lowToHigh bool
	highToLow bool
}

// Compute возвращает eligible-пары в порядке (LowID, HighID).
func (e *Engine) Compute(ctx context.Context, scope Scope) ([]domain.EligiblePair, error) {
	if e.selections == nil || e.entities == nil || e.evaluations == nil {
		return nil, ErrNoSource
	}

	edges, err := e.loadEdges(ctx, scope)
	if err != nil {
		return nil, err
	}

	// 1. Лимит на владельца — до любой логики пар
	seed := e.rotationSeed(e.now())
	capped := ApplyCap(edges, e.cap, seed)

	// 2. Множество направленных рёбер
	directed := make(map[directedEdge]struct{}, len(capped))
	for _, edge := range capped {
		directed[directedEdge{edge.OwnerID, edge.TargetID}] = struct{}{}
	}

	// 3. Канонические пары, каждая один раз
	inScope := scopeFilter(scope)
	seen := make(map[domain.PairKey]struct{})
	var candidates []candidate
	var ids []string
	for _, edge := range capped {
		if edge.OwnerID == edge.TargetID {
			continue
		}
		key := domain.NewPairKey(edge.OwnerID, edge.TargetID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if !inScope(key) {
			continue
		}

		_, lowToHigh := directed[directedEdge{key.LowID, key.HighID}]
		_, highToLow := directed[directedEdge{key.HighID, key.LowID}]
		candidates = append(candidates, candidate{key: key, lowToHigh: lowToHigh, highToLow: highToLow})
		ids = append(ids, key.LowID, key.HighID)
	}

	if len(candidates) == 0 {
		return []domain.EligiblePair{}, nil
	}

	slices.Sort(ids)
	ids = slices.Compact(ids)

	entities, err := e.entities.GetEntities(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}

	// 4–5. Видимость и заполненность профилей
	pairs := make([]domain.EligiblePair, 0, len(candidates))
	for _, c := range candidates {
		low, okLow := entities[c.key.LowID]
		high, okHigh := entities[c.key.HighID]
		if !okLow || !okHigh {
			continue
		}

		visLow, visHigh, eligible := decide(c, low, high)
		if !eligible {
			continue
		}
		if !low.ProfileComplete || !high.ProfileComplete {
			continue
		}

		pairs = append(pairs, domain.EligiblePair{
			LowID:          c.key.LowID,
			HighID:         c.key.HighID,
			VisibilityLow:  visLow,
			VisibilityHigh: visHigh,
			VersionLow:     low.DataVersion,
			VersionHigh:    high.DataVersion,
		})
	}

	// 6. Уже оценённые при тех же версиях
	pairs, err = e.dropEvaluated(ctx, pairs)
	if err != nil {
		return nil, err
	}

	slices.SortFunc(pairs, func(a, b domain.EligiblePair) int {
		return cmp.Or(cmp.Compare(a.LowID, b.LowID), cmp.Compare(a.HighID, b.HighID))
	})

	e.logger.Debug("eligibility computed",
		"entity_id", scope.EntityID,
		"edges", len(edges),
		"edges_capped", len(capped),
		"candidates", len(candidates),
		"eligible", len(pairs),
		"rotation_seed", seed,
	)

	return pairs, nil
}

// loadEdges загружает рёбра.
//
// Для scoped-вычисления загружаются полные наборы рёбер всех
// затронутых владельцев, чтобы лимит дал тот же результат,
// что и при полном скане.
func (e *Engine) loadEdges(ctx context.Context, scope Scope) ([]domain.SelectionEdge, error) {
	if scope.IsFull() {
		edges, err := e.selections.ListSelections(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("load selections: %w", err)
		}
		return edges, nil
	}

	owners, err := e.selections.ListOwnersTargeting(ctx, scope.EntityID)
	if err != nil {
		return nil, fmt.Errorf("load owners targeting %s: %w", scope.EntityID, err)
	}
	owners = append(owners, scope.EntityID)
	slices.Sort(owners)
	owners = slices.Compact(owners)

	edges, err := e.selections.ListSelections(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("load selections: %w", err)
	}
	return edges, nil
}

func (e *Engine) dropEvaluated(ctx context.Context, pairs []domain.EligiblePair) ([]domain.EligiblePair, error) {
	if len(pairs) == 0 {
		return pairs, nil
	}

	keys := make([]domain.PairKey, len(pairs))
	for i, p := range pairs {
		keys[i] = p.Key()
	}

	records, err := e.evaluations.GetEvaluations(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load evaluations: %w", err)
	}

	out := pairs[:0]
	for _, p := range pairs {
		if rec, ok := records[p.Key()]; ok && rec.Matches(p) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// decide — таблица видимости для канонической пары.
func decide(c candidate, low, high domain.Entity) (visLow, visHigh domain.Visibility, eligible bool) {
	switch {
	case c.lowToHigh && c.highToLow:
		return domain.VisibilityVisible, domain.VisibilityVisible, true
	case c.lowToHigh && high.AcceptsUnsolicited:
		return domain.VisibilityVisible, domain.VisibilityPendingOtherInterest, true
	case c.highToLow && low.AcceptsUnsolicited:
		return domain.VisibilityPendingOtherInterest, domain.VisibilityVisible, true
	default:
		return "", "", false
	}
}

func scopeFilter(scope Scope) func(domain.PairKey) bool {
	if scope.IsFull() {
		return func(domain.PairKey) bool { return true }
	}

	targets := make(map[string]struct{}, len(scope.Targets))
	for _, t := range scope.Targets {
		targets[t] = struct{}{}
	}

	return func(key domain.PairKey) bool {
		var other string
		switch scope.EntityID {
		case key.LowID:
			other = key.HighID
		case key.HighID:
			other = key.LowID
		default:
			return false
		}
		if len(targets) == 0 {
			return true
		}
		_, ok := targets[other]
		return ok
	}
}
