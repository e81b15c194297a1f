package domain

// SourceKind — откуда взялось ребро выбора.
type SourceKind string

const (
	// SourceIndividual — явный выбор одной сущности.
	SourceIndividual SourceKind = "individual"

	// SourceAffiliationGroup — выбор всей группы по аффилиации.
	SourceAffiliationGroup SourceKind = "affiliation_group"

	// SourceAllEntities — выбор «все сущности платформы».
	SourceAllEntities SourceKind = "all_entities"
)

// IsBulk возвращает true для групповых/широковещательных выборов.
// Такие рёбра подпадают под лимит и могут быть отброшены семплером.
func (k SourceKind) IsBulk() bool {
	return k != SourceIndividual
}

// SelectionEdge — направленное ребро owner → target.
//
// Создаётся и удаляется владельцем, никогда не изменяется.
type SelectionEdge struct {
	OwnerID  string     `json:"owner_id"`
	TargetID string     `json:"target_id"`
	Source   SourceKind `json:"source"`
}

// Entity — данные сущности, нужные для решения о паре.
type Entity struct {
	ID string `json:"id"`

	// AcceptsUnsolicited — сущность согласна на пару без встречного выбора.
	AcceptsUnsolicited bool `json:"accepts_unsolicited"`

	// ProfileComplete — обязательные данные профиля заполнены.
	ProfileComplete bool `json:"profile_complete"`

	// DataVersion — растёт при каждом изменении данных профиля.
	DataVersion int64 `json:"data_version"`
}

// Visibility — видимость пары для одной из сторон.
type Visibility string

const (
	// VisibilityVisible — сторона видит результат оценки.
	VisibilityVisible Visibility = "visible"

	// VisibilityPendingOtherInterest — результат скрыт, пока
	// другая сторона не проявит интерес.
	VisibilityPendingOtherInterest Visibility = "pending_other_interest"
)

// PairKey — каноническая пара идентификаторов (LowID < HighID).
type PairKey struct {
	LowID  string
	HighID string
}

// NewPairKey создаёт каноническую пару.
func NewPairKey(a, b string) PairKey {
	low, high := CanonicalPair(a, b)
	return PairKey{LowID: low, HighID: high}
}

// CanonicalPair упорядочивает идентификаторы лексикографически.
func CanonicalPair(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// EligiblePair — пара, подлежащая оценке в текущем цикле.
// Не хранится, пересчитывается по запросу.
type EligiblePair struct {
	LowID          string     `json:"low_id"`
	HighID         string     `json:"high_id"`
	VisibilityLow  Visibility `json:"visibility_low"`
	VisibilityHigh Visibility `json:"visibility_high"`
	VersionLow     int64      `json:"version_low"`
	VersionHigh    int64      `json:"version_high"`
}

// Key возвращает каноническую пару.
func (p EligiblePair) Key() PairKey {
	return PairKey{LowID: p.LowID, HighID: p.HighID}
}

// EvaluationRecord — запись о выполненной оценке пары при конкретных версиях.
type EvaluationRecord struct {
	LowID       string `json:"low_id"`
	HighID      string `json:"high_id"`
	VersionLow  int64  `json:"version_low"`
	VersionHigh int64  `json:"version_high"`
}

// Matches проверяет, что запись сделана ровно при текущих версиях пары.
func (r EvaluationRecord) Matches(p EligiblePair) bool {
	return r.LowID == p.LowID && r.HighID == p.HighID &&
		r.VersionLow == p.VersionLow && r.VersionHigh == p.VersionHigh
}
