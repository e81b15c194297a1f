package eligibility

import (
	"cmp"
	"slices"

	"github.com/shaiso/Matchcore/internal/domain"
)

// DefaultCap — лимит рёбер на владельца за цикл.
const DefaultCap = 200

// ApplyCap ограничивает число рёбер каждого владельца значением limit.
//
//   - индивидуальные рёбра проходят всегда, даже если их больше limit
//     (тогда групповые не проходят совсем);
//   - если групповые помещаются в остаток, проходят все рёбра;
//   - иначе из групповых семплируется limit−len(individual) штук
//     с seed ownerID+rotationSeed.
//
// limit <= 0 означает DefaultCap.
func ApplyCap(edges []domain.SelectionEdge, limit int, rotationSeed string) []domain.SelectionEdge {
	if limit <= 0 {
		limit = DefaultCap
	}

	var owners []string
	byOwner := make(map[string][]domain.SelectionEdge)
	for _, e := range edges {
		if _, ok := byOwner[e.OwnerID]; !ok {
			owners = append(owners, e.OwnerID)
		}
		byOwner[e.OwnerID] = append(byOwner[e.OwnerID], e)
	}

	out := make([]domain.SelectionEdge, 0, len(edges))
	for _, owner := range owners {
		out = append(out, capOwner(owner, byOwner[owner], limit, rotationSeed)...)
	}
	return out
}

func capOwner(owner string, edges []domain.SelectionEdge, limit int, rotationSeed string) []domain.SelectionEdge {
	var individual, bulk []domain.SelectionEdge
	for _, e := range edges {
		if e.Source.IsBulk() {
			bulk = append(bulk, e)
		} else {
			individual = append(individual, e)
		}
	}

	if len(individual) >= limit {
		return individual
	}

	room := limit - len(individual)
	if len(bulk) <= room {
		return edges
	}

	// Порядок входа семплера не должен зависеть от порядка выборки из БД
	slices.SortFunc(bulk, compareEdges)

	return append(individual, Sample(bulk, room, owner+rotationSeed)...)
}

func compareEdges(a, b domain.SelectionEdge) int {
	return cmp.Or(
		cmp.Compare(a.TargetID, b.TargetID),
		cmp.Compare(a.Source, b.Source),
	)
}
