package eligibility

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// Sample детерминированно выбирает k элементов из items.
//
// Частичный Fisher–Yates: выполняются только первые k обменов на копии
// items. Генератор PCG инициализируется SHA-256 от seed, поэтому
// одинаковые аргументы всегда дают одинаковый результат.
// При k >= len(items) items возвращается как есть.
func Sample[T any](items []T, k int, seed string) []T {
	if k >= len(items) {
		return items
	}
	if k <= 0 {
		return []T{}
	}

	out := slices.Clone(items)
	rng := seededRand(seed)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:k]
}

func seededRand(seed string) *rand.Rand {
	sum := sha256.Sum256([]byte(seed))
	return rand.New(rand.NewPCG( //nolint:gosec // воспроизводимость важнее криптостойкости
		binary.BigEndian.Uint64(sum[0:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))
}

// RotationSeed возвращает seed ротации по ISO-неделе: "2026-W42".
func RotationSeed(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
