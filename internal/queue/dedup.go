package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/shaiso/Matchcore/internal/domain"
)

// PayloadHash вычисляет отпечаток для дедупликации.
//
// Для оценки пары идентификаторы сортируются, поэтому порядок аргументов
// не влияет на результат. Для неидемпотентных действий возвращается nil.
// Результат — 64 hex-символа SHA-256.
func PayloadHash(p domain.Payload) *string {
	switch v := p.(type) {
	case domain.EvaluatePair:
		low, high := domain.CanonicalPair(v.LowID, v.HighID)
		return fingerprint(v.Kind(), low, high)
	case domain.IngestProfile:
		return fingerprint(v.Kind(), v.EntityID)
	case domain.SendNotification:
		return nil
	default:
		return nil
	}
}

func fingerprint(kind domain.JobKind, fields ...string) *string {
	var b strings.Builder
	b.WriteString(string(kind))
	for _, f := range fields {
		// длина поля исключает коллизии вида ("a|b","c") и ("a","b|c")
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	sum := sha256.Sum256([]byte(b.String()))
	h := hex.EncodeToString(sum[:])
	return &h
}
