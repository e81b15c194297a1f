package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JobKind — тег payload, хранится в БД рядом с данными.
type JobKind string

// Типы job.
const (
	KindEvaluatePair     JobKind = "evaluate_pair"
	KindIngestProfile    JobKind = "ingest_profile"
	KindSendNotification JobKind = "send_notification"
)

// ErrUnknownKind — тег payload не распознан при декодировании.
var ErrUnknownKind = errors.New("unknown job kind")

// Payload — данные job.
//
// Закрытый набор типов: EvaluatePair, IngestProfile, SendNotification.
// Реализовать интерфейс вне пакета нельзя, поэтому type switch по
// Payload в обработчиках покрывает все варианты.
type Payload interface {
	Kind() JobKind
	isPayload()
}

// EvaluatePair — оценить пару сущностей.
// LowID < HighID всегда; используйте NewEvaluatePair.
type EvaluatePair struct {
	LowID          string     `json:"low_id"`
	HighID         string     `json:"high_id"`
	VisibilityLow  Visibility `json:"visibility_low,omitempty"`
	VisibilityHigh Visibility `json:"visibility_high,omitempty"`
}

// NewEvaluatePair создаёт payload с каноническим порядком идентификаторов.
func NewEvaluatePair(a, b string) EvaluatePair {
	low, high := CanonicalPair(a, b)
	return EvaluatePair{LowID: low, HighID: high}
}

// EvaluatePairFor создаёт payload из вычисленной eligible-пары.
func EvaluatePairFor(p EligiblePair) EvaluatePair {
	return EvaluatePair{
		LowID:          p.LowID,
		HighID:         p.HighID,
		VisibilityLow:  p.VisibilityLow,
		VisibilityHigh: p.VisibilityHigh,
	}
}

func (EvaluatePair) Kind() JobKind { return KindEvaluatePair }
func (EvaluatePair) isPayload()    {}

// IngestProfile — загрузить/обновить данные профиля сущности.
type IngestProfile struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason,omitempty"`
}

func (IngestProfile) Kind() JobKind { return KindIngestProfile }
func (IngestProfile) isPayload()    {}

// SendNotification — отправить конкретное уведомление.
// Неидемпотентна, никогда не дедуплицируется.
type SendNotification struct {
	RecipientID string            `json:"recipient_id"`
	Template    string            `json:"template"`
	Data        map[string]string `json:"data,omitempty"`
}

func (SendNotification) Kind() JobKind { return KindSendNotification }
func (SendNotification) isPayload()    {}

// envelope — формат хранения payload в БД.
type envelope struct {
	Kind JobKind         `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalPayload кодирует payload вместе с тегом.
func MarshalPayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload data: %w", err)
	}
	return json.Marshal(envelope{Kind: p.Kind(), Data: data})
}

// UnmarshalPayload декодирует payload по тегу.
func UnmarshalPayload(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal payload envelope: %w", err)
	}

	switch env.Kind {
	case KindEvaluatePair:
		var p EvaluatePair
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return p, nil
	case KindIngestProfile:
		var p IngestProfile
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return p, nil
	case KindSendNotification:
		var p SendNotification
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}
}
