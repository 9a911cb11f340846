package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion changes only when consumers must branch on the shape.
const EnvelopeVersion = 1

var (
	ErrEnvelopeVersion = errors.New("unsupported envelope version")
	ErrEnvelopeData    = errors.New("envelope has no data")
)

// ActorSource names the process that caused an event.
type ActorSource string

const (
	SourceCheckout ActorSource = "checkout"
	SourceCron     ActorSource = "cron"
)

// ActorRef is attached to events caused on behalf of a customer.
type ActorRef struct {
	CustomerID *uuid.UUID  `json:"customerId,omitempty"`
	Source     ActorSource `json:"source"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(occurredAt time.Time, actor *ActorRef, data any) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode event data: %w", err)
	}
	env := PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       raw,
	}
	if err := env.check(); err != nil {
		return PayloadEnvelope{}, err
	}
	return env, nil
}

// DecodeEnvelope parses a stored payload and rejects other versions and
// empty data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.check(); err != nil {
		return PayloadEnvelope{}, err
	}
	return env, nil
}

func (e PayloadEnvelope) check() error {
	if e.Version != EnvelopeVersion {
		return fmt.Errorf("%w %d", ErrEnvelopeVersion, e.Version)
	}
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return ErrEnvelopeData
	}
	return nil
}
