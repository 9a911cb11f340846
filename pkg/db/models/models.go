package models

import "github.com/google/uuid"

// All lists every persisted model in dependency order. Used for SQLite
// schemas where goose's Postgres migrations cannot run.
func All() []any {
	return []any{
		&Customer{},
		&Product{},
		&CheckoutSession{},
		&Order{},
		&OrderItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

// assignID fills an unset primary key with a UUIDv7 so new rows sort by
// creation time in their indexes.
func assignID(id *uuid.UUID) {
	if *id != uuid.Nil {
		return
	}
	if v7, err := uuid.NewV7(); err == nil {
		*id = v7
		return
	}
	*id = uuid.New()
}
