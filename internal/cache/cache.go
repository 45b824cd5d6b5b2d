// Package cache keeps the last successfully fetched copy of each provider
// resource, per tenant, so listings survive provider outages.
//
// The cache is never consulted first. ReadThrough asks the provider, writes a
// non-empty answer through, and only reads stored rows when the provider is
// unavailable or returns nothing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("cache: not found")
	ErrInvalidEntry = errors.New("cache: invalid entry")
)

// Kind names one resource store. Each kind has its own table.
type Kind string

const (
	KindAgent         Kind = "agent"
	KindCall          Kind = "call"
	KindPhoneNumber   Kind = "phone_number"
	KindKnowledgeBase Kind = "knowledge_base"
)

var kindTables = map[Kind]string{
	KindAgent:         "agents_cache",
	KindCall:          "calls_cache",
	KindPhoneNumber:   "phone_numbers_cache",
	KindKnowledgeBase: "knowledge_bases_cache",
}

func (k Kind) table() (string, error) {
	t, ok := kindTables[k]
	if !ok {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, k)
	}
	return t, nil
}

// Entry is one cached resource. (TenantID, Kind, ExternalID) is unique.
type Entry struct {
	TenantID   uuid.UUID
	Kind       Kind
	ExternalID string
	// AgentID links the resource to an agent for access filtering; empty for
	// resources without one.
	AgentID  string
	Payload  json.RawMessage
	SyncedAt time.Time
}

func (e Entry) validate() error {
	if e.TenantID == uuid.Nil {
		return fmt.Errorf("%w: tenant_id required", ErrInvalidEntry)
	}
	if e.ExternalID == "" {
		return fmt.Errorf("%w: external_id required", ErrInvalidEntry)
	}
	if len(e.Payload) == 0 || !json.Valid(e.Payload) {
		return fmt.Errorf("%w: payload must be valid json", ErrInvalidEntry)
	}
	if _, err := e.Kind.table(); err != nil {
		return err
	}
	return nil
}

// Repository persists entries. Upserts replace the whole payload atomically;
// reads never see a partially written entry.
type Repository interface {
	UpsertMany(ctx context.Context, entries []Entry) error
	ReadAll(ctx context.Context, tenantID uuid.UUID, kind Kind) ([]Entry, error)
	ReadOne(ctx context.Context, tenantID uuid.UUID, kind Kind, externalID string) (Entry, error)
}
