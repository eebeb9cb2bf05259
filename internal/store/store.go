// Package store provides the tenant-scoped document store.
package store

import (
	"context"
	"errors"
)

// Collection names used by the platform. Document ids are opaque strings;
// every key is tenant-prefixed so cross-tenant reads are structurally
// impossible.
const (
	CollectionClients       = "clients"
	CollectionConversations = "conversations"
	CollectionMessages      = "messages"
	CollectionProperties    = "properties"
	CollectionReservations  = "reservations"
	CollectionTransactions  = "transactions"
	CollectionIdempotency   = "idempotency"
)

var (
	// ErrNotFound is returned when a document does not exist for the tenant.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the key is taken. Callers
	// doing get-or-create re-lookup and return the winner.
	ErrAlreadyExists = errors.New("document already exists")
)

// Store is a tenant-scoped JSON document store with create/get/update/query
// operations. Implementations must guarantee that Create is atomic: under
// concurrent creators for the same key exactly one succeeds and the rest get
// ErrAlreadyExists.
type Store interface {
	// Get decodes the document with the given id into out.
	Get(ctx context.Context, tenantID, collection, id string, out any) error

	// Create stores a new document. Fails with ErrAlreadyExists if the id is
	// already taken within the tenant's collection.
	Create(ctx context.Context, tenantID, collection, id string, doc any) error

	// Update overwrites an existing document. Fails with ErrNotFound if it
	// does not exist.
	Update(ctx context.Context, tenantID, collection, id string, doc any) error

	// Delete removes a document. Missing documents are not an error.
	Delete(ctx context.Context, tenantID, collection, id string) error

	// Query iterates every document in the tenant's collection in key order,
	// invoking fn with the raw JSON. Returning an error from fn stops the
	// iteration.
	Query(ctx context.Context, tenantID, collection string, fn func(id string, raw []byte) error) error

	Close() error
}
