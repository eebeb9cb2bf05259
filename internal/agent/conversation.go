package agent

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/store"
)

// ConversationStore is the persistence layer of the pipeline: clients,
// conversations and their append-only message logs, all tenant-scoped.
type ConversationStore struct {
	store store.Store
}

func NewConversationStore(s store.Store) *ConversationStore {
	return &ConversationStore{store: s}
}

// GetOrCreateClient finds the client record within the tenant, creating one
// on first contact. Identity is the phone number when the channel supplies
// one (the same person reaching out from a second channel address resolves to
// the same client); only phone-less channels fall back to the address. Under
// a concurrent first message the store's atomic Create elects exactly one
// winner; losers re-read it.
func (cs *ConversationStore) GetOrCreateClient(ctx context.Context, tenantID, channelAddress, phone string) (*model.Client, error) {
	match := func(c model.Client) bool {
		if phone != "" {
			return c.Phone == phone
		}
		return c.ChannelAddress == channelAddress
	}

	existing, err := store.QueryFirst(ctx, cs.store, tenantID, store.CollectionClients, match)
	if err == nil {
		return cs.touchClientChannel(ctx, tenantID, existing, channelAddress)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, &model.StorageError{Op: "lookup client", Err: err}
	}

	now := time.Now()
	client := model.Client{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TenantID:       tenantID,
		ChannelAddress: channelAddress,
		Phone:          phone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = cs.store.Create(ctx, tenantID, store.CollectionClients, client.ID, client)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Lost the race on the id. Re-lookup below.
		err = nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "create client", Err: err}
	}
	winner, err := store.QueryFirst(ctx, cs.store, tenantID, store.CollectionClients, match)
	if err != nil {
		return nil, &model.StorageError{Op: "reread client", Err: err}
	}
	return &winner, nil
}

// touchClientChannel records the most recent channel address on an existing
// client so outbound delivery targets where the client last wrote from.
func (cs *ConversationStore) touchClientChannel(ctx context.Context, tenantID string, client model.Client, channelAddress string) (*model.Client, error) {
	if client.ChannelAddress == channelAddress {
		return &client, nil
	}
	client.ChannelAddress = channelAddress
	client.UpdatedAt = time.Now()
	if err := cs.store.Update(ctx, tenantID, store.CollectionClients, client.ID, client); err != nil {
		return nil, &model.StorageError{Op: "update client channel", Err: err}
	}
	return &client, nil
}

// GetOrCreateActiveConversation returns the single active conversation for
// the channel address, creating one if none exists. Callers must hold the
// per-address lock; this method does not defend against a concurrent creator
// beyond the store's atomic Create.
func (cs *ConversationStore) GetOrCreateActiveConversation(ctx context.Context, tenantID, clientID, channelAddress string) (*model.Conversation, error) {
	existing, err := store.QueryFirst(ctx, cs.store, tenantID, store.CollectionConversations, func(c model.Conversation) bool {
		return c.ChannelAddress == channelAddress && c.IsActive
	})
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, &model.StorageError{Op: "lookup conversation", Err: err}
	}

	now := time.Now()
	conv := model.Conversation{
		ID:             uuid.Must(uuid.NewV7()).String(),
		TenantID:       tenantID,
		ClientID:       clientID,
		ChannelAddress: channelAddress,
		IsActive:       true,
		LastMessageAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := cs.store.Create(ctx, tenantID, store.CollectionConversations, conv.ID, conv); err != nil {
		return nil, &model.StorageError{Op: "create conversation", Err: err}
	}
	return &conv, nil
}

// AppendMessage appends one immutable message to the conversation log and
// advances the conversation's last-message timestamp.
func (cs *ConversationStore) AppendMessage(ctx context.Context, conv *model.Conversation, from model.Sender, content string) (*model.Message, error) {
	msg := model.Message{
		// UUIDv7 ids sort by creation time, which keeps the key-ordered
		// message scan chronological.
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		From:           from,
		Content:        content,
		Timestamp:      time.Now(),
	}
	if err := cs.store.Create(ctx, conv.TenantID, store.CollectionMessages, msg.ID, msg); err != nil {
		return nil, &model.StorageError{Op: "append message", Err: err}
	}

	conv.LastMessageAt = msg.Timestamp
	conv.UpdatedAt = msg.Timestamp
	if err := cs.store.Update(ctx, conv.TenantID, store.CollectionConversations, conv.ID, conv); err != nil {
		return nil, &model.StorageError{Op: "touch conversation", Err: err}
	}
	return &msg, nil
}

// RecentMessages returns up to limit most recent messages of the
// conversation, oldest first.
func (cs *ConversationStore) RecentMessages(ctx context.Context, tenantID, conversationID string, limit int) ([]model.Message, error) {
	var msgs []model.Message
	err := store.QueryAll(ctx, cs.store, tenantID, store.CollectionMessages, func(m model.Message) bool {
		return m.ConversationID == conversationID
	}, &msgs)
	if err != nil {
		return nil, &model.StorageError{Op: "list messages", Err: err}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			// UUIDv7 ids order by creation time.
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// UpdateContext re-reads the conversation and applies fn to its context under
// the caller-held lock, persisting only when fn reports a change.
func (cs *ConversationStore) UpdateContext(ctx context.Context, tenantID, conversationID string, fn func(model.ConversationContext) (model.ConversationContext, bool)) error {
	var conv model.Conversation
	if err := cs.store.Get(ctx, tenantID, store.CollectionConversations, conversationID, &conv); err != nil {
		return &model.StorageError{Op: "reread conversation", Err: err}
	}
	next, changed := fn(conv.Context)
	if !changed {
		return nil
	}
	conv.Context = next
	conv.UpdatedAt = time.Now()
	if err := cs.store.Update(ctx, tenantID, store.CollectionConversations, conversationID, conv); err != nil {
		return &model.StorageError{Op: "update context", Err: err}
	}
	return nil
}

// Get returns one conversation by id.
func (cs *ConversationStore) Get(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := cs.store.Get(ctx, tenantID, store.CollectionConversations, conversationID, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetWithMessages returns a conversation and its full message log, oldest
// first.
func (cs *ConversationStore) GetWithMessages(ctx context.Context, tenantID, conversationID string) (*model.ConversationWithMessages, error) {
	conv, err := cs.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	msgs, err := cs.RecentMessages(ctx, tenantID, conversationID, 0)
	if err != nil {
		return nil, err
	}
	return &model.ConversationWithMessages{Conversation: *conv, Messages: msgs}, nil
}

// List returns the tenant's conversations, most recent activity first.
func (cs *ConversationStore) List(ctx context.Context, tenantID string, limit, offset int) (*model.ListConversationsResponse, error) {
	var convs []model.Conversation
	err := store.QueryAll(ctx, cs.store, tenantID, store.CollectionConversations, func(model.Conversation) bool {
		return true
	}, &convs)
	if err != nil {
		return nil, &model.StorageError{Op: "list conversations", Err: err}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].LastMessageAt.After(convs[j].LastMessageAt) })

	total := len(convs)
	if offset > total {
		offset = total
	}
	convs = convs[offset:]
	hasMore := false
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
		hasMore = true
	}
	return &model.ListConversationsResponse{
		Conversations: convs,
		Total:         total,
		HasMore:       hasMore,
	}, nil
}
