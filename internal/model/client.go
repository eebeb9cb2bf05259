package model

import (
	"time"
)

// Client is a tenant-scoped customer record, identified by phone number when
// the channel carries one and by channel address otherwise. It is created
// implicitly on the first inbound message and enriched over time by the
// register_client function.
type Client struct {
	ID             string            `json:"id"`
	TenantID       string            `json:"tenant_id"`
	ChannelAddress string            `json:"channel_address"`
	Phone          string            `json:"phone,omitempty"`
	Name           string            `json:"name,omitempty"`
	Preferences    map[string]string `json:"preferences,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
