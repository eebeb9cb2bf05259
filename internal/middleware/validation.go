package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageContent validates inbound message text.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content cannot be empty")
	}
	if len(content) > 4096 {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateChannelAddress validates a channel address, e.g. a WhatsApp number
// in E.164 form or an opaque channel handle.
func ValidateChannelAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return errors.New("channel address cannot be empty")
	}
	if len(address) > 128 {
		return errors.New("channel address exceeds maximum length")
	}
	return nil
}

// ValidatePhone validates an optional phone number: digits with an optional
// leading plus.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	s := phone
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if len(s) < 8 || len(s) > 15 {
		return errors.New("phone must have 8 to 15 digits")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return errors.New("phone must contain only digits")
		}
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateTenantID validates a tenant ID.
func ValidateTenantID(id string) error {
	if id == "" {
		return errors.New("tenant ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("tenant ID exceeds maximum length")
	}
	if strings.ContainsAny(id, "/\x00") {
		return errors.New("tenant ID contains invalid characters")
	}
	return nil
}
