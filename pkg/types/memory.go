// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// MemoryEntry is one value held in the long-term memory bank.
type MemoryEntry struct {
	Value      any       `json:"value" yaml:"value"`
	Importance string    `json:"importance,omitempty" yaml:"importance,omitempty"`
	Context    string    `json:"context,omitempty" yaml:"context,omitempty"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
