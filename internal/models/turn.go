// ABOUTME: ConversationTurn represents one query/answer exchange in a chat session
// ABOUTME: Owned by ChatMemory, bounded and ordered chronologically
package models

import (
	"errors"
	"strings"
	"time"
)

// ConversationTurn is a single exchange held in chat memory
type ConversationTurn struct {
	TurnIndex  int       `json:"turn_index" yaml:"turn_index"`
	Query      string    `json:"query" yaml:"query"`
	Answer     string    `json:"answer" yaml:"answer"`
	CitedWells []string  `json:"cited_wells,omitempty" yaml:"cited_wells,omitempty"`
	Mode       QueryMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewConversationTurn creates a turn stamped with the current time.
// The turn index is assigned by ChatMemory on append.
func NewConversationTurn(query, answer string, mode QueryMode, wells ...string) (ConversationTurn, error) {
	if strings.TrimSpace(query) == "" {
		return ConversationTurn{}, errors.New("query cannot be empty")
	}
	return ConversationTurn{
		Query:      query,
		Answer:     answer,
		CitedWells: wells,
		Mode:       mode,
		Timestamp:  time.Now().UTC(),
	}, nil
}
