package events

import (
	"encoding/json"

	"github.com/oggyb/muzz-match/internal/db"
)

// ChatEventType tags what happened on a match feed.
type ChatEventType string

const (
	ChatMessage ChatEventType = "message"
	ChatRead    ChatEventType = "read"
	ChatClosed  ChatEventType = "closed"
)

// ChatEvent is the payload published on MatchTopic.
type ChatEvent struct {
	Type    ChatEventType `json:"type"`
	MatchID string        `json:"match_id"`
	Message *db.Message   `json:"message,omitempty"`
}

func (e ChatEvent) Encode() ([]byte, error) { return json.Marshal(e) }

// DecodeChatEvent parses a MatchTopic payload.
func DecodeChatEvent(b []byte) (ChatEvent, error) {
	var e ChatEvent
	err := json.Unmarshal(b, &e)
	return e, err
}
