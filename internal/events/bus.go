// Package events is the change feed the live subscriptions ride on.
//
// Writers persist first and publish after commit; the feed is a doorbell,
// not the source of truth. Subscribers that miss a publish (slow consumer,
// dropped connection) recover by re-reading storage, so every Bus
// implementation is allowed to drop.
package events

import (
	"context"
	"fmt"
)

// Bus publishes opaque payloads on topics and fans them out to subscribers.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe returns once the subscription is live, so anything published
	// after it returns is observed.
	Subscribe(ctx context.Context, topic string) (Subscription, error)
	Close() error
}

// Subscription is one live topic feed.
type Subscription interface {
	// C is closed when the subscription ends: by Close, or because the
	// underlying connection was lost. A transport that reconnects by itself
	// still closes C, since payloads published during the outage are gone.
	C() <-chan []byte
	Close() error
}

// MatchTopic carries message and read-receipt events of one match.
func MatchTopic(matchID string) string {
	return fmt.Sprintf("match.%s", matchID)
}

// InboxTopic carries notifications for one recipient.
func InboxTopic(userID uint64) string {
	return fmt.Sprintf("inbox.%d", userID)
}
