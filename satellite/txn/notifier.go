package txn

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"aruna.io/aruna/pkg/apierr"
	"aruna.io/aruna/satellite/store"
)

// Subject naming follows original_source's natsio_handler.rs
// register_event: one subject tree per affected node, rooted at a
// fixed stream prefix ("AOS.RESOURCE.>" there), so a consumer can
// filter to the subtree it cares about instead of the whole stream.
const subjectPrefix = "AOS.RESOURCE"

// affectedMessage is the wire shape published for every commit —
// the JSON-encoded analogue of the original handler's MessageVariant,
// reduced to the fields this tree's affected-index model actually has.
type affectedMessage struct {
	EventID    string   `json:"event_id"`
	Primary    uint64   `json:"primary"`
	Additional []uint64 `json:"additional,omitempty"`
}

// NatsNotifier publishes each commit's affected index set over NATS,
// grounded on original_source/src/notification/natsio_handler.rs's
// register_event (subject-per-resource, JSON payload, jetstream_context
// .publish). github.com/nats-io/nats.go is the modern official client;
// the pack's own storj-storj go.mod carries the pre-modules
// github.com/nats-io/nats v1.6.0 as an indirect dependency, which
// signals NATS as this domain's established messaging system but
// predates the JetStream API the original handler actually exercises.
type NatsNotifier struct {
	conn *nats.Conn
}

// NewNatsNotifier wraps an already-connected *nats.Conn.
func NewNatsNotifier(conn *nats.Conn) *NatsNotifier {
	return &NatsNotifier{conn: conn}
}

// Notify publishes affected to "AOS.RESOURCE.<primary idx>".
func (n *NatsNotifier) Notify(_ context.Context, affected store.AffectedSet) error {
	msg := affectedMessage{
		EventID: affected.EventID.String(),
		Primary: uint64(affected.Primary),
	}
	for _, idx := range affected.Additional {
		msg.Additional = append(msg.Additional, uint64(idx))
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return apierr.SerializeError.Wrap(err)
	}

	subject := fmt.Sprintf("%s.%d", subjectPrefix, affected.Primary)
	if err := n.conn.Publish(subject, payload); err != nil {
		return apierr.ServerError.Wrap(err)
	}
	return nil
}
