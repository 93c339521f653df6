package bus

import "time"

// Event kinds are dot-namespaced; subscribers filter on a namespace prefix.
//
//	message.upserted      a message was inserted or replaced in a thread
//	message.send_ack      an outbound send was confirmed by the backend
//	message.send_failed   an outbound send failed (payload carries the error)
//	conversation.adopted  a virtual conversation received its server id
//	popover.changed       the popover session transitioned phase
//	sync.suspended        a scheduler suspended after a transport failure
//	sync.resumed          a suspended scheduler resumed after a success
//	notify.error          a user-visible failure notification
const (
	KindMessageUpserted     = "message.upserted"
	KindMessageSendAck      = "message.send_ack"
	KindMessageSendFailed   = "message.send_failed"
	KindConversationAdopted = "conversation.adopted"
	KindPopoverChanged      = "popover.changed"
	KindSyncSuspended       = "sync.suspended"
	KindSyncResumed         = "sync.resumed"
	KindNotifyError         = "notify.error"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
