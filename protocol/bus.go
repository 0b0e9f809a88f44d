package protocol

import "context"

// The transport underneath the protocol is an external collaborator.
// It must deliver fixed-size typed payloads reliably and in order per
// sender/receiver pair; no ordering is assumed across different
// workers' channels, nor between the symbol and ack channels.

// CoordinatorBus is the coordinator's side of the transport: one
// logical broadcast to every worker (the transport may fan out, batch
// or parallelize delivery; the protocol does not depend on any
// physical order), plus a non-blocking probe of the ack channel so
// symbol production never stalls on workers still mid-automaton.
// Broadcast itself may block until the transport accepts the payload.
type CoordinatorBus interface {
	Broadcast(ctx context.Context, msg interface{}) error
	ProbeAck() (*AckMsg, bool)
}

// WorkerBus is a worker's side: blocking receive of the next message
// from the coordinator, and the single ack send.  A worker has
// nothing useful to do until its next symbol arrives, so Recv blocks
// by design.
type WorkerBus interface {
	Recv(ctx context.Context) (interface{}, error)
	SendAck(ctx context.Context, msg *AckMsg) error
}
