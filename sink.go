package mogimail

// Sink is the delivery channel the embedder owns: the engine pushes one
// Message per successfully finalized DATA (spec.md §4.7).
type Sink = chan<- Message

// deliver pushes msg to sink without blocking. If the consumer has gone
// away or the channel is full, the message is dropped — the SMTP
// transaction still succeeds from the client's point of view (spec.md §7,
// "Sink: consumer vanished").
func deliver(sink Sink, msg Message) {
	if sink == nil {
		return
	}
	select {
	case sink <- msg:
	default:
	}
}
