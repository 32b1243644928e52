package mqtt

import "log/slog"

// bufferedMsg is a serialized message held for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer holds outbound messages while the broker is unreachable.
// A retained message supersedes any buffered retained message on the same
// topic, so a long outage replays only the latest switch state while alert
// messages are kept in order. When full, the oldest message is dropped.
//
// Not safe for concurrent use; the caller must synchronize.
type ringBuffer struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int
	logger   *slog.Logger
}

func newRingBuffer(capacity int, logger *slog.Logger) *ringBuffer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ringBuffer{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if msg.retained {
		for i, m := range r.msgs {
			if m.retained && m.topic == msg.topic {
				r.msgs = append(r.msgs[:i], r.msgs[i+1:]...)
				break
			}
		}
	}
	if len(r.msgs) == r.capacity {
		if r.dropped == 0 {
			r.logger.Warn("mqtt buffer full, dropping oldest", "capacity", r.capacity)
		}
		r.dropped++
		r.msgs = append(r.msgs[:0], r.msgs[1:]...)
	}
	r.msgs = append(r.msgs, msg)
}

// drainAll returns the buffered messages oldest first and empties the buffer.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if len(r.msgs) == 0 {
		return nil
	}
	out := make([]bufferedMsg, len(r.msgs))
	copy(out, r.msgs)
	if r.dropped > 0 {
		r.logger.Info("mqtt buffer drained after overflow", "dropped", r.dropped)
	}
	r.msgs = r.msgs[:0]
	r.dropped = 0
	return out
}

func (r *ringBuffer) len() int {
	return len(r.msgs)
}
