package mqtt

import (
	"testing"
)

func alert(i int) bufferedMsg {
	return bufferedMsg{topic: "energy/peak-switch/alerts", payload: []byte{byte(i)}, qos: 1}
}

func state(topic string, on bool) bufferedMsg {
	p := []byte("OFF")
	if on {
		p = []byte("ON")
	}
	return bufferedMsg{topic: topic, payload: p, qos: 1, retained: true}
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10, nil)
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestRingBufferPushAndDrainInOrder(t *testing.T) {
	rb := newRingBuffer(10, nil)
	for i := 0; i < 5; i++ {
		rb.push(alert(i))
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if got[i].payload[0] != byte(i) {
			t.Errorf("item %d: expected payload %d, got %d", i, i, got[i].payload[0])
		}
	}
	if got := rb.drainAll(); got != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got))
	}
}

func TestRingBufferOverflowDropsOldest(t *testing.T) {
	rb := newRingBuffer(5, nil)
	for i := 0; i < 8; i++ {
		rb.push(alert(i))
	}
	if rb.dropped != 3 {
		t.Errorf("dropped: got %d, want 3", rb.dropped)
	}

	got := rb.drainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := range got {
		if want := byte(i + 3); got[i].payload[0] != want {
			t.Errorf("item %d: expected payload %d, got %d", i, want, got[i].payload[0])
		}
	}
	if rb.dropped != 0 {
		t.Errorf("dropped after drain: got %d, want 0", rb.dropped)
	}
}

func TestRingBufferRetainedSupersedes(t *testing.T) {
	rb := newRingBuffer(10, nil)
	events := EventsTopic("energy/peak-switch")

	rb.push(state(events, false))
	rb.push(alert(1))
	rb.push(state(events, true))
	rb.push(alert(2))
	rb.push(state(events, false))

	got := rb.drainAll()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	if got[0].payload[0] != 1 || got[1].payload[0] != 2 {
		t.Errorf("alerts out of order: %v %v", got[0].payload, got[1].payload)
	}
	if got[2].topic != events || string(got[2].payload) != "OFF" {
		t.Errorf("last: got %s %s, want %s OFF", got[2].topic, got[2].payload, events)
	}
}

func TestRingBufferRetainedOnOtherTopicsKept(t *testing.T) {
	rb := newRingBuffer(10, nil)
	rb.push(state(EventsTopic("a"), true))
	rb.push(state(SystemTopic("a"), true))
	rb.push(state(EventsTopic("b"), true))

	if rb.len() != 3 {
		t.Errorf("expected len 3, got %d", rb.len())
	}
}

func TestRingBufferSupersedeFreesSpace(t *testing.T) {
	rb := newRingBuffer(2, nil)
	events := EventsTopic("energy/peak-switch")

	rb.push(alert(1))
	rb.push(state(events, true))
	rb.push(state(events, false))

	if rb.dropped != 0 {
		t.Errorf("dropped: got %d, want 0", rb.dropped)
	}
	got := rb.drainAll()
	if len(got) != 2 || got[0].payload[0] != 1 || string(got[1].payload) != "OFF" {
		t.Errorf("unexpected drain: %+v", got)
	}
}

func TestRingBufferLen(t *testing.T) {
	rb := newRingBuffer(10, nil)
	if rb.len() != 0 {
		t.Errorf("expected len 0, got %d", rb.len())
	}
	rb.push(alert(1))
	rb.push(alert(2))
	if rb.len() != 2 {
		t.Errorf("expected len 2, got %d", rb.len())
	}
	rb.drainAll()
	if rb.len() != 0 {
		t.Errorf("expected len 0 after drain, got %d", rb.len())
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10, nil)
	rb.push(bufferedMsg{
		topic:    "energy/test",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if got[0].topic != "energy/test" || string(got[0].payload) != `{"test":true}` {
		t.Errorf("got %s %s", got[0].topic, got[0].payload)
	}
	if got[0].qos != 1 || !got[0].retained {
		t.Errorf("qos/retained: got %d/%v", got[0].qos, got[0].retained)
	}
}
