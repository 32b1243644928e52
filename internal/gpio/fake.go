package gpio

// FakeSwitch is a test double that records commanded states.
type FakeSwitch struct {
	// States holds the current logical state per switch id.
	States map[int]bool

	// Sets records every Set call in order.
	Sets []SetCall

	// SetError, if set, will be returned by Set (the state is left unchanged).
	SetError error

	// GetError, if set, will be returned by Get.
	GetError error

	// Closed tracks if Close was called.
	Closed bool
}

// SetCall is one recorded Set.
type SetCall struct {
	ID int
	On bool
}

// NewFakeSwitch creates a FakeSwitch with all switches off.
func NewFakeSwitch() *FakeSwitch {
	return &FakeSwitch{States: make(map[int]bool)}
}

// Set records the command and updates the state.
func (f *FakeSwitch) Set(id int, on bool) error {
	f.Sets = append(f.Sets, SetCall{ID: id, On: on})
	if f.SetError != nil {
		return f.SetError
	}
	f.States[id] = on
	return nil
}

// Get returns the current state of switch id.
func (f *FakeSwitch) Get(id int) (bool, error) {
	if f.GetError != nil {
		return false, f.GetError
	}
	return f.States[id], nil
}

// Close marks the switch as closed.
func (f *FakeSwitch) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recent Set call and whether there was one.
func (f *FakeSwitch) Last() (SetCall, bool) {
	if len(f.Sets) == 0 {
		return SetCall{}, false
	}
	return f.Sets[len(f.Sets)-1], true
}

// Reset clears recorded calls and states.
func (f *FakeSwitch) Reset() {
	f.States = make(map[int]bool)
	f.Sets = nil
	f.SetError = nil
	f.GetError = nil
	f.Closed = false
}
