package device

import "testing"

type fakeEnum struct {
	infos      []Info
	defaultIn  string
	hasDefault bool
	err        error
}

func (f *fakeEnum) EnumerateInputs() ([]Info, error) { return f.infos, f.err }
func (f *fakeEnum) DefaultInputName() (string, bool) { return f.defaultIn, f.hasDefault }

func TestCandidateNamesPriorityOrder(t *testing.T) {
	enum := &fakeEnum{
		infos: []Info{
			{Name: "hw:0,0"},
			{Name: "pipewire"},
			{Name: "default"},
			{Name: "hw:1,0"},
		},
		defaultIn:  "hw:0,0",
		hasDefault: true,
	}
	m := New(enum)
	names, err := m.CandidateNames()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"default", "pipewire", "hw:0,0", "hw:1,0"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestOpenExactMatch(t *testing.T) {
	enum := &fakeEnum{infos: []Info{{Name: "USB Mic"}, {Name: "Builtin Mic"}}}
	m := New(enum)
	info, err := m.Open("Builtin Mic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "Builtin Mic" {
		t.Errorf("expected Builtin Mic, got %s", info.Name)
	}
}

func TestOpenCaseInsensitiveSubstring(t *testing.T) {
	enum := &fakeEnum{infos: []Info{{Name: "USB Condenser Microphone"}}}
	m := New(enum)
	info, err := m.Open("condenser")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "USB Condenser Microphone" {
		t.Errorf("unexpected match: %s", info.Name)
	}
}

func TestOpenNotFound(t *testing.T) {
	enum := &fakeEnum{infos: []Info{{Name: "USB Mic"}}}
	m := New(enum)
	_, err := m.Open("nonexistent")
	if err != ErrDeviceNotFound {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestOpenNoneWalksCandidatesThenOSDefault(t *testing.T) {
	enum := &fakeEnum{
		infos:      []Info{{Name: "hw:1,0"}},
		defaultIn:  "hw:1,0",
		hasDefault: true,
	}
	m := New(enum)
	info, err := m.Open("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Name != "hw:1,0" {
		t.Errorf("expected hw:1,0, got %s", info.Name)
	}
}

func TestOpenNoneExhaustedReturnsNotFound(t *testing.T) {
	enum := &fakeEnum{infos: nil}
	m := New(enum)
	_, err := m.Open("")
	if err != ErrDeviceNotFound {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}
