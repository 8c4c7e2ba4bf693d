package viewstate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tasukuchiba/lovebook/internal/models"
)

func openVault(t *testing.T, c models.Category) *Machine {
	t.Helper()
	m := New()
	if err := m.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := m.Select(c); err != nil {
		t.Fatalf("Select: %v", err)
	}
	return m
}

func TestMachine_Transitions(t *testing.T) {
	m := New()
	if got := m.State().Screen; got != ScreenLoading {
		t.Fatalf("expected loading, got %s", got)
	}

	if err := m.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if got := m.State().Screen; got != ScreenGate {
		t.Fatalf("expected gate, got %s", got)
	}

	if err := m.Select(models.CategorySecret); err != nil {
		t.Fatalf("Select: %v", err)
	}
	st := m.State()
	if st.Screen != ScreenVault || st.Category != models.CategorySecret {
		t.Fatalf("expected secret vault, got %s/%s", st.Screen, st.Category)
	}

	if err := m.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if got := m.State().Screen; got != ScreenGate {
		t.Errorf("expected gate after back, got %s", got)
	}
}

func TestMachine_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		run  func(m *Machine) error
	}{
		{"select while loading", func(m *Machine) error { return m.Select(models.CategoryLetter) }},
		{"back while loading", func(m *Machine) error { return m.Back() }},
		{"toggle while loading", func(m *Machine) error { return m.Toggle(1) }},
		{"draft while loading", func(m *Machine) error { return m.SetDraft(Draft{Content: "x"}) }},
		{"ready twice", func(m *Machine) error {
			if err := m.Ready(); err != nil {
				return err
			}
			return m.Ready()
		}},
		{"back from gate", func(m *Machine) error {
			if err := m.Ready(); err != nil {
				return err
			}
			return m.Back()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(New())
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestMachine_SelectUnknownCategory(t *testing.T) {
	m := New()
	if err := m.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := m.Select("gossip"); err == nil {
		t.Fatal("expected error for unknown category")
	}
	if got := m.State().Screen; got != ScreenGate {
		t.Errorf("expected to stay on gate, got %s", got)
	}
}

func TestMachine_ToggleIsExclusive(t *testing.T) {
	m := openVault(t, models.CategoryLetter)

	if _, ok := m.State().Expanded(); ok {
		t.Fatal("expected nothing expanded initially")
	}

	m.Toggle(1)
	if id, ok := m.State().Expanded(); !ok || id != 1 {
		t.Fatalf("expected 1 expanded, got %d (%v)", id, ok)
	}

	m.Toggle(2)
	if id, ok := m.State().Expanded(); !ok || id != 2 {
		t.Fatalf("expected 2 expanded, got %d (%v)", id, ok)
	}

	m.Toggle(2)
	if _, ok := m.State().Expanded(); ok {
		t.Error("expected toggle on the open envelope to close it")
	}
}

func TestMachine_BackResetsVaultState(t *testing.T) {
	m := openVault(t, models.CategoryBroken)
	m.Toggle(7)
	m.SetDraft(Draft{Recipient: "Ex", Content: "why"})

	if err := m.Back(); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if err := m.Select(models.CategoryLetter); err != nil {
		t.Fatalf("Select: %v", err)
	}

	st := m.State()
	if _, ok := st.Expanded(); ok {
		t.Error("expected no expanded envelope after reopening")
	}
	if st.Draft != (Draft{}) {
		t.Errorf("expected empty draft, got %+v", st.Draft)
	}
}

func TestMachine_DraftPreservedUntilCleared(t *testing.T) {
	m := openVault(t, models.CategoryLetter)
	d := Draft{Recipient: "Sam", Sender: "Ana", Content: "Hi"}
	if err := m.SetDraft(d); err != nil {
		t.Fatalf("SetDraft: %v", err)
	}
	m.Toggle(3)

	if got := m.State().Draft; got != d {
		t.Errorf("expected %+v, got %+v", d, got)
	}

	m.ClearDraft()
	if got := m.State().Draft; got != (Draft{}) {
		t.Errorf("expected empty draft, got %+v", got)
	}
}

func TestScreen_MarshalText(t *testing.T) {
	data, err := json.Marshal(map[string]Screen{"screen": ScreenVault})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if string(data) != `{"screen":"vault"}` {
		t.Errorf("unexpected JSON %s", data)
	}
	if got := Screen(9).String(); got != "Screen(9)" {
		t.Errorf("unexpected String %q", got)
	}
}
