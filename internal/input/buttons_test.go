package input

import (
	"reflect"
	"testing"
)

func TestButtonsToMask(t *testing.T) {
	mask, err := ButtonsToMask([]string{"A", "Start"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mask != ButtonA|ButtonStart {
		t.Fatalf("expected A|Start, got 0x%02x", mask)
	}

	if _, err := ButtonsToMask([]string{"A", "X"}); err == nil {
		t.Fatal("expected error for unknown button name")
	}

	mask, err = ButtonsToMask(nil)
	if err != nil || mask != 0 {
		t.Fatalf("expected empty mask, got (0x%02x, %v)", mask, err)
	}
}

func TestMaskToButtons(t *testing.T) {
	got := MaskToButtons(ButtonB | ButtonUp | ButtonRight)
	want := []string{"B", "Up", "Right"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestButtonStates(t *testing.T) {
	states := ButtonStates(ButtonA | ButtonDown)
	if len(states) != 8 {
		t.Fatalf("expected all 8 buttons, got %d", len(states))
	}
	if !states["A"] || !states["Down"] {
		t.Fatalf("expected A and Down pressed: %v", states)
	}
	if states["B"] || states["Start"] {
		t.Fatalf("expected other buttons released: %v", states)
	}
}
