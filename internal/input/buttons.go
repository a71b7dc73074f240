// Package input provides the controller overlay used by the REST API
// to force button state onto the console, and the scheduler that
// releases forced buttons after a duration measured in emulated frames.
package input

import (
	"fmt"

	"github.com/jrknox1977/fceux/pkg/utils"
)

// Button bit positions on a standard NES controller.
const (
	ButtonA uint8 = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// buttonNames lists button names in controller bit order.
var buttonNames = [8]string{"A", "B", "Select", "Start", "Up", "Down", "Left", "Right"}

var buttonMasks = map[string]uint8{
	"A":      ButtonA,
	"B":      ButtonB,
	"Select": ButtonSelect,
	"Start":  ButtonStart,
	"Up":     ButtonUp,
	"Down":   ButtonDown,
	"Left":   ButtonLeft,
	"Right":  ButtonRight,
}

// ButtonsToMask converts a list of button names to a bitmask. Unknown
// names are rejected.
func ButtonsToMask(names []string) (uint8, error) {
	var mask uint8
	for _, name := range names {
		m, ok := buttonMasks[name]
		if !ok {
			return 0, fmt.Errorf("invalid button name: %s", name)
		}
		mask |= m
	}
	return mask, nil
}

// MaskToButtons returns the names of the set bits in mask, in
// controller bit order.
func MaskToButtons(mask uint8) []string {
	names := make([]string, 0, 8)
	for i, name := range buttonNames {
		if utils.TestBit(mask, uint8(i)) {
			names = append(names, name)
		}
	}
	return names
}

// ButtonStates expands mask into a name -> pressed map covering every
// button.
func ButtonStates(mask uint8) map[string]bool {
	states := make(map[string]bool, 8)
	for i, name := range buttonNames {
		states[name] = utils.TestBit(mask, uint8(i))
	}
	return states
}
