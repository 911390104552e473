package board

import "fmt"

// TriggerKind is an external command applied between frames.
type TriggerKind int

const (
	SelectColor TriggerKind = iota
	BrushUp
	BrushDown
	CycleShape
	CompleteShape
	Undo
	Redo
	Clear
	Save
	ToggleTrail
)

var triggerNames = map[TriggerKind]string{
	SelectColor:   "color",
	BrushUp:       "brush_up",
	BrushDown:     "brush_down",
	CycleShape:    "cycle_shape",
	CompleteShape: "complete",
	Undo:          "undo",
	Redo:          "redo",
	Clear:         "clear",
	Save:          "save",
	ToggleTrail:   "toggle_trail",
}

// String returns the action name used by the HTTP API.
func (k TriggerKind) String() string {
	if name, ok := triggerNames[k]; ok {
		return name
	}
	return fmt.Sprintf("trigger(%d)", int(k))
}

// Trigger is one external command. Color is the palette index for SelectColor.
type Trigger struct {
	Kind  TriggerKind
	Color int
}

// ActionNames lists the action names in trigger order.
func ActionNames() []string {
	names := make([]string, 0, len(triggerNames))
	for k := SelectColor; k <= ToggleTrail; k++ {
		names = append(names, triggerNames[k])
	}
	return names
}

// ParseAction builds a Trigger from an action name. color is only used by "color".
func ParseAction(action string, color int) (Trigger, error) {
	for kind, name := range triggerNames {
		if name == action {
			return Trigger{Kind: kind, Color: color}, nil
		}
	}
	return Trigger{}, fmt.Errorf("unknown action %q", action)
}

// Key codes returned by the preview window for keys without a printable form.
const (
	KeyEnter  = 13
	KeyReturn = 10
)

// KeyTrigger maps a keyboard key to a Trigger.
//
//	1-8    select color
//	-      smaller brush
//	+ =    larger brush
//	space  cycle shape
//	Enter  complete shape
//	z x    undo, redo
//	c      clear
//	s      save
//	t      toggle trail
func KeyTrigger(key int) (Trigger, bool) {
	switch {
	case key >= '1' && key <= '8':
		return Trigger{Kind: SelectColor, Color: key - '1'}, true
	case key == '-' || key == '_':
		return Trigger{Kind: BrushDown}, true
	case key == '+' || key == '=':
		return Trigger{Kind: BrushUp}, true
	case key == ' ':
		return Trigger{Kind: CycleShape}, true
	case key == KeyEnter || key == KeyReturn:
		return Trigger{Kind: CompleteShape}, true
	case key == 'z' || key == 'Z':
		return Trigger{Kind: Undo}, true
	case key == 'x' || key == 'X':
		return Trigger{Kind: Redo}, true
	case key == 'c' || key == 'C':
		return Trigger{Kind: Clear}, true
	case key == 's' || key == 'S':
		return Trigger{Kind: Save}, true
	case key == 't' || key == 'T':
		return Trigger{Kind: ToggleTrail}, true
	}
	return Trigger{}, false
}
