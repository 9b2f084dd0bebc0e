//go:build !darwin || !cgo

package input

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// RobotgoInjector injects events with go-vgo/robotgo. Key codes arrive as
// macOS virtual key codes and are translated to robotgo key names.
type RobotgoInjector struct{}

func NewRobotgoInjector() *RobotgoInjector {
	return &RobotgoInjector{}
}

func (RobotgoInjector) Inject(e *Event) error {
	switch e.Type {
	case EventMouseMove:
		robotgo.Move(int(e.X), int(e.Y))
	case EventMouseDown, EventMouseUp:
		robotgo.Move(int(e.X), int(e.Y))
		dir := "up"
		if e.Type == EventMouseDown {
			dir = "down"
		}
		return robotgo.Toggle(buttonName(e.Button), dir)
	case EventMouseScroll:
		robotgo.Scroll(int(e.ScrollDX), int(e.ScrollDY))
	case EventKeyDown, EventKeyUp:
		key, ok := keyNames[e.KeyCode]
		if !ok {
			return fmt.Errorf("%w: unmapped key code 0x%02x", ErrInvalidEvent, e.KeyCode)
		}
		args := []interface{}{}
		if e.Type == EventKeyUp {
			args = append(args, "up")
		}
		args = append(args, modifierNames(e.Modifiers)...)
		return robotgo.KeyToggle(key, args...)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEvent, e.Type)
	}
	return nil
}

func buttonName(b MouseButton) string {
	switch b {
	case MouseButtonRight:
		return "right"
	case MouseButtonMiddle:
		return "center"
	}
	return "left"
}

func modifierNames(m uint8) []interface{} {
	var names []interface{}
	if m&ModShift != 0 {
		names = append(names, "shift")
	}
	if m&ModControl != 0 {
		names = append(names, "ctrl")
	}
	if m&ModAlt != 0 {
		names = append(names, "alt")
	}
	if m&ModMeta != 0 {
		names = append(names, "cmd")
	}
	return names
}

// PlatformInjector returns the native injector for this OS.
func PlatformInjector() Injector { return NewRobotgoInjector() }
