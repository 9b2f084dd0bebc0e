// Package input carries remote keyboard and mouse events from the viewer to
// the host and injects them there.
package input

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// EventType identifies the kind of input event.
type EventType uint8

const (
	EventMouseMove EventType = iota + 1
	EventMouseDown
	EventMouseUp
	EventMouseScroll
	EventKeyDown
	EventKeyUp
)

func (t EventType) String() string {
	switch t {
	case EventMouseMove:
		return "mouse_move"
	case EventMouseDown:
		return "mouse_down"
	case EventMouseUp:
		return "mouse_up"
	case EventMouseScroll:
		return "mouse_scroll"
	case EventKeyDown:
		return "key_down"
	case EventKeyUp:
		return "key_up"
	}
	return fmt.Sprintf("EventType(%d)", uint8(t))
}

// MouseButton identifies a mouse button.
type MouseButton uint8

const (
	MouseButtonLeft   MouseButton = 0
	MouseButtonRight  MouseButton = 1
	MouseButtonMiddle MouseButton = 2
)

// Modifier flags.
const (
	ModShift   uint8 = 1 << 0
	ModControl uint8 = 1 << 1
	ModAlt     uint8 = 1 << 2
	ModMeta    uint8 = 1 << 3
)

// Event is the ReproduceUserInput payload. X and Y are pixels relative to
// the streamed screen's origin. KeyCode is a macOS virtual key code.
type Event struct {
	Type      EventType   `cbor:"1,keyasint"`
	X         float64     `cbor:"2,keyasint,omitempty"`
	Y         float64     `cbor:"3,keyasint,omitempty"`
	Button    MouseButton `cbor:"4,keyasint,omitempty"`
	KeyCode   uint16      `cbor:"5,keyasint,omitempty"`
	Modifiers uint8       `cbor:"6,keyasint,omitempty"`
	ScrollDX  float64     `cbor:"7,keyasint,omitempty"`
	ScrollDY  float64     `cbor:"8,keyasint,omitempty"`
}

// ErrInvalidEvent is returned for payloads that decode but make no sense.
var ErrInvalidEvent = errors.New("input: invalid event")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("input: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("input: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes e with CBOR core deterministic encoding.
func Marshal(e *Event) ([]byte, error) {
	return encMode.Marshal(e)
}

// Unmarshal decodes and validates a payload.
func Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := decMode.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode input event: %w", err)
	}
	if e.Type < EventMouseMove || e.Type > EventKeyUp {
		return nil, fmt.Errorf("%w: type %d", ErrInvalidEvent, e.Type)
	}
	if e.Button > MouseButtonMiddle {
		return nil, fmt.Errorf("%w: button %d", ErrInvalidEvent, e.Button)
	}
	return &e, nil
}
