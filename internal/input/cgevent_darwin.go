//go:build darwin && cgo

package input

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>

static void postMouse(CGEventType type, double x, double y, CGMouseButton btn) {
    CGEventRef event = CGEventCreateMouseEvent(NULL, type, CGPointMake(x, y), btn);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

void moveMouse(double x, double y) {
    postMouse(kCGEventMouseMoved, x, y, kCGMouseButtonLeft);
}

void pressMouse(double x, double y, int button, int down) {
    switch (button) {
    case 1:
        postMouse(down ? kCGEventRightMouseDown : kCGEventRightMouseUp, x, y, kCGMouseButtonRight);
        break;
    case 2:
        postMouse(down ? kCGEventOtherMouseDown : kCGEventOtherMouseUp, x, y, kCGMouseButtonCenter);
        break;
    default:
        postMouse(down ? kCGEventLeftMouseDown : kCGEventLeftMouseUp, x, y, kCGMouseButtonLeft);
        break;
    }
}

void scrollMouse(int dx, int dy) {
    CGEventRef event = CGEventCreateScrollWheelEvent(NULL, kCGScrollEventUnitPixel, 2, dy, dx);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

void pressKey(CGKeyCode code, CGEventFlags flags, int down) {
    CGEventRef event = CGEventCreateKeyboardEvent(NULL, code, down ? true : false);
    if (flags) {
        CGEventSetFlags(event, flags);
    }
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}
*/
import "C"

import "fmt"

// CGEventInjector posts events through CoreGraphics. Requires the
// Accessibility permission.
type CGEventInjector struct{}

func NewCGEventInjector() *CGEventInjector {
	return &CGEventInjector{}
}

func (CGEventInjector) Inject(e *Event) error {
	x, y := C.double(e.X), C.double(e.Y)
	switch e.Type {
	case EventMouseMove:
		C.moveMouse(x, y)
	case EventMouseDown, EventMouseUp:
		C.pressMouse(x, y, C.int(e.Button), boolInt(e.Type == EventMouseDown))
	case EventMouseScroll:
		C.scrollMouse(C.int(e.ScrollDX), C.int(e.ScrollDY))
	case EventKeyDown, EventKeyUp:
		C.pressKey(C.CGKeyCode(e.KeyCode), C.CGEventFlags(modifierFlags(e.Modifiers)), boolInt(e.Type == EventKeyDown))
	default:
		return fmt.Errorf("%w: %s", ErrInvalidEvent, e.Type)
	}
	return nil
}

func boolInt(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func modifierFlags(m uint8) uint64 {
	var flags uint64
	if m&ModShift != 0 {
		flags |= 0x00020000 // kCGEventFlagMaskShift
	}
	if m&ModControl != 0 {
		flags |= 0x00040000 // kCGEventFlagMaskControl
	}
	if m&ModAlt != 0 {
		flags |= 0x00080000 // kCGEventFlagMaskAlternate
	}
	if m&ModMeta != 0 {
		flags |= 0x00100000 // kCGEventFlagMaskCommand
	}
	return flags
}

// PlatformInjector returns the native injector for this OS.
func PlatformInjector() Injector { return NewCGEventInjector() }
