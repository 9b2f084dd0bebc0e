package frame

import "image"

// MaxScreens is the largest number of screens a DesktopInfo can list.
const MaxScreens = 255

// DesktopScreen describes one physical output at the moment it was
// enumerated.
type DesktopScreen struct {
	AdapterIndex byte
	OutputIndex  byte
	AdapterName  string
	OutputName   string
	X            int16
	Y            int16
	Width        uint16
	Height       uint16
}

// Bounds returns the screen in desktop coordinates.
func (s DesktopScreen) Bounds() image.Rectangle {
	return Rect(s.X, s.Y, s.Width, s.Height).Image()
}

// DesktopInfo is the ordered list of screens attached to the desktop.
type DesktopInfo struct {
	Screens []DesktopScreen
}

// Screen returns the screen at index i.
func (d DesktopInfo) Screen(i int) (DesktopScreen, bool) {
	if i < 0 || i >= len(d.Screens) {
		return DesktopScreen{}, false
	}
	return d.Screens[i], true
}
