package capture

import (
	"context"
	"fmt"

	"github.com/kbinani/screenshot"

	"github.com/junsooki/AirDesk/internal/frame"
)

// ScreenshotDesktop enumerates the active displays through
// kbinani/screenshot. Every call queries the OS afresh.
type ScreenshotDesktop struct{}

func (ScreenshotDesktop) Desktop(ctx context.Context) (frame.DesktopInfo, error) {
	if err := ctx.Err(); err != nil {
		return frame.DesktopInfo{}, err
	}
	n := min(screenshot.NumActiveDisplays(), frame.MaxScreens)
	info := frame.DesktopInfo{Screens: make([]frame.DesktopScreen, 0, n)}
	for i := 0; i < n; i++ {
		r := frame.RectangleFrom(screenshot.GetDisplayBounds(i))
		info.Screens = append(info.Screens, frame.DesktopScreen{
			AdapterIndex: 0,
			OutputIndex:  byte(i),
			AdapterName:  "display",
			OutputName:   fmt.Sprintf("Display %d", i+1),
			X:            r.X,
			Y:            r.Y,
			Width:        r.Width,
			Height:       r.Height,
		})
	}
	return info, nil
}

// StaticDesktop reports a fixed set of screens. Headless hosts use it with
// PatternGrabber.
type StaticDesktop frame.DesktopInfo

func (d StaticDesktop) Desktop(ctx context.Context) (frame.DesktopInfo, error) {
	if err := ctx.Err(); err != nil {
		return frame.DesktopInfo{}, err
	}
	screens := make([]frame.DesktopScreen, len(d.Screens))
	copy(screens, d.Screens)
	return frame.DesktopInfo{Screens: screens}, nil
}
