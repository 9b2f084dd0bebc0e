//go:build !darwin || !cgo

package capture

// PlatformGrabber returns the fastest grabber for this OS.
func PlatformGrabber() Grabber { return ScreenshotGrabber{} }
