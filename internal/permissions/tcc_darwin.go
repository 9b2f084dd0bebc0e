//go:build darwin && cgo

package permissions

/*
#cgo LDFLAGS: -framework ApplicationServices -framework CoreFoundation -framework CoreGraphics
#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <CoreGraphics/CoreGraphics.h>

static int axTrusted(int prompt) {
    CFMutableDictionaryRef opts = CFDictionaryCreateMutable(NULL, 0, NULL, NULL);
    CFDictionarySetValue(opts, kAXTrustedCheckOptionPrompt, prompt ? kCFBooleanTrue : kCFBooleanFalse);
    Boolean trusted = AXIsProcessTrustedWithOptions(opts);
    CFRelease(opts);
    return trusted ? 1 : 0;
}

// Available since macOS 10.15.
static int screenCaptureAllowed(int prompt) {
    return prompt ? CGRequestScreenCaptureAccess() : CGPreflightScreenCaptureAccess();
}
*/
import "C"

func check(p Permission, prompt bool) bool {
	flag := C.int(0)
	if prompt {
		flag = 1
	}
	switch p {
	case ScreenRecording:
		return C.screenCaptureAllowed(flag) != 0
	case Accessibility:
		return C.axTrusted(flag) != 0
	}
	return false
}
