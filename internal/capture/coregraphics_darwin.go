//go:build darwin && cgo

package capture

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>
#include <dlfcn.h>
#include <stdlib.h>

typedef struct {
    void*  data;
    size_t size;
    int    width;
    int    height;
} Grab;

// CGWindowListCreateImage is missing from the macOS 15 SDK headers but still
// exported by the CoreGraphics dylib.
typedef CGImageRef (*CreateImageFunc)(CGRect, uint32_t, uint32_t, uint32_t);

static CreateImageFunc createImageFunc(void) {
    static CreateImageFunc fn = NULL;
    if (!fn) {
        fn = (CreateImageFunc)dlsym(RTLD_DEFAULT, "CGWindowListCreateImage");
    }
    return fn;
}

static int activeDisplays(CGDirectDisplayID* out, uint32_t max) {
    uint32_t count = 0;
    if (CGGetActiveDisplayList(max, out, &count) != kCGErrorSuccess) {
        return -1;
    }
    return (int)count;
}

Grab grabDisplay(CGDirectDisplayID display) {
    Grab g = {0};
    CreateImageFunc fn = createImageFunc();
    if (!fn) {
        return g;
    }
    // kCGWindowListOptionOnScreenOnly, kCGNullWindowID, kCGWindowImageDefault
    CGImageRef image = fn(CGDisplayBounds(display), 1, 0, 0);
    if (!image) {
        return g;
    }
    g.width  = (int)CGImageGetWidth(image);
    g.height = (int)CGImageGetHeight(image);
    g.size   = (size_t)g.width * 4 * g.height;
    g.data   = malloc(g.size);
    if (!g.data) {
        CGImageRelease(image);
        g.size = 0;
        return g;
    }
    CGColorSpaceRef cs = CGColorSpaceCreateDeviceRGB();
    CGContextRef ctx = CGBitmapContextCreate(g.data, g.width, g.height, 8,
        g.width * 4, cs, kCGImageAlphaPremultipliedLast);
    CGContextDrawImage(ctx, CGRectMake(0, 0, g.width, g.height), image);
    CGContextRelease(ctx);
    CGColorSpaceRelease(cs);
    CGImageRelease(image);
    return g;
}

void freeGrab(void* data) {
    free(data);
}
*/
import "C"

import (
	"context"
	"fmt"
	"image"
	"unsafe"

	"github.com/junsooki/AirDesk/internal/frame"
)

const maxCGDisplays = 16

// CGGrabber reads displays through CoreGraphics. A NULL image from the
// window server means screen recording was revoked or the session is
// locked, and is reported as ErrAccessLost.
type CGGrabber struct{}

func (CGGrabber) Grab(ctx context.Context, screen frame.DesktopScreen) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var displays [maxCGDisplays]C.CGDirectDisplayID
	count := int(C.activeDisplays(&displays[0], maxCGDisplays))
	if count < 0 {
		return nil, ErrAccessLost
	}
	if int(screen.OutputIndex) >= count {
		return nil, fmt.Errorf("%w: index %d, have %d", ErrDisplayNotFound, screen.OutputIndex, count)
	}

	g := C.grabDisplay(displays[screen.OutputIndex])
	if g.data == nil {
		return nil, ErrAccessLost
	}
	defer C.freeGrab(g.data)

	w, h := int(g.width), int(g.height)
	pix := make([]byte, int(g.size))
	copy(pix, unsafe.Slice((*byte)(g.data), len(pix)))
	return &image.RGBA{Pix: pix, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

// PlatformGrabber returns the fastest grabber for this OS.
func PlatformGrabber() Grabber { return CGGrabber{} }
