package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/junsooki/AirDesk/internal/frame"
)

const (
	// EmptyFrameSize is the encoded size of a frame with no fragments.
	EmptyFrameSize = 6

	movedRecordSize = 12
	dirtyHeaderSize = 12
)

// FrameSize returns the encoded size of img.
func FrameSize(img *frame.FragmentedImage) int {
	n := EmptyFrameSize + movedRecordSize*len(img.Moved)
	for _, d := range img.Dirty {
		n += dirtyHeaderSize + len(d.Payload)
	}
	return n
}

// MarshalFrame encodes img as a GetScreenCapture message.
func MarshalFrame(img *frame.FragmentedImage) ([]byte, error) {
	return AppendFrame(make([]byte, 0, FrameSize(img)), img)
}

// AppendFrame appends the encoding of img to dst. Dirty payloads are written
// as-is; callers compress them first.
func AppendFrame(dst []byte, img *frame.FragmentedImage) ([]byte, error) {
	if err := img.Validate(); err != nil {
		return dst, err
	}
	dst = append(dst, byte(CmdGetScreenCapture), img.StreamID)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(img.Moved)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(img.Dirty)))
	for _, m := range img.Moved {
		dst = appendRect(dst, m.Bounds)
		dst = binary.BigEndian.AppendUint16(dst, uint16(m.Source.X))
		dst = binary.BigEndian.AppendUint16(dst, uint16(m.Source.Y))
	}
	for _, d := range img.Dirty {
		if len(d.Payload) > math.MaxInt32 {
			return dst, fmt.Errorf("%w: dirty payload of %d bytes", ErrTooLarge, len(d.Payload))
		}
		dst = appendRect(dst, d.Bounds)
		dst = binary.BigEndian.AppendUint32(dst, uint32(len(d.Payload)))
		dst = append(dst, d.Payload...)
	}
	return dst, nil
}

// UnmarshalFrame decodes a GetScreenCapture message. Dirty payloads alias
// msg and are marked compressed.
func UnmarshalFrame(msg []byte) (*frame.FragmentedImage, error) {
	payload, err := expect(msg, CmdGetScreenCapture)
	if err != nil {
		return nil, err
	}
	r := &reader{buf: payload}
	img := &frame.FragmentedImage{StreamID: r.u8("stream id")}
	moved := int(r.u16("moved count"))
	dirty := int(r.u16("dirty count"))
	if r.err != nil {
		return nil, r.err
	}
	if moved > 0 {
		img.Moved = make([]frame.MovedImageFragment, 0, min(moved, len(payload)/movedRecordSize))
	}
	for i := 0; i < moved && r.err == nil; i++ {
		bounds := readRect(r)
		src := frame.Point{X: r.i16("move source x"), Y: r.i16("move source y")}
		img.Moved = append(img.Moved, frame.MovedImageFragment{Bounds: bounds, Source: src})
	}
	if dirty > 0 {
		img.Dirty = make([]frame.DirtyImageFragment, 0, min(dirty, len(payload)/dirtyHeaderSize))
	}
	for i := 0; i < dirty && r.err == nil; i++ {
		bounds := readRect(r)
		n := r.i32("dirty payload length")
		if r.err == nil && n < 0 {
			return nil, fmt.Errorf("%w: negative dirty payload length %d", ErrShortPayload, n)
		}
		data := r.bytes(int(n), "dirty payload")
		img.Dirty = append(img.Dirty, frame.DirtyImageFragment{Bounds: bounds, Payload: data, Compressed: true})
	}
	if err := r.done(); err != nil {
		return nil, err
	}
	return img, nil
}

func appendRect(dst []byte, r frame.Rectangle) []byte {
	dst = binary.BigEndian.AppendUint16(dst, uint16(r.X))
	dst = binary.BigEndian.AppendUint16(dst, uint16(r.Y))
	dst = binary.BigEndian.AppendUint16(dst, r.Width)
	return binary.BigEndian.AppendUint16(dst, r.Height)
}

func readRect(r *reader) frame.Rectangle {
	return frame.Rectangle{
		X:      r.i16("x"),
		Y:      r.i16("y"),
		Width:  r.u16("width"),
		Height: r.u16("height"),
	}
}
