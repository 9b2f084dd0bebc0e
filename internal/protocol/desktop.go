package protocol

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/junsooki/AirDesk/internal/frame"
)

// MarshalDesktopInfo builds the GetDesktopInfo reply.
func MarshalDesktopInfo(info frame.DesktopInfo) ([]byte, error) {
	if len(info.Screens) > frame.MaxScreens {
		return nil, fmt.Errorf("%w: %d screens", ErrTooLarge, len(info.Screens))
	}
	msg := []byte{byte(CmdGetDesktopInfo), byte(len(info.Screens))}
	for _, s := range info.Screens {
		msg = append(msg, s.AdapterIndex, s.OutputIndex)
		var err error
		if msg, err = appendString16(msg, s.AdapterName); err != nil {
			return nil, err
		}
		if msg, err = appendString16(msg, s.OutputName); err != nil {
			return nil, err
		}
		msg = binary.BigEndian.AppendUint16(msg, uint16(s.X))
		msg = binary.BigEndian.AppendUint16(msg, uint16(s.Y))
		msg = binary.BigEndian.AppendUint16(msg, s.Width)
		msg = binary.BigEndian.AppendUint16(msg, s.Height)
	}
	return msg, nil
}

// UnmarshalDesktopInfo decodes the GetDesktopInfo reply.
func UnmarshalDesktopInfo(msg []byte) (frame.DesktopInfo, error) {
	payload, err := expect(msg, CmdGetDesktopInfo)
	if err != nil {
		return frame.DesktopInfo{}, err
	}
	r := &reader{buf: payload}
	count := int(r.u8("screen count"))
	info := frame.DesktopInfo{Screens: make([]frame.DesktopScreen, 0, count)}
	for i := 0; i < count && r.err == nil; i++ {
		info.Screens = append(info.Screens, frame.DesktopScreen{
			AdapterIndex: r.u8("adapter index"),
			OutputIndex:  r.u8("output index"),
			AdapterName:  r.string16("adapter name"),
			OutputName:   r.string16("output name"),
			X:            r.i16("screen x"),
			Y:            r.i16("screen y"),
			Width:        r.u16("screen width"),
			Height:       r.u16("screen height"),
		})
	}
	if err := r.done(); err != nil {
		return frame.DesktopInfo{}, err
	}
	return info, nil
}

func appendString16(dst []byte, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return dst, fmt.Errorf("%w: name of %d bytes", ErrTooLarge, len(s))
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...), nil
}
