package protocol

import (
	"github.com/junsooki/AirDesk/internal/frame"
)

// StartRequest is the payload of StartStreaming.
type StartRequest struct {
	StreamType byte
	Display    byte
}

// StartStreamingRequest builds [0][streamType][display].
func StartStreamingRequest(streamType, display byte) []byte {
	return []byte{byte(CmdStartStreaming), streamType, display}
}

// ParseStartStreaming parses the payload following the command byte.
func ParseStartStreaming(payload []byte) (StartRequest, error) {
	r := &reader{buf: payload}
	req := StartRequest{StreamType: r.u8("stream type"), Display: r.u8("display index")}
	return req, r.err
}

// StartStreamingReply builds [0][epoch].
func StartStreamingReply(epoch byte) []byte {
	return []byte{byte(CmdStartStreaming), epoch}
}

// ParseStartStreamingReply returns the epoch from a StartStreaming reply.
func ParseStartStreamingReply(msg []byte) (byte, error) {
	payload, err := expect(msg, CmdStartStreaming)
	if err != nil {
		return 0, err
	}
	r := &reader{buf: payload}
	epoch := r.u8("epoch")
	return epoch, r.err
}

// StopStreamingRequest builds [1].
func StopStreamingRequest() []byte {
	return []byte{byte(CmdStopStreaming)}
}

// AcknowledgeFrameRequest builds [2][streamId].
func AcknowledgeFrameRequest(streamID byte) []byte {
	return []byte{byte(CmdAcknowledgeFrame), streamID}
}

// ParseAcknowledgeFrame returns the acknowledged stream id.
func ParseAcknowledgeFrame(payload []byte) (byte, error) {
	r := &reader{buf: payload}
	id := r.u8("stream id")
	return id, r.err
}

// ReproduceUserInputRequest builds [3][event...].
func ReproduceUserInputRequest(event []byte) []byte {
	msg := make([]byte, 0, 1+len(event))
	msg = append(msg, byte(CmdReproduceUserInput))
	return append(msg, event...)
}

// GetDesktopInfoRequest builds [4].
func GetDesktopInfoRequest() []byte {
	return []byte{byte(CmdGetDesktopInfo)}
}

// SetStreamSettingsRequest builds [5][colorFlags][quality][maxFps][maxUnacked].
func SetStreamSettingsRequest(s frame.StreamSettings) []byte {
	return []byte{
		byte(CmdSetStreamSettings),
		byte(s.ColorFlags),
		s.JPEGQuality,
		s.MaxFPS,
		s.MaxUnacknowledgedFrames,
	}
}

// ParseSetStreamSettings parses the SetStreamSettings payload. The result
// is not clamped.
func ParseSetStreamSettings(payload []byte) (frame.StreamSettings, error) {
	r := &reader{buf: payload}
	s := frame.StreamSettings{
		ColorFlags:              frame.ColorFlags(r.u8("color flags")),
		JPEGQuality:             r.u8("quality"),
		MaxFPS:                  r.u8("max fps"),
		MaxUnacknowledgedFrames: r.u8("max unacknowledged frames"),
	}
	return s, r.err
}

// GetStreamSettingsRequest builds [6].
func GetStreamSettingsRequest() []byte {
	return []byte{byte(CmdGetStreamSettings)}
}

// StreamSettingsReply builds [6][colorFlags][quality][maxFps].
func StreamSettingsReply(s frame.StreamSettings) []byte {
	return []byte{byte(CmdGetStreamSettings), byte(s.ColorFlags), s.JPEGQuality, s.MaxFPS}
}

// ParseStreamSettingsReply decodes a GetStreamSettings reply. The reply does
// not carry MaxUnacknowledgedFrames, which is left zero.
func ParseStreamSettingsReply(msg []byte) (frame.StreamSettings, error) {
	payload, err := expect(msg, CmdGetStreamSettings)
	if err != nil {
		return frame.StreamSettings{}, err
	}
	r := &reader{buf: payload}
	s := frame.StreamSettings{
		ColorFlags:  frame.ColorFlags(r.u8("color flags")),
		JPEGQuality: r.u8("quality"),
		MaxFPS:      r.u8("max fps"),
	}
	return s, r.err
}

// KeepAliveRequest builds [7].
func KeepAliveRequest() []byte {
	return []byte{byte(CmdKeepAlive)}
}

// ErrorReply builds a one-byte error reply.
func ErrorReply(code Command) []byte {
	return []byte{byte(code)}
}
