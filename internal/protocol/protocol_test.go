package protocol

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/AirDesk/internal/frame"
)

func randomFrame(rng *rand.Rand, moved, dirty int) *frame.FragmentedImage {
	img := &frame.FragmentedImage{StreamID: byte(rng.IntN(256))}
	for i := 0; i < moved; i++ {
		img.Moved = append(img.Moved, frame.MovedImageFragment{
			Bounds: frame.Rect(int16(rng.IntN(65536)-32768), int16(rng.IntN(65536)-32768), uint16(rng.IntN(65536)), uint16(rng.IntN(65536))),
			Source: frame.Point{X: int16(rng.IntN(65536) - 32768), Y: int16(rng.IntN(65536) - 32768)},
		})
	}
	for i := 0; i < dirty; i++ {
		payload := make([]byte, rng.IntN(64))
		for j := range payload {
			payload[j] = byte(rng.IntN(256))
		}
		img.Dirty = append(img.Dirty, frame.DirtyImageFragment{
			Bounds:     frame.Rect(int16(rng.IntN(65536)-32768), int16(rng.IntN(65536)-32768), uint16(rng.IntN(65536)), uint16(rng.IntN(65536))),
			Payload:    payload,
			Compressed: true,
		})
	}
	return img
}

func TestFrameRoundTrip(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewPCG(1, 2))
	tests := []struct {
		name         string
		moved, dirty int
	}{
		{"moves only", 7, 0},
		{"dirty only", 0, 9},
		{"mixed", 13, 21},
		{"many moves", 5000, 1},
	}
	for _, test := range tests {
		img := randomFrame(rng, test.moved, test.dirty)
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			data, err := MarshalFrame(img)
			require.NoError(t, err)
			assert.Len(t, data, FrameSize(img))

			got, err := UnmarshalFrame(data)
			require.NoError(t, err)
			assert.Equal(t, img.StreamID, got.StreamID)
			require.Len(t, got.Moved, len(img.Moved))
			require.Len(t, got.Dirty, len(img.Dirty))
			for i := range img.Moved {
				assert.Equal(t, img.Moved[i], got.Moved[i])
			}
			for i := range img.Dirty {
				assert.Equal(t, img.Dirty[i].Bounds, got.Dirty[i].Bounds)
				assert.Equal(t, img.Dirty[i].Payload, got.Dirty[i].Payload)
				assert.True(t, got.Dirty[i].Compressed)
			}
		})
	}
}

func TestFrameExtremeGeometry(t *testing.T) {
	t.Parallel()
	img := &frame.FragmentedImage{
		StreamID: 255,
		Moved: []frame.MovedImageFragment{{
			Bounds: frame.Rect(math.MinInt16, math.MaxInt16, math.MaxUint16, 0),
			Source: frame.Point{X: math.MaxInt16, Y: math.MinInt16},
		}},
	}
	data, err := MarshalFrame(img)
	require.NoError(t, err)
	got, err := UnmarshalFrame(data)
	require.NoError(t, err)
	assert.Equal(t, img.Moved, got.Moved)
}

func TestFrameMaxFragmentCount(t *testing.T) {
	t.Parallel()
	img := &frame.FragmentedImage{Moved: make([]frame.MovedImageFragment, frame.MaxFragments)}
	data, err := MarshalFrame(img)
	require.NoError(t, err)
	got, err := UnmarshalFrame(data)
	require.NoError(t, err)
	assert.Len(t, got.Moved, frame.MaxFragments)

	img.Moved = append(img.Moved, frame.MovedImageFragment{})
	_, err = MarshalFrame(img)
	assert.ErrorIs(t, err, frame.ErrTooManyFragments)
}

func TestEmptyFrameIsSixBytes(t *testing.T) {
	t.Parallel()
	data, err := MarshalFrame(&frame.FragmentedImage{StreamID: 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 4, 0, 0, 0, 0}, data)
	assert.Len(t, data, EmptyFrameSize)

	got, err := UnmarshalFrame(data)
	require.NoError(t, err)
	assert.True(t, got.Empty())
	assert.Equal(t, byte(4), got.StreamID)
}

func TestFrameExactLayout(t *testing.T) {
	t.Parallel()
	img := &frame.FragmentedImage{
		StreamID: 1,
		Moved:    []frame.MovedImageFragment{{Bounds: frame.Rect(-1, 2, 3, 4), Source: frame.Point{X: 5, Y: -6}}},
		Dirty:    []frame.DirtyImageFragment{{Bounds: frame.Rect(7, 8, 9, 10), Payload: []byte{0xAA, 0xBB}, Compressed: true}},
	}
	data, err := MarshalFrame(img)
	require.NoError(t, err)
	want := []byte{
		10, 1, 0, 1, 0, 1,
		0xFF, 0xFF, 0, 2, 0, 3, 0, 4, 0, 5, 0xFF, 0xFA,
		0, 7, 0, 8, 0, 9, 0, 10, 0, 0, 0, 2, 0xAA, 0xBB,
	}
	assert.Equal(t, want, data)
}

func TestUnmarshalFrameRejectsMalformed(t *testing.T) {
	t.Parallel()
	good, err := MarshalFrame(&frame.FragmentedImage{
		Dirty: []frame.DirtyImageFragment{{Bounds: frame.Rect(0, 0, 1, 1), Payload: []byte{1, 2, 3}, Compressed: true}},
	})
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  []byte
		want error
	}{
		{"empty", nil, ErrEmptyMessage},
		{"wrong command", []byte{byte(CmdGetDesktopInfo), 0}, ErrUnexpectedCommand},
		{"header only", []byte{10, 0, 0}, ErrShortPayload},
		{"truncated payload", good[:len(good)-1], ErrShortPayload},
		{"trailing", append(append([]byte{}, good...), 0), ErrTrailingData},
		{"negative length", []byte{10, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 1, 0x80, 0, 0, 0}, ErrShortPayload},
		{"count beyond data", []byte{10, 0, 0xFF, 0xFF, 0, 0}, ErrShortPayload},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			_, err := UnmarshalFrame(test.msg)
			assert.ErrorIs(t, err, test.want)
		})
	}
}

func TestRequestParsersRejectShortPayloads(t *testing.T) {
	t.Parallel()
	_, err := ParseStartStreaming([]byte{0})
	assert.ErrorIs(t, err, ErrShortPayload)
	_, err = ParseAcknowledgeFrame(nil)
	assert.ErrorIs(t, err, ErrShortPayload)
	_, err = ParseSetStreamSettings([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestCommandMessages(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []byte{0, 0, 2}, StartStreamingRequest(StreamTypeJPEG, 2))
	req, err := ParseStartStreaming(StartStreamingRequest(StreamTypeJPEG, 2)[1:])
	require.NoError(t, err)
	assert.Equal(t, StartRequest{StreamType: StreamTypeJPEG, Display: 2}, req)

	epoch, err := ParseStartStreamingReply(StartStreamingReply(9))
	require.NoError(t, err)
	assert.Equal(t, byte(9), epoch)

	assert.Equal(t, []byte{1}, StopStreamingRequest())
	assert.Equal(t, []byte{2, 7}, AcknowledgeFrameRequest(7))
	assert.Equal(t, []byte{3, 0xA1, 0x01}, ReproduceUserInputRequest([]byte{0xA1, 0x01}))
	assert.Equal(t, []byte{4}, GetDesktopInfoRequest())
	assert.Equal(t, []byte{6}, GetStreamSettingsRequest())
	assert.Equal(t, []byte{7}, KeepAliveRequest())
	assert.Equal(t, []byte{253}, ErrorReply(CmdErrorSyntax))

	settings := frame.StreamSettings{ColorFlags: frame.Color444, JPEGQuality: 80, MaxFPS: 15, MaxUnacknowledgedFrames: 4}
	set := SetStreamSettingsRequest(settings)
	assert.Equal(t, []byte{5, 3, 80, 15, 4}, set)
	parsed, err := ParseSetStreamSettings(set[1:])
	require.NoError(t, err)
	assert.Equal(t, settings, parsed)

	reply := StreamSettingsReply(settings)
	assert.Equal(t, []byte{6, 3, 80, 15}, reply)
	got, err := ParseStreamSettingsReply(reply)
	require.NoError(t, err)
	assert.Equal(t, frame.StreamSettings{ColorFlags: frame.Color444, JPEGQuality: 80, MaxFPS: 15}, got)
}

func TestDesktopInfoRoundTrip(t *testing.T) {
	t.Parallel()
	info := frame.DesktopInfo{Screens: []frame.DesktopScreen{
		{AdapterIndex: 0, OutputIndex: 0, AdapterName: "display", OutputName: "Display 1", Width: 2560, Height: 1440},
		{AdapterIndex: 0, OutputIndex: 1, AdapterName: "display", OutputName: "Ünïcode", X: -1920, Y: 120, Width: 1920, Height: 1080},
	}}
	msg, err := MarshalDesktopInfo(info)
	require.NoError(t, err)
	assert.Equal(t, byte(CmdGetDesktopInfo), msg[0])
	assert.Equal(t, byte(2), msg[1])

	got, err := UnmarshalDesktopInfo(msg)
	require.NoError(t, err)
	assert.Equal(t, info, got)

	_, err = UnmarshalDesktopInfo(msg[:len(msg)-1])
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestDesktopInfoLayout(t *testing.T) {
	t.Parallel()
	msg, err := MarshalDesktopInfo(frame.DesktopInfo{Screens: []frame.DesktopScreen{
		{AdapterIndex: 1, OutputIndex: 2, AdapterName: "a", OutputName: "bc", X: -1, Y: 2, Width: 3, Height: 4},
	}})
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 1, 1, 2, 0, 1, 'a', 0, 2, 'b', 'c', 0xFF, 0xFF, 0, 2, 0, 3, 0, 4}, msg)
}

func TestDesktopInfoTooManyScreens(t *testing.T) {
	t.Parallel()
	_, err := MarshalDesktopInfo(frame.DesktopInfo{Screens: make([]frame.DesktopScreen, 256)})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestCommandString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "AcknowledgeFrame", CmdAcknowledgeFrame.String())
	assert.Equal(t, "Command(42)", Command(42).String())
	assert.True(t, CmdErrorUnspecified.IsError())
	assert.False(t, CmdGetScreenCapture.IsError())
}
