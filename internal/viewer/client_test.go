package viewer

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/AirDesk/internal/capture"
	"github.com/junsooki/AirDesk/internal/decoder"
	"github.com/junsooki/AirDesk/internal/frame"
	"github.com/junsooki/AirDesk/internal/input"
	"github.com/junsooki/AirDesk/internal/protocol"
	"github.com/junsooki/AirDesk/internal/renderer"
	"github.com/junsooki/AirDesk/internal/session"
	"github.com/junsooki/AirDesk/internal/transport"
)

var desktop = capture.StaticDesktop{Screens: []frame.DesktopScreen{
	{AdapterName: "virtual", OutputName: "pattern", Width: 160, Height: 96},
}}

type loopback struct {
	client   *Client
	renderer *renderer.Renderer
	injector *input.Recorder
	updates  chan image.Rectangle
}

// newLoopback wires a host session and a viewer client over an in-memory
// pipe, with a real diff capturer, JPEG codec and renderer in between.
func newLoopback(t *testing.T) *loopback {
	t.Helper()
	hostConn, viewerConn := transport.Pipe()
	lb := &loopback{
		injector: input.NewRecorder(nil),
		updates:  make(chan image.Rectangle, 1024),
	}
	s := session.New(session.Config{
		Conn:     hostConn,
		Capture:  capture.NewDiffCapturer(&capture.PatternGrabber{}),
		Desktop:  desktop,
		Injector: lb.injector,
		Settings: frame.StreamSettings{ColorFlags: frame.Color444, JPEGQuality: 90, MaxFPS: 120, MaxUnacknowledgedFrames: 2},
	})
	lb.client = NewClient(viewerConn, nil, nil)
	lb.renderer = renderer.New(renderer.Config{
		Decoder:      decoder.NewJPEGDecoder(),
		Acknowledger: lb.client,
		OnUpdate: func(r image.Rectangle) {
			select {
			case lb.updates <- r:
			default:
			}
		},
	})
	lb.client.SetFrameHandler(lb.renderer)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	ran := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()
	go func() { ran <- lb.client.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		lb.renderer.Close()
		for _, ch := range []chan error{served, ran} {
			select {
			case <-ch:
			case <-time.After(5 * time.Second):
				t.Error("loop did not exit")
			}
		}
	})
	return lb
}

func ctxTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStreamPaintsWholeScreen(t *testing.T) {
	t.Parallel()
	lb := newLoopback(t)
	ctx := ctxTimeout(t)

	epoch, err := lb.client.StartStreaming(ctx, protocol.StreamTypeJPEG, 0)
	require.NoError(t, err)
	assert.NotZero(t, epoch)

	// The first frame is the full screen; later ones are diffs of the
	// moving block. Frames only keep coming if the renderer acknowledges.
	for range 5 {
		select {
		case <-lb.updates:
		case <-ctx.Done():
			t.Fatal("no frame painted")
		}
	}
	assert.Equal(t, image.Rect(0, 0, 160, 96), lb.renderer.Bounds())

	// (25,25) sits in the smooth gradient away from grid lines and the
	// moving block.
	px := lb.renderer.Snapshot().RGBAAt(25, 25)
	assert.InDelta(t, 65, int(px.R), 16)
	assert.InDelta(t, 76, int(px.G), 16)
	assert.InDelta(t, 100, int(px.B), 16)

	require.NoError(t, lb.client.StopStreaming())
	_, err = lb.client.GetStreamSettings(ctx)
	require.NoError(t, err)
}

func TestRequestsRoundTrip(t *testing.T) {
	t.Parallel()
	lb := newLoopback(t)
	ctx := ctxTimeout(t)

	info, err := lb.client.GetDesktopInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame.DesktopInfo(desktop), info)

	want := frame.StreamSettings{ColorFlags: frame.Color440, JPEGQuality: 55, MaxFPS: 12}
	require.NoError(t, lb.client.SetStreamSettings(frame.StreamSettings{
		ColorFlags: want.ColorFlags, JPEGQuality: want.JPEGQuality, MaxFPS: want.MaxFPS, MaxUnacknowledgedFrames: 5,
	}))
	got, err := lb.client.GetStreamSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, lb.client.KeepAlive())
	require.NoError(t, lb.client.SendInput(&input.Event{Type: input.EventKeyDown, KeyCode: 0x24}))
	_, err = lb.client.GetStreamSettings(ctx)
	require.NoError(t, err)
	events := lb.injector.Events()
	require.Len(t, events, 1)
	assert.Equal(t, uint16(0x24), events[0].KeyCode)
}

func TestRemoteErrorIsReturned(t *testing.T) {
	t.Parallel()
	lb := newLoopback(t)
	ctx := ctxTimeout(t)

	_, err := lb.client.StartStreaming(ctx, 3, 0)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, protocol.CmdErrorUnspecified, remote.Code)

	_, err = lb.client.GetStreamSettings(ctx)
	assert.NoError(t, err)
}

func TestPendingRequestsFailWhenConnectionCloses(t *testing.T) {
	t.Parallel()
	hostConn, viewerConn := transport.Pipe()
	c := NewClient(viewerConn, nil, nil)
	ran := make(chan error, 1)
	go func() { ran <- c.Run(context.Background()) }()

	errc := make(chan error, 1)
	go func() {
		_, err := c.GetDesktopInfo(context.Background())
		errc <- err
	}()

	// The host reads the request and hangs up without answering.
	_, err := hostConn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, hostConn.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrNotRunning)
	case <-time.After(2 * time.Second):
		t.Fatal("request not released")
	}
	assert.NoError(t, <-ran)

	_, err = c.GetStreamSettings(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestRequestHonoursContext(t *testing.T) {
	t.Parallel()
	hostConn, viewerConn := transport.Pipe()
	defer hostConn.Close()
	c := NewClient(viewerConn, nil, nil)
	go c.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetStreamSettings(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.pending)
}

type recordingHandler struct {
	mu  sync.Mutex
	ids []byte
}

func (h *recordingHandler) HandleFrame(img *frame.FragmentedImage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, img.StreamID)
}

func (h *recordingHandler) streams() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]byte(nil), h.ids...)
}

func TestFramesOfOtherStreamsAreDropped(t *testing.T) {
	t.Parallel()
	hostConn, viewerConn := transport.Pipe()
	defer hostConn.Close()
	frames := &recordingHandler{}
	c := NewClient(viewerConn, frames, nil)
	go c.Run(context.Background())
	ctx := ctxTimeout(t)

	sendFrame := func(id byte) {
		t.Helper()
		msg, err := protocol.MarshalFrame(&frame.FragmentedImage{StreamID: id})
		require.NoError(t, err)
		require.NoError(t, hostConn.WriteMessage(msg))
	}
	expect := func(cmd protocol.Command) {
		t.Helper()
		msg, err := hostConn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, cmd, protocol.Command(msg[0]))
	}

	// A reply after the frames proves Run has routed all of them.
	flush := func() {
		t.Helper()
		done := make(chan error, 1)
		go func() {
			_, err := c.GetStreamSettings(ctx)
			done <- err
		}()
		expect(protocol.CmdGetStreamSettings)
		require.NoError(t, hostConn.WriteMessage(protocol.StreamSettingsReply(frame.DefaultStreamSettings())))
		require.NoError(t, <-done)
	}

	// Nothing is streaming yet.
	sendFrame(7)

	started := make(chan byte, 1)
	go func() {
		id, err := c.StartStreaming(ctx, protocol.StreamTypeJPEG, 0)
		assert.NoError(t, err)
		started <- id
	}()
	expect(protocol.CmdStartStreaming)
	require.NoError(t, hostConn.WriteMessage(protocol.StartStreamingReply(5)))
	sendFrame(3)
	sendFrame(5)
	assert.Equal(t, byte(5), <-started)
	flush()
	assert.Equal(t, []byte{5}, frames.streams())

	require.NoError(t, c.StopStreaming())
	expect(protocol.CmdStopStreaming)
	sendFrame(5)
	flush()
	assert.Equal(t, []byte{5}, frames.streams(), "frames after StopStreaming are dropped")
}
