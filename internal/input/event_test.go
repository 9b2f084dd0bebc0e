package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCBORRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []Event{
		{Type: EventMouseMove, X: 10.5, Y: 20},
		{Type: EventMouseDown, X: 1, Y: 2, Button: MouseButtonRight},
		{Type: EventMouseScroll, ScrollDY: -3},
		{Type: EventKeyDown, KeyCode: 0x24, Modifiers: ModShift | ModMeta},
	}
	for _, want := range tests {
		t.Run(want.Type.String(), func(t *testing.T) {
			t.Parallel()
			data, err := Marshal(&want)
			require.NoError(t, err)
			got, err := Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, want, *got)
		})
	}
}

func TestEventEncodingIsDeterministic(t *testing.T) {
	t.Parallel()
	e := &Event{Type: EventKeyUp, KeyCode: 0x31, Modifiers: ModControl}
	a, err := Marshal(e)
	require.NoError(t, err)
	b, err := Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUnmarshalRejectsInvalid(t *testing.T) {
	t.Parallel()
	_, err := Unmarshal([]byte{0xFF, 0x00})
	assert.Error(t, err)

	data, err := Marshal(&Event{Type: 99})
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrInvalidEvent)

	data, err = Marshal(&Event{Type: EventMouseDown, Button: 7})
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestRecorderKeepsEvents(t *testing.T) {
	t.Parallel()
	r := NewRecorder(nil)
	require.NoError(t, r.Inject(&Event{Type: EventMouseMove, X: 3}))
	events := r.Events()
	require.Len(t, events, 1)
	events[0].X = 100
	assert.Equal(t, 3.0, r.Events()[0].X)
}

func TestKeyName(t *testing.T) {
	t.Parallel()
	name, ok := KeyName(0x24)
	assert.True(t, ok)
	assert.Equal(t, "enter", name)
	_, ok = KeyName(0xFF)
	assert.False(t, ok)
}
