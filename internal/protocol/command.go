// Package protocol implements the binary wire format spoken between a
// streaming host and its viewer. Every message starts with a command byte;
// all multi-byte integers are big endian.
package protocol

import (
	"errors"
	"fmt"
)

// Command is the first byte of every message.
type Command byte

const (
	CmdStartStreaming     Command = 0
	CmdStopStreaming      Command = 1
	CmdAcknowledgeFrame   Command = 2
	CmdReproduceUserInput Command = 3
	CmdGetDesktopInfo     Command = 4
	CmdSetStreamSettings  Command = 5
	CmdGetStreamSettings  Command = 6
	CmdKeepAlive          Command = 7
	CmdGetScreenCapture   Command = 10

	CmdErrorSyntax         Command = 253
	CmdErrorCommandUnknown Command = 254
	CmdErrorUnspecified    Command = 255
)

// StreamTypeJPEG is the only stream type: dirty fragments carry JPEG.
const StreamTypeJPEG byte = 0

var commandNames = map[Command]string{
	CmdStartStreaming:      "StartStreaming",
	CmdStopStreaming:       "StopStreaming",
	CmdAcknowledgeFrame:    "AcknowledgeFrame",
	CmdReproduceUserInput:  "ReproduceUserInput",
	CmdGetDesktopInfo:      "GetDesktopInfo",
	CmdSetStreamSettings:   "SetStreamSettings",
	CmdGetStreamSettings:   "GetStreamSettings",
	CmdKeepAlive:           "KeepAlive",
	CmdGetScreenCapture:    "GetScreenCapture",
	CmdErrorSyntax:         "Error_SyntaxError",
	CmdErrorCommandUnknown: "Error_CommandCodeUnknown",
	CmdErrorUnspecified:    "Error_Unspecified",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", byte(c))
}

// IsError reports whether c is one of the error replies.
func (c Command) IsError() bool {
	return c >= CmdErrorSyntax
}

var (
	// ErrShortPayload is returned when a message ends before its fields do.
	ErrShortPayload = errors.New("protocol: payload too short")

	// ErrTrailingData is returned when bytes remain after a complete message.
	ErrTrailingData = errors.New("protocol: trailing data after message")

	// ErrUnexpectedCommand is returned when a message carries a different
	// command byte than the parser expects.
	ErrUnexpectedCommand = errors.New("protocol: unexpected command")

	// ErrUnknownCommand is returned for a command byte with no handler.
	ErrUnknownCommand = errors.New("protocol: unknown command")

	// ErrTooLarge is returned when a value does not fit its wire field.
	ErrTooLarge = errors.New("protocol: value exceeds field size")

	// ErrEmptyMessage is returned for a zero-length message.
	ErrEmptyMessage = errors.New("protocol: empty message")
)

// Split separates a message into its command and payload.
func Split(msg []byte) (Command, []byte, error) {
	if len(msg) == 0 {
		return 0, nil, ErrEmptyMessage
	}
	return Command(msg[0]), msg[1:], nil
}

func expect(msg []byte, cmd Command) ([]byte, error) {
	got, payload, err := Split(msg)
	if err != nil {
		return nil, err
	}
	if got != cmd {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedCommand, got, cmd)
	}
	return payload, nil
}
