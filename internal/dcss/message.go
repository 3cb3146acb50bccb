package dcss

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// HeaderSize is the length of the xos3 frame header: two
	// right-aligned 12-digit ASCII numbers, each followed by a space.
	// The first carries the payload length, the second is always zero.
	HeaderSize = 26

	// handshakeSize is the length of the raw login blocks exchanged
	// before framing starts.
	handshakeSize = 200
)

// clientTypeRequest is the server's opening message inside the first
// raw login block.
const clientTypeRequest = "stoc_send_client_type"

// Server message commands routed by consumers of this package.
const (
	// MsgStartOperation dispatches an operation: name, handle, args.
	MsgStartOperation = "stoh_start_operation"

	// MsgRegisterString announces a string this client owns. No reply
	// is expected.
	MsgRegisterString = "stoh_register_string"

	// MsgRegisterOperation announces an operation this client serves.
	// No reply is expected.
	MsgRegisterOperation = "stoh_register_operation"

	// MsgAbortAll aborts all hardware activity. Message level, no
	// operation handle.
	MsgAbortAll = "stoh_abort_all"
)

// Message is one decoded inbound server message.
type Message struct {
	// Command is the first token of the payload, e.g.
	// "stoh_start_operation". Empty for blank payloads.
	Command string

	// Args are the remaining whitespace-separated tokens.
	Args []string
}

// EncodeHeader renders the xos3 frame header for a payload length.
func EncodeHeader(length int) []byte {
	return []byte(fmt.Sprintf("%12d %12d ", length, 0))
}

// ParseHeader extracts the payload length from a frame header.
func ParseHeader(header []byte) (int, error) {
	if len(header) != HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(header))
	}
	length, err := strconv.Atoi(strings.TrimSpace(string(header[:12])))
	if err != nil || length < 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadHeader, header)
	}
	return length, nil
}

// EncodeMessage frames an outbound line: header followed by the raw
// payload bytes.
func EncodeMessage(line string) []byte {
	buf := make([]byte, 0, HeaderSize+len(line))
	buf = append(buf, EncodeHeader(len(line))...)
	buf = append(buf, line...)
	return buf
}

// ParseMessage decodes a framed payload into a command and arguments.
// Some DCSS builds NUL-pad their payloads; padding and surrounding
// whitespace are stripped before splitting.
func ParseMessage(payload []byte) Message {
	fields := strings.Fields(strings.Trim(string(payload), "\x00 \r\n\t"))
	if len(fields) == 0 {
		return Message{}
	}
	return Message{Command: fields[0], Args: fields[1:]}
}

// padBlock renders a raw login block: the line followed by spaces up to
// the fixed block size.
func padBlock(line string) []byte {
	block := make([]byte, handshakeSize)
	for i := range block {
		block[i] = ' '
	}
	copy(block, line)
	return block
}
