package errors

import "fmt"

type Underflow struct {
	FieldName   string
	MsgSize     int
	MinimumSize int
}

func (e *Underflow) Error() string {
	return fmt.Sprintf("Packet decoding underflowed (field=%s), provided %d bytes, needed at least %d", e.FieldName, e.MsgSize, e.MinimumSize)
}

type StringOverflow struct {
	FieldName string
	Length    int
	Maximum   int
}

func (e *StringOverflow) Error() string {
	return fmt.Sprintf("String field %s is %d bytes, maximum encodable length is %d", e.FieldName, e.Length, e.Maximum)
}

type UnknownPacketKind struct {
	Direction string
	KindByte  uint8
}

func (e *UnknownPacketKind) Error() string {
	return fmt.Sprintf("Unknown %s packet kind byte 0x%02x", e.Direction, e.KindByte)
}

type TrailingBytes struct {
	PacketName string
	Remaining  int
}

func (e *TrailingBytes) Error() string {
	return fmt.Sprintf("Packet %s decoded with %d trailing bytes", e.PacketName, e.Remaining)
}

type EmptyPacket struct{}

func (e *EmptyPacket) Error() string {
	return "Packet is empty, expected at least a kind byte"
}

type InvalidSessionState struct {
	Operation string
	State     string
}

func (e *InvalidSessionState) Error() string {
	return fmt.Sprintf("Operation %s is not valid in session state %s", e.Operation, e.State)
}

type UnmappedPeer struct {
	Peer string
}

func (e *UnmappedPeer) Error() string {
	return fmt.Sprintf("Peer %s has no assigned client id", e.Peer)
}

type UnmappedClientId struct {
	Id uint16
}

func (e *UnmappedClientId) Error() string {
	return fmt.Sprintf("Missing client with id=%d", e.Id)
}

type ValidationRejection struct {
	Id     uint16
	Reason string
}

func (e *ValidationRejection) Error() string {
	return fmt.Sprintf("Update from client %d rejected: %s", e.Id, e.Reason)
}
