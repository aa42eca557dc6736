package rls

import (
	"errors"
	"fmt"

	"github.com/danmuck/ransim/internal/protocol/tlv"
)

// Datagram kinds.
const (
	KindHeartbeat    uint8 = 1
	KindRelease      uint8 = 2
	KindHeartbeatAck uint8 = 3
)

const (
	fieldSti  uint16 = 1
	fieldUeID uint16 = 2
	fieldKind uint16 = 3
)

var ErrMalformedDatagram = errors.New("rls: malformed datagram")

// Datagram is one RLS message between a UE and the gNB.
type Datagram struct {
	Sti  uint64
	UeID uint32
	Kind uint8
}

func EncodeDatagram(d Datagram) []byte {
	return tlv.EncodeFields([]tlv.Field{
		tlv.U64(fieldSti, d.Sti),
		tlv.U32(fieldUeID, d.UeID),
		tlv.U8(fieldKind, d.Kind),
	})
}

// DecodeDatagram rejects ue id 0, which NGAP reserves for non-UE signalling.
func DecodeDatagram(b []byte) (Datagram, error) {
	fields, err := tlv.DecodeFields(b)
	if err != nil {
		return Datagram{}, fmt.Errorf("%w: %v", ErrMalformedDatagram, err)
	}
	var d Datagram
	if d.Sti, err = u64(fields, fieldSti); err != nil {
		return Datagram{}, err
	}
	if d.UeID, err = u32(fields, fieldUeID); err != nil {
		return Datagram{}, err
	}
	if d.UeID == 0 {
		return Datagram{}, fmt.Errorf("%w: ue id 0 is reserved", ErrMalformedDatagram)
	}
	f, ok := tlv.GetField(fields, fieldKind)
	if !ok {
		return Datagram{}, fmt.Errorf("%w: missing kind", ErrMalformedDatagram)
	}
	if d.Kind, err = f.Uint8(); err != nil {
		return Datagram{}, fmt.Errorf("%w: %v", ErrMalformedDatagram, err)
	}
	return d, nil
}

func u64(fields []tlv.Field, id uint16) (uint64, error) {
	f, ok := tlv.GetField(fields, id)
	if !ok {
		return 0, fmt.Errorf("%w: missing field %d", ErrMalformedDatagram, id)
	}
	v, err := f.Uint64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedDatagram, err)
	}
	return v, nil
}

func u32(fields []tlv.Field, id uint16) (uint32, error) {
	f, ok := tlv.GetField(fields, id)
	if !ok {
		return 0, fmt.Errorf("%w: missing field %d", ErrMalformedDatagram, id)
	}
	v, err := f.Uint32()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedDatagram, err)
	}
	return v, nil
}
