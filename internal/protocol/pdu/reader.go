package pdu

import (
	"github.com/danmuck/ransim/internal/protocol/tlv"
)

// reader walks a decoded field list. The first error sticks and is shared
// with every nested reader, so callers read freely and check once.
type reader struct {
	fields []tlv.Field
	err    *error
}

func newReader(fields []tlv.Field) *reader {
	var err error
	return &reader{fields: fields, err: &err}
}

func (r *reader) fail(err error) {
	if *r.err == nil {
		*r.err = err
	}
}

func (r *reader) Err() error {
	return *r.err
}

func (r *reader) has(id uint16) bool {
	_, ok := tlv.GetField(r.fields, id)
	return ok
}

func (r *reader) u8(id uint16) uint8 {
	f, ok := tlv.GetField(r.fields, id)
	if !ok {
		return 0
	}
	v, err := f.Uint8()
	if err != nil {
		r.fail(err)
	}
	return v
}

func (r *reader) u16(id uint16) uint16 {
	f, ok := tlv.GetField(r.fields, id)
	if !ok {
		return 0
	}
	v, err := f.Uint16()
	if err != nil {
		r.fail(err)
	}
	return v
}

func (r *reader) u32(id uint16) uint32 {
	f, ok := tlv.GetField(r.fields, id)
	if !ok {
		return 0
	}
	v, err := f.Uint32()
	if err != nil {
		r.fail(err)
	}
	return v
}

func (r *reader) u64(id uint16) uint64 {
	f, ok := tlv.GetField(r.fields, id)
	if !ok {
		return 0
	}
	v, err := f.Uint64()
	if err != nil {
		r.fail(err)
	}
	return v
}

func (r *reader) str(id uint16) string {
	f, ok := tlv.GetField(r.fields, id)
	if !ok {
		return ""
	}
	v, err := f.Text()
	if err != nil {
		r.fail(err)
	}
	return v
}

func (r *reader) bytes(id uint16) []byte {
	f, ok := tlv.GetField(r.fields, id)
	if !ok {
		return nil
	}
	if err := tlv.MustType(f, tlv.TypeBytes); err != nil {
		r.fail(err)
		return nil
	}
	return f.Value
}

// group returns a reader over the nested list of field id, or an empty reader
// when the field is absent.
func (r *reader) group(id uint16) *reader {
	f, ok := tlv.GetField(r.fields, id)
	if !ok {
		return &reader{err: r.err}
	}
	return r.nested(f)
}

// groups returns one reader per occurrence of field id.
func (r *reader) groups(id uint16) []*reader {
	all := tlv.GetAll(r.fields, id)
	out := make([]*reader, 0, len(all))
	for _, f := range all {
		out = append(out, r.nested(f))
	}
	return out
}

func (r *reader) nested(f tlv.Field) *reader {
	inner, err := f.Fields()
	if err != nil {
		r.fail(err)
		return &reader{err: r.err}
	}
	return &reader{fields: inner, err: r.err}
}
