package pdu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/ransim/internal/protocol/schema"
	"github.com/danmuck/ransim/internal/testutil/testlog"
)

var testPlmn = Plmn{Mcc: 1, Mnc: 1}

func testPathSwitch() PathSwitchRequest {
	return PathSwitchRequest{
		RanUeNgapID:       5,
		SourceAmfUeNgapID: 9,
		UserLocation: UserLocationNR{
			NrCgi: NrCgi{Plmn: testPlmn, Nci: 0x10},
			Tai:   Tai{Plmn: testPlmn, Tac: 1},
		},
		SecurityCapabilities: FullSecurityCapabilities,
		PduSessions:          []PduSessionToSwitch{{ID: 1, Transfer: []byte{0x00, 0x1f}}},
	}
}

func TestNGSetupResponseRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := NGSetupResponse{
		AmfName: "amf-a",
		ServedGuamis: []ServedGuami{
			{Guami: Guami{Plmn: testPlmn, AmfRegionID: 2, AmfSetID: 1, AmfPointer: 3}, BackupAmfName: "amf-b"},
		},
		RelativeCapacity: 255,
		PlmnSupports: []PlmnSupport{
			{Plmn: testPlmn, Slices: []Snssai{{Sst: 1}, {Sst: 2, Sd: 0x010203, HasSd: true}}},
		},
	}
	buf, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := out.(NGSetupResponse)
	if !ok {
		t.Fatalf("expected NGSetupResponse, got %T", out)
	}
	if got.AmfName != "amf-a" || got.RelativeCapacity != 255 {
		t.Fatalf("scalar mismatch: %+v", got)
	}
	if len(got.ServedGuamis) != 1 || got.ServedGuamis[0] != in.ServedGuamis[0] {
		t.Fatalf("served guami mismatch: %+v", got.ServedGuamis)
	}
	if len(got.PlmnSupports) != 1 || len(got.PlmnSupports[0].Slices) != 2 {
		t.Fatalf("plmn support mismatch: %+v", got.PlmnSupports)
	}
	if s := got.PlmnSupports[0].Slices[1]; !s.HasSd || s.Sd != 0x010203 {
		t.Fatalf("slice sd lost: %+v", s)
	}
}

func TestConfigurationUpdateKeepsPresence(t *testing.T) {
	testlog.Start(t)
	in := AMFConfigurationUpdate{
		TnlToAdd: []TnlAssociation{{Address: "10.0.0.2"}},
	}
	buf, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := out.(AMFConfigurationUpdate)
	if got.AmfName != nil || got.ServedGuamis != nil || got.PlmnSupports != nil {
		t.Fatalf("absent IEs decoded as present: %+v", got)
	}
	if len(got.TnlToAdd) != 1 || got.TnlToAdd[0].Address != "10.0.0.2" {
		t.Fatalf("tnl add list mismatch: %+v", got.TnlToAdd)
	}
	if got.TnlToRemove != nil {
		t.Fatalf("tnl remove list should be absent")
	}
}

func TestPathSwitchOmitsNonPositiveSourceID(t *testing.T) {
	testlog.Start(t)
	msg := testPathSwitch()
	msg.SourceAmfUeNgapID = 0
	buf, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	xmlText, err := RenderXML(msg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(xmlText, `id="100"`) {
		t.Fatalf("source amf ue ngap id must be omitted:\n%s", xmlText)
	}
	out, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := out.(PathSwitchRequest)
	if got.SourceAmfUeNgapID != 0 || got.RanUeNgapID != 5 {
		t.Fatalf("id mismatch: %+v", got)
	}
	if !bytes.Equal(got.PduSessions[0].Transfer, []byte{0x00, 0x1f}) {
		t.Fatalf("transfer mismatch: %x", got.PduSessions[0].Transfer)
	}
}

func TestCheckConstraintsRejectsOutOfRangeIDs(t *testing.T) {
	testlog.Start(t)
	cases := map[string]func(*PathSwitchRequest){
		"negative ran id":  func(m *PathSwitchRequest) { m.RanUeNgapID = -1 },
		"ran id too large": func(m *PathSwitchRequest) { m.RanUeNgapID = schema.MaxRANUENGAPID + 1 },
		"amf id too large": func(m *PathSwitchRequest) { m.SourceAmfUeNgapID = schema.MaxAMFUENGAPID + 1 },
		"nci too wide":     func(m *PathSwitchRequest) { m.UserLocation.NrCgi.Nci = 1 << 36 },
		"no pdu sessions":  func(m *PathSwitchRequest) { m.PduSessions = nil },
		"empty transfer":   func(m *PathSwitchRequest) { m.PduSessions[0].Transfer = nil },
		"mnc out of range": func(m *PathSwitchRequest) { m.UserLocation.Tai.Plmn.Mnc = 100 },
		"tac out of range": func(m *PathSwitchRequest) { m.UserLocation.Tai.Tac = 1 << 24 },
		"mcc out of range": func(m *PathSwitchRequest) { m.UserLocation.NrCgi.Plmn.Mcc = 1000 },
		"negative mcc":     func(m *PathSwitchRequest) { m.UserLocation.NrCgi.Plmn.Mcc = -1 },
	}
	for name, mutate := range cases {
		msg := testPathSwitch()
		mutate(&msg)
		if err := CheckConstraints(msg); !errors.Is(err, ErrConstraint) {
			t.Fatalf("%s: expected ErrConstraint, got %v", name, err)
		}
	}
	if err := CheckConstraints(testPathSwitch()); err != nil {
		t.Fatalf("valid path switch rejected: %v", err)
	}
}

func TestEncodeRejectsOversizedPdu(t *testing.T) {
	testlog.Start(t)
	msg := testPathSwitch()
	msg.PduSessions[0].Transfer = make([]byte, MaxEncodedBytes)
	if _, err := Encode(msg); !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
}

func TestDecodeRejectsMissingMandatoryIE(t *testing.T) {
	testlog.Start(t)
	buf, err := Encode(NGSetupFailure{Cause: CauseTransportUnspecified})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// relabel as a setup response, which needs AMFName
	buf[3] = byte(schema.MsgNGSetupResponse)
	if _, err := Decode(buf); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestRenderXMLNamesProcedure(t *testing.T) {
	testlog.Start(t)
	text, err := RenderXML(testPathSwitch())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"<NGAP-PDU>", "<initiatingMessage>", "<PathSwitchRequest>", "<pathSwitchRequestTransfer>001f</pathSwitchRequestTransfer>"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func TestCauseString(t *testing.T) {
	if got := CauseTransportUnspecified.String(); got != "transport/unspecified" {
		t.Fatalf("unexpected cause string %q", got)
	}
	if got := (Cause{Group: CauseNas, Value: 9}).String(); got != "nas/9" {
		t.Fatalf("unexpected cause string %q", got)
	}
}

func TestParsePlmn(t *testing.T) {
	p, err := ParsePlmn("001001")
	if err != nil || p.Mcc != 1 || p.Mnc != 1 || !p.IsLongMnc {
		t.Fatalf("unexpected plmn %+v err=%v", p, err)
	}
	if _, err := ParsePlmn("01"); err == nil {
		t.Fatalf("expected error for short plmn")
	}
}
