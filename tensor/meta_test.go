package tensor

import "testing"

func TestMetaRoundTrip(t *testing.T) {
	t.Parallel()

	m := Meta{
		Format: Flexible,
		Type:   Float32,
		Media:  3, // octet
		Dims:   [RankLimit]uint32{150, 1},
	}

	wire := m.AppendHeader(nil)
	if len(wire) != HeaderSize {
		t.Fatalf("header size: got %d, want %d", len(wire), HeaderSize)
	}

	got, err := ParseMeta(wire)
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	if got != m {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, m)
	}
	if got.Rank() != 2 {
		t.Errorf("Rank: got %d, want 2", got.Rank())
	}
	if got.PayloadSize() != 4*150 {
		t.Errorf("PayloadSize: got %d, want %d", got.PayloadSize(), 4*150)
	}
}

func TestParseMetaRejectsBadHeaders(t *testing.T) {
	t.Parallel()

	if _, err := ParseMeta(make([]byte, HeaderSize-1)); err == nil {
		t.Error("short header accepted")
	}

	m := Meta{Format: Flexible, Type: Uint8, Dims: [RankLimit]uint32{10}}
	wire := m.AppendHeader(nil)

	bad := append([]byte(nil), wire...)
	bad[1] = 0x7F // element type tag out of range
	if _, err := ParseMeta(bad); err == nil {
		t.Error("invalid element type accepted")
	}

	bad = append([]byte(nil), wire...)
	bad[2] = RankLimit + 1
	if _, err := ParseMeta(bad); err == nil {
		t.Error("rank beyond limit accepted")
	}
}
