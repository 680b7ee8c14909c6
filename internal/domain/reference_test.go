package domain

import "testing"

func TestReferenceRoundTrip(t *testing.T) {
	kinds := []ReferenceKind{KindBooking, KindTourBooking, KindEscrow, KindWithdrawal}
	for _, kind := range kinds {
		raw := EncodeReference(kind, 42)
		ref := ParseReference(raw)
		if ref.Kind != kind {
			t.Fatalf("%s: kind mismatch, got %s", raw, ref.Kind)
		}
		if ref.ID != 42 {
			t.Fatalf("%s: id mismatch, got %d", raw, ref.ID)
		}
	}
}

func TestParseReferenceEncoding(t *testing.T) {
	ref := ParseReference("BOOKING-123")
	if ref.Kind != KindBooking || ref.ID != 123 {
		t.Fatalf("unexpected result: %+v", ref)
	}
	if ref.String() != "BOOKING-123" {
		t.Fatalf("String() mismatch: %s", ref.String())
	}
}

func TestParseReferenceLowercaseKind(t *testing.T) {
	ref := ParseReference("booking-7")
	if ref.Kind != KindBooking || ref.ID != 7 {
		t.Fatalf("kind should compare case-insensitive, got %+v", ref)
	}
}

func TestParseReferenceUnknown(t *testing.T) {
	cases := []string{
		"",
		"BOOKING",
		"BOOKING-",
		"-123",
		"BOOKING-0",
		"BOOKING--5",
		"BOOKING-abc",
		"INVOICE-12",
		"justtext",
	}
	for _, raw := range cases {
		ref := ParseReference(raw)
		if ref.Kind != KindUnknown {
			t.Fatalf("ParseReference(%q) should be UNKNOWN, got %s", raw, ref.Kind)
		}
	}
}
