package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ReferenceKind tags the domain entity a provider transaction correlates to.
type ReferenceKind string

const (
	KindBooking     ReferenceKind = "BOOKING"
	KindTourBooking ReferenceKind = "TOUR"
	KindEscrow      ReferenceKind = "ESCROW"
	KindWithdrawal  ReferenceKind = "WITHDRAWAL"

	// KindUnknown marks a reference that could not be classified. It is an
	// explicit state: callers must surface it for manual reconciliation,
	// never guess.
	KindUnknown ReferenceKind = "UNKNOWN"
)

// Reference is the internal reference carried on provider transactions,
// encoded at creation time so resolution never depends on substring
// heuristics.
type Reference struct {
	Kind ReferenceKind
	ID   int64
}

func (r Reference) String() string {
	return EncodeReference(r.Kind, r.ID)
}

// EncodeReference builds the opaque string stored with the aggregator,
// e.g. "BOOKING-123".
func EncodeReference(kind ReferenceKind, id int64) string {
	return fmt.Sprintf("%s-%d", kind, id)
}

// ParseReference decodes an internal reference. Anything that does not match
// "<KIND>-<numeric id>" with a known kind comes back as KindUnknown so the
// caller can flag it instead of dropping it.
func ParseReference(raw string) Reference {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, "-")
	if idx <= 0 || idx == len(raw)-1 {
		return Reference{Kind: KindUnknown}
	}

	id, err := strconv.ParseInt(raw[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return Reference{Kind: KindUnknown}
	}

	switch ReferenceKind(strings.ToUpper(raw[:idx])) {
	case KindBooking:
		return Reference{Kind: KindBooking, ID: id}
	case KindTourBooking:
		return Reference{Kind: KindTourBooking, ID: id}
	case KindEscrow:
		return Reference{Kind: KindEscrow, ID: id}
	case KindWithdrawal:
		return Reference{Kind: KindWithdrawal, ID: id}
	default:
		return Reference{Kind: KindUnknown}
	}
}
