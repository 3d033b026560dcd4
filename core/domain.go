package core

import "strings"

// Domain identifies a bounded logistics capability area served by exactly
// one registered agent.
type Domain string

const (
	// DomainFleet covers vehicles, maintenance, drivers and fuel.
	DomainFleet Domain = "fleet"
	// DomainTransport covers shipments, dispatch and routes.
	DomainTransport Domain = "transport"
	// DomainWarehouse covers inventory, inbound/outbound and storage.
	DomainWarehouse Domain = "warehouse"
	// DomainCallService covers bookings, ETA lookups and payments.
	DomainCallService Domain = "call_service"
	// DomainMemory covers user-fact storage and recall.
	DomainMemory Domain = "memory"
	// DomainUnknown marks an unclassifiable request. It is never a valid
	// registration target.
	DomainUnknown Domain = "unknown"
)

// Domains lists every routable domain in stable lexicographic order. The
// order doubles as the tie-break order for keyword scoring.
func Domains() []Domain {
	return []Domain{DomainCallService, DomainFleet, DomainMemory, DomainTransport, DomainWarehouse}
}

// ParseDomain converts a string to a Domain. Matching is case-insensitive;
// unrecognized values map to DomainUnknown.
func ParseDomain(s string) Domain {
	switch Domain(strings.ToLower(strings.TrimSpace(s))) {
	case DomainFleet:
		return DomainFleet
	case DomainTransport:
		return DomainTransport
	case DomainWarehouse:
		return DomainWarehouse
	case DomainCallService:
		return DomainCallService
	case DomainMemory:
		return DomainMemory
	default:
		return DomainUnknown
	}
}

// Valid reports whether d names a routable domain (not unknown, not empty).
func (d Domain) Valid() bool {
	switch d {
	case DomainFleet, DomainTransport, DomainWarehouse, DomainCallService, DomainMemory:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (d Domain) String() string { return string(d) }
