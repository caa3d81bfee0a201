package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domainerrors "rentbridge/contexts/legacy-integration/sync-queue-service/domain/errors"
)

// EntityKind names the entity types the queue knows how to carry. Anything
// else is rejected at enqueue time.
type EntityKind string

const (
	EntityListing  EntityKind = "listing"
	EntityBooking  EntityKind = "booking"
	EntityCustomer EntityKind = "customer"
)

// CurrentPayloadVersion is the only payload schema version accepted today.
const CurrentPayloadVersion = 1

func (k EntityKind) Valid() bool {
	switch k {
	case EntityListing, EntityBooking, EntityCustomer:
		return true
	default:
		return false
	}
}

// Payload is a versioned sum type: exactly one of the variant pointers is set
// and it must agree with Kind. Delete operations may omit the variant.
type Payload struct {
	Kind     EntityKind
	Version  int
	Listing  *ListingPayload
	Booking  *BookingPayload
	Customer *CustomerPayload
}

type ListingPayload struct {
	LegacyID         string `json:"legacy_id,omitempty"`
	HostID           string `json:"host_id,omitempty"`
	Title            string `json:"title,omitempty"`
	Description      string `json:"description,omitempty"`
	City             string `json:"city,omitempty"`
	Bedrooms         int    `json:"bedrooms,omitempty"`
	NightlyRateCents int64  `json:"nightly_rate_cents,omitempty"`
	Currency         string `json:"currency,omitempty"`
	Status           string `json:"status,omitempty"`
}

type BookingPayload struct {
	LegacyID   string `json:"legacy_id,omitempty"`
	ListingID  string `json:"listing_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	CheckIn    string `json:"check_in,omitempty"`
	CheckOut   string `json:"check_out,omitempty"`
	Guests     int    `json:"guests,omitempty"`
	TotalCents int64  `json:"total_cents,omitempty"`
	Status     string `json:"status,omitempty"`
}

type CustomerPayload struct {
	LegacyID string `json:"legacy_id,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

func NewListingPayload(p ListingPayload) Payload {
	return Payload{Kind: EntityListing, Version: CurrentPayloadVersion, Listing: &p}
}

func NewBookingPayload(p BookingPayload) Payload {
	return Payload{Kind: EntityBooking, Version: CurrentPayloadVersion, Booking: &p}
}

func NewCustomerPayload(p CustomerPayload) Payload {
	return Payload{Kind: EntityCustomer, Version: CurrentPayloadVersion, Customer: &p}
}

// Validate checks the payload shape for the operation it travels with.
func (p Payload) Validate(op Operation) error {
	if !p.Kind.Valid() {
		return domainerrors.NewValidationError("payload.kind", "unknown entity kind %q", p.Kind)
	}
	if p.Version != CurrentPayloadVersion {
		return domainerrors.NewValidationError("payload.version", "unsupported version %d", p.Version)
	}
	if p.variantCount() > 1 {
		return domainerrors.NewValidationError("payload", "more than one variant set")
	}
	if p.variantCount() == 1 && p.variantKind() != p.Kind {
		return domainerrors.NewValidationError("payload", "variant does not match kind %q", p.Kind)
	}
	if p.variantCount() == 0 {
		if op == OperationDelete {
			return nil
		}
		return domainerrors.NewValidationError("payload.data", "is required for %s", op)
	}

	switch p.Kind {
	case EntityListing:
		return p.Listing.validate(op)
	case EntityBooking:
		return p.Booking.validate(op)
	case EntityCustomer:
		return p.Customer.validate(op)
	}
	return nil
}

// LegacyID returns a legacy identifier carried by the caller, if any.
func (p Payload) LegacyID() string {
	switch {
	case p.Listing != nil:
		return p.Listing.LegacyID
	case p.Booking != nil:
		return p.Booking.LegacyID
	case p.Customer != nil:
		return p.Customer.LegacyID
	default:
		return ""
	}
}

// Data returns the variant body, or nil when none is set.
func (p Payload) Data() any {
	switch {
	case p.Listing != nil:
		return p.Listing
	case p.Booking != nil:
		return p.Booking
	case p.Customer != nil:
		return p.Customer
	default:
		return nil
	}
}

func (p Payload) variantCount() int {
	count := 0
	if p.Listing != nil {
		count++
	}
	if p.Booking != nil {
		count++
	}
	if p.Customer != nil {
		count++
	}
	return count
}

func (p Payload) variantKind() EntityKind {
	switch {
	case p.Listing != nil:
		return EntityListing
	case p.Booking != nil:
		return EntityBooking
	case p.Customer != nil:
		return EntityCustomer
	default:
		return ""
	}
}

type payloadWire struct {
	Kind    EntityKind      `json:"kind"`
	Version int             `json:"version"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	wire := payloadWire{Kind: p.Kind, Version: p.Version}
	if data := p.Data(); data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		wire.Data = raw
	}
	return json.Marshal(wire)
}

func (p *Payload) UnmarshalJSON(raw []byte) error {
	var wire payloadWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domainerrors.NewValidationError("payload", "malformed payload: %v", err)
	}
	decoded := Payload{Kind: wire.Kind, Version: wire.Version}
	data := bytes.TrimSpace(wire.Data)
	if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		var err error
		switch wire.Kind {
		case EntityListing:
			decoded.Listing = &ListingPayload{}
			err = decodeStrict(data, decoded.Listing)
		case EntityBooking:
			decoded.Booking = &BookingPayload{}
			err = decodeStrict(data, decoded.Booking)
		case EntityCustomer:
			decoded.Customer = &CustomerPayload{}
			err = decodeStrict(data, decoded.Customer)
		default:
			return domainerrors.NewValidationError("payload.kind", "unknown entity kind %q", wire.Kind)
		}
		if err != nil {
			return domainerrors.NewValidationError("payload.data", "malformed %s data: %v", wire.Kind, err)
		}
	}
	*p = decoded
	return nil
}

func decodeStrict(raw []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func (l *ListingPayload) validate(op Operation) error {
	if op == OperationCreate {
		if strings.TrimSpace(l.Title) == "" {
			return domainerrors.NewValidationError("payload.data.title", "is required for create")
		}
		if strings.TrimSpace(l.HostID) == "" {
			return domainerrors.NewValidationError("payload.data.host_id", "is required for create")
		}
	}
	if l.NightlyRateCents < 0 {
		return domainerrors.NewValidationError("payload.data.nightly_rate_cents", "must not be negative")
	}
	if l.Bedrooms < 0 {
		return domainerrors.NewValidationError("payload.data.bedrooms", "must not be negative")
	}
	if l.Currency != "" && len(l.Currency) != 3 {
		return domainerrors.NewValidationError("payload.data.currency", "must be a 3-letter code")
	}
	return nil
}

func (b *BookingPayload) validate(op Operation) error {
	if op == OperationCreate {
		if strings.TrimSpace(b.ListingID) == "" {
			return domainerrors.NewValidationError("payload.data.listing_id", "is required for create")
		}
		if strings.TrimSpace(b.CustomerID) == "" {
			return domainerrors.NewValidationError("payload.data.customer_id", "is required for create")
		}
	}
	var checkIn, checkOut time.Time
	var err error
	if b.CheckIn != "" {
		if checkIn, err = time.Parse(time.DateOnly, b.CheckIn); err != nil {
			return domainerrors.NewValidationError("payload.data.check_in", "must be YYYY-MM-DD")
		}
	}
	if b.CheckOut != "" {
		if checkOut, err = time.Parse(time.DateOnly, b.CheckOut); err != nil {
			return domainerrors.NewValidationError("payload.data.check_out", "must be YYYY-MM-DD")
		}
	}
	if !checkIn.IsZero() && !checkOut.IsZero() && !checkOut.After(checkIn) {
		return domainerrors.NewValidationError("payload.data.check_out", "must be after check_in")
	}
	if b.Guests < 0 || b.TotalCents < 0 {
		return domainerrors.NewValidationError("payload.data", "guests and total_cents must not be negative")
	}
	return nil
}

func (c *CustomerPayload) validate(op Operation) error {
	if op == OperationCreate && strings.TrimSpace(c.Email) == "" {
		return domainerrors.NewValidationError("payload.data.email", "is required for create")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return domainerrors.NewValidationError("payload.data.email", "is not an email address")
	}
	return nil
}

func (p Payload) String() string {
	return fmt.Sprintf("%s/v%d", p.Kind, p.Version)
}
