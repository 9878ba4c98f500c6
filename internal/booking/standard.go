package booking

import (
	"fmt"
	"math/rand"
	"time"

	"freightline/internal/domain"
)

// StandardStrategy is the default quote-to-booking mapping. Booking numbers
// use a year-scoped 4-digit random suffix; the persistence layer owns
// uniqueness, callers retry with a fresh draft on conflict.
type StandardStrategy struct {
	Now     func() time.Time
	RandInt func(n int) int
}

func NewStandardStrategy() *StandardStrategy {
	return &StandardStrategy{Now: time.Now, RandInt: rand.Intn}
}

func (s *StandardStrategy) Name() string { return "Standard" }

func (s *StandardStrategy) Map(quote domain.Quote, existing *domain.BookingDraft) domain.BookingDraft {
	now := s.Now()

	number := fmt.Sprintf("BK-%d-%04d", now.Year(), s.RandInt(10000))
	status := "draft"
	notes := fmt.Sprintf("Mapped from Quote %s", quote.QuoteNumber)
	if existing != nil {
		if existing.BookingNumber != "" {
			number = existing.BookingNumber
		}
		if existing.Status != "" {
			status = existing.Status
		}
		if existing.Notes != "" {
			notes = existing.Notes
		}
	}

	incoterms := quote.Incoterms
	if incoterms == "" {
		incoterms = "FOB"
	}
	currency := quote.Currency
	if currency == "" {
		currency = "USD"
	}
	ready := now.AddDate(0, 0, 7).Format("2006-01-02")
	if quote.CargoReadyDate != nil && *quote.CargoReadyDate != "" {
		ready = *quote.CargoReadyDate
	}
	qty := 1
	if quote.ContainerQty != nil {
		qty = *quote.ContainerQty
	}
	items := quote.LineItems
	if items == nil {
		items = []domain.LineItem{}
	}

	return domain.BookingDraft{
		BookingNumber:   number,
		QuoteID:         &quote.ID,
		TenantID:        quote.TenantID,
		AccountID:       quote.AccountID,
		Status:          status,
		Source:          "quote",
		Origin:          locationName(quote.OriginPort, quote.OriginLocation),
		Destination:     locationName(quote.DestinationPort, quote.DestinationLoc),
		Incoterms:       incoterms,
		TotalAmount:     quote.TotalAmount,
		Currency:        currency,
		CargoReadyDate:  ready,
		ContainerQty:    &qty,
		ContainerTypeID: quote.ContainerTypeID,
		CommodityList:   items,
		Notes:           notes,
		MappingMetadata: map[string]any{
			"strategy":              s.Name(),
			"mapped_at":             now.UTC().Format(time.RFC3339),
			"original_quote_amount": quote.TotalAmount,
			"quote_version":         "latest",
		},
	}
}

// Validate runs every rule; nothing short-circuits, so one call surfaces all
// applicable errors and warnings.
func (s *StandardStrategy) Validate(quote domain.Quote, draft domain.BookingDraft) domain.ValidationResult {
	errs := []string{}
	warnings := []string{}
	now := s.Now()

	if quote.ValidUntil != nil && *quote.ValidUntil != "" {
		if until, err := time.Parse(time.RFC3339, *quote.ValidUntil); err == nil && now.After(until) {
			errs = append(errs, fmt.Sprintf("Quote %s has expired on %s", quote.QuoteNumber, *quote.ValidUntil))
		}
	}

	diff := draft.TotalAmount - quote.TotalAmount
	if diff < 0 {
		diff = -diff
	}
	if diff > 0.01 {
		warnings = append(warnings, fmt.Sprintf("Booking amount (%v) differs from Quote amount (%v)", draft.TotalAmount, quote.TotalAmount))
	}

	if quote.ContainerQty != nil && draft.ContainerQty != nil && *draft.ContainerQty < *quote.ContainerQty {
		warnings = append(warnings, fmt.Sprintf("Booking quantity (%d) is less than Quote quantity (%d)", *draft.ContainerQty, *quote.ContainerQty))
	}

	return domain.ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// locationName prefers the port name, then the door location name.
func locationName(port, loc *domain.Location) string {
	if port != nil && port.Name != "" {
		return port.Name
	}
	if loc != nil && loc.Name != "" {
		return loc.Name
	}
	return ""
}
