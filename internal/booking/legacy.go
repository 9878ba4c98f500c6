package booking

import (
	"fmt"
	"time"

	"freightline/internal/domain"
)

// LegacyStrategy handles historical and imported quotes with aggressive
// defaults for missing data. Its validation is deliberately lenient.
type LegacyStrategy struct {
	Now func() time.Time
}

func NewLegacyStrategy() *LegacyStrategy {
	return &LegacyStrategy{Now: time.Now}
}

func (s *LegacyStrategy) Name() string { return "Legacy" }

func (s *LegacyStrategy) Map(quote domain.Quote, existing *domain.BookingDraft) domain.BookingDraft {
	number := fmt.Sprintf("BK-LEG-%d", s.Now().UnixMilli())
	if existing != nil && existing.BookingNumber != "" {
		number = existing.BookingNumber
	}

	origin := "Unknown Origin"
	if quote.OriginPort != nil && quote.OriginPort.Name != "" {
		origin = quote.OriginPort.Name
	}
	destination := "Unknown Destination"
	if quote.DestinationPort != nil && quote.DestinationPort.Name != "" {
		destination = quote.DestinationPort.Name
	}
	incoterms := quote.Incoterms
	if incoterms == "" {
		incoterms = "EXW"
	}
	currency := quote.Currency
	if currency == "" {
		currency = "USD"
	}

	return domain.BookingDraft{
		BookingNumber: number,
		QuoteID:       &quote.ID,
		TenantID:      quote.TenantID,
		Status:        "draft",
		Source:        "manual",
		Origin:        origin,
		Destination:   destination,
		Incoterms:     incoterms,
		TotalAmount:   quote.TotalAmount,
		Currency:      currency,
		MappingMetadata: map[string]any{
			"strategy": s.Name(),
			"note":     "Legacy data mapping applied",
		},
	}
}

func (s *LegacyStrategy) Validate(domain.Quote, domain.BookingDraft) domain.ValidationResult {
	return domain.ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{"Legacy validation skipped strict checks"},
	}
}
