package server

import (
	"freightline/internal/domain"
)

// Request payloads

type InitTenantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type CreateAccountRequest struct {
	Name     string `json:"name"`
	Industry string `json:"industry,omitempty"`
	Country  string `json:"country,omitempty"`
	Contact  string `json:"contact,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type UpdateAccountRequest struct {
	Name     *string `json:"name,omitempty"`
	Industry *string `json:"industry,omitempty"`
	Country  *string `json:"country,omitempty"`
	Contact  *string `json:"contact,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func (r UpdateAccountRequest) patch() map[string]any {
	p := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			p[col] = *v
		}
	}
	set("name", r.Name)
	set("industry", r.Industry)
	set("country", r.Country)
	set("contact", r.Contact)
	set("email", r.Email)
	set("phone", r.Phone)
	set("notes", r.Notes)
	return p
}

type CreateLeadRequest struct {
	CompanyName string `json:"company_name"`
	Contact     string `json:"contact,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Source      string `json:"source,omitempty"`
	OwnerID     string `json:"owner_id,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type UpdateLeadRequest struct {
	CompanyName *string `json:"company_name,omitempty"`
	Contact     *string `json:"contact,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Source      *string `json:"source,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

func (r UpdateLeadRequest) patch() map[string]any {
	p := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			p[col] = *v
		}
	}
	set("company_name", r.CompanyName)
	set("contact", r.Contact)
	set("email", r.Email)
	set("phone", r.Phone)
	set("source", r.Source)
	set("owner_id", r.OwnerID)
	set("notes", r.Notes)
	return p
}

type SetLeadStatusRequest struct {
	Status string `json:"status" enum:"contacted,qualified,converted,lost"`
}

type CreateRateRequest struct {
	CarrierName      string   `json:"carrier_name"`
	Mode             string   `json:"mode,omitempty" enum:"ocean,air,rail,road"`
	OriginPort       string   `json:"origin_port"`
	DestinationPort  string   `json:"destination_port"`
	TransitTimeDays  *int     `json:"transit_time_days,omitempty"`
	ReliabilityScore *float64 `json:"reliability_score,omitempty"`
	Amount           float64  `json:"amount"`
	Currency         string   `json:"currency,omitempty"`
	ValidUntil       string   `json:"valid_until,omitempty" format:"date-time"`
}

type CreateQuoteRequest struct {
	AccountID       string            `json:"account_id,omitempty"`
	Currency        string            `json:"currency,omitempty"`
	OriginPort      *domain.Location  `json:"origin_port,omitempty"`
	DestinationPort *domain.Location  `json:"destination_port,omitempty"`
	OriginLocation  *domain.Location  `json:"origin_location,omitempty"`
	DestinationLoc  *domain.Location  `json:"destination_location,omitempty"`
	Incoterms       string            `json:"incoterms,omitempty"`
	ValidUntil      string            `json:"valid_until,omitempty" format:"date-time"`
	CargoReadyDate  string            `json:"cargo_ready_date,omitempty" format:"date"`
	ContainerQty    *int              `json:"container_qty,omitempty"`
	ContainerTypeID string            `json:"container_type_id,omitempty"`
	ServiceLevel    string            `json:"service_level,omitempty"`
	LineItems       []domain.LineItem `json:"line_items,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

type SetQuoteStatusRequest struct {
	Status string `json:"status" enum:"sent,accepted,rejected,expired"`
}

type ChargeInputRequest struct {
	LegID      string  `json:"leg_id,omitempty"`
	CategoryID string  `json:"category_id"`
	BasisID    string  `json:"basis_id"`
	Unit       string  `json:"unit,omitempty"`
	Quantity   float64 `json:"quantity,omitempty"`
	Rate       float64 `json:"rate"`
	Amount     float64 `json:"amount,omitempty"`
	Note       string  `json:"note,omitempty"`
}

type CreateOptionRequest struct {
	CarrierRateID string               `json:"carrier_rate_id,omitempty"`
	OptionName    string               `json:"option_name,omitempty"`
	TargetTotal   float64              `json:"target_total,omitempty"`
	MarginPercent float64              `json:"margin_percent,omitempty"`
	Charges       []ChargeInputRequest `json:"charges,omitempty"`
}

type ConvertQuoteRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

type SetBookingStatusRequest struct {
	Status string `json:"status" enum:"submitted,confirmed,canceled"`
}

type ValidateBookingRequest struct {
	Strategy string `json:"strategy,omitempty"`
}

type SetInvoiceStatusRequest struct {
	Status string `json:"status" enum:"paid,void"`
}

// Response payloads

type ConvertQuoteResponse struct {
	Booking    domain.BookingDraft     `json:"booking"`
	Validation domain.ValidationResult `json:"validation"`
}
