package domain

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Account struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenant_id"`
	Name      string  `json:"name"`
	Industry  string  `json:"industry,omitempty"`
	Country   string  `json:"country,omitempty"`
	Contact   string  `json:"contact,omitempty"`
	Email     string  `json:"email,omitempty"`
	Phone     string  `json:"phone,omitempty"`
	Notes     string  `json:"notes,omitempty"`
	LeadID    *string `json:"lead_id,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type Lead struct {
	ID          string  `json:"id"`
	TenantID    string  `json:"tenant_id"`
	CompanyName string  `json:"company_name"`
	Contact     string  `json:"contact,omitempty"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	Source      string  `json:"source,omitempty"`
	Status      string  `json:"status" enum:"new,contacted,qualified,converted,lost"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Notes       string  `json:"notes,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type CarrierRate struct {
	ID               string   `json:"id"`
	TenantID         string   `json:"tenant_id"`
	CarrierName      string   `json:"carrier_name"`
	Mode             string   `json:"mode" enum:"ocean,air,rail,road"`
	OriginPort       string   `json:"origin_port"`
	DestinationPort  string   `json:"destination_port"`
	TransitTimeDays  *int     `json:"transit_time_days,omitempty"`
	ReliabilityScore *float64 `json:"reliability_score,omitempty"`
	Amount           float64  `json:"amount"`
	Currency         string   `json:"currency"`
	ValidUntil       *string  `json:"valid_until,omitempty" format:"date-time"`
	CreatedAt        string   `json:"created_at" format:"date-time"`
}

type Quote struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	QuoteNumber     string     `json:"quote_number"`
	AccountID       *string    `json:"account_id,omitempty"`
	Status          string     `json:"status" enum:"draft,sent,accepted,rejected,expired"`
	TotalAmount     float64    `json:"total_amount"`
	Currency        string     `json:"currency"`
	OriginPort      *Location  `json:"origin_port,omitempty"`
	DestinationPort *Location  `json:"destination_port,omitempty"`
	OriginLocation  *Location  `json:"origin_location,omitempty"`
	DestinationLoc  *Location  `json:"destination_location,omitempty"`
	Incoterms       string     `json:"incoterms,omitempty"`
	ValidUntil      *string    `json:"valid_until,omitempty" format:"date-time"`
	CargoReadyDate  *string    `json:"cargo_ready_date,omitempty" format:"date"`
	ContainerQty    *int       `json:"container_qty,omitempty"`
	ContainerTypeID *string    `json:"container_type_id,omitempty"`
	ServiceLevel    string     `json:"service_level,omitempty"`
	LineItems       []LineItem `json:"line_items,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       string     `json:"created_at" format:"date-time"`
	UpdatedAt       string     `json:"updated_at" format:"date-time"`
}

type Location struct {
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	WeightKg    float64 `json:"weight_kg,omitempty"`
	VolumeCbm   float64 `json:"volume_cbm,omitempty"`
}

// QuoteOption is one priced carrier offer attached to a quote. RankScore,
// RankDetails, IsRecommended and RecommendationReason are filled by ranking.
type QuoteOption struct {
	ID                   string         `json:"id"`
	TenantID             string         `json:"tenant_id"`
	QuoteID              string         `json:"quote_id"`
	CarrierRateID        *string        `json:"carrier_rate_id,omitempty"`
	OptionName           string         `json:"option_name"`
	CarrierName          string         `json:"carrier_name,omitempty"`
	TotalAmount          float64        `json:"total_amount"`
	TotalSell            float64        `json:"total_sell"`
	TotalBuy             float64        `json:"total_buy"`
	MarginAmount         float64        `json:"margin_amount"`
	MarginPercentage     float64        `json:"margin_percentage"`
	Currency             string         `json:"currency"`
	TransitTimeDays      *int           `json:"transit_time_days,omitempty"`
	ReliabilityScore     *float64       `json:"reliability_score,omitempty"`
	RankScore            *int           `json:"rank_score,omitempty"`
	RankDetails          map[string]int `json:"rank_details,omitempty"`
	IsRecommended        bool           `json:"is_recommended"`
	RecommendationReason string         `json:"recommendation_reason,omitempty"`
	Status               string         `json:"status" enum:"active,accepted,discarded"`
	CreatedAt            string         `json:"created_at" format:"date-time"`
}

// ChargeLine is one priced line item on an option, on either the buy or sell
// side, optionally scoped to a transport leg.
type ChargeLine struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id,omitempty"`
	OptionID   string  `json:"option_id,omitempty"`
	LegID      *string `json:"leg_id,omitempty"`
	Side       string  `json:"side" enum:"buy,sell"`
	CategoryID string  `json:"category_id"`
	BasisID    string  `json:"basis_id"`
	CurrencyID string  `json:"currency_id,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	Quantity   float64 `json:"quantity"`
	Rate       float64 `json:"rate"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note,omitempty"`
}

// ChargeSide is one side of a reconciled pair.
type ChargeSide struct {
	ChargeID string  `json:"charge_id,omitempty"`
	Quantity float64 `json:"quantity"`
	Rate     float64 `json:"rate"`
	Amount   float64 `json:"amount"`
}

// ChargePair is the buy/sell (or singleton) view of a charge after
// reconciliation. At least one side is present; when both are, they share
// the reconciliation key.
type ChargePair struct {
	ID         string      `json:"id"`
	LegID      *string     `json:"leg_id,omitempty"`
	CategoryID string      `json:"category_id"`
	BasisID    string      `json:"basis_id"`
	CurrencyID string      `json:"currency_id,omitempty"`
	Unit       string      `json:"unit,omitempty"`
	Buy        *ChargeSide `json:"buy,omitempty"`
	Sell       *ChargeSide `json:"sell,omitempty"`
	Note       string      `json:"note,omitempty"`
}

// RateOption is the ranking view of a priced, timed offer.
type RateOption struct {
	ID               string   `json:"id"`
	TotalAmount      float64  `json:"total_amount"`
	TransitTimeDays  *int     `json:"transit_time_days,omitempty"`
	ReliabilityScore *float64 `json:"reliability_score,omitempty"`
}

// RankingCriteria holds the weights combining cost, transit time and
// reliability into a single score. Weights need not sum to 1.
type RankingCriteria struct {
	Cost        float64 `json:"cost"`
	TransitTime float64 `json:"transit_time"`
	Reliability float64 `json:"reliability"`
}

// RankedOption is a RateOption plus scoring annotations.
type RankedOption struct {
	RateOption
	RankScore            int            `json:"rank_score"`
	RankDetails          map[string]int `json:"rank_details"`
	IsRecommended        bool           `json:"is_recommended"`
	RecommendationReason string         `json:"recommendation_reason,omitempty"`
}

// BookingDraft is the not-yet-persisted candidate booking produced by a
// mapping strategy.
type BookingDraft struct {
	ID              string         `json:"id,omitempty"`
	QuoteID         *string        `json:"quote_id,omitempty"`
	BookingNumber   string         `json:"booking_number"`
	TenantID        string         `json:"tenant_id"`
	AccountID       *string        `json:"account_id,omitempty"`
	Status          string         `json:"status" enum:"draft,submitted,confirmed,canceled"`
	Source          string         `json:"source" enum:"manual,quote,ai_agent"`
	Origin          string         `json:"origin"`
	Destination     string         `json:"destination"`
	Incoterms       string         `json:"incoterms"`
	TotalAmount     float64        `json:"total_amount"`
	Currency        string         `json:"currency"`
	CargoReadyDate  string         `json:"cargo_ready_date,omitempty" format:"date"`
	ContainerQty    *int           `json:"container_qty,omitempty"`
	ContainerTypeID *string        `json:"container_type_id,omitempty"`
	CommodityList   []LineItem     `json:"commodity_list,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	MappingMetadata map[string]any `json:"mapping_metadata,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt       string         `json:"updated_at,omitempty" format:"date-time"`
}

// ValidationResult reports validation of a booking draft against its source
// quote. Valid is true exactly when Errors is empty.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type Invoice struct {
	ID            string  `json:"id"`
	TenantID      string  `json:"tenant_id"`
	InvoiceNumber string  `json:"invoice_number"`
	BookingID     string  `json:"booking_id"`
	AccountID     *string `json:"account_id,omitempty"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status" enum:"issued,paid,void"`
	IssuedAt      string  `json:"issued_at" format:"date-time"`
	DueDate       string  `json:"due_date" format:"date"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TenantID   string `json:"tenant_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
