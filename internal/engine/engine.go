package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"freightline/internal/booking"
	"freightline/internal/config"
	"freightline/internal/domain"
	"freightline/internal/events"
	"freightline/internal/pricing"
	"freightline/internal/ranking"
	"freightline/internal/reconcile"
	"freightline/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Bookings *booking.Engine
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Bookings: booking.NewEngine(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

// InitTenant initializes a tenant with its default config, with migrations
// already run.
func (e Engine) InitTenant(ctx context.Context, tenantID, name, actorID string) (domain.Tenant, error) {
	if tenantID == "" {
		return domain.Tenant{}, errors.New("tenant id is required")
	}
	if name == "" {
		name = tenantID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tenant{}, err
	}
	defer tx.Rollback()

	t := domain.Tenant{
		ID:        tenantID,
		Name:      name,
		Status:    "active",
		CreatedAt: e.nowRFC3339(),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO tenants(id,name,status,created_at) VALUES (?,?,?,?)`,
		t.ID, t.Name, t.Status, t.CreatedAt); err != nil {
		return domain.Tenant{}, fmt.Errorf("insert tenant: %w", err)
	}
	if err := e.Repo.UpsertTenantConfigTx(ctx, tx, t.ID, config.Default(t.ID)); err != nil {
		return domain.Tenant{}, fmt.Errorf("insert tenant config: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "tenant.init", t.ID, "tenant", t.ID, actorID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.Tenant{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}

// AccountCreateOptions are parameters for creating an account.
type AccountCreateOptions struct {
	TenantID string
	Name     string
	Industry string
	Country  string
	Contact  string
	Email    string
	Phone    string
	Notes    string
	ActorID  string
}

func (e Engine) CreateAccount(ctx context.Context, opts AccountCreateOptions) (domain.Account, error) {
	if opts.Name == "" {
		return domain.Account{}, errors.New("name is required")
	}
	if _, err := e.Repo.GetTenant(ctx, opts.TenantID); err != nil {
		return domain.Account{}, err
	}
	now := e.nowRFC3339()
	a := domain.Account{
		ID:        uuid.New().String(),
		TenantID:  opts.TenantID,
		Name:      opts.Name,
		Industry:  opts.Industry,
		Country:   opts.Country,
		Contact:   opts.Contact,
		Email:     opts.Email,
		Phone:     opts.Phone,
		Notes:     opts.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Account{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAccountTx(ctx, tx, a); err != nil {
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "account.created", a.TenantID, "account", a.ID, opts.ActorID, events.EventPayload{"name": a.Name}); err != nil {
		return domain.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (e Engine) appendEvent(ctx context.Context, evtType, tenantID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, tenantID, entityKind, entityID, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateAccount applies a sparse field patch and returns the updated account.
func (e Engine) UpdateAccount(ctx context.Context, tenantID, id string, patch map[string]any, actorID string) (domain.Account, error) {
	if err := e.Repo.UpdateAccount(ctx, tenantID, id, patch); err != nil {
		return domain.Account{}, err
	}
	a, err := e.Repo.GetAccount(ctx, tenantID, id)
	if err != nil {
		return domain.Account{}, err
	}
	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	if err := e.appendEvent(ctx, "account.updated", tenantID, "account", id, actorID, events.EventPayload{"fields": fields}); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (e Engine) DeleteAccount(ctx context.Context, tenantID, id, actorID string) error {
	if err := e.Repo.DeleteAccount(ctx, tenantID, id); err != nil {
		return err
	}
	return e.appendEvent(ctx, "account.deleted", tenantID, "account", id, actorID, nil)
}

// LeadCreateOptions are parameters for creating a lead.
type LeadCreateOptions struct {
	TenantID    string
	CompanyName string
	Contact     string
	Email       string
	Phone       string
	Source      string
	OwnerID     string
	Notes       string
	ActorID     string
}

func (e Engine) CreateLead(ctx context.Context, opts LeadCreateOptions) (domain.Lead, error) {
	if opts.CompanyName == "" {
		return domain.Lead{}, errors.New("company name is required")
	}
	if _, err := e.Repo.GetTenant(ctx, opts.TenantID); err != nil {
		return domain.Lead{}, err
	}
	now := e.nowRFC3339()
	l := domain.Lead{
		ID:          uuid.New().String(),
		TenantID:    opts.TenantID,
		CompanyName: opts.CompanyName,
		Contact:     opts.Contact,
		Email:       opts.Email,
		Phone:       opts.Phone,
		Source:      opts.Source,
		Status:      "new",
		Notes:       opts.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.OwnerID != "" {
		l.OwnerID = &opts.OwnerID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertLeadTx(ctx, tx, l); err != nil {
		return domain.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "lead.created", l.TenantID, "lead", l.ID, opts.ActorID, events.EventPayload{"company": l.CompanyName, "source": l.Source}); err != nil {
		return domain.Lead{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

// UpdateLead applies a sparse field patch and returns the updated lead.
func (e Engine) UpdateLead(ctx context.Context, tenantID, id string, patch map[string]any, actorID string) (domain.Lead, error) {
	if err := e.Repo.UpdateLead(ctx, tenantID, id, patch); err != nil {
		return domain.Lead{}, err
	}
	l, err := e.Repo.GetLead(ctx, tenantID, id)
	if err != nil {
		return domain.Lead{}, err
	}
	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	if err := e.appendEvent(ctx, "lead.updated", tenantID, "lead", id, actorID, events.EventPayload{"fields": fields}); err != nil {
		return domain.Lead{}, err
	}
	return l, nil
}

func ensureLeadTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "new":
		if newStatus == "contacted" || newStatus == "lost" {
			return nil
		}
	case "contacted":
		if newStatus == "qualified" || newStatus == "lost" {
			return nil
		}
	case "qualified":
		if newStatus == "converted" || newStatus == "lost" {
			return nil
		}
	}
	return fmt.Errorf("invalid lead transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetLeadStatus(ctx context.Context, tenantID, id, status, actorID string) (domain.Lead, error) {
	l, err := e.Repo.GetLead(ctx, tenantID, id)
	if err != nil {
		return l, err
	}
	if err := ensureLeadTransition(l.Status, status); err != nil {
		return l, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return l, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLeadStatus(ctx, tx, tenantID, id, status); err != nil {
		return l, err
	}
	if err := e.Events.Append(ctx, tx, "lead.updated", tenantID, "lead", id, actorID, events.EventPayload{"from": l.Status, "to": status}); err != nil {
		return l, err
	}
	if err := tx.Commit(); err != nil {
		return l, err
	}
	l.Status = status
	return l, nil
}

// ConvertLead marks a qualified lead converted and creates the account from
// it in the same transaction.
func (e Engine) ConvertLead(ctx context.Context, tenantID, id, actorID string) (domain.Account, error) {
	l, err := e.Repo.GetLead(ctx, tenantID, id)
	if err != nil {
		return domain.Account{}, err
	}
	if err := ensureLeadTransition(l.Status, "converted"); err != nil {
		return domain.Account{}, err
	}
	now := e.nowRFC3339()
	a := domain.Account{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      l.CompanyName,
		Contact:   l.Contact,
		Email:     l.Email,
		Phone:     l.Phone,
		Notes:     l.Notes,
		LeadID:    &l.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Account{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateLeadStatus(ctx, tx, tenantID, id, "converted"); err != nil {
		return domain.Account{}, err
	}
	if err := e.Repo.InsertAccountTx(ctx, tx, a); err != nil {
		return domain.Account{}, fmt.Errorf("insert account: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "lead.converted", tenantID, "lead", id, actorID, events.EventPayload{"account_id": a.ID}); err != nil {
		return domain.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// RateCreateOptions are parameters for registering a carrier rate.
type RateCreateOptions struct {
	TenantID         string
	CarrierName      string
	Mode             string
	OriginPort       string
	DestinationPort  string
	TransitTimeDays  *int
	ReliabilityScore *float64
	Amount           float64
	Currency         string
	ValidUntil       string
	ActorID          string
}

func (e Engine) AddCarrierRate(ctx context.Context, opts RateCreateOptions) (domain.CarrierRate, error) {
	if opts.CarrierName == "" {
		return domain.CarrierRate{}, errors.New("carrier name is required")
	}
	if opts.OriginPort == "" || opts.DestinationPort == "" {
		return domain.CarrierRate{}, errors.New("origin and destination ports are required")
	}
	if opts.Amount <= 0 {
		return domain.CarrierRate{}, errors.New("amount must be positive")
	}
	if opts.Mode == "" {
		opts.Mode = "ocean"
	}
	if opts.Currency == "" && e.Config != nil {
		opts.Currency = e.Config.Defaults.Currency
	}
	cr := domain.CarrierRate{
		ID:               uuid.New().String(),
		TenantID:         opts.TenantID,
		CarrierName:      opts.CarrierName,
		Mode:             opts.Mode,
		OriginPort:       opts.OriginPort,
		DestinationPort:  opts.DestinationPort,
		TransitTimeDays:  opts.TransitTimeDays,
		ReliabilityScore: opts.ReliabilityScore,
		Amount:           opts.Amount,
		Currency:         opts.Currency,
		CreatedAt:        e.nowRFC3339(),
	}
	if opts.ValidUntil != "" {
		cr.ValidUntil = &opts.ValidUntil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CarrierRate{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCarrierRateTx(ctx, tx, cr); err != nil {
		return domain.CarrierRate{}, fmt.Errorf("insert carrier rate: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "rate.created", cr.TenantID, "carrier_rate", cr.ID, opts.ActorID, events.EventPayload{
		"carrier": cr.CarrierName,
		"lane":    cr.OriginPort + "-" + cr.DestinationPort,
	}); err != nil {
		return domain.CarrierRate{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CarrierRate{}, err
	}
	return cr, nil
}

// QuoteCreateOptions are parameters for creating a quote.
type QuoteCreateOptions struct {
	TenantID        string
	AccountID       string
	Currency        string
	OriginPort      *domain.Location
	DestinationPort *domain.Location
	OriginLocation  *domain.Location
	DestinationLoc  *domain.Location
	Incoterms       string
	ValidUntil      string
	CargoReadyDate  string
	ContainerQty    *int
	ContainerTypeID string
	ServiceLevel    string
	LineItems       []domain.LineItem
	Notes           string
	ActorID         string
}

func (e Engine) CreateQuote(ctx context.Context, opts QuoteCreateOptions) (domain.Quote, error) {
	if _, err := e.Repo.GetTenant(ctx, opts.TenantID); err != nil {
		return domain.Quote{}, err
	}
	if opts.AccountID != "" {
		if _, err := e.Repo.GetAccount(ctx, opts.TenantID, opts.AccountID); err != nil {
			return domain.Quote{}, fmt.Errorf("account %s: %w", opts.AccountID, err)
		}
	}
	if opts.Currency == "" && e.Config != nil {
		opts.Currency = e.Config.Defaults.Currency
	}
	if opts.Incoterms == "" && e.Config != nil {
		opts.Incoterms = e.Config.Defaults.Incoterms
	}
	count, err := e.Repo.CountQuotes(ctx, opts.TenantID)
	if err != nil {
		return domain.Quote{}, err
	}
	now := e.now()
	quoteNumber := fmt.Sprintf("QT-%d-%04d", now.Year(), count+1)
	q := domain.Quote{
		ID:              uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.TenantID+"|"+quoteNumber+"|"+now.UTC().Format(time.RFC3339))).String(),
		TenantID:        opts.TenantID,
		QuoteNumber:     quoteNumber,
		Status:          "draft",
		Currency:        opts.Currency,
		OriginPort:      opts.OriginPort,
		DestinationPort: opts.DestinationPort,
		OriginLocation:  opts.OriginLocation,
		DestinationLoc:  opts.DestinationLoc,
		Incoterms:       opts.Incoterms,
		ContainerQty:    opts.ContainerQty,
		ServiceLevel:    opts.ServiceLevel,
		LineItems:       opts.LineItems,
		Notes:           opts.Notes,
		CreatedAt:       now.UTC().Format(time.RFC3339),
		UpdatedAt:       now.UTC().Format(time.RFC3339),
	}
	if opts.AccountID != "" {
		q.AccountID = &opts.AccountID
	}
	if opts.ValidUntil != "" {
		q.ValidUntil = &opts.ValidUntil
	}
	if opts.CargoReadyDate != "" {
		q.CargoReadyDate = &opts.CargoReadyDate
	}
	if opts.ContainerTypeID != "" {
		q.ContainerTypeID = &opts.ContainerTypeID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Quote{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertQuoteTx(ctx, tx, q); err != nil {
		return domain.Quote{}, fmt.Errorf("insert quote: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "quote.created", q.TenantID, "quote", q.ID, opts.ActorID, events.EventPayload{"quote_number": q.QuoteNumber}); err != nil {
		return domain.Quote{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Quote{}, err
	}
	return q, nil
}

func ensureQuoteTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "draft":
		if newStatus == "sent" {
			return nil
		}
	case "sent":
		if newStatus == "accepted" || newStatus == "rejected" || newStatus == "expired" {
			return nil
		}
	}
	return fmt.Errorf("invalid quote transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetQuoteStatus(ctx context.Context, tenantID, id, status, actorID string) (domain.Quote, error) {
	q, err := e.Repo.GetQuote(ctx, tenantID, id)
	if err != nil {
		return q, err
	}
	if err := ensureQuoteTransition(q.Status, status); err != nil {
		return q, err
	}
	if status == "sent" {
		opts, err := e.Repo.ListQuoteOptions(ctx, tenantID, id)
		if err != nil {
			return q, err
		}
		if len(opts) == 0 {
			return q, errors.New("quote needs at least one option before sending")
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return q, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateQuoteStatus(ctx, tx, tenantID, id, status); err != nil {
		return q, err
	}
	if err := e.Events.Append(ctx, tx, "quote.updated", tenantID, "quote", id, actorID, events.EventPayload{"from": q.Status, "to": status}); err != nil {
		return q, err
	}
	if err := tx.Commit(); err != nil {
		return q, err
	}
	q.Status = status
	return q, nil
}

// ChargeInput is one buy-side charge supplied when pricing an option.
type ChargeInput struct {
	LegID      string
	CategoryID string
	BasisID    string
	Unit       string
	Quantity   float64
	Rate       float64
	Amount     float64
	Note       string
}

// OptionCreateOptions are parameters for attaching a priced option to a quote.
type OptionCreateOptions struct {
	TenantID      string
	QuoteID       string
	CarrierRateID string
	OptionName    string
	TargetTotal   float64
	MarginPercent float64
	Charges       []ChargeInput
	ActorID       string
}

func (e Engine) marginPercent(override float64) float64 {
	if override > 0 {
		return override
	}
	if e.Config != nil && e.Config.Defaults.MarginPercent > 0 {
		return e.Config.Defaults.MarginPercent
	}
	return pricing.DefaultMarginPercent
}

// AddQuoteOption prices an option from its buy-side charges. Sell charges are
// derived by applying the margin to each buy line; when the sell total drifts
// from the target total by more than a cent, a balancing sell charge absorbs
// the difference so line items always sum to the option total.
func (e Engine) AddQuoteOption(ctx context.Context, opts OptionCreateOptions) (domain.QuoteOption, error) {
	q, err := e.Repo.GetQuote(ctx, opts.TenantID, opts.QuoteID)
	if err != nil {
		return domain.QuoteOption{}, err
	}
	if q.Status != "draft" {
		return domain.QuoteOption{}, fmt.Errorf("quote %s is %s; options can only be added to drafts", q.QuoteNumber, q.Status)
	}

	margin := e.marginPercent(opts.MarginPercent)
	carrierName := ""
	var transit *int
	var reliability *float64
	var rateID *string
	buys := opts.Charges

	if opts.CarrierRateID != "" {
		cr, err := e.Repo.GetCarrierRate(ctx, opts.TenantID, opts.CarrierRateID)
		if err != nil {
			return domain.QuoteOption{}, fmt.Errorf("carrier rate %s: %w", opts.CarrierRateID, err)
		}
		carrierName = cr.CarrierName
		transit = cr.TransitTimeDays
		reliability = cr.ReliabilityScore
		rateID = &cr.ID
		if len(buys) == 0 {
			buys = []ChargeInput{{
				CategoryID: "FREIGHT",
				BasisID:    "PER_SHIPMENT",
				Quantity:   1,
				Rate:       cr.Amount,
				Amount:     cr.Amount,
			}}
		}
	}
	if len(buys) == 0 {
		return domain.QuoteOption{}, errors.New("at least one charge or a carrier rate is required")
	}
	if opts.OptionName == "" {
		if carrierName != "" {
			opts.OptionName = carrierName
		} else {
			opts.OptionName = fmt.Sprintf("Option %s", uuid.New().String()[:8])
		}
	}

	optionID := uuid.New().String()
	now := e.nowRFC3339()
	var charges []domain.ChargeLine
	var totalBuy, totalSell float64

	for _, in := range buys {
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		amount := in.Amount
		if amount == 0 {
			amount = pricing.Round2(in.Rate * qty)
		}
		var legID *string
		if in.LegID != "" {
			leg := in.LegID
			legID = &leg
		}
		charges = append(charges, domain.ChargeLine{
			ID:         uuid.New().String(),
			TenantID:   opts.TenantID,
			OptionID:   optionID,
			LegID:      legID,
			Side:       "buy",
			CategoryID: in.CategoryID,
			BasisID:    in.BasisID,
			CurrencyID: q.Currency,
			Unit:       in.Unit,
			Quantity:   qty,
			Rate:       in.Rate,
			Amount:     amount,
			Note:       in.Note,
		})
		totalBuy += amount

		fin := pricing.Calculate(amount, margin, true)
		charges = append(charges, domain.ChargeLine{
			ID:         uuid.New().String(),
			TenantID:   opts.TenantID,
			OptionID:   optionID,
			LegID:      legID,
			Side:       "sell",
			CategoryID: in.CategoryID,
			BasisID:    in.BasisID,
			CurrencyID: q.Currency,
			Unit:       in.Unit,
			Quantity:   qty,
			Rate:       pricing.Round2(fin.SellPrice / qty),
			Amount:     fin.SellPrice,
			Note:       in.Note,
		})
		totalSell += fin.SellPrice
	}
	totalBuy = pricing.Round2(totalBuy)
	totalSell = pricing.Round2(totalSell)

	target := opts.TargetTotal
	if target == 0 {
		target = totalSell
	}
	var transferDrift float64
	if drift := pricing.Round2(target - totalSell); drift > 0.01 || drift < -0.01 {
		transferDrift = drift
		note := "Ancillary Fees"
		if drift < 0 {
			note = "Discount / Adjustment"
		}
		charges = append(charges, domain.ChargeLine{
			ID:         uuid.New().String(),
			TenantID:   opts.TenantID,
			OptionID:   optionID,
			Side:       "sell",
			CategoryID: "ANCILLARY",
			BasisID:    "PER_SHIPMENT",
			CurrencyID: q.Currency,
			Quantity:   1,
			Rate:       drift,
			Amount:     drift,
			Note:       note,
		})
		totalSell = target
	}

	marginAmount := pricing.Round2(totalSell - totalBuy)
	marginPct := 0.0
	if totalSell > 0 {
		marginPct = pricing.Round2(marginAmount / totalSell * 100)
	}

	opt := domain.QuoteOption{
		ID:               optionID,
		TenantID:         opts.TenantID,
		QuoteID:          opts.QuoteID,
		CarrierRateID:    rateID,
		OptionName:       opts.OptionName,
		CarrierName:      carrierName,
		TotalAmount:      totalSell,
		TotalSell:        totalSell,
		TotalBuy:         totalBuy,
		MarginAmount:     marginAmount,
		MarginPercentage: marginPct,
		Currency:         q.Currency,
		TransitTimeDays:  transit,
		ReliabilityScore: reliability,
		Status:           "active",
		CreatedAt:        now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.QuoteOption{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertQuoteOptionTx(ctx, tx, opt); err != nil {
		return domain.QuoteOption{}, fmt.Errorf("insert option: %w", err)
	}
	for _, c := range charges {
		if err := e.Repo.InsertChargeTx(ctx, tx, c); err != nil {
			return domain.QuoteOption{}, fmt.Errorf("insert charge: %w", err)
		}
	}
	if q.TotalAmount == 0 {
		if err := e.Repo.UpdateQuoteTotalTx(ctx, tx, opts.TenantID, opts.QuoteID, totalSell); err != nil {
			return domain.QuoteOption{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "quote.option.added", opts.TenantID, "quote_option", opt.ID, opts.ActorID, events.EventPayload{
		"quote_id":   opts.QuoteID,
		"total_sell": totalSell,
		"total_buy":  totalBuy,
	}); err != nil {
		return domain.QuoteOption{}, err
	}
	if transferDrift != 0 {
		if err := e.Events.Append(ctx, tx, "quote.option.anomaly", opts.TenantID, "quote_option", opt.ID, opts.ActorID, events.EventPayload{
			"kind":  "transfer_mismatch",
			"drift": transferDrift,
		}); err != nil {
			return domain.QuoteOption{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.QuoteOption{}, err
	}
	return opt, nil
}

// ListOptionCharges returns the reconciled buy/sell view of an option's
// charges.
func (e Engine) ListOptionCharges(ctx context.Context, tenantID, optionID string) ([]domain.ChargePair, error) {
	if _, err := e.Repo.GetQuoteOption(ctx, tenantID, optionID); err != nil {
		return nil, err
	}
	charges, err := e.Repo.ListCharges(ctx, tenantID, optionID)
	if err != nil {
		return nil, err
	}
	return reconcile.Pairs(charges), nil
}

func (e Engine) rankingCriteria() domain.RankingCriteria {
	if e.Config != nil {
		c := domain.RankingCriteria{
			Cost:        e.Config.Ranking.Cost,
			TransitTime: e.Config.Ranking.TransitTime,
			Reliability: e.Config.Ranking.Reliability,
		}
		if c.Cost+c.TransitTime+c.Reliability > 0 {
			return c
		}
	}
	return ranking.DefaultCriteria()
}

// RankQuoteOptions scores a quote's active options and persists the
// annotations.
func (e Engine) RankQuoteOptions(ctx context.Context, tenantID, quoteID, actorID string) ([]domain.QuoteOption, error) {
	if _, err := e.Repo.GetQuote(ctx, tenantID, quoteID); err != nil {
		return nil, err
	}
	options, err := e.Repo.ListQuoteOptions(ctx, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, errors.New("quote has no options to rank")
	}

	rateOptions := make([]domain.RateOption, 0, len(options))
	for _, opt := range options {
		rateOptions = append(rateOptions, domain.RateOption{
			ID:               opt.ID,
			TotalAmount:      opt.TotalSell,
			TransitTimeDays:  opt.TransitTimeDays,
			ReliabilityScore: opt.ReliabilityScore,
		})
	}
	criteria := e.rankingCriteria()
	ranked := ranking.Rank(rateOptions, &criteria)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	for _, r := range ranked {
		if err := e.Repo.UpdateOptionRankingTx(ctx, tx, tenantID, r.ID, r); err != nil {
			return nil, fmt.Errorf("persist ranking for option %s: %w", r.ID, err)
		}
	}
	if err := e.Events.Append(ctx, tx, "quote.options.ranked", tenantID, "quote", quoteID, actorID, events.EventPayload{"options": len(ranked)}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return e.Repo.ListQuoteOptions(ctx, tenantID, quoteID)
}

// AcceptOption accepts one option, discards the rest and accepts the quote.
func (e Engine) AcceptOption(ctx context.Context, tenantID, optionID, actorID string) (domain.Quote, error) {
	opt, err := e.Repo.GetQuoteOption(ctx, tenantID, optionID)
	if err != nil {
		return domain.Quote{}, err
	}
	q, err := e.Repo.GetQuote(ctx, tenantID, opt.QuoteID)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := ensureQuoteTransition(q.Status, "accepted"); err != nil {
		return q, err
	}
	options, err := e.Repo.ListQuoteOptions(ctx, tenantID, opt.QuoteID)
	if err != nil {
		return q, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return q, err
	}
	defer tx.Rollback()
	for _, other := range options {
		status := "discarded"
		if other.ID == optionID {
			status = "accepted"
		}
		if err := e.Repo.UpdateOptionStatusTx(ctx, tx, tenantID, other.ID, status); err != nil {
			return q, err
		}
	}
	if err := e.Repo.UpdateQuoteStatus(ctx, tx, tenantID, opt.QuoteID, "accepted"); err != nil {
		return q, err
	}
	if err := e.Repo.UpdateQuoteTotalTx(ctx, tx, tenantID, opt.QuoteID, opt.TotalSell); err != nil {
		return q, err
	}
	if err := e.Events.Append(ctx, tx, "quote.option.accepted", tenantID, "quote_option", optionID, actorID, events.EventPayload{
		"quote_id":   opt.QuoteID,
		"total_sell": opt.TotalSell,
	}); err != nil {
		return q, err
	}
	if err := tx.Commit(); err != nil {
		return q, err
	}
	q.Status = "accepted"
	q.TotalAmount = opt.TotalSell
	return q, nil
}

// ConvertQuoteToBooking maps an accepted quote into a booking using the named
// strategy. Validation errors block the conversion; warnings are recorded on
// the event log and the booking proceeds.
func (e Engine) ConvertQuoteToBooking(ctx context.Context, tenantID, quoteID, strategy, actorID string) (domain.BookingDraft, domain.ValidationResult, error) {
	q, err := e.Repo.GetQuote(ctx, tenantID, quoteID)
	if err != nil {
		return domain.BookingDraft{}, domain.ValidationResult{}, err
	}
	if q.Status != "accepted" {
		return domain.BookingDraft{}, domain.ValidationResult{}, fmt.Errorf("quote %s is %s; only accepted quotes convert to bookings", q.QuoteNumber, q.Status)
	}
	if strategy == "" && e.Config != nil {
		strategy = e.Config.Defaults.Strategy
	}

	result := e.Bookings.Map(q, strategy, nil)
	if !result.Validation.Valid {
		return domain.BookingDraft{}, result.Validation, fmt.Errorf("quote %s failed booking validation: %v", q.QuoteNumber, result.Validation.Errors)
	}

	b := result.Booking
	b.ID = uuid.New().String()
	now := e.nowRFC3339()
	b.CreatedAt = now
	b.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return b, result.Validation, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertBookingTx(ctx, tx, b); err != nil {
		return b, result.Validation, fmt.Errorf("insert booking: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "booking.created", tenantID, "booking", b.ID, actorID, events.EventPayload{
		"quote_id":       quoteID,
		"booking_number": b.BookingNumber,
		"strategy":       strategy,
		"warnings":       result.Validation.Warnings,
	}); err != nil {
		return b, result.Validation, err
	}
	if err := tx.Commit(); err != nil {
		return b, result.Validation, err
	}
	return b, result.Validation, nil
}

func ensureBookingTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "draft":
		if newStatus == "submitted" || newStatus == "canceled" {
			return nil
		}
	case "submitted":
		if newStatus == "confirmed" || newStatus == "canceled" {
			return nil
		}
	}
	return fmt.Errorf("invalid booking transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetBookingStatus(ctx context.Context, tenantID, id, status, actorID string) (domain.BookingDraft, error) {
	b, err := e.Repo.GetBooking(ctx, tenantID, id)
	if err != nil {
		return b, err
	}
	if err := ensureBookingTransition(b.Status, status); err != nil {
		return b, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return b, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateBookingStatus(ctx, tx, tenantID, id, status); err != nil {
		return b, err
	}
	if err := e.Events.Append(ctx, tx, "booking.updated", tenantID, "booking", id, actorID, events.EventPayload{"from": b.Status, "to": status}); err != nil {
		return b, err
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	b.Status = status
	return b, nil
}

// ValidateBooking re-runs strategy validation for a persisted booking against
// its source quote. Bookings without a source quote are trivially valid.
func (e Engine) ValidateBooking(ctx context.Context, tenantID, bookingID, strategy string) (domain.ValidationResult, error) {
	b, err := e.Repo.GetBooking(ctx, tenantID, bookingID)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	if b.QuoteID == nil {
		return domain.ValidationResult{
			Valid:    true,
			Errors:   []string{},
			Warnings: []string{"booking has no source quote to validate against"},
		}, nil
	}
	q, err := e.Repo.GetQuote(ctx, tenantID, *b.QuoteID)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("source quote %s: %w", *b.QuoteID, err)
	}
	if strategy == "" {
		if s, ok := b.MappingMetadata["strategy"].(string); ok {
			strategy = strings.ToLower(s)
		}
	}
	if strategy == "" && e.Config != nil {
		strategy = e.Config.Defaults.Strategy
	}
	return e.Bookings.Validate(q, b, strategy), nil
}

// IssueInvoice issues a net-30 invoice for a confirmed booking.
func (e Engine) IssueInvoice(ctx context.Context, tenantID, bookingID, actorID string) (domain.Invoice, error) {
	b, err := e.Repo.GetBooking(ctx, tenantID, bookingID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if b.Status != "confirmed" {
		return domain.Invoice{}, fmt.Errorf("booking %s is %s; only confirmed bookings can be invoiced", b.BookingNumber, b.Status)
	}
	now := e.now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invoice{}, err
	}
	defer tx.Rollback()
	count, err := e.Repo.CountInvoicesTx(ctx, tx, tenantID)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv := domain.Invoice{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		InvoiceNumber: fmt.Sprintf("INV-%d-%04d", now.Year(), count+1),
		BookingID:     bookingID,
		AccountID:     b.AccountID,
		Amount:        b.TotalAmount,
		Currency:      b.Currency,
		Status:        "issued",
		IssuedAt:      now.UTC().Format(time.RFC3339),
		DueDate:       now.AddDate(0, 0, 30).Format("2006-01-02"),
	}
	if err := e.Repo.InsertInvoiceTx(ctx, tx, inv); err != nil {
		return domain.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "invoice.issued", tenantID, "invoice", inv.ID, actorID, events.EventPayload{
		"booking_id":     bookingID,
		"invoice_number": inv.InvoiceNumber,
		"amount":         inv.Amount,
	}); err != nil {
		return domain.Invoice{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func ensureInvoiceTransition(oldStatus, newStatus string) error {
	if oldStatus == "issued" && (newStatus == "paid" || newStatus == "void") {
		return nil
	}
	return fmt.Errorf("invalid invoice transition %s -> %s", oldStatus, newStatus)
}

func (e Engine) SetInvoiceStatus(ctx context.Context, tenantID, id, status, actorID string) (domain.Invoice, error) {
	inv, err := e.Repo.GetInvoice(ctx, tenantID, id)
	if err != nil {
		return inv, err
	}
	if err := ensureInvoiceTransition(inv.Status, status); err != nil {
		return inv, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return inv, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateInvoiceStatus(ctx, tx, tenantID, id, status); err != nil {
		return inv, err
	}
	if err := e.Events.Append(ctx, tx, "invoice.updated", tenantID, "invoice", id, actorID, events.EventPayload{"from": inv.Status, "to": status}); err != nil {
		return inv, err
	}
	if err := tx.Commit(); err != nil {
		return inv, err
	}
	inv.Status = status
	return inv, nil
}
