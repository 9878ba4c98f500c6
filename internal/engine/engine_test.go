package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"freightline/internal/booking"
	"freightline/internal/config"
	"freightline/internal/db"
	"freightline/internal/domain"
	"freightline/internal/engine"
	"freightline/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("t-acme")
	eng := engine.New(conn, cfg)
	clock := func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	eng.Now = clock
	std := booking.NewStandardStrategy()
	std.Now = clock
	eng.Bookings.Register("standard", std)
	leg := booking.NewLegacyStrategy()
	leg.Now = clock
	eng.Bookings.Register("legacy", leg)
	ctx := context.Background()
	if _, err := eng.InitTenant(ctx, "t-acme", "Acme Forwarding", "tester"); err != nil {
		t.Fatalf("init tenant: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func seedAcceptedQuote(t *testing.T, env testEnv) domain.Quote {
	t.Helper()
	transit := 18
	reliability := 0.9
	rate, err := env.Engine.AddCarrierRate(env.Ctx, engine.RateCreateOptions{
		TenantID: "t-acme", CarrierName: "Evergreen", OriginPort: "CNSHA", DestinationPort: "USLAX",
		TransitTimeDays: &transit, ReliabilityScore: &reliability, Amount: 850, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("add rate: %v", err)
	}
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{
		TenantID:        "t-acme",
		OriginPort:      &domain.Location{Name: "Shanghai", Code: "CNSHA"},
		DestinationPort: &domain.Location{Name: "Los Angeles", Code: "USLAX"},
		ActorID:         "tester",
	})
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	opt, err := env.Engine.AddQuoteOption(env.Ctx, engine.OptionCreateOptions{
		TenantID: "t-acme", QuoteID: q.ID, CarrierRateID: rate.ID, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("add option: %v", err)
	}
	if _, err := env.Engine.SetQuoteStatus(env.Ctx, "t-acme", q.ID, "sent", "tester"); err != nil {
		t.Fatalf("send quote: %v", err)
	}
	q, err = env.Engine.AcceptOption(env.Ctx, "t-acme", opt.ID, "tester")
	if err != nil {
		t.Fatalf("accept option: %v", err)
	}
	return q
}

func TestLeadStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	lead, err := env.Engine.CreateLead(env.Ctx, engine.LeadCreateOptions{
		TenantID: "t-acme", CompanyName: "Globex", Source: "referral", ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}
	if lead.Status != "new" {
		t.Fatalf("new lead status = %q", lead.Status)
	}
	lead, err = env.Engine.SetLeadStatus(env.Ctx, "t-acme", lead.ID, "contacted", "tester")
	if err != nil || lead.Status != "contacted" {
		t.Fatalf("to contacted: %v", err)
	}
	lead, err = env.Engine.SetLeadStatus(env.Ctx, "t-acme", lead.ID, "qualified", "tester")
	if err != nil || lead.Status != "qualified" {
		t.Fatalf("to qualified: %v", err)
	}
	// skipping straight from new to converted is invalid
	other, _ := env.Engine.CreateLead(env.Ctx, engine.LeadCreateOptions{TenantID: "t-acme", CompanyName: "Initech", ActorID: "tester"})
	if _, err := env.Engine.SetLeadStatus(env.Ctx, "t-acme", other.ID, "converted", "tester"); err == nil {
		t.Fatalf("expected transition error")
	}
}

func TestConvertLeadCreatesAccount(t *testing.T) {
	env := newTestEnv(t)
	lead, err := env.Engine.CreateLead(env.Ctx, engine.LeadCreateOptions{
		TenantID: "t-acme", CompanyName: "Globex", Email: "ops@globex.example", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetLeadStatus(env.Ctx, "t-acme", lead.ID, "contacted", "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetLeadStatus(env.Ctx, "t-acme", lead.ID, "qualified", "tester"); err != nil {
		t.Fatal(err)
	}
	account, err := env.Engine.ConvertLead(env.Ctx, "t-acme", lead.ID, "tester")
	if err != nil {
		t.Fatalf("convert lead: %v", err)
	}
	if account.Name != "Globex" || account.Email != "ops@globex.example" {
		t.Fatalf("account not carried over: %+v", account)
	}
	if account.LeadID == nil || *account.LeadID != lead.ID {
		t.Fatalf("account should reference its lead")
	}
	got, err := env.Engine.Repo.GetLead(env.Ctx, "t-acme", lead.ID)
	if err != nil || got.Status != "converted" {
		t.Fatalf("lead status = %q, err %v", got.Status, err)
	}
}

func TestQuoteNumbersAreSequential(t *testing.T) {
	env := newTestEnv(t)
	q1, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	q2, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	if q1.QuoteNumber != "QT-2026-0001" || q2.QuoteNumber != "QT-2026-0002" {
		t.Fatalf("quote numbers = %q, %q", q1.QuoteNumber, q2.QuoteNumber)
	}
	if q1.Currency != "USD" || q1.Incoterms != "FOB" {
		t.Fatalf("config defaults not applied: %+v", q1)
	}
}

func TestAddQuoteOptionPricesFromRate(t *testing.T) {
	env := newTestEnv(t)
	rate, err := env.Engine.AddCarrierRate(env.Ctx, engine.RateCreateOptions{
		TenantID: "t-acme", CarrierName: "Maersk", OriginPort: "CNSHA", DestinationPort: "USLAX",
		Amount: 1000, ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	opt, err := env.Engine.AddQuoteOption(env.Ctx, engine.OptionCreateOptions{
		TenantID: "t-acme", QuoteID: q.ID, CarrierRateID: rate.ID, ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("add option: %v", err)
	}
	if opt.TotalBuy != 1000 {
		t.Fatalf("total buy = %v", opt.TotalBuy)
	}
	// 15% default margin on cost
	if opt.TotalSell != 1150 {
		t.Fatalf("total sell = %v", opt.TotalSell)
	}
	if opt.MarginAmount != 150 {
		t.Fatalf("margin = %v", opt.MarginAmount)
	}
	if opt.CarrierName != "Maersk" {
		t.Fatalf("carrier = %q", opt.CarrierName)
	}
	charges, err := env.Engine.Repo.ListCharges(env.Ctx, "t-acme", opt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(charges) != 2 {
		t.Fatalf("expected buy+sell FREIGHT pair, got %d charges", len(charges))
	}
}

func TestAddQuoteOptionBalancingCharge(t *testing.T) {
	env := newTestEnv(t)
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	opt, err := env.Engine.AddQuoteOption(env.Ctx, engine.OptionCreateOptions{
		TenantID: "t-acme", QuoteID: q.ID, OptionName: "Spot",
		TargetTotal: 1200,
		Charges: []engine.ChargeInput{
			{CategoryID: "FREIGHT", BasisID: "PER_SHIPMENT", Quantity: 1, Rate: 1000},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("add option: %v", err)
	}
	// 1000 buy -> 1150 sell, target 1200 leaves a 50 balancing fee
	if opt.TotalSell != 1200 {
		t.Fatalf("total sell = %v", opt.TotalSell)
	}
	charges, err := env.Engine.Repo.ListCharges(env.Ctx, "t-acme", opt.ID)
	if err != nil {
		t.Fatal(err)
	}
	var balancing *domain.ChargeLine
	for i := range charges {
		if charges[i].CategoryID == "ANCILLARY" {
			balancing = &charges[i]
		}
	}
	if balancing == nil {
		t.Fatalf("expected balancing charge, got %+v", charges)
	}
	if balancing.Amount != 50 || balancing.Side != "sell" {
		t.Fatalf("balancing = %+v", balancing)
	}
	if balancing.Note != "Ancillary Fees" {
		t.Fatalf("balancing note = %q", balancing.Note)
	}
}

func TestAddQuoteOptionDiscountAdjustment(t *testing.T) {
	env := newTestEnv(t)
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	opt, err := env.Engine.AddQuoteOption(env.Ctx, engine.OptionCreateOptions{
		TenantID: "t-acme", QuoteID: q.ID, OptionName: "Discounted",
		TargetTotal: 1100,
		Charges: []engine.ChargeInput{
			{CategoryID: "FREIGHT", BasisID: "PER_SHIPMENT", Quantity: 1, Rate: 1000},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	charges, _ := env.Engine.Repo.ListCharges(env.Ctx, "t-acme", opt.ID)
	found := false
	for _, c := range charges {
		if c.Note == "Discount / Adjustment" && c.Amount == -50 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected -50 discount line, got %+v", charges)
	}
}

func TestListOptionChargesReconciles(t *testing.T) {
	env := newTestEnv(t)
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	opt, err := env.Engine.AddQuoteOption(env.Ctx, engine.OptionCreateOptions{
		TenantID: "t-acme", QuoteID: q.ID, OptionName: "Spot",
		Charges: []engine.ChargeInput{
			{CategoryID: "FREIGHT", BasisID: "PER_SHIPMENT", Quantity: 1, Rate: 800},
			{CategoryID: "FUEL", BasisID: "PER_SHIPMENT", Quantity: 1, Rate: 120},
		},
		ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	pairs, err := env.Engine.ListOptionCharges(env.Ctx, "t-acme", opt.ID)
	if err != nil {
		t.Fatalf("list charges: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 reconciled pairs, got %d", len(pairs))
	}
	for _, p := range pairs {
		if p.Buy == nil || p.Sell == nil {
			t.Fatalf("pair %s should have both sides: %+v", p.CategoryID, p)
		}
	}
}

func TestRankQuoteOptionsPersists(t *testing.T) {
	env := newTestEnv(t)
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	fast, cheap := 10, 25
	relHigh, relLow := 0.95, 0.6
	rates := []engine.RateCreateOptions{
		{TenantID: "t-acme", CarrierName: "FastLine", OriginPort: "CNSHA", DestinationPort: "USLAX", Amount: 1400, TransitTimeDays: &fast, ReliabilityScore: &relHigh, ActorID: "tester"},
		{TenantID: "t-acme", CarrierName: "SlowBoat", OriginPort: "CNSHA", DestinationPort: "USLAX", Amount: 800, TransitTimeDays: &cheap, ReliabilityScore: &relLow, ActorID: "tester"},
	}
	for _, rc := range rates {
		rate, err := env.Engine.AddCarrierRate(env.Ctx, rc)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := env.Engine.AddQuoteOption(env.Ctx, engine.OptionCreateOptions{
			TenantID: "t-acme", QuoteID: q.ID, CarrierRateID: rate.ID, ActorID: "tester",
		}); err != nil {
			t.Fatal(err)
		}
	}
	options, err := env.Engine.RankQuoteOptions(env.Ctx, "t-acme", q.ID, "tester")
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	recommended := 0
	for _, opt := range options {
		if opt.RankScore == nil {
			t.Fatalf("option %s missing rank score", opt.OptionName)
		}
		if len(opt.RankDetails) != 3 {
			t.Fatalf("option %s rank details = %+v", opt.OptionName, opt.RankDetails)
		}
		if opt.IsRecommended {
			recommended++
			if opt.RecommendationReason == "" {
				t.Fatalf("recommended option needs a reason")
			}
		}
	}
	if recommended != 1 {
		t.Fatalf("expected exactly one recommendation, got %d", recommended)
	}
}

func TestAcceptOptionDiscardsOthers(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	if q.Status != "accepted" {
		t.Fatalf("quote status = %q", q.Status)
	}
	options, err := env.Engine.Repo.ListQuoteOptions(env.Ctx, "t-acme", q.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, opt := range options {
		if opt.Status != "accepted" {
			t.Fatalf("option status = %q", opt.Status)
		}
	}
	if q.TotalAmount != 977.5 {
		t.Fatalf("quote total = %v", q.TotalAmount)
	}
}

func TestSendQuoteRequiresOptions(t *testing.T) {
	env := newTestEnv(t)
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.SetQuoteStatus(env.Ctx, "t-acme", q.ID, "sent", "tester")
	if err == nil || !strings.Contains(err.Error(), "at least one option") {
		t.Fatalf("expected option guard, got %v", err)
	}
}

func TestConvertQuoteToBooking(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	b, validation, err := env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "standard", "tester")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !validation.Valid {
		t.Fatalf("validation = %+v", validation)
	}
	if !strings.HasPrefix(b.BookingNumber, "BK-2026-") {
		t.Fatalf("booking number = %q", b.BookingNumber)
	}
	if b.Origin != "Shanghai" || b.Destination != "Los Angeles" {
		t.Fatalf("lane = %q -> %q", b.Origin, b.Destination)
	}
	if b.QuoteID == nil || *b.QuoteID != q.ID {
		t.Fatalf("booking should reference its quote")
	}
	if b.MappingMetadata["strategy"] != "Standard" {
		t.Fatalf("metadata = %+v", b.MappingMetadata)
	}
	got, err := env.Engine.Repo.GetBooking(env.Ctx, "t-acme", b.ID)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	if got.Status != "draft" || got.Source != "quote" {
		t.Fatalf("persisted booking = %+v", got)
	}
}

func TestConvertRejectsDraftQuote(t *testing.T) {
	env := newTestEnv(t)
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "standard", "tester")
	if err == nil || !strings.Contains(err.Error(), "only accepted quotes") {
		t.Fatalf("expected accepted-only guard, got %v", err)
	}
}

func TestConvertBlocksOnExpiredQuote(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	// push the clock past a freshly backdated validity
	if _, err := env.Engine.DB.Exec(`UPDATE quotes SET valid_until='2026-03-01T00:00:00Z' WHERE id=?`, q.ID); err != nil {
		t.Fatal(err)
	}
	_, validation, err := env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "standard", "tester")
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	if len(validation.Errors) == 0 || !strings.Contains(validation.Errors[0], "expired") {
		t.Fatalf("validation = %+v", validation)
	}
}

func TestLegacyStrategyConversion(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	if _, err := env.Engine.DB.Exec(`UPDATE quotes SET valid_until='2026-03-01T00:00:00Z' WHERE id=?`, q.ID); err != nil {
		t.Fatal(err)
	}
	// legacy skips strict validation, so the expired quote still converts
	b, validation, err := env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "legacy", "tester")
	if err != nil {
		t.Fatalf("legacy convert: %v", err)
	}
	if !strings.HasPrefix(b.BookingNumber, "BK-LEG-") {
		t.Fatalf("booking number = %q", b.BookingNumber)
	}
	if b.Source != "manual" {
		t.Fatalf("source = %q", b.Source)
	}
	if len(validation.Warnings) == 0 {
		t.Fatalf("legacy conversion should warn")
	}
}

func TestBookingLifecycleAndInvoice(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	b, _, err := env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "standard", "tester")
	if err != nil {
		t.Fatal(err)
	}
	// invoicing a draft booking is rejected
	if _, err := env.Engine.IssueInvoice(env.Ctx, "t-acme", b.ID, "tester"); err == nil {
		t.Fatalf("expected confirmed-only guard")
	}
	if _, err := env.Engine.SetBookingStatus(env.Ctx, "t-acme", b.ID, "submitted", "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBookingStatus(env.Ctx, "t-acme", b.ID, "confirmed", "tester"); err != nil {
		t.Fatal(err)
	}
	inv, err := env.Engine.IssueInvoice(env.Ctx, "t-acme", b.ID, "tester")
	if err != nil {
		t.Fatalf("issue invoice: %v", err)
	}
	if inv.InvoiceNumber != "INV-2026-0001" {
		t.Fatalf("invoice number = %q", inv.InvoiceNumber)
	}
	if inv.Amount != b.TotalAmount {
		t.Fatalf("invoice amount = %v, booking = %v", inv.Amount, b.TotalAmount)
	}
	if inv.DueDate != "2026-04-14" {
		t.Fatalf("due date = %q", inv.DueDate)
	}
	// confirmed bookings cannot go back to submitted
	if _, err := env.Engine.SetBookingStatus(env.Ctx, "t-acme", b.ID, "submitted", "tester"); err == nil {
		t.Fatalf("expected transition error")
	}
}

func TestEventLogRecordsLifecycle(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	if _, _, err := env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "standard", "tester"); err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.Repo.ListEvents(env.Ctx, "t-acme", "", 100)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, e := range evts {
		seen[e.Type] = true
	}
	for _, want := range []string{"tenant.init", "quote.created", "quote.option.added", "quote.option.accepted", "booking.created"} {
		if !seen[want] {
			t.Fatalf("missing event %s in %v", want, seen)
		}
	}
}

func TestValidateBookingAfterConversion(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	b, _, err := env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "standard", "tester")
	if err != nil {
		t.Fatal(err)
	}
	// strategy left blank resolves from the booking's mapping metadata
	result, err := env.Engine.ValidateBooking(env.Ctx, "t-acme", b.ID, "")
	if err != nil {
		t.Fatalf("validate booking: %v", err)
	}
	if !result.Valid {
		t.Fatalf("validation = %+v", result)
	}
	// backdating the quote's validity flips the standard verdict
	if _, err := env.Engine.DB.Exec(`UPDATE quotes SET valid_until='2026-03-01T00:00:00Z' WHERE id=?`, q.ID); err != nil {
		t.Fatal(err)
	}
	result, err = env.Engine.ValidateBooking(env.Ctx, "t-acme", b.ID, "standard")
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid || len(result.Errors) == 0 {
		t.Fatalf("expected expiry error, got %+v", result)
	}
	result, err = env.Engine.ValidateBooking(env.Ctx, "t-acme", b.ID, "legacy")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid {
		t.Fatalf("legacy validation should pass, got %+v", result)
	}
}

func TestInvoiceStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	q := seedAcceptedQuote(t, env)
	b, _, err := env.Engine.ConvertQuoteToBooking(env.Ctx, "t-acme", q.ID, "standard", "tester")
	if err != nil {
		t.Fatal(err)
	}
	for _, status := range []string{"submitted", "confirmed"} {
		if _, err := env.Engine.SetBookingStatus(env.Ctx, "t-acme", b.ID, status, "tester"); err != nil {
			t.Fatal(err)
		}
	}
	inv, err := env.Engine.IssueInvoice(env.Ctx, "t-acme", b.ID, "tester")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetInvoiceStatus(env.Ctx, "t-acme", inv.ID, "issued", "tester"); err == nil {
		t.Fatalf("issued -> issued should be rejected")
	}
	paid, err := env.Engine.SetInvoiceStatus(env.Ctx, "t-acme", inv.ID, "paid", "tester")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != "paid" {
		t.Fatalf("status = %q", paid.Status)
	}
	if _, err := env.Engine.SetInvoiceStatus(env.Ctx, "t-acme", inv.ID, "void", "tester"); err == nil {
		t.Fatalf("paid invoices cannot be voided")
	}
}

func TestOptionAnomalyEventOnTargetDrift(t *testing.T) {
	env := newTestEnv(t)
	q, err := env.Engine.CreateQuote(env.Ctx, engine.QuoteCreateOptions{TenantID: "t-acme", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.AddQuoteOption(env.Ctx, engine.OptionCreateOptions{
		TenantID: "t-acme", QuoteID: q.ID, TargetTotal: 1200, ActorID: "tester",
		Charges: []engine.ChargeInput{{CategoryID: "FREIGHT", BasisID: "PER_SHIPMENT", Quantity: 1, Rate: 1000, Amount: 1000}},
	})
	if err != nil {
		t.Fatal(err)
	}
	evts, err := env.Engine.Repo.ListEvents(env.Ctx, "t-acme", "quote_option", 50)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range evts {
		if e.Type == "quote.option.anomaly" {
			found = true
			if !strings.Contains(e.Payload, "transfer_mismatch") {
				t.Fatalf("payload = %q", e.Payload)
			}
		}
	}
	if !found {
		t.Fatalf("missing anomaly event in %+v", evts)
	}
}

func TestAccountAndLeadPatches(t *testing.T) {
	env := newTestEnv(t)
	a, err := env.Engine.CreateAccount(env.Ctx, engine.AccountCreateOptions{TenantID: "t-acme", Name: "Globex", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	a, err = env.Engine.UpdateAccount(env.Ctx, "t-acme", a.ID, map[string]any{"country": "DE", "industry": "retail"}, "tester")
	if err != nil {
		t.Fatalf("update account: %v", err)
	}
	if a.Country != "DE" || a.Industry != "retail" {
		t.Fatalf("account = %+v", a)
	}
	l, err := env.Engine.CreateLead(env.Ctx, engine.LeadCreateOptions{TenantID: "t-acme", CompanyName: "Initech", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	l, err = env.Engine.UpdateLead(env.Ctx, "t-acme", l.ID, map[string]any{"company_name": "Initech GmbH"}, "tester")
	if err != nil {
		t.Fatalf("update lead: %v", err)
	}
	if l.CompanyName != "Initech GmbH" {
		t.Fatalf("lead = %+v", l)
	}
	if err := env.Engine.DeleteAccount(env.Ctx, "t-acme", a.ID, "tester"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if err := env.Engine.DeleteAccount(env.Ctx, "t-acme", a.ID, "tester"); err == nil {
		t.Fatalf("second delete should report not found")
	}
}
