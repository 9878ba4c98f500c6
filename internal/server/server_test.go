package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"freightline/internal/config"
	"freightline/internal/db"
	"freightline/internal/domain"
	"freightline/internal/engine"
	"freightline/internal/migrate"
	"freightline/internal/repo"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default("t-acme")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	if _, err := e.InitTenant(context.Background(), "t-acme", "Acme Forwarding", "tester"); err != nil {
		t.Fatalf("init tenant: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testJWTSecret, AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func actorHeaders() map[string]string {
	return map[string]string{"X-Actor-Id": "tester"}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", res.StatusCode, data)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tenants", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d body = %s", res.StatusCode, data)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("parse error envelope: %v (%s)", err, data)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestJWTAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	claims := jwt.RegisteredClaims{
		Subject:   "jwt-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tenants", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", res.StatusCode, data)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	rawKey := "fl_test_key"
	err := srv.Engine.Repo.InsertAPIKey(context.Background(), nil, domain.APIKey{
		ID:      uuid.New().String(),
		ActorID: "key-user",
		Name:    "test",
		KeyHash: repo.HashAPIKey(rawKey),
	})
	if err != nil {
		t.Fatalf("insert api key: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tenants", nil, map[string]string{
		"X-Api-Key": rawKey,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d body = %s", res.StatusCode, data)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tenants", nil, map[string]string{
		"X-Api-Key": "wrong",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key status = %d", res.StatusCode)
	}
}

func TestQuoteLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/tenants/t-acme"

	res, data := doJSON(t, client, http.MethodPost, base+"/rates", map[string]any{
		"carrier_name":      "Evergreen",
		"origin_port":       "CNSHA",
		"destination_port":  "USLAX",
		"amount":            900,
		"transit_time_days": 16,
		"reliability_score": 0.88,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rate: %d %s", res.StatusCode, data)
	}
	var rate domain.CarrierRate
	if err := json.Unmarshal(data, &rate); err != nil {
		t.Fatalf("parse rate: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/quotes", map[string]any{
		"origin_port":      map[string]string{"name": "Shanghai", "code": "CNSHA"},
		"destination_port": map[string]string{"name": "Los Angeles", "code": "USLAX"},
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create quote: %d %s", res.StatusCode, data)
	}
	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		t.Fatalf("parse quote: %v", err)
	}
	if quote.QuoteNumber == "" || quote.Status != "draft" {
		t.Fatalf("quote = %+v", quote)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/options", map[string]any{
		"carrier_rate_id": rate.ID,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add option: %d %s", res.StatusCode, data)
	}
	var opt domain.QuoteOption
	if err := json.Unmarshal(data, &opt); err != nil {
		t.Fatalf("parse option: %v", err)
	}
	if opt.TotalBuy != 900 || opt.TotalSell != 1035 {
		t.Fatalf("option pricing = %+v", opt)
	}

	res, data = doJSON(t, client, http.MethodGet, base+"/options/"+opt.ID+"/charges", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list charges: %d %s", res.StatusCode, data)
	}
	var pairs []domain.ChargePair
	if err := json.Unmarshal(data, &pairs); err != nil {
		t.Fatalf("parse pairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Buy == nil || pairs[0].Sell == nil {
		t.Fatalf("pairs = %+v", pairs)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/rank", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("rank: %d %s", res.StatusCode, data)
	}
	var ranked []domain.QuoteOption
	if err := json.Unmarshal(data, &ranked); err != nil {
		t.Fatalf("parse ranked: %v", err)
	}
	if len(ranked) != 1 || ranked[0].RankScore == nil || *ranked[0].RankScore != 100 {
		t.Fatalf("ranked = %+v", ranked)
	}
	if ranked[0].RecommendationReason != "Only available option" {
		t.Fatalf("reason = %q", ranked[0].RecommendationReason)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/status", map[string]any{"status": "sent"}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("send: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/options/"+opt.ID+"/accept", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, data)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/convert", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("convert: %d %s", res.StatusCode, data)
	}
	var converted ConvertQuoteResponse
	if err := json.Unmarshal(data, &converted); err != nil {
		t.Fatalf("parse conversion: %v", err)
	}
	if converted.Booking.BookingNumber == "" || converted.Booking.Source != "quote" {
		t.Fatalf("booking = %+v", converted.Booking)
	}
	if !converted.Validation.Valid {
		t.Fatalf("validation = %+v", converted.Validation)
	}
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/tenants/t-acme"

	res, data := doJSON(t, client, http.MethodPost, base+"/quotes", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create quote: %d %s", res.StatusCode, data)
	}
	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		t.Fatal(err)
	}
	// draft -> accepted skips "sent"
	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/status", map[string]any{"status": "accepted"}, actorHeaders())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d body = %s", res.StatusCode, data)
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("code = %q", envelope.Error.Code)
	}
}

func TestConvertDraftQuoteFails(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/tenants/t-acme"

	res, data := doJSON(t, client, http.MethodPost, base+"/quotes", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create quote: %d %s", res.StatusCode, data)
	}
	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/convert", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d body = %s", res.StatusCode, data)
	}
}

func TestLeadEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/tenants/t-acme"

	res, data := doJSON(t, client, http.MethodPost, base+"/leads", map[string]any{
		"company_name": "Globex",
		"source":       "web",
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create lead: %d %s", res.StatusCode, data)
	}
	var lead domain.Lead
	if err := json.Unmarshal(data, &lead); err != nil {
		t.Fatal(err)
	}
	for _, status := range []string{"contacted", "qualified"} {
		res, data = doJSON(t, client, http.MethodPost, base+"/leads/"+lead.ID+"/status", map[string]any{"status": status}, actorHeaders())
		if res.StatusCode != http.StatusOK {
			t.Fatalf("to %s: %d %s", status, res.StatusCode, data)
		}
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/leads/"+lead.ID+"/convert", nil, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("convert lead: %d %s", res.StatusCode, data)
	}
	var account domain.Account
	if err := json.Unmarshal(data, &account); err != nil {
		t.Fatal(err)
	}
	if account.Name != "Globex" {
		t.Fatalf("account = %+v", account)
	}
	res, data = doJSON(t, client, http.MethodGet, base+"/leads?status=converted", nil, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, data)
	}
	var leads []domain.Lead
	if err := json.Unmarshal(data, &leads); err != nil {
		t.Fatal(err)
	}
	if len(leads) != 1 {
		t.Fatalf("converted leads = %+v", leads)
	}
}

func TestMissingQuoteIs404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tenants/t-acme/quotes/nope", nil, actorHeaders())
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d body = %s", res.StatusCode, data)
	}
}

func TestBookingValidateAndInvoiceOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	base := srv.URL + "/v0/tenants/t-acme"

	res, data := doJSON(t, client, http.MethodPost, base+"/rates", map[string]any{
		"carrier_name": "ONE", "origin_port": "CNSHA", "destination_port": "USLAX", "amount": 800,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rate: %d %s", res.StatusCode, data)
	}
	var rate domain.CarrierRate
	if err := json.Unmarshal(data, &rate); err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/quotes", map[string]any{
		"origin_port":      map[string]string{"name": "Shanghai"},
		"destination_port": map[string]string{"name": "Los Angeles"},
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create quote: %d %s", res.StatusCode, data)
	}
	var quote domain.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		t.Fatal(err)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/options", map[string]any{
		"carrier_rate_id": rate.ID,
	}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add option: %d %s", res.StatusCode, data)
	}
	var opt domain.QuoteOption
	if err := json.Unmarshal(data, &opt); err != nil {
		t.Fatal(err)
	}
	if res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/status", map[string]any{"status": "sent"}, actorHeaders()); res.StatusCode != http.StatusOK {
		t.Fatalf("send: %d %s", res.StatusCode, data)
	}
	if res, data = doJSON(t, client, http.MethodPost, base+"/options/"+opt.ID+"/accept", nil, actorHeaders()); res.StatusCode != http.StatusOK {
		t.Fatalf("accept: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/quotes/"+quote.ID+"/convert", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("convert: %d %s", res.StatusCode, data)
	}
	var converted ConvertQuoteResponse
	if err := json.Unmarshal(data, &converted); err != nil {
		t.Fatal(err)
	}
	bookingID := converted.Booking.ID

	res, data = doJSON(t, client, http.MethodPost, base+"/bookings/"+bookingID+"/validate", map[string]any{}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("validate: %d %s", res.StatusCode, data)
	}
	var validation domain.ValidationResult
	if err := json.Unmarshal(data, &validation); err != nil {
		t.Fatal(err)
	}
	if !validation.Valid {
		t.Fatalf("validation = %+v", validation)
	}

	for _, status := range []string{"submitted", "confirmed"} {
		if res, data = doJSON(t, client, http.MethodPost, base+"/bookings/"+bookingID+"/status", map[string]any{"status": status}, actorHeaders()); res.StatusCode != http.StatusOK {
			t.Fatalf("booking %s: %d %s", status, res.StatusCode, data)
		}
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/bookings/"+bookingID+"/invoice", nil, actorHeaders())
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("invoice: %d %s", res.StatusCode, data)
	}
	var inv domain.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		t.Fatal(err)
	}
	if inv.Status != "issued" {
		t.Fatalf("invoice = %+v", inv)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/invoices/"+inv.ID+"/status", map[string]any{"status": "paid"}, actorHeaders())
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark paid: %d %s", res.StatusCode, data)
	}
	var paid domain.Invoice
	if err := json.Unmarshal(data, &paid); err != nil {
		t.Fatal(err)
	}
	if paid.Status != "paid" {
		t.Fatalf("paid = %+v", paid)
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/invoices/"+inv.ID+"/status", map[string]any{"status": "void"}, actorHeaders())
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("void after paid: %d %s", res.StatusCode, data)
	}
}
