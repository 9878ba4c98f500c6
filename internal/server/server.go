package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"freightline/internal/domain"
	"freightline/internal/engine"
	"freightline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid quote transition draft -> accepted"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Freightline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Freightline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerTenants(group, cfg.Engine)
	registerStatus(group, cfg.Engine)
	registerAccounts(group, cfg.Engine)
	registerLeads(group, cfg.Engine)
	registerRates(group, cfg.Engine)
	registerQuotes(group, cfg.Engine)
	registerBookings(group, cfg.Engine)
	registerInvoices(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") && strings.Contains(lowered, "transition"):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case strings.Contains(lowered, "failed booking validation"):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, nil)
	case strings.Contains(lowered, "only accepted quotes"),
		strings.Contains(lowered, "only confirmed bookings"),
		strings.Contains(lowered, "can only be added to drafts"),
		strings.Contains(lowered, "at least one option"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "must be"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	if b, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return b
	}
	return nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Freightline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: %q,
        dom_id: '#swagger-ui',
      });
    </script>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type TenantPath struct {
	TenantID string `path:"tenant_id"`
}

func registerTenants(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "init-tenant",
		Method:        http.MethodPost,
		Path:          "/tenants",
		Summary:       "Initialize tenant",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body InitTenantRequest `json:"body"`
	}) (*struct {
		Body domain.Tenant `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.InitTenant(ctx, input.Body.ID, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Tenant `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/tenants",
		Summary:     "List tenants",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Tenant `json:"body"`
	}, error) {
		items, err := e.Repo.ListTenants(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Tenant `json:"body"`
		}{Body: items}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "tenant-status",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/status",
		Summary:     "Tenant pipeline status",
	}, func(ctx context.Context, input *TenantPath) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		t, err := e.Repo.GetTenant(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		leads, err := e.Repo.CountByStatus(ctx, "leads", t.ID)
		if err != nil {
			return nil, handleError(err)
		}
		quotes, err := e.Repo.CountByStatus(ctx, "quotes", t.ID)
		if err != nil {
			return nil, handleError(err)
		}
		bookings, err := e.Repo.CountByStatus(ctx, "bookings", t.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"tenant_id": t.ID,
			"status":    t.Status,
			"leads":     leads,
			"quotes":    quotes,
			"bookings":  bookings,
		}}, nil
	})
}

func registerAccounts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-account",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/accounts",
		Summary:       "Create account",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		Body CreateAccountRequest `json:"body"`
	}) (*struct {
		Body domain.Account `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.CreateAccount(ctx, engine.AccountCreateOptions{
			TenantID: input.TenantID,
			Name:     input.Body.Name,
			Industry: input.Body.Industry,
			Country:  input.Body.Country,
			Contact:  input.Body.Contact,
			Email:    input.Body.Email,
			Phone:    input.Body.Phone,
			Notes:    input.Body.Notes,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Account `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/accounts",
		Summary:     "List accounts",
	}, func(ctx context.Context, input *TenantPath) (*struct {
		Body []domain.Account `json:"body"`
	}, error) {
		items, err := e.Repo.ListAccounts(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Account `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-account",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/accounts/{account_id}",
		Summary:     "Get account",
	}, func(ctx context.Context, input *struct {
		TenantPath
		AccountID string `path:"account_id"`
	}) (*struct {
		Body domain.Account `json:"body"`
	}, error) {
		a, err := e.Repo.GetAccount(ctx, input.TenantID, input.AccountID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Account `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-account",
		Method:      http.MethodPatch,
		Path:        "/tenants/{tenant_id}/accounts/{account_id}",
		Summary:     "Update account fields",
	}, func(ctx context.Context, input *struct {
		TenantPath
		AccountID string               `path:"account_id"`
		Body      UpdateAccountRequest `json:"body"`
	}) (*struct {
		Body domain.Account `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.UpdateAccount(ctx, input.TenantID, input.AccountID, input.Body.patch(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Account `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-account",
		Method:        http.MethodDelete,
		Path:          "/tenants/{tenant_id}/accounts/{account_id}",
		Summary:       "Delete account",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *struct {
		TenantPath
		AccountID string `path:"account_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAccount(ctx, input.TenantID, input.AccountID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerLeads(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-lead",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/leads",
		Summary:       "Create lead",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		Body CreateLeadRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.CreateLead(ctx, engine.LeadCreateOptions{
			TenantID:    input.TenantID,
			CompanyName: input.Body.CompanyName,
			Contact:     input.Body.Contact,
			Email:       input.Body.Email,
			Phone:       input.Body.Phone,
			Source:      input.Body.Source,
			OwnerID:     input.Body.OwnerID,
			Notes:       input.Body.Notes,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-leads",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/leads",
		Summary:     "List leads",
	}, func(ctx context.Context, input *struct {
		TenantPath
		Status string `query:"status"`
	}) (*struct {
		Body []domain.Lead `json:"body"`
	}, error) {
		items, err := e.Repo.ListLeads(ctx, input.TenantID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Lead `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-lead",
		Method:      http.MethodPatch,
		Path:        "/tenants/{tenant_id}/leads/{lead_id}",
		Summary:     "Update lead fields",
	}, func(ctx context.Context, input *struct {
		TenantPath
		LeadID string            `path:"lead_id"`
		Body   UpdateLeadRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.UpdateLead(ctx, input.TenantID, input.LeadID, input.Body.patch(), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-lead-status",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/leads/{lead_id}/status",
		Summary:     "Transition lead status",
	}, func(ctx context.Context, input *struct {
		TenantPath
		LeadID string               `path:"lead_id"`
		Body   SetLeadStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.SetLeadStatus(ctx, input.TenantID, input.LeadID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "convert-lead",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/leads/{lead_id}/convert",
		Summary:       "Convert lead to account",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		LeadID string `path:"lead_id"`
	}) (*struct {
		Body domain.Account `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.ConvertLead(ctx, input.TenantID, input.LeadID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Account `json:"body"`
		}{Body: a}, nil
	})
}

func registerRates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-rate",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/rates",
		Summary:       "Register carrier rate",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		Body CreateRateRequest `json:"body"`
	}) (*struct {
		Body domain.CarrierRate `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cr, err := e.AddCarrierRate(ctx, engine.RateCreateOptions{
			TenantID:         input.TenantID,
			CarrierName:      input.Body.CarrierName,
			Mode:             input.Body.Mode,
			OriginPort:       input.Body.OriginPort,
			DestinationPort:  input.Body.DestinationPort,
			TransitTimeDays:  input.Body.TransitTimeDays,
			ReliabilityScore: input.Body.ReliabilityScore,
			Amount:           input.Body.Amount,
			Currency:         input.Body.Currency,
			ValidUntil:       input.Body.ValidUntil,
			ActorID:          actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CarrierRate `json:"body"`
		}{Body: cr}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rates",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/rates",
		Summary:     "List carrier rates",
	}, func(ctx context.Context, input *struct {
		TenantPath
		Origin      string `query:"origin"`
		Destination string `query:"destination"`
	}) (*struct {
		Body []domain.CarrierRate `json:"body"`
	}, error) {
		items, err := e.Repo.ListCarrierRates(ctx, input.TenantID, input.Origin, input.Destination)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.CarrierRate `json:"body"`
		}{Body: items}, nil
	})
}

func registerQuotes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-quote",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/quotes",
		Summary:       "Create quote",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		Body CreateQuoteRequest `json:"body"`
	}) (*struct {
		Body domain.Quote `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.CreateQuote(ctx, engine.QuoteCreateOptions{
			TenantID:        input.TenantID,
			AccountID:       input.Body.AccountID,
			Currency:        input.Body.Currency,
			OriginPort:      input.Body.OriginPort,
			DestinationPort: input.Body.DestinationPort,
			OriginLocation:  input.Body.OriginLocation,
			DestinationLoc:  input.Body.DestinationLoc,
			Incoterms:       input.Body.Incoterms,
			ValidUntil:      input.Body.ValidUntil,
			CargoReadyDate:  input.Body.CargoReadyDate,
			ContainerQty:    input.Body.ContainerQty,
			ContainerTypeID: input.Body.ContainerTypeID,
			ServiceLevel:    input.Body.ServiceLevel,
			LineItems:       input.Body.LineItems,
			Notes:           input.Body.Notes,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Quote `json:"body"`
		}{Body: q}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-quotes",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/quotes",
		Summary:     "List quotes",
	}, func(ctx context.Context, input *struct {
		TenantPath
		Status string `query:"status"`
	}) (*struct {
		Body []domain.Quote `json:"body"`
	}, error) {
		items, err := e.Repo.ListQuotes(ctx, input.TenantID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Quote `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-quote",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/quotes/{quote_id}",
		Summary:     "Get quote",
	}, func(ctx context.Context, input *struct {
		TenantPath
		QuoteID string `path:"quote_id"`
	}) (*struct {
		Body domain.Quote `json:"body"`
	}, error) {
		q, err := e.Repo.GetQuote(ctx, input.TenantID, input.QuoteID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Quote `json:"body"`
		}{Body: q}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-quote-status",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/quotes/{quote_id}/status",
		Summary:     "Transition quote status",
	}, func(ctx context.Context, input *struct {
		TenantPath
		QuoteID string                `path:"quote_id"`
		Body    SetQuoteStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Quote `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.SetQuoteStatus(ctx, input.TenantID, input.QuoteID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Quote `json:"body"`
		}{Body: q}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-quote-option",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/quotes/{quote_id}/options",
		Summary:       "Add priced option to quote",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		QuoteID string              `path:"quote_id"`
		Body    CreateOptionRequest `json:"body"`
	}) (*struct {
		Body domain.QuoteOption `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		charges := make([]engine.ChargeInput, 0, len(input.Body.Charges))
		for _, c := range input.Body.Charges {
			charges = append(charges, engine.ChargeInput{
				LegID:      c.LegID,
				CategoryID: c.CategoryID,
				BasisID:    c.BasisID,
				Unit:       c.Unit,
				Quantity:   c.Quantity,
				Rate:       c.Rate,
				Amount:     c.Amount,
				Note:       c.Note,
			})
		}
		opt, err := e.AddQuoteOption(ctx, engine.OptionCreateOptions{
			TenantID:      input.TenantID,
			QuoteID:       input.QuoteID,
			CarrierRateID: input.Body.CarrierRateID,
			OptionName:    input.Body.OptionName,
			TargetTotal:   input.Body.TargetTotal,
			MarginPercent: input.Body.MarginPercent,
			Charges:       charges,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.QuoteOption `json:"body"`
		}{Body: opt}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-quote-options",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/quotes/{quote_id}/options",
		Summary:     "List quote options",
	}, func(ctx context.Context, input *struct {
		TenantPath
		QuoteID string `path:"quote_id"`
	}) (*struct {
		Body []domain.QuoteOption `json:"body"`
	}, error) {
		items, err := e.Repo.ListQuoteOptions(ctx, input.TenantID, input.QuoteID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.QuoteOption `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-option-charges",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/options/{option_id}/charges",
		Summary:     "Reconciled buy/sell charges for an option",
	}, func(ctx context.Context, input *struct {
		TenantPath
		OptionID string `path:"option_id"`
	}) (*struct {
		Body []domain.ChargePair `json:"body"`
	}, error) {
		pairs, err := e.ListOptionCharges(ctx, input.TenantID, input.OptionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ChargePair `json:"body"`
		}{Body: pairs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "rank-quote-options",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/quotes/{quote_id}/rank",
		Summary:     "Rank quote options",
	}, func(ctx context.Context, input *struct {
		TenantPath
		QuoteID string `path:"quote_id"`
	}) (*struct {
		Body []domain.QuoteOption `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.RankQuoteOptions(ctx, input.TenantID, input.QuoteID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.QuoteOption `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-quote-option",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/options/{option_id}/accept",
		Summary:     "Accept one option and the quote",
	}, func(ctx context.Context, input *struct {
		TenantPath
		OptionID string `path:"option_id"`
	}) (*struct {
		Body domain.Quote `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q, err := e.AcceptOption(ctx, input.TenantID, input.OptionID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Quote `json:"body"`
		}{Body: q}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "convert-quote",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/quotes/{quote_id}/convert",
		Summary:       "Convert accepted quote to booking",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		QuoteID string              `path:"quote_id"`
		Body    ConvertQuoteRequest `json:"body"`
	}) (*struct {
		Body ConvertQuoteResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, validation, err := e.ConvertQuoteToBooking(ctx, input.TenantID, input.QuoteID, input.Body.Strategy, actorID)
		if err != nil {
			statusErr := handleError(err)
			if ae, ok := statusErr.(*apiError); ok && len(validation.Errors) > 0 {
				ae.Body.Details = map[string]any{"errors": validation.Errors, "warnings": validation.Warnings}
			}
			return nil, statusErr
		}
		return &struct {
			Body ConvertQuoteResponse `json:"body"`
		}{Body: ConvertQuoteResponse{Booking: b, Validation: validation}}, nil
	})
}

func registerBookings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-bookings",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/bookings",
		Summary:     "List bookings",
	}, func(ctx context.Context, input *struct {
		TenantPath
		Status string `query:"status"`
	}) (*struct {
		Body []domain.BookingDraft `json:"body"`
	}, error) {
		items, err := e.Repo.ListBookings(ctx, input.TenantID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.BookingDraft `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-booking",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/bookings/{booking_id}",
		Summary:     "Get booking",
	}, func(ctx context.Context, input *struct {
		TenantPath
		BookingID string `path:"booking_id"`
	}) (*struct {
		Body domain.BookingDraft `json:"body"`
	}, error) {
		b, err := e.Repo.GetBooking(ctx, input.TenantID, input.BookingID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BookingDraft `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-booking-status",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/bookings/{booking_id}/status",
		Summary:     "Transition booking status",
	}, func(ctx context.Context, input *struct {
		TenantPath
		BookingID string                  `path:"booking_id"`
		Body      SetBookingStatusRequest `json:"body"`
	}) (*struct {
		Body domain.BookingDraft `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.SetBookingStatus(ctx, input.TenantID, input.BookingID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BookingDraft `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-booking",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/bookings/{booking_id}/validate",
		Summary:     "Validate booking against its source quote",
	}, func(ctx context.Context, input *struct {
		TenantPath
		BookingID string                 `path:"booking_id"`
		Body      ValidateBookingRequest `json:"body"`
	}) (*struct {
		Body domain.ValidationResult `json:"body"`
	}, error) {
		result, err := e.ValidateBooking(ctx, input.TenantID, input.BookingID, input.Body.Strategy)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ValidationResult `json:"body"`
		}{Body: result}, nil
	})
}

func registerInvoices(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "issue-invoice",
		Method:        http.MethodPost,
		Path:          "/tenants/{tenant_id}/bookings/{booking_id}/invoice",
		Summary:       "Issue invoice for confirmed booking",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		TenantPath
		BookingID string `path:"booking_id"`
	}) (*struct {
		Body domain.Invoice `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.IssueInvoice(ctx, input.TenantID, input.BookingID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Invoice `json:"body"`
		}{Body: inv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-invoice-status",
		Method:      http.MethodPost,
		Path:        "/tenants/{tenant_id}/invoices/{invoice_id}/status",
		Summary:     "Transition invoice status",
	}, func(ctx context.Context, input *struct {
		TenantPath
		InvoiceID string                  `path:"invoice_id"`
		Body      SetInvoiceStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Invoice `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inv, err := e.SetInvoiceStatus(ctx, input.TenantID, input.InvoiceID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Invoice `json:"body"`
		}{Body: inv}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-invoices",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/invoices",
		Summary:     "List invoices",
	}, func(ctx context.Context, input *TenantPath) (*struct {
		Body []domain.Invoice `json:"body"`
	}, error) {
		items, err := e.Repo.ListInvoices(ctx, input.TenantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Invoice `json:"body"`
		}{Body: items}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/tenants/{tenant_id}/events",
		Summary:     "List events",
	}, func(ctx context.Context, input *struct {
		TenantPath
		EntityKind string `query:"entity_kind"`
		Limit      int    `query:"limit"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		items, err := e.Repo.ListEvents(ctx, input.TenantID, input.EntityKind, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
