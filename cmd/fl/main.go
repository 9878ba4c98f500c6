package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"freightline/internal/app"
	"freightline/internal/config"
	"freightline/internal/db"
	"freightline/internal/domain"
	"freightline/internal/engine"
	"freightline/internal/migrate"
	"freightline/internal/repo"
	"freightline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "fl",
	Short: "Freightline CLI",
	Long: `Freightline is a quote-to-booking workbench for freight forwarders.
Core concepts:
- Workspace: your .freightline directory holding the database; tenant configs live in the DB.
- Tenant: one forwarding organization that owns all accounts, leads, quotes, and bookings.
- Leads: prospects that move new -> contacted -> qualified -> converted (or lost); converting creates an account.
- Carrier rates: buy-side lane prices (carrier, ports, transit time, reliability) that seed quote options.
- Quotes: priced offers with options; each option carries paired buy/sell charge lines and a margin.
- Ranking: options are scored on cost, transit time, and reliability; the best gets a recommendation.
- Bookings: accepting an option lets the quote convert into a booking via a mapping strategy.
- Invoices: confirmed bookings can be invoiced at the accepted sell total (net 30).
- Event log: diary of changes, view with 'fl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	if envPath := filepath.Join(".", ".env"); fileExists(envPath) {
		_ = godotenv.Overload(envPath)
	}
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func initConfig() {
	viper.SetEnvPrefix("FREIGHTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("tenant", "", "tenant id (overrides single-tenant default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("tenant", rootCmd.PersistentFlags().Lookup("tenant"))
}

func registerCommands() {
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(leadCmd())
	rootCmd.AddCommand(rateCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(bookingCmd())
	rootCmd.AddCommand(invoiceCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func tenantCmd() *cobra.Command {
	t := &cobra.Command{Use: "tenant", Short: "Manage tenants"}
	t.AddCommand(tenantInitCmd())
	t.AddCommand(tenantListCmd())
	return t
}

func tenantInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a tenant with its default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, nil)
			t, err := e.InitTenant(cmd.Context(), id, name, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(t)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "tenant id")
	cmd.Flags().StringVar(&name, "name", "", "tenant display name")
	return cmd
}

func tenantListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !db.Exists(viper.GetString("workspace")) {
				fmt.Println("no tenants yet; run 'fl tenant init --id <tenant>'")
				return nil
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListTenants(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect tenant config",
		Long:  "Config holds the tenant's pricing defaults (currency, incoterms, margin), ranking weights, and the charge category catalog. Stored in the DB; import from freightline.yml if desired.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configExportCmd())
	cfg.AddCommand(configImportCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored config to a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := yaml.Marshal(e.Config)
				if err != nil {
					return err
				}
				if out == "" {
					out = config.Path(viper.GetString("workspace"))
				}
				if err := os.WriteFile(out, b, 0o644); err != nil {
					return err
				}
				fmt.Println("exported", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path (defaults to freightline.yml in the workspace)")
	return cmd
}

func configImportCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a YAML config file into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if path == "" {
					path = config.Path(viper.GetString("workspace"))
				}
				cfg, err := config.FromFile(path)
				if err != nil {
					return err
				}
				cfg.Tenant.ID = e.Config.Tenant.ID
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := e.Repo.UpsertTenantConfig(ctx, cfg.Tenant.ID, cfg); err != nil {
					return err
				}
				fmt.Println("imported", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "config file path (defaults to freightline.yml in the workspace)")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tenant pipeline status",
		Long:  "See the scoreboard for your tenant: lead, quote, booking, and invoice counts by status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tenantID := e.Config.Tenant.ID
				out := map[string]any{"tenant_id": tenantID}
				for _, tableName := range []string{"leads", "quotes", "bookings", "invoices"} {
					counts, err := e.Repo.CountByStatus(ctx, tableName, tenantID)
					if err != nil {
						return err
					}
					out[tableName] = counts
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Tenant: %s\n", tenantID)
				for _, tableName := range []string{"leads", "quotes", "bookings", "invoices"} {
					fmt.Printf("%s:\n", tableName)
					counts := out[tableName].(map[string]int)
					if len(counts) == 0 {
						fmt.Println("  none")
						continue
					}
					for status, c := range counts {
						fmt.Printf("  %s: %d\n", status, c)
					}
				}
				return nil
			})
		},
	}
	return cmd
}

func accountCmd() *cobra.Command {
	acc := &cobra.Command{Use: "account", Short: "Manage accounts"}
	acc.AddCommand(accountCreateCmd())
	acc.AddCommand(accountListCmd())
	acc.AddCommand(accountShowCmd())
	acc.AddCommand(accountUpdateCmd())
	acc.AddCommand(accountDeleteCmd())
	return acc
}

// stringPatch collects changed string flags into a column patch.
func stringPatch(cmd *cobra.Command, cols map[string]*string) map[string]any {
	p := map[string]any{}
	for col, v := range cols {
		if cmd.Flags().Changed(strings.ReplaceAll(col, "_", "-")) {
			p[col] = *v
		}
	}
	return p
}

func accountCreateCmd() *cobra.Command {
	var opts engine.AccountCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.TenantID = e.Config.Tenant.ID
				opts.ActorID = viper.GetString("actor-id")
				a, err := e.CreateAccount(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "account name")
	cmd.Flags().StringVar(&opts.Industry, "industry", "", "industry")
	cmd.Flags().StringVar(&opts.Country, "country", "", "country")
	cmd.Flags().StringVar(&opts.Contact, "contact", "", "primary contact")
	cmd.Flags().StringVar(&opts.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func accountListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListAccounts(ctx, e.Config.Tenant.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func accountShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetAccount(ctx, e.Config.Tenant.ID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func accountUpdateCmd() *cobra.Command {
	var name, industry, country, contact, email, phone, notes string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update account fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := stringPatch(cmd, map[string]*string{
				"name": &name, "industry": &industry, "country": &country,
				"contact": &contact, "email": &email, "phone": &phone, "notes": &notes,
			})
			if len(patch) == 0 {
				return fmt.Errorf("nothing to update")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateAccount(ctx, e.Config.Tenant.ID, args[0], patch, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "account name")
	cmd.Flags().StringVar(&industry, "industry", "", "industry")
	cmd.Flags().StringVar(&country, "country", "", "country")
	cmd.Flags().StringVar(&contact, "contact", "", "primary contact")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func accountDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAccount(ctx, e.Config.Tenant.ID, args[0], viper.GetString("actor-id"))
			})
		},
	}
	return cmd
}

func leadCmd() *cobra.Command {
	lead := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
		Long:  "Leads are prospects. They move new -> contacted -> qualified -> converted (or lost at any point before conversion); converting a qualified lead creates an account.",
	}
	lead.AddCommand(leadCreateCmd())
	lead.AddCommand(leadListCmd())
	lead.AddCommand(leadUpdateCmd())
	lead.AddCommand(leadStatusCmd())
	lead.AddCommand(leadConvertCmd())
	return lead
}

func leadUpdateCmd() *cobra.Command {
	var company, contact, email, phone, source, owner, notes string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update lead fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := stringPatch(cmd, map[string]*string{
				"company_name": &company, "contact": &contact, "email": &email,
				"phone": &phone, "source": &source, "owner_id": &owner, "notes": &notes,
			})
			if len(patch) == 0 {
				return fmt.Errorf("nothing to update")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.UpdateLead(ctx, e.Config.Tenant.ID, args[0], patch, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&company, "company-name", "", "company name")
	cmd.Flags().StringVar(&contact, "contact", "", "contact name")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	cmd.Flags().StringVar(&phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&source, "source", "", "lead source")
	cmd.Flags().StringVar(&owner, "owner-id", "", "owning actor")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func leadCreateCmd() *cobra.Command {
	var opts engine.LeadCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.TenantID = e.Config.Tenant.ID
				opts.ActorID = viper.GetString("actor-id")
				l, err := e.CreateLead(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&opts.CompanyName, "company", "", "company name")
	cmd.Flags().StringVar(&opts.Contact, "contact", "", "contact name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "contact email")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&opts.Source, "source", "", "lead source")
	cmd.Flags().StringVar(&opts.OwnerID, "owner-id", "", "owning actor")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func leadListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListLeads(ctx, e.Config.Tenant.ID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Company", "Status", "Source", "Owner"})
				for _, l := range items {
					owner := ""
					if l.OwnerID != nil {
						owner = *l.OwnerID
					}
					tw.AppendRow(table.Row{l.ID, l.CompanyName, l.Status, l.Source, owner})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func leadStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Set lead status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				l, err := e.SetLeadStatus(ctx, e.Config.Tenant.ID, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "new status")
	return cmd
}

func leadConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <id>",
		Short: "Convert a qualified lead into an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.ConvertLead(ctx, e.Config.Tenant.ID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func rateCmd() *cobra.Command {
	rate := &cobra.Command{Use: "rate", Short: "Manage carrier rates"}
	rate.AddCommand(rateAddCmd())
	rate.AddCommand(rateListCmd())
	rate.AddCommand(rateDeleteCmd())
	return rate
}

func rateAddCmd() *cobra.Command {
	var opts engine.RateCreateOptions
	var transit int
	var reliability float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a carrier rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.TenantID = e.Config.Tenant.ID
				opts.ActorID = viper.GetString("actor-id")
				if cmd.Flags().Changed("transit-days") {
					opts.TransitTimeDays = &transit
				}
				if cmd.Flags().Changed("reliability") {
					opts.ReliabilityScore = &reliability
				}
				cr, err := e.AddCarrierRate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(cr)
			})
		},
	}
	cmd.Flags().StringVar(&opts.CarrierName, "carrier", "", "carrier name")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "transport mode (ocean, air, rail, road)")
	cmd.Flags().StringVar(&opts.OriginPort, "origin", "", "origin port code")
	cmd.Flags().StringVar(&opts.DestinationPort, "destination", "", "destination port code")
	cmd.Flags().IntVar(&transit, "transit-days", 0, "transit time in days")
	cmd.Flags().Float64Var(&reliability, "reliability", 0, "reliability score 0..1")
	cmd.Flags().Float64Var(&opts.Amount, "amount", 0, "buy amount")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "currency (defaults from config)")
	cmd.Flags().StringVar(&opts.ValidUntil, "valid-until", "", "validity end (RFC3339)")
	_ = cmd.MarkFlagRequired("carrier")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("destination")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func rateListCmd() *cobra.Command {
	var origin, destination string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List carrier rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCarrierRates(ctx, e.Config.Tenant.ID, origin, destination)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Carrier", "Mode", "Lane", "Transit", "Reliability", "Amount"})
				for _, r := range items {
					transit := ""
					if r.TransitTimeDays != nil {
						transit = fmt.Sprintf("%dd", *r.TransitTimeDays)
					}
					reliability := ""
					if r.ReliabilityScore != nil {
						reliability = fmt.Sprintf("%.2f", *r.ReliabilityScore)
					}
					tw.AppendRow(table.Row{r.ID, r.CarrierName, r.Mode, r.OriginPort + "-" + r.DestinationPort, transit, reliability, fmt.Sprintf("%.2f %s", r.Amount, r.Currency)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "origin port filter")
	cmd.Flags().StringVar(&destination, "destination", "", "destination port filter")
	return cmd
}

func rateDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete carrier rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteCarrierRate(ctx, e.Config.Tenant.ID, args[0])
			})
		},
	}
	return cmd
}

func quoteCmd() *cobra.Command {
	quote := &cobra.Command{
		Use:   "quote",
		Short: "Manage quotes",
		Long:  "Quotes move draft -> sent -> accepted (or rejected/expired). Options are priced while the quote is a draft; accepting one option discards the rest and locks the quote total.",
	}
	quote.AddCommand(quoteCreateCmd())
	quote.AddCommand(quoteListCmd())
	quote.AddCommand(quoteShowCmd())
	quote.AddCommand(quoteStatusCmd())
	quote.AddCommand(quoteOptionCmd())
	quote.AddCommand(quoteRankCmd())
	quote.AddCommand(quoteAcceptCmd())
	quote.AddCommand(quoteConvertCmd())
	return quote
}

func quoteCreateCmd() *cobra.Command {
	var opts engine.QuoteCreateOptions
	var origin, originCode, destination, destinationCode, lineItemsJSON string
	var containers int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create quote",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.TenantID = e.Config.Tenant.ID
				opts.ActorID = viper.GetString("actor-id")
				if origin != "" {
					opts.OriginPort = &domain.Location{Name: origin, Code: originCode}
				}
				if destination != "" {
					opts.DestinationPort = &domain.Location{Name: destination, Code: destinationCode}
				}
				if cmd.Flags().Changed("containers") {
					opts.ContainerQty = &containers
				}
				if lineItemsJSON != "" {
					if err := json.Unmarshal([]byte(lineItemsJSON), &opts.LineItems); err != nil {
						return fmt.Errorf("parse --line-items: %w", err)
					}
				}
				q, err := e.CreateQuote(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "account id")
	cmd.Flags().StringVar(&opts.Currency, "currency", "", "currency (defaults from config)")
	cmd.Flags().StringVar(&origin, "origin", "", "origin port name")
	cmd.Flags().StringVar(&originCode, "origin-code", "", "origin port UN/LOCODE")
	cmd.Flags().StringVar(&destination, "destination", "", "destination port name")
	cmd.Flags().StringVar(&destinationCode, "destination-code", "", "destination port UN/LOCODE")
	cmd.Flags().StringVar(&opts.Incoterms, "incoterms", "", "incoterms (defaults from config)")
	cmd.Flags().StringVar(&opts.ValidUntil, "valid-until", "", "validity end (RFC3339)")
	cmd.Flags().StringVar(&opts.CargoReadyDate, "cargo-ready", "", "cargo ready date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&containers, "containers", 0, "container quantity")
	cmd.Flags().StringVar(&opts.ContainerTypeID, "container-type", "", "container type (e.g. 40HC)")
	cmd.Flags().StringVar(&opts.ServiceLevel, "service-level", "", "service level")
	cmd.Flags().StringVar(&lineItemsJSON, "line-items", "", "line items as a JSON array")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "notes")
	return cmd
}

func quoteListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListQuotes(ctx, e.Config.Tenant.ID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Number", "Status", "Lane", "Total", "Valid Until"})
				for _, q := range items {
					lane := ""
					if q.OriginPort != nil && q.DestinationPort != nil {
						lane = q.OriginPort.Name + " -> " + q.DestinationPort.Name
					}
					valid := ""
					if q.ValidUntil != nil {
						valid = *q.ValidUntil
					}
					tw.AppendRow(table.Row{q.ID, q.QuoteNumber, q.Status, lane, fmt.Sprintf("%.2f %s", q.TotalAmount, q.Currency), valid})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func quoteShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show quote with its options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.Repo.GetQuote(ctx, e.Config.Tenant.ID, args[0])
				if err != nil {
					return err
				}
				options, err := e.Repo.ListQuoteOptions(ctx, e.Config.Tenant.ID, q.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"quote": q, "options": options})
			})
		},
	}
	return cmd
}

func quoteStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Set quote status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.SetQuoteStatus(ctx, e.Config.Tenant.ID, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "new status")
	return cmd
}

// chargeFlag is the JSON shape accepted by --charges.
type chargeFlag struct {
	LegID      string  `json:"leg_id"`
	CategoryID string  `json:"category_id"`
	BasisID    string  `json:"basis_id"`
	Unit       string  `json:"unit"`
	Quantity   float64 `json:"quantity"`
	Rate       float64 `json:"rate"`
	Amount     float64 `json:"amount"`
	Note       string  `json:"note"`
}

func quoteOptionCmd() *cobra.Command {
	opt := &cobra.Command{Use: "option", Short: "Manage quote options"}
	opt.AddCommand(quoteOptionAddCmd())
	opt.AddCommand(quoteOptionListCmd())
	opt.AddCommand(quoteOptionChargesCmd())
	return opt
}

func quoteOptionAddCmd() *cobra.Command {
	var opts engine.OptionCreateOptions
	var chargesJSON string
	cmd := &cobra.Command{
		Use:   "add <quote-id>",
		Short: "Price and attach an option to a draft quote",
		Long:  "Buy charges come from --charges and/or the referenced carrier rate. Sell charges are derived by applying the margin to each buy line; a target total adds a balancing charge.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.TenantID = e.Config.Tenant.ID
				opts.QuoteID = args[0]
				opts.ActorID = viper.GetString("actor-id")
				if chargesJSON != "" {
					var flags []chargeFlag
					if err := json.Unmarshal([]byte(chargesJSON), &flags); err != nil {
						return fmt.Errorf("parse --charges: %w", err)
					}
					for _, c := range flags {
						opts.Charges = append(opts.Charges, engine.ChargeInput(c))
					}
				}
				o, err := e.AddQuoteOption(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&opts.CarrierRateID, "rate", "", "carrier rate id to seed the buy side")
	cmd.Flags().StringVar(&opts.OptionName, "name", "", "option display name")
	cmd.Flags().Float64Var(&opts.TargetTotal, "target-total", 0, "target sell total; drift is absorbed by a balancing charge")
	cmd.Flags().Float64Var(&opts.MarginPercent, "margin", 0, "margin percent override")
	cmd.Flags().StringVar(&chargesJSON, "charges", "", "buy charges as a JSON array")
	return cmd
}

func quoteOptionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <quote-id>",
		Short: "List quote options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListQuoteOptions(ctx, e.Config.Tenant.ID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func quoteOptionChargesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "charges <option-id>",
		Short: "Show an option's reconciled buy/sell charge pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pairs, err := e.ListOptionCharges(ctx, e.Config.Tenant.ID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(pairs)
			})
		},
	}
	return cmd
}

func quoteRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank <quote-id>",
		Short: "Rank a quote's options and mark the recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ranked, err := e.RankQuoteOptions(ctx, e.Config.Tenant.ID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ranked)
			})
		},
	}
	return cmd
}

func quoteAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <option-id>",
		Short: "Accept one option; other options are discarded",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.AcceptOption(ctx, e.Config.Tenant.ID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
	return cmd
}

func quoteConvertCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "convert <quote-id>",
		Short: "Convert an accepted quote into a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, validation, err := e.ConvertQuoteToBooking(ctx, e.Config.Tenant.ID, args[0], strategy, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"booking": b, "validation": validation})
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "mapping strategy (standard, legacy; defaults from config)")
	return cmd
}

func bookingCmd() *cobra.Command {
	booking := &cobra.Command{
		Use:   "booking",
		Short: "Manage bookings",
		Long:  "Bookings move draft -> submitted -> confirmed; draft and submitted bookings can be canceled. Confirmed bookings can be invoiced.",
	}
	booking.AddCommand(bookingListCmd())
	booking.AddCommand(bookingShowCmd())
	booking.AddCommand(bookingStatusCmd())
	booking.AddCommand(bookingValidateCmd())
	booking.AddCommand(bookingInvoiceCmd())
	return booking
}

func bookingListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListBookings(ctx, e.Config.Tenant.ID, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Number", "Status", "Source", "Lane", "Total"})
				for _, b := range items {
					tw.AppendRow(table.Row{b.ID, b.BookingNumber, b.Status, b.Source, b.Origin + " -> " + b.Destination, fmt.Sprintf("%.2f %s", b.TotalAmount, b.Currency)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func bookingShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.Repo.GetBooking(ctx, e.Config.Tenant.ID, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	return cmd
}

func bookingStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Set booking status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.SetBookingStatus(ctx, e.Config.Tenant.ID, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "new status")
	return cmd
}

func bookingValidateCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "validate <id>",
		Short: "Re-validate a booking against its source quote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				result, err := e.ValidateBooking(ctx, e.Config.Tenant.ID, args[0], strategy)
				if err != nil {
					return err
				}
				return printJSONOrTable(result)
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "validation strategy (defaults to the one that mapped the booking)")
	return cmd
}

func bookingInvoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoice <id>",
		Short: "Issue an invoice for a confirmed booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inv, err := e.IssueInvoice(ctx, e.Config.Tenant.ID, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	return cmd
}

func invoiceCmd() *cobra.Command {
	inv := &cobra.Command{Use: "invoice", Short: "Manage invoices"}
	inv.AddCommand(invoiceListCmd())
	inv.AddCommand(invoiceStatusCmd())
	return inv
}

func invoiceStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Set invoice status (paid or void)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--to required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				inv, err := e.SetInvoiceStatus(ctx, e.Config.Tenant.ID, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(inv)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "new status")
	return cmd
}

func invoiceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListInvoices(ctx, e.Config.Tenant.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyRevokeCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the raw key is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				raw := "flk_" + strings.ReplaceAll(uuid.New().String(), "-", "")
				key := domain.APIKey{
					ID:      uuid.New().String(),
					ActorID: actor,
					Name:    name,
					KeyHash: repo.HashAPIKey(raw),
				}
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "key": raw})
				}
				fmt.Println("API key created. Store it now; it is not recoverable.")
				fmt.Println("  id:   ", key.ID)
				fmt.Println("  actor:", key.ActorID)
				fmt.Println("  key:  ", raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor filter")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var entityKind string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, e.Config.Tenant.ID, entityKind, n)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyActor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveTenantAndConfig(cmd.Context(), viper.GetString("tenant"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("FREIGHTLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyActor,
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("FREIGHTLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Freightline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyActor, "allow-legacy-actor-header", false, "accept the deprecated X-Actor-Id header")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveTenantAndConfig(ctx, viper.GetString("tenant"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
