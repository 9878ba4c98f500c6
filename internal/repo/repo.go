package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"freightline/internal/config"
	"freightline/internal/domain"

	"gopkg.in/yaml.v3"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertTenant(ctx context.Context, t domain.Tenant) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tenants(id,name,status,created_at) VALUES (?,?,?,?)`,
		t.ID, t.Name, t.Status, t.CreatedAt)
	return err
}

func (r Repo) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.DB.QueryRowContext(ctx, `SELECT id,name,status,created_at FROM tenants WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

// SingleTenant resolves the tenant when the workspace holds exactly one.
func (r Repo) SingleTenant(ctx context.Context) (domain.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM tenants`)
	if err != nil {
		return domain.Tenant{}, err
	}
	defer rows.Close()
	var tenants []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt); err != nil {
			return domain.Tenant{}, err
		}
		tenants = append(tenants, t)
	}
	if len(tenants) == 0 {
		return domain.Tenant{}, ErrNotFound
	}
	if len(tenants) > 1 {
		return domain.Tenant{}, fmt.Errorf("multiple tenants exist; specify --tenant")
	}
	return tenants[0], nil
}

func (r Repo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,status,created_at FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) UpsertTenantConfig(ctx context.Context, tenantID string, cfg *config.Config) error {
	return upsertTenantConfig(ctx, r.DB, nil, tenantID, cfg)
}

func (r Repo) UpsertTenantConfigTx(ctx context.Context, tx *sql.Tx, tenantID string, cfg *config.Config) error {
	return upsertTenantConfig(ctx, nil, tx, tenantID, cfg)
}

func upsertTenantConfig(ctx context.Context, db *sql.DB, tx *sql.Tx, tenantID string, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal tenant config: %w", err)
	}
	query := `INSERT INTO tenant_configs(tenant_id,yaml,updated_at) VALUES (?,?,datetime('now'))
		ON CONFLICT(tenant_id) DO UPDATE SET yaml=excluded.yaml, updated_at=excluded.updated_at`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, tenantID, string(data))
	} else {
		_, err = db.ExecContext(ctx, query, tenantID, string(data))
	}
	return err
}

func (r Repo) GetTenantConfig(ctx context.Context, tenantID string) (*config.Config, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT yaml FROM tenant_configs WHERE tenant_id=?`, tenantID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return config.FromYAML([]byte(raw))
}

func (r Repo) InsertAccount(ctx context.Context, a domain.Account) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO accounts(id,tenant_id,name,industry,country,contact,email,phone,notes,lead_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.TenantID, a.Name, nullable(a.Industry), nullable(a.Country), nullable(a.Contact),
		nullable(a.Email), nullable(a.Phone), nullable(a.Notes), nullPtr(a.LeadID), a.CreatedAt, a.UpdatedAt)
	return err
}

func (r Repo) InsertAccountTx(ctx context.Context, tx *sql.Tx, a domain.Account) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO accounts(id,tenant_id,name,industry,country,contact,email,phone,notes,lead_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.TenantID, a.Name, nullable(a.Industry), nullable(a.Country), nullable(a.Contact),
		nullable(a.Email), nullable(a.Phone), nullable(a.Notes), nullPtr(a.LeadID), a.CreatedAt, a.UpdatedAt)
	return err
}

const accountCols = `id,tenant_id,name,COALESCE(industry,''),COALESCE(country,''),COALESCE(contact,''),COALESCE(email,''),COALESCE(phone,''),COALESCE(notes,''),lead_id,created_at,updated_at`

func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var a domain.Account
	var leadID sql.NullString
	err := scan(&a.ID, &a.TenantID, &a.Name, &a.Industry, &a.Country, &a.Contact,
		&a.Email, &a.Phone, &a.Notes, &leadID, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if leadID.Valid {
		a.LeadID = &leadID.String
	}
	return a, err
}

func (r Repo) GetAccount(ctx context.Context, tenantID, id string) (domain.Account, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanAccount(row.Scan)
}

func (r Repo) ListAccounts(ctx context.Context, tenantID string) ([]domain.Account, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE tenant_id=? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// UpdateAccount patches only the provided fields.
func (r Repo) UpdateAccount(ctx context.Context, tenantID, id string, patch map[string]any) error {
	var (
		fields []string
		args   []any
	)
	for _, col := range []string{"name", "industry", "country", "contact", "email", "phone", "notes"} {
		if v, ok := patch[col]; ok {
			fields = append(fields, col+"=?")
			args = append(args, v)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=datetime('now')")
	args = append(args, tenantID, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE accounts SET %s WHERE tenant_id=? AND id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteAccount(ctx context.Context, tenantID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM accounts WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertLeadTx(ctx context.Context, tx *sql.Tx, l domain.Lead) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO leads(id,tenant_id,company_name,contact,email,phone,source,status,owner_id,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.TenantID, l.CompanyName, nullable(l.Contact), nullable(l.Email), nullable(l.Phone),
		nullable(l.Source), l.Status, nullPtr(l.OwnerID), nullable(l.Notes), l.CreatedAt, l.UpdatedAt)
	return err
}

func (r Repo) InsertLead(ctx context.Context, l domain.Lead) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO leads(id,tenant_id,company_name,contact,email,phone,source,status,owner_id,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		l.ID, l.TenantID, l.CompanyName, nullable(l.Contact), nullable(l.Email), nullable(l.Phone),
		nullable(l.Source), l.Status, nullPtr(l.OwnerID), nullable(l.Notes), l.CreatedAt, l.UpdatedAt)
	return err
}

const leadCols = `id,tenant_id,company_name,COALESCE(contact,''),COALESCE(email,''),COALESCE(phone,''),COALESCE(source,''),status,owner_id,COALESCE(notes,''),created_at,updated_at`

func scanLead(scan func(dest ...any) error) (domain.Lead, error) {
	var l domain.Lead
	var ownerID sql.NullString
	err := scan(&l.ID, &l.TenantID, &l.CompanyName, &l.Contact, &l.Email, &l.Phone,
		&l.Source, &l.Status, &ownerID, &l.Notes, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if ownerID.Valid {
		l.OwnerID = &ownerID.String
	}
	return l, err
}

func (r Repo) GetLead(ctx context.Context, tenantID, id string) (domain.Lead, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+leadCols+` FROM leads WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanLead(row.Scan)
}

func (r Repo) ListLeads(ctx context.Context, tenantID, status string) ([]domain.Lead, error) {
	query := `SELECT ` + leadCols + ` FROM leads WHERE tenant_id=?`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (r Repo) UpdateLeadStatus(ctx context.Context, tx *sql.Tx, tenantID, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE leads SET status=?, updated_at=datetime('now') WHERE tenant_id=? AND id=?`, status, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateLead(ctx context.Context, tenantID, id string, patch map[string]any) error {
	var (
		fields []string
		args   []any
	)
	for _, col := range []string{"company_name", "contact", "email", "phone", "source", "owner_id", "notes"} {
		if v, ok := patch[col]; ok {
			fields = append(fields, col+"=?")
			args = append(args, v)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=datetime('now')")
	args = append(args, tenantID, id)
	res, err := r.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE leads SET %s WHERE tenant_id=? AND id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus groups rows of one lifecycle table by status. Table names
// are restricted to the known lifecycle tables.
func (r Repo) CountByStatus(ctx context.Context, table, tenantID string) (map[string]int, error) {
	switch table {
	case "leads", "quotes", "bookings", "invoices":
	default:
		return nil, fmt.Errorf("unsupported table %q", table)
	}
	rows, err := r.DB.QueryContext(ctx, fmt.Sprintf(`SELECT status, COUNT(*) FROM %s WHERE tenant_id=? GROUP BY status`, table), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
