package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"freightline/internal/domain"
)

func (r Repo) InsertBookingTx(ctx context.Context, tx *sql.Tx, b domain.BookingDraft) error {
	var metadata, commodities any
	var err error
	if len(b.MappingMetadata) > 0 {
		if metadata, err = marshalJSON(b.MappingMetadata); err != nil {
			return err
		}
	}
	if len(b.CommodityList) > 0 {
		if commodities, err = marshalJSON(b.CommodityList); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO bookings(id,tenant_id,quote_id,account_id,booking_number,status,source,origin,destination,incoterms,total_amount,currency,cargo_ready_date,container_qty,container_type_id,commodity_list_json,notes,mapping_metadata_json,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.TenantID, nullPtr(b.QuoteID), nullPtr(b.AccountID), b.BookingNumber, b.Status, b.Source,
		nullable(b.Origin), nullable(b.Destination), nullable(b.Incoterms), b.TotalAmount,
		nullable(b.Currency), nullable(b.CargoReadyDate), nullInt(b.ContainerQty),
		nullPtr(b.ContainerTypeID), commodities, nullable(b.Notes), metadata, b.CreatedAt, b.UpdatedAt)
	return err
}

const bookingCols = `id,tenant_id,quote_id,account_id,booking_number,status,source,COALESCE(origin,''),COALESCE(destination,''),COALESCE(incoterms,''),total_amount,COALESCE(currency,''),COALESCE(cargo_ready_date,''),container_qty,container_type_id,commodity_list_json,COALESCE(notes,''),mapping_metadata_json,created_at,updated_at`

func scanBooking(scan func(dest ...any) error) (domain.BookingDraft, error) {
	var b domain.BookingDraft
	var quoteID, accountID, containerType, commodities, metadata sql.NullString
	var qty sql.NullInt64
	err := scan(&b.ID, &b.TenantID, &quoteID, &accountID, &b.BookingNumber, &b.Status, &b.Source,
		&b.Origin, &b.Destination, &b.Incoterms, &b.TotalAmount, &b.Currency, &b.CargoReadyDate,
		&qty, &containerType, &commodities, &b.Notes, &metadata, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	if err != nil {
		return b, err
	}
	if quoteID.Valid {
		b.QuoteID = &quoteID.String
	}
	if accountID.Valid {
		b.AccountID = &accountID.String
	}
	if qty.Valid {
		n := int(qty.Int64)
		b.ContainerQty = &n
	}
	if containerType.Valid {
		b.ContainerTypeID = &containerType.String
	}
	if commodities.Valid && commodities.String != "" {
		if err := json.Unmarshal([]byte(commodities.String), &b.CommodityList); err != nil {
			return b, fmt.Errorf("parse commodity list: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &b.MappingMetadata); err != nil {
			return b, fmt.Errorf("parse mapping metadata: %w", err)
		}
	}
	return b, nil
}

func (r Repo) GetBooking(ctx context.Context, tenantID, id string) (domain.BookingDraft, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanBooking(row.Scan)
}

func (r Repo) ListBookings(ctx context.Context, tenantID, status string) ([]domain.BookingDraft, error) {
	query := `SELECT ` + bookingCols + ` FROM bookings WHERE tenant_id=?`
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
	var res []domain.BookingDraft
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func (r Repo) UpdateBookingStatus(ctx context.Context, tx *sql.Tx, tenantID, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status=?, updated_at=datetime('now') WHERE tenant_id=? AND id=?`, status, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertInvoiceTx(ctx context.Context, tx *sql.Tx, inv domain.Invoice) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO invoices(id,tenant_id,invoice_number,booking_id,account_id,amount,currency,status,issued_at,due_date) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		inv.ID, inv.TenantID, inv.InvoiceNumber, inv.BookingID, nullPtr(inv.AccountID),
		inv.Amount, inv.Currency, inv.Status, inv.IssuedAt, inv.DueDate)
	return err
}

const invoiceCols = `id,tenant_id,invoice_number,booking_id,account_id,amount,currency,status,issued_at,due_date`

func scanInvoice(scan func(dest ...any) error) (domain.Invoice, error) {
	var inv domain.Invoice
	var accountID sql.NullString
	err := scan(&inv.ID, &inv.TenantID, &inv.InvoiceNumber, &inv.BookingID, &accountID,
		&inv.Amount, &inv.Currency, &inv.Status, &inv.IssuedAt, &inv.DueDate)
	if err == sql.ErrNoRows {
		return inv, ErrNotFound
	}
	if accountID.Valid {
		inv.AccountID = &accountID.String
	}
	return inv, err
}

func (r Repo) GetInvoice(ctx context.Context, tenantID, id string) (domain.Invoice, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanInvoice(row.Scan)
}

func (r Repo) ListInvoices(ctx context.Context, tenantID string) ([]domain.Invoice, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE tenant_id=? ORDER BY issued_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

// CountInvoices returns how many invoices the tenant has issued, used to
// derive the next sequential invoice number.
func (r Repo) CountInvoicesTx(ctx context.Context, tx *sql.Tx, tenantID string) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE tenant_id=?`, tenantID).Scan(&n)
	return n, err
}

func (r Repo) UpdateInvoiceStatus(ctx context.Context, tx *sql.Tx, tenantID, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE invoices SET status=? WHERE tenant_id=? AND id=?`, status, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEvents returns the newest events first, optionally filtered by entity kind.
func (r Repo) ListEvents(ctx context.Context, tenantID, entityKind string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,ts,type,COALESCE(tenant_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE tenant_id=?`
	args := []any{tenantID}
	if entityKind != "" {
		query += ` AND entity_kind=?`
		args = append(args, entityKind)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.TenantID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
