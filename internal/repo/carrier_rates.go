package repo

import (
	"context"
	"database/sql"

	"freightline/internal/domain"
)

func (r Repo) InsertCarrierRateTx(ctx context.Context, tx *sql.Tx, cr domain.CarrierRate) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO carrier_rates(id,tenant_id,carrier_name,mode,origin_port,destination_port,transit_time_days,reliability_score,amount,currency,valid_until,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		cr.ID, cr.TenantID, cr.CarrierName, cr.Mode, cr.OriginPort, cr.DestinationPort,
		nullInt(cr.TransitTimeDays), nullFloat(cr.ReliabilityScore), cr.Amount, cr.Currency,
		nullPtr(cr.ValidUntil), cr.CreatedAt)
	return err
}

func (r Repo) InsertCarrierRate(ctx context.Context, cr domain.CarrierRate) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO carrier_rates(id,tenant_id,carrier_name,mode,origin_port,destination_port,transit_time_days,reliability_score,amount,currency,valid_until,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		cr.ID, cr.TenantID, cr.CarrierName, cr.Mode, cr.OriginPort, cr.DestinationPort,
		nullInt(cr.TransitTimeDays), nullFloat(cr.ReliabilityScore), cr.Amount, cr.Currency,
		nullPtr(cr.ValidUntil), cr.CreatedAt)
	return err
}

const rateCols = `id,tenant_id,carrier_name,mode,origin_port,destination_port,transit_time_days,reliability_score,amount,currency,valid_until,created_at`

func scanCarrierRate(scan func(dest ...any) error) (domain.CarrierRate, error) {
	var cr domain.CarrierRate
	var transit sql.NullInt64
	var reliability sql.NullFloat64
	var validUntil sql.NullString
	err := scan(&cr.ID, &cr.TenantID, &cr.CarrierName, &cr.Mode, &cr.OriginPort, &cr.DestinationPort,
		&transit, &reliability, &cr.Amount, &cr.Currency, &validUntil, &cr.CreatedAt)
	if err == sql.ErrNoRows {
		return cr, ErrNotFound
	}
	if transit.Valid {
		v := int(transit.Int64)
		cr.TransitTimeDays = &v
	}
	if reliability.Valid {
		v := reliability.Float64
		cr.ReliabilityScore = &v
	}
	if validUntil.Valid {
		cr.ValidUntil = &validUntil.String
	}
	return cr, err
}

func (r Repo) GetCarrierRate(ctx context.Context, tenantID, id string) (domain.CarrierRate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+rateCols+` FROM carrier_rates WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanCarrierRate(row.Scan)
}

// ListCarrierRates optionally filters by lane. Empty origin or destination
// matches every port.
func (r Repo) ListCarrierRates(ctx context.Context, tenantID, origin, destination string) ([]domain.CarrierRate, error) {
	query := `SELECT ` + rateCols + ` FROM carrier_rates WHERE tenant_id=?`
	args := []any{tenantID}
	if origin != "" {
		query += ` AND origin_port=?`
		args = append(args, origin)
	}
	if destination != "" {
		query += ` AND destination_port=?`
		args = append(args, destination)
	}
	query += ` ORDER BY amount ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CarrierRate
	for rows.Next() {
		cr, err := scanCarrierRate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, cr)
	}
	return res, rows.Err()
}

func (r Repo) DeleteCarrierRate(ctx context.Context, tenantID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM carrier_rates WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
