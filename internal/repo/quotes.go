package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"freightline/internal/domain"
)

func marshalJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func locationJSON(loc *domain.Location) (any, error) {
	if loc == nil {
		return nil, nil
	}
	return marshalJSON(loc)
}

func parseLocation(raw sql.NullString) (*domain.Location, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var loc domain.Location
	if err := json.Unmarshal([]byte(raw.String), &loc); err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	return &loc, nil
}

func (r Repo) InsertQuoteTx(ctx context.Context, tx *sql.Tx, q domain.Quote) error {
	origin, err := locationJSON(q.OriginPort)
	if err != nil {
		return err
	}
	dest, err := locationJSON(q.DestinationPort)
	if err != nil {
		return err
	}
	originLoc, err := locationJSON(q.OriginLocation)
	if err != nil {
		return err
	}
	destLoc, err := locationJSON(q.DestinationLoc)
	if err != nil {
		return err
	}
	var items any
	if len(q.LineItems) > 0 {
		if items, err = marshalJSON(q.LineItems); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO quotes(id,tenant_id,quote_number,account_id,status,total_amount,currency,origin_port_json,destination_port_json,origin_location_json,destination_loc_json,incoterms,valid_until,cargo_ready_date,container_qty,container_type_id,service_level,line_items_json,notes,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		q.ID, q.TenantID, q.QuoteNumber, nullPtr(q.AccountID), q.Status, q.TotalAmount, q.Currency,
		origin, dest, originLoc, destLoc, nullable(q.Incoterms), nullPtr(q.ValidUntil),
		nullPtr(q.CargoReadyDate), nullInt(q.ContainerQty), nullPtr(q.ContainerTypeID),
		nullable(q.ServiceLevel), items, nullable(q.Notes), q.CreatedAt, q.UpdatedAt)
	return err
}

const quoteCols = `id,tenant_id,quote_number,account_id,status,total_amount,currency,origin_port_json,destination_port_json,origin_location_json,destination_loc_json,COALESCE(incoterms,''),valid_until,cargo_ready_date,container_qty,container_type_id,COALESCE(service_level,''),line_items_json,COALESCE(notes,''),created_at,updated_at`

func scanQuote(scan func(dest ...any) error) (domain.Quote, error) {
	var q domain.Quote
	var accountID, containerType, validUntil, cargoReady sql.NullString
	var originPort, destPort, originLoc, destLoc, items sql.NullString
	var qty sql.NullInt64
	err := scan(&q.ID, &q.TenantID, &q.QuoteNumber, &accountID, &q.Status, &q.TotalAmount, &q.Currency,
		&originPort, &destPort, &originLoc, &destLoc, &q.Incoterms, &validUntil, &cargoReady,
		&qty, &containerType, &q.ServiceLevel, &items, &q.Notes, &q.CreatedAt, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return q, ErrNotFound
	}
	if err != nil {
		return q, err
	}
	if accountID.Valid {
		q.AccountID = &accountID.String
	}
	if validUntil.Valid {
		q.ValidUntil = &validUntil.String
	}
	if cargoReady.Valid {
		q.CargoReadyDate = &cargoReady.String
	}
	if qty.Valid {
		n := int(qty.Int64)
		q.ContainerQty = &n
	}
	if containerType.Valid {
		q.ContainerTypeID = &containerType.String
	}
	if q.OriginPort, err = parseLocation(originPort); err != nil {
		return q, err
	}
	if q.DestinationPort, err = parseLocation(destPort); err != nil {
		return q, err
	}
	if q.OriginLocation, err = parseLocation(originLoc); err != nil {
		return q, err
	}
	if q.DestinationLoc, err = parseLocation(destLoc); err != nil {
		return q, err
	}
	if items.Valid && items.String != "" {
		if err := json.Unmarshal([]byte(items.String), &q.LineItems); err != nil {
			return q, fmt.Errorf("parse line items: %w", err)
		}
	}
	return q, nil
}

func (r Repo) GetQuote(ctx context.Context, tenantID, id string) (domain.Quote, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+quoteCols+` FROM quotes WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanQuote(row.Scan)
}

func (r Repo) ListQuotes(ctx context.Context, tenantID, status string) ([]domain.Quote, error) {
	query := `SELECT ` + quoteCols + ` FROM quotes WHERE tenant_id=?`
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
	var res []domain.Quote
	for rows.Next() {
		q, err := scanQuote(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

func (r Repo) CountQuotes(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes WHERE tenant_id=?`, tenantID).Scan(&n)
	return n, err
}

func (r Repo) UpdateQuoteStatus(ctx context.Context, tx *sql.Tx, tenantID, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE quotes SET status=?, updated_at=datetime('now') WHERE tenant_id=? AND id=?`, status, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateQuoteTotalTx(ctx context.Context, tx *sql.Tx, tenantID, id string, total float64) error {
	res, err := tx.ExecContext(ctx, `UPDATE quotes SET total_amount=?, updated_at=datetime('now') WHERE tenant_id=? AND id=?`, total, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertQuoteOptionTx(ctx context.Context, tx *sql.Tx, opt domain.QuoteOption) error {
	var details any
	if len(opt.RankDetails) > 0 {
		var err error
		if details, err = marshalJSON(opt.RankDetails); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO quote_options(id,tenant_id,quote_id,carrier_rate_id,option_name,carrier_name,total_amount,total_sell,total_buy,margin_amount,margin_percentage,currency,transit_time_days,reliability_score,rank_score,rank_details_json,is_recommended,recommendation_reason,status,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		opt.ID, opt.TenantID, opt.QuoteID, nullPtr(opt.CarrierRateID), opt.OptionName, nullable(opt.CarrierName),
		opt.TotalAmount, opt.TotalSell, opt.TotalBuy, opt.MarginAmount, opt.MarginPercentage, opt.Currency,
		nullInt(opt.TransitTimeDays), nullFloat(opt.ReliabilityScore), nullInt(opt.RankScore), details,
		opt.IsRecommended, nullable(opt.RecommendationReason), opt.Status, opt.CreatedAt)
	return err
}

const optionCols = `id,tenant_id,quote_id,carrier_rate_id,option_name,COALESCE(carrier_name,''),total_amount,total_sell,total_buy,margin_amount,margin_percentage,currency,transit_time_days,reliability_score,rank_score,rank_details_json,is_recommended,COALESCE(recommendation_reason,''),status,created_at`

func scanQuoteOption(scan func(dest ...any) error) (domain.QuoteOption, error) {
	var opt domain.QuoteOption
	var rateID sql.NullString
	var transit, score sql.NullInt64
	var reliability sql.NullFloat64
	var details sql.NullString
	err := scan(&opt.ID, &opt.TenantID, &opt.QuoteID, &rateID, &opt.OptionName, &opt.CarrierName,
		&opt.TotalAmount, &opt.TotalSell, &opt.TotalBuy, &opt.MarginAmount, &opt.MarginPercentage,
		&opt.Currency, &transit, &reliability, &score, &details, &opt.IsRecommended,
		&opt.RecommendationReason, &opt.Status, &opt.CreatedAt)
	if err == sql.ErrNoRows {
		return opt, ErrNotFound
	}
	if err != nil {
		return opt, err
	}
	if rateID.Valid {
		opt.CarrierRateID = &rateID.String
	}
	if transit.Valid {
		v := int(transit.Int64)
		opt.TransitTimeDays = &v
	}
	if reliability.Valid {
		v := reliability.Float64
		opt.ReliabilityScore = &v
	}
	if score.Valid {
		v := int(score.Int64)
		opt.RankScore = &v
	}
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &opt.RankDetails); err != nil {
			return opt, fmt.Errorf("parse rank details: %w", err)
		}
	}
	return opt, nil
}

func (r Repo) GetQuoteOption(ctx context.Context, tenantID, id string) (domain.QuoteOption, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+optionCols+` FROM quote_options WHERE tenant_id=? AND id=?`, tenantID, id)
	return scanQuoteOption(row.Scan)
}

func (r Repo) ListQuoteOptions(ctx context.Context, tenantID, quoteID string) ([]domain.QuoteOption, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+optionCols+` FROM quote_options WHERE tenant_id=? AND quote_id=? ORDER BY created_at ASC`, tenantID, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.QuoteOption
	for rows.Next() {
		opt, err := scanQuoteOption(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, opt)
	}
	return res, rows.Err()
}

// UpdateOptionRankingTx persists scoring annotations on one option.
func (r Repo) UpdateOptionRankingTx(ctx context.Context, tx *sql.Tx, tenantID, id string, ranked domain.RankedOption) error {
	details, err := marshalJSON(ranked.RankDetails)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE quote_options SET rank_score=?, rank_details_json=?, is_recommended=?, recommendation_reason=? WHERE tenant_id=? AND id=?`,
		ranked.RankScore, details, ranked.IsRecommended, nullable(ranked.RecommendationReason), tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateOptionStatusTx(ctx context.Context, tx *sql.Tx, tenantID, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE quote_options SET status=? WHERE tenant_id=? AND id=?`, status, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertChargeTx(ctx context.Context, tx *sql.Tx, c domain.ChargeLine) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO quote_charges(id,tenant_id,option_id,leg_id,side,category_id,basis_id,currency_id,unit,quantity,rate,amount,note) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.TenantID, c.OptionID, nullPtr(c.LegID), c.Side, c.CategoryID, c.BasisID,
		nullable(c.CurrencyID), nullable(c.Unit), c.Quantity, c.Rate, c.Amount, nullable(c.Note))
	return err
}

func (r Repo) ListCharges(ctx context.Context, tenantID, optionID string) ([]domain.ChargeLine, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,tenant_id,option_id,leg_id,side,category_id,basis_id,COALESCE(currency_id,''),COALESCE(unit,''),quantity,rate,amount,COALESCE(note,'') FROM quote_charges WHERE tenant_id=? AND option_id=? ORDER BY rowid ASC`, tenantID, optionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ChargeLine
	for rows.Next() {
		var c domain.ChargeLine
		var legID sql.NullString
		if err := rows.Scan(&c.ID, &c.TenantID, &c.OptionID, &legID, &c.Side, &c.CategoryID, &c.BasisID,
			&c.CurrencyID, &c.Unit, &c.Quantity, &c.Rate, &c.Amount, &c.Note); err != nil {
			return nil, err
		}
		if legID.Valid {
			c.LegID = &legID.String
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
