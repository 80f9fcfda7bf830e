package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getDailyRevenue = `-- name: GetDailyRevenue :many
SELECT (payment_date AT TIME ZONE $4::text)::date AS day,
       COUNT(*)::bigint AS invoice_count,
       COALESCE(SUM(total_cost), 0)::numeric(14,2) AS revenue
FROM invoices
WHERE restaurant_id = $1
  AND payment_date >= $2
  AND payment_date < $3
GROUP BY day
ORDER BY day ASC
`

type GetDailyRevenueParams struct {
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	StartDate    pgtype.Timestamptz `json:"start_date"`
	EndDate      pgtype.Timestamptz `json:"end_date"`
	TimeZone     string             `json:"time_zone"`
}

type GetDailyRevenueRow struct {
	Day          pgtype.Date    `json:"day"`
	InvoiceCount int64          `json:"invoice_count"`
	Revenue      pgtype.Numeric `json:"revenue"`
}

func (q *Queries) GetDailyRevenue(ctx context.Context, arg GetDailyRevenueParams) ([]GetDailyRevenueRow, error) {
	rows, err := q.db.Query(ctx, getDailyRevenue,
		arg.RestaurantID,
		arg.StartDate,
		arg.EndDate,
		arg.TimeZone,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetDailyRevenueRow
	for rows.Next() {
		var i GetDailyRevenueRow
		if err := rows.Scan(&i.Day, &i.InvoiceCount, &i.Revenue); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
