package httpapi

import (
	"context"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/domain"
	"github.com/anshika-invatu/merchantwebapi-sub000/internal/validate"
)

const (
	intervalDaily   = "daily"
	intervalMonthly = "monthly"
)

type statPoint struct {
	Period           string  `json:"period"`
	Currency         string  `json:"currency"`
	TransactionCount int     `json:"transactionCount"`
	TotalAmount      float64 `json:"totalAmount"`
}

type merchantStats struct {
	MerchantID string      `json:"merchantID"`
	Interval   string      `json:"interval"`
	FromDate   string      `json:"fromDate"`
	ToDate     string      `json:"toDate"`
	Statistics []statPoint `json:"statistics"`
}

func (a *API) merchantStatistics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("merchantID")
	var (
		m                  domain.Merchant
		interval, from, to string
	)
	a.serve(w, r, route{op: "merchant.statistics"},
		step("validate", func(_ context.Context, x *exchange) error {
			if err := validate.UUID("merchantID", id); err != nil {
				return err
			}
			interval, from, to = x.query("interval"), x.query("fromDate"), x.query("toDate")
			var missing []string
			for _, f := range [][2]string{{"interval", interval}, {"fromDate", from}, {"toDate", to}} {
				if f[1] == "" {
					missing = append(missing, f[0])
				}
			}
			if len(missing) > 0 {
				return apierr.MissingFields(missing...)
			}
			if err := validate.OneOf("interval", interval, intervalDaily, intervalMonthly); err != nil {
				return err
			}
			_, _, err := validate.DateRange(from, to, a.now())
			return err
		}),
		a.identity(),
		a.authorizeMerchant(id, "", &m),
		step("aggregate", func(ctx context.Context, x *exchange) error {
			txs, err := a.svc.Order.AccountTransactions(ctx, m.ID, from, to)
			if err != nil {
				return err
			}
			x.reply(merchantStats{
				MerchantID: m.ID,
				Interval:   interval,
				FromDate:   from,
				ToDate:     to,
				Statistics: aggregate(txs, interval),
			})
			return nil
		}),
	)
}

// aggregate buckets transactions by day or month and currency.
func aggregate(txs []domain.AccountTransaction, interval string) []statPoint {
	keyLen := 10
	if interval == intervalMonthly {
		keyLen = 7
	}
	type key struct{ period, currency string }
	buckets := map[key]*statPoint{}
	for _, tx := range txs {
		if len(tx.TransactionDate) < keyLen {
			continue
		}
		k := key{tx.TransactionDate[:keyLen], tx.Currency}
		p, ok := buckets[k]
		if !ok {
			p = &statPoint{Period: k.period, Currency: k.currency}
			buckets[k] = p
		}
		p.TransactionCount++
		p.TotalAmount += tx.Amount
	}
	out := make([]statPoint, 0, len(buckets))
	for _, p := range buckets {
		p.TotalAmount = math.Round(p.TotalAmount*100) / 100
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

func (a *API) timestamp() string { return a.now().UTC().Format(time.RFC3339) }

func (a *API) today() string { return a.now().UTC().Format(validate.DateLayout) }
