package yahoo

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/adishahh/indian-market-ml-platform/internal/contracts"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quote `json:"quote"`
	} `json:"indicators"`
}

// quote arrays hold nulls for halted sessions, hence pointers
type quote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// sessionDate converts a bar timestamp to its exchange-local calendar date
func (r *chartResult) sessionDate(i int) time.Time {
	local := time.Unix(r.Timestamp[i]+r.Meta.GMTOffset, 0).UTC()
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r *chartResult) quote() (*quote, error) {
	if len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: indicators.quote absent", contracts.ErrSchemaMismatch)
	}
	q := &r.Indicators.Quote[0]
	if q.Close == nil {
		return nil, fmt.Errorf("%w: close column absent", contracts.ErrSchemaMismatch)
	}
	if len(q.Close) != len(r.Timestamp) {
		return nil, fmt.Errorf("%w: %d closes for %d timestamps", contracts.ErrSchemaMismatch, len(q.Close), len(r.Timestamp))
	}
	return q, nil
}

// bars converts the payload to price bars.
// Null prices become NaN and null volumes -1; the quality validator handles both.
func (r *chartResult) bars() ([]contracts.PriceBar, []string, error) {
	q, err := r.quote()
	if err != nil {
		return nil, nil, err
	}

	var missing []string
	column := func(name string, vals []*float64) []*float64 {
		if len(vals) != len(r.Timestamp) {
			missing = append(missing, name)
			return q.Close
		}
		return vals
	}
	open := column("open", q.Open)
	high := column("high", q.High)
	low := column("low", q.Low)

	volumeMissing := len(q.Volume) != len(r.Timestamp)
	if volumeMissing {
		missing = append(missing, "volume")
	}

	bars := make([]contracts.PriceBar, 0, len(r.Timestamp))
	for i := range r.Timestamp {
		bar := contracts.PriceBar{
			Date:   r.sessionDate(i),
			Open:   deref(open[i]),
			High:   deref(high[i]),
			Low:    deref(low[i]),
			Close:  deref(q.Close[i]),
			Volume: 0,
		}
		if !volumeMissing {
			if q.Volume[i] == nil {
				bar.Volume = -1
			} else {
				bar.Volume = *q.Volume[i]
			}
		}
		bars = append(bars, bar)
	}

	return bars, missing, nil
}

// levels converts the payload to index closes, skipping null sessions
func (r *chartResult) levels() ([]contracts.IndexLevel, error) {
	q, err := r.quote()
	if err != nil {
		return nil, err
	}

	levels := make([]contracts.IndexLevel, 0, len(r.Timestamp))
	seen := make(map[time.Time]int, len(r.Timestamp))
	for i := range r.Timestamp {
		v := deref(q.Close[i])
		if math.IsNaN(v) || v <= 0 {
			continue
		}
		d := r.sessionDate(i)
		if idx, ok := seen[d]; ok {
			levels[idx].Close = v
			continue
		}
		seen[d] = len(levels)
		levels = append(levels, contracts.IndexLevel{Date: d, Close: v})
	}
	return levels, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

type searchResponse struct {
	News []struct {
		Title               string `json:"title"`
		Publisher           string `json:"publisher"`
		ProviderPublishTime int64  `json:"providerPublishTime"`
	} `json:"news"`
}

func (s *searchResponse) items(symbol string) []contracts.NewsItem {
	items := make([]contracts.NewsItem, 0, len(s.News))
	for _, n := range s.News {
		title := strings.TrimSpace(n.Title)
		if title == "" || n.ProviderPublishTime == 0 {
			continue
		}
		published := time.Unix(n.ProviderPublishTime, 0).UTC()
		y, m, d := published.Date()
		items = append(items, contracts.NewsItem{
			Date:     time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Symbol:   symbol,
			Headline: title,
			Source:   n.Publisher,
		})
	}
	return items
}
