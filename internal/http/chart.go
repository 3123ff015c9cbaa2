package http

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"carteira/internal/core"
)

// RenderCashflowChart draws the running balance of a month as a PNG. Days
// without movement carry the previous balance so the line spans the whole
// month.
func RenderCashflowChart(month core.YearMonth, days []core.CashflowDay) ([]byte, error) {
	byDate := make(map[string]core.CashflowDay, len(days))
	for _, d := range days {
		byDate[d.Date] = d
	}

	rng := month.Range()
	var xs []time.Time
	var accumulated, net []float64
	running := decimal.Zero
	for t := rng.Start; t.Before(rng.End); t = t.AddDate(0, 0, 1) {
		dayNet := 0.0
		if d, ok := byDate[t.Format(core.DateLayout)]; ok {
			running = d.AccumulatedBalance
			dayNet = d.Balance.InexactFloat64()
		}
		xs = append(xs, t)
		accumulated = append(accumulated, running.InexactFloat64())
		net = append(net, dayNet)
	}

	balanceSeries := chart.TimeSeries{
		Name: "Saldo acumulado",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("6c5ce7"),
			StrokeWidth: 2.5,
		},
		XValues: xs,
		YValues: accumulated,
	}

	netSeries := chart.TimeSeries{
		Name: "Saldo do dia",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"),
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xs,
		YValues: net,
	}

	graph := chart.Chart{
		Title:  "Fluxo de caixa " + month.String(),
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return chart.TimeFromFloat64(f).Format("02/01")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Range: yRange(accumulated, net),
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("R$ %.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{balanceSeries, netSeries},
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

// yRange pads a flat series so the axis never has a zero delta.
func yRange(series ...[]float64) chart.Range {
	lo, hi := 0.0, 0.0
	for _, s := range series {
		for _, v := range s {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi-lo < 1 {
		lo, hi = lo-1, hi+1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}
