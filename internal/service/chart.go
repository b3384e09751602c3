package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"tradingview-extract/internal/model"
)

// renderNetProfitChart renders a PNG bar chart of net profit per instrument
// next to the JSON output. Bars are green for profit and red for loss.
func (s *extractionService) renderNetProfitChart(report *model.Report, path string) error {
	bars := make([]chart.Value, 0, len(report.Results))
	for _, result := range report.Results {
		value, err := percentValue(result.NetProfit)
		if err != nil {
			continue
		}

		color := drawing.ColorFromHex("22c55e") // green-500
		if value < 0 {
			color = drawing.ColorFromHex("ef4444") // red-500
		}

		bars = append(bars, chart.Value{
			Label: result.Chart,
			Value: value,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
	}
	if len(bars) == 0 {
		return fmt.Errorf("no plottable net profit values")
	}

	graph := chart.BarChart{
		Title:    report.StrategyName + " net profit",
		Width:    120 * len(bars),
		Height:   400,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f%%", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("chart render failed: %w", err)
	}
	return nil
}

// percentValue turns a signed percentage string like "+15.2%" into a float.
func percentValue(s string) (float64, error) {
	cleaned := strings.TrimSuffix(strings.TrimSpace(s), "%")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimPrefix(cleaned, "+")
	return strconv.ParseFloat(cleaned, 64)
}
