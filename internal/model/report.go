package model

import (
	"regexp"
	"strings"
)

// UnknownStrategy is used when no strategy header could be read from any image.
const UnknownStrategy = "Unknown Strategy"

// TestPeriod is the backtest date range printed in the report header.
type TestPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// ChartResult is one instrument's metric row within a report. Percentage
// fields keep their sign and percent symbol exactly as recognized.
type ChartResult struct {
	Chart             string  `json:"chart"`
	NetProfit         string  `json:"net_profit"`
	TotalClosedTrades int     `json:"total_closed_trades"`
	PercentProfitable string  `json:"percent_profitable"`
	ProfitFactor      float64 `json:"profit_factor"`
	MaxDrawdown       string  `json:"max_drawdown"`
	AvgTrade          string  `json:"avg_trade"`
	AvgBarsInTrade    int     `json:"avg_bars_in_trade"`
}

// HasMetrics reports whether the numeric row was recognized. A record
// without a net profit value is considered incomplete and is skipped.
func (c ChartResult) HasMetrics() bool {
	return c.NetProfit != ""
}

// Report is one strategy's extracted metrics document.
type Report struct {
	StrategyName string        `json:"strategy_name"`
	TestPeriod   TestPeriod    `json:"test_period"`
	Results      []ChartResult `json:"results"`
}

// Matches reports whether a parsed fragment belongs to this report.
func (r *Report) Matches(strategyName string, period TestPeriod) bool {
	return r.StrategyName == strategyName && r.TestPeriod == period
}

var unsafeFileChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SafeFileName derives the output JSON filename from the strategy name.
func (r *Report) SafeFileName() string {
	name := unsafeFileChars.ReplaceAllString(r.StrategyName, "")
	if strings.TrimSpace(name) == "" {
		name = "Unknown_Strategy"
	}
	return strings.ReplaceAll(name, " ", "_") + ".json"
}
