// Package parser maps raw OCR text onto report fields. It knows nothing
// about images or engines; it only scans text for known labels and shapes.
package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"tradingview-extract/internal/model"
)

// Result is the outcome of parsing one OCR text block. Report level fields
// are present only when the block contained them; Metrics fields that could
// not be recognized keep their zero value.
type Result struct {
	StrategyName string
	TestPeriod   model.TestPeriod
	Metrics      model.ChartResult
}

type valueShape int

const (
	shapePercent valueShape = iota
	shapeInteger
	shapeDecimal
)

var shapePatterns = map[valueShape]string{
	shapePercent: `[+-]?[0-9][0-9,]*(?:\.[0-9]+)?%`,
	shapeInteger: `[0-9][0-9,]*`,
	shapeDecimal: `[+-]?[0-9]+(?:\.[0-9]+)?`,
}

// fieldRule binds a report label to the value shape expected after it and
// the setter that stores the typed value. Rules are applied in order, one
// pass per text block; the first occurrence of a label wins.
type fieldRule struct {
	label  string
	shape  valueShape
	assign func(*model.ChartResult, string)
	re     *regexp.Regexp
}

func newFieldRule(label string, shape valueShape, assign func(*model.ChartResult, string)) fieldRule {
	re := regexp.MustCompile(`(?i)` + strings.ReplaceAll(regexp.QuoteMeta(label), " ", `\s+`) + `\s*:?\s*(` + shapePatterns[shape] + `)`)
	return fieldRule{label: label, shape: shape, assign: assign, re: re}
}

var fieldRules = []fieldRule{
	newFieldRule("Net Profit", shapePercent, func(c *model.ChartResult, v string) { c.NetProfit = v }),
	newFieldRule("Total Closed Trades", shapeInteger, func(c *model.ChartResult, v string) {
		if n, err := strconv.Atoi(strings.ReplaceAll(v, ",", "")); err == nil {
			c.TotalClosedTrades = n
		}
	}),
	newFieldRule("Percent Profitable", shapePercent, func(c *model.ChartResult, v string) { c.PercentProfitable = v }),
	newFieldRule("Profit Factor", shapeDecimal, func(c *model.ChartResult, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ProfitFactor = f
		}
	}),
	newFieldRule("Max Drawdown", shapePercent, func(c *model.ChartResult, v string) { c.MaxDrawdown = v }),
	newFieldRule("Avg Trade", shapePercent, func(c *model.ChartResult, v string) { c.AvgTrade = v }),
	newFieldRule("Avg Bars In Trade", shapeInteger, func(c *model.ChartResult, v string) {
		if n, err := strconv.Atoi(strings.ReplaceAll(v, ",", "")); err == nil {
			c.AvgBarsInTrade = n
		}
	}),
}

var (
	strategyTrailingNoise = regexp.MustCompile(`[©)@]+$`)
	testPeriodPattern     = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*[-–—]+\s*(\d{4}-\d{2}-\d{2})`)
	symbolPattern         = regexp.MustCompile(`(?i)([A-Z0-9]+USDT)`)

	// metricsRowPattern matches the single metrics row of a deep backtesting
	// report once OCR noise has been stripped: absolute values in USDT
	// interleaved with signed percentages, then the bars-in-trade count.
	metricsRowPattern = regexp.MustCompile(
		`^\s*(-?[0-9,.]+)\s*USDT\s*(-?[0-9.]+%)\.?\s+` +
			`(-?[0-9,.]+)\s+(-?[0-9.]+%)\.?\s+` +
			`(-?[0-9.]+)\s+` +
			`(-?[0-9,.]+)\s*USDT\s*(-?[0-9.]+%)\.?\s+` +
			`(-?[0-9,.]+)\s*USDT\s*(-?[0-9.]+%)\.?\s+(\d+)`)

	rowNoiseReplacer = strings.NewReplacer("@", "", "=", "", "‘", "", "’", "", "—", "-")
)

// Parse scans one OCR text block for report level fields and chart metrics.
// Missing labels leave their fields absent; Parse never fails.
func Parse(text string) Result {
	var res Result

	lines := splitLines(text)

	// The report header line reads "<strategy> Deep Backtesting".
	for _, line := range lines {
		if idx := strings.Index(line, "Deep Backtesting"); idx >= 0 {
			name := strings.TrimSpace(line[:idx])
			name = strings.TrimSpace(strategyTrailingNoise.ReplaceAllString(name, ""))
			res.StrategyName = name
			break
		}
	}

	for _, line := range lines {
		if m := testPeriodPattern.FindStringSubmatch(line); m != nil {
			res.TestPeriod = model.TestPeriod{StartDate: m[1], EndDate: m[2]}
			break
		}
	}

	for _, rule := range fieldRules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			rule.assign(&res.Metrics, m[1])
		}
	}

	if !res.Metrics.HasMetrics() {
		parseMetricsRow(lines, &res.Metrics)
	}

	return res
}

// parseMetricsRow recovers metrics from the raw table row when no labeled
// values were present. The candidate line is searched bottom up since the
// numeric row sits underneath the header text.
func parseMetricsRow(lines []string, metrics *model.ChartResult) {
	var candidate string
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if strings.Contains(line, "USDT") && strings.Contains(line, "%") && strings.ContainsAny(line, "0123456789") {
			candidate = line
			break
		}
	}
	if candidate == "" {
		return
	}

	clean := strings.TrimSpace(rowNoiseReplacer.Replace(candidate))

	m := metricsRowPattern.FindStringSubmatch(clean)
	if m == nil {
		return
	}

	netProfitUSDT := strings.TrimSpace(m[1])
	netProfitPct := strings.TrimSpace(m[2])
	// OCR regularly loses the minus sign on the percentage while keeping it
	// on the absolute value.
	if strings.HasPrefix(netProfitUSDT, "-") && !strings.HasPrefix(netProfitPct, "-") {
		netProfitPct = "-" + netProfitPct
	}
	metrics.NetProfit = netProfitPct

	if n, err := strconv.Atoi(strings.ReplaceAll(m[3], ",", "")); err == nil {
		metrics.TotalClosedTrades = n
	}

	metrics.PercentProfitable = strings.TrimSpace(m[4])

	if f, err := strconv.ParseFloat(m[5], 64); err == nil {
		metrics.ProfitFactor = f
	}

	metrics.MaxDrawdown = strings.TrimSpace(m[7])
	metrics.AvgTrade = strings.TrimSpace(m[9])

	if n, err := strconv.Atoi(m[10]); err == nil {
		metrics.AvgBarsInTrade = n
	}
}

// ChartName derives the instrument name from the image filename, e.g.
// "btcusdt_2024.png" becomes "BTCUSDT". Files without a recognizable pair
// symbol fall back to the file stem.
func ChartName(filename string) string {
	base := filepath.Base(filename)
	if m := symbolPattern.FindStringSubmatch(base); m != nil {
		return strings.ToUpper(m[1])
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
