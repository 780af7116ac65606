package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"tradeview/internal/backtest"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

func money(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// signed renders a percentage with an explicit sign, green when positive.
func signed(v float64) string {
	s := fmt.Sprintf("%+.2f%%", v)
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	}
	return s
}

// signedRatio is signed for ratios that may have overflowed to +Inf.
func signedRatio(r backtest.Ratio) string {
	if r.IsInf() {
		return gainStyle.Render("+∞")
	}
	return signed(float64(r))
}

func ratio(r backtest.Ratio) string {
	if r.IsInf() {
		return "∞"
	}
	return fmt.Sprintf("%.2f", float64(r))
}

// renderSummary formats one report as a bordered block.
func renderSummary(req backtest.Request, rep *backtest.Report) string {
	title := headerStyle.Render(fmt.Sprintf("%s  %s", req.Symbol, req.Strategy))
	if rep.NoData {
		return lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(lossStyle.Render(rep.Error)))
	}

	row := func(label, value string) string {
		return fmt.Sprintf("%-22s %s", dimStyle.Render(label), value)
	}
	lines := []string{
		row("Period", fmt.Sprintf("%s .. %s (%d bars)", rep.StartDate, rep.EndDate, rep.TradingDays)),
		row("Initial capital", money(rep.InitialCapital)),
		row("Final value", money(rep.FinalValue)),
		row("Total return", signed(rep.ReturnPct)),
		row("Annualized return", signedRatio(rep.AnnualReturnPct)),
		row("Max drawdown", fmt.Sprintf("%.2f%%", rep.MaxDrawdownPct)),
		row("Sharpe ratio", ratio(rep.SharpeRatio)),
		"",
		row("Trades", fmt.Sprintf("%d (%d won, %d lost)", rep.TotalTrades, rep.WonTrades, rep.LostTrades)),
		row("Win rate", fmt.Sprintf("%.2f%%", rep.WinRate)),
		row("Avg profit", signed(rep.AvgProfitPct)),
		row("Best / worst", signed(rep.MaxProfitPct)+" / "+signed(rep.MaxLossPct)),
		row("Profit factor", ratio(rep.ProfitFactor)),
		row("Max losing streak", fmt.Sprintf("%d", rep.MaxConsecutiveLosses)),
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, boxStyle.Render(strings.Join(lines, "\n")))
}
