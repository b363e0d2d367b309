package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alanyoungcy/scoretrader/internal/domain"
)

// reportTradeLimit caps the trade table.
const reportTradeLimit = 50

// WriteReport prints the trade summary, the latest metrics snapshot and the
// most recent trades from the mirror.
func WriteReport(ctx context.Context, out io.Writer, history domain.HistoryReader) error {
	sum, err := history.TradeSummary(ctx)
	if err != nil {
		return fmt.Errorf("report: summary: %w", err)
	}
	fmt.Fprintln(out, "Summary")
	summary := tablewriter.NewWriter(out)
	summary.Header("Trades", "Closed", "Wins", "Losses", "Win rate", "Total PnL", "Best", "Worst")
	summary.Append(
		strconv.Itoa(sum.Total),
		strconv.Itoa(sum.Closed),
		strconv.Itoa(sum.Wins),
		strconv.Itoa(sum.Losses),
		pct(winRate(sum)),
		money(sum.TotalPnL),
		money(sum.BestPnL),
		money(sum.WorstPnL),
	)
	summary.Render()

	snap, err := history.LatestSnapshot(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return fmt.Errorf("report: snapshot: %w", err)
	default:
		fmt.Fprintf(out, "\nLatest snapshot (%s)\n", snap.TakenAt.Format(time.RFC3339))
		tbl := tablewriter.NewWriter(out)
		tbl.Header("Daily PnL", "Exposure", "Breaker", "Fill rate", "p95 evt->order", "Slippage bps", "Healthy")
		tbl.Append(
			money(snap.Risk.DailyPnL),
			money(snap.Risk.TotalExposure),
			strconv.FormatBool(snap.Risk.CircuitBreakerActive),
			pct(snap.Telemetry.FillRate),
			fmt.Sprintf("%.0fms", snap.Telemetry.P95EventToOrderMs),
			fmt.Sprintf("%.1f", snap.Telemetry.AvgSlippageBps),
			strconv.FormatBool(snap.Telemetry.Healthy),
		)
		tbl.Render()
	}

	trades, err := history.ListTrades(ctx, domain.ListOpts{Limit: reportTradeLimit})
	if err != nil {
		return fmt.Errorf("report: trades: %w", err)
	}
	fmt.Fprintf(out, "\nRecent trades (%d)\n", len(trades))
	tbl := tablewriter.NewWriter(out)
	tbl.Header("Entry", "Contest", "Market", "Side", "Size", "Entry px", "Exit px", "PnL", "Exit reason")
	for _, t := range trades {
		exitPx, pnl := "-", "-"
		if t.ExitPrice != nil {
			exitPx = strconv.FormatFloat(*t.ExitPrice, 'f', 2, 64)
		}
		if t.PnL != nil {
			pnl = money(*t.PnL)
		}
		tbl.Append(
			t.EntryTime.Format("01-02 15:04"),
			t.ContestID,
			t.MarketID,
			string(t.Side)+" "+string(t.Outcome),
			strconv.FormatFloat(t.Size, 'f', 2, 64),
			strconv.FormatFloat(t.EntryPrice, 'f', 2, 64),
			exitPx,
			pnl,
			t.ExitReason,
		)
	}
	tbl.Render()
	return nil
}

func winRate(s domain.TradeSummary) float64 {
	if s.Closed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closed)
}

func money(v float64) string { return fmt.Sprintf("$%.2f", v) }

func pct(v float64) string { return fmt.Sprintf("%.1f%%", v*100) }
