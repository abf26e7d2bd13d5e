package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"pairsbot/internal/adapters/journal"
	"pairsbot/internal/adapters/logger"
	"pairsbot/internal/domain"
	"pairsbot/internal/ports"
)

func main() {
	dbPath := flag.String("db", "./data/pairsbot.db", "Path to the trade journal database")
	flag.Parse()

	appLogger := logger.NewStdLogger(logger.LevelWarn)

	store, err := journal.NewStore(journal.Config{
		DBPath: *dbPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("Error opening trade journal: %v", err)
	}
	defer store.Close()

	records, err := store.LoadAll(context.Background())
	if err != nil {
		log.Fatalf("Error loading trade records: %v", err)
	}

	if len(records) == 0 {
		log.Println("No trades recorded yet.")
		return
	}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "TradeID\tSide\tStatus\tEntered\tHeld\tEntryZ\tExitReason\tPnL\tFees\t")

	stats := calculateStats(records)
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.3f\t%s\t%s\t%s\t\n",
			rec.TradeID,
			rec.Entry.Side,
			rec.Status,
			rec.EntryTime.Format("2006-01-02 15:04"),
			holdDuration(rec),
			rec.Entry.ZScore,
			exitReason(rec),
			pnlString(rec),
			feesString(rec),
		)
	}
	w.Flush()

	fmt.Println()
	fmt.Printf("Trades: %d (%d completed, %d open)\n", stats.Total, stats.Completed, stats.Open)
	if stats.Reconciled > 0 {
		fmt.Printf("Win rate: %.1f%% over %d reconciled trades\n", stats.WinRate*100, stats.Reconciled)
		fmt.Printf("Total realized PnL: %.4f  Total fees: %.4f  Net: %.4f\n",
			stats.TotalPnL, stats.TotalFees, stats.TotalPnL-stats.TotalFees)
	}
	if stats.Unreconciled > 0 {
		fmt.Printf("Trades without attributed PnL: %d\n", stats.Unreconciled)
	}
}

// Stats aggregates journal-wide trade statistics.
type Stats struct {
	Total        int
	Completed    int
	Open         int
	Reconciled   int
	Unreconciled int
	Winning      int
	WinRate      float64
	TotalPnL     float64
	TotalFees    float64
}

func calculateStats(records []*ports.TradeRecord) Stats {
	var stats Stats
	stats.Total = len(records)
	for _, rec := range records {
		if rec.Status != domain.TradeStatusCompleted {
			stats.Open++
			continue
		}
		stats.Completed++
		if rec.PnL == nil || !rec.PnL.Available {
			stats.Unreconciled++
			continue
		}
		stats.Reconciled++
		stats.TotalPnL += rec.PnL.RealizedPnl
		stats.TotalFees += rec.PnL.TotalFees
		if rec.PnL.RealizedPnl-rec.PnL.TotalFees > 0 {
			stats.Winning++
		}
	}
	if stats.Reconciled > 0 {
		stats.WinRate = float64(stats.Winning) / float64(stats.Reconciled)
	}
	return stats
}

// holdDuration derives the holding time from the order audit trail; open
// trades report the time elapsed since entry.
func holdDuration(rec *ports.TradeRecord) string {
	if rec.Status != domain.TradeStatusCompleted {
		return time.Since(rec.EntryTime).Round(time.Minute).String()
	}
	if len(rec.Orders) == 0 {
		return "-"
	}
	last := rec.Orders[len(rec.Orders)-1].Timestamp
	if last.Before(rec.EntryTime) {
		return "-"
	}
	return last.Sub(rec.EntryTime).Round(time.Minute).String()
}

func exitReason(rec *ports.TradeRecord) string {
	if rec.Exit == nil {
		return "-"
	}
	return string(rec.Exit.Reason)
}

func pnlString(rec *ports.TradeRecord) string {
	if rec.PnL == nil {
		return "-"
	}
	if !rec.PnL.Available {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", rec.PnL.RealizedPnl)
}

func feesString(rec *ports.TradeRecord) string {
	if rec.PnL == nil || !rec.PnL.Available {
		return "-"
	}
	return fmt.Sprintf("%.4f", rec.PnL.TotalFees)
}
