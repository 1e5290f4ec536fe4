package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/gpt-futures-bot/internal/store"
	"github.com/ducminhle1904/gpt-futures-bot/internal/trading"
)

// analysis-report renders the bot's persisted state: the latest analysis per
// timeframe and the recent trade history, as console tables and optionally
// as an Excel workbook.
func main() {
	var (
		dataDir  = flag.String("data", "data", "Bot data directory")
		limit    = flag.Int("limit", 20, "Number of recent trades to show")
		xlsxPath = flag.String("xlsx", "", "Also write an Excel report to this path")
	)
	flag.Parse()

	st, err := store.New(filepath.Join(*dataDir, "analysis"))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	history, err := store.NewHistory(filepath.Join(*dataDir, "trades", "history.jsonl"))
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	records, err := history.Recent(*limit)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	analyses := collectAnalyses(st)
	renderAnalysisTable(analyses)
	fmt.Println()
	renderTradeTable(records)

	if *xlsxPath != "" {
		if err := writeWorkbook(*xlsxPath, analyses, records); err != nil {
			log.Fatalf("❌ Excel export failed: %v", err)
		}
		fmt.Printf("\n📄 Excel report written to %s\n", *xlsxPath)
	}
}

func collectAnalyses(st *store.Store) []*trading.Analysis {
	timeframes := append([]trading.Timeframe{}, trading.SourceTimeframes...)
	timeframes = append(timeframes, trading.TimeframeFinal)

	var out []*trading.Analysis
	for _, tf := range timeframes {
		if a := st.Get(tf); a != nil {
			out = append(out, a)
		}
	}
	return out
}

func renderAnalysisTable(analyses []*trading.Analysis) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Latest Analyses")
	t.AppendHeader(table.Row{"Timeframe", "Generated", "Phase", "Sentiment", "Risk",
		"Confidence", "Trend", "Suggestion", "Entry", "Stop", "TP1", "Lev", "Size%"})

	for _, a := range analyses {
		t.AppendRow(table.Row{
			a.SourceTimeframe,
			a.GeneratedTime().Format("01-02 15:04"),
			a.MarketPhase,
			a.OverallSentiment,
			a.RiskLevel,
			fmt.Sprintf("%.0f", a.Confidence),
			fmt.Sprintf("%.0f", a.TrendStrength),
			a.Signal.Suggestion,
			money(a.Signal.EntryPrice),
			money(a.Signal.StopLoss),
			money(a.Signal.TakeProfit1),
			a.Signal.Leverage,
			fmt.Sprintf("%.1f", a.Signal.PositionSizePct),
		})
	}
	if len(analyses) == 0 {
		t.AppendRow(table.Row{"no analyses yet"})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func renderTradeTable(records []*trading.TradeRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("Recent Trades")
	t.AppendHeader(table.Row{"Time", "Trigger", "Symbol", "Suggestion",
		"Entry", "Stop", "TP1", "Lev", "Size%", "Plan", "Actions", "Completed"})

	for _, r := range records {
		t.AppendRow(table.Row{
			r.Timestamp.Format("01-02 15:04"),
			r.Trigger,
			r.Symbol,
			r.Signal.Suggestion,
			money(r.Signal.EntryPrice),
			money(r.Signal.StopLoss),
			money(r.Signal.TakeProfit1),
			r.Signal.Leverage,
			fmt.Sprintf("%.1f", r.Signal.PositionSizePct),
			r.Plan.String(),
			len(r.Outcomes),
			r.Completed,
		})
	}
	if len(records) == 0 {
		t.AppendRow(table.Row{"no trades yet"})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

func money(v float64) string {
	if v == 0 {
		return "-"
	}
	return fmt.Sprintf("$%.2f", v)
}

// writeWorkbook exports both tables to one Excel file.
func writeWorkbook(path string, analyses []*trading.Analysis, records []*trading.TradeRecord) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const analysesSheet = "Analyses"
	const tradesSheet = "Trades"
	fx.SetSheetName(fx.GetSheetName(0), analysesSheet)
	fx.NewSheet(tradesSheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	if err := writeAnalysesSheet(fx, analysesSheet, headerStyle, analyses); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, tradesSheet, headerStyle, records); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func writeAnalysesSheet(fx *excelize.File, sheet string, headerStyle int, analyses []*trading.Analysis) error {
	headers := []string{"Timeframe", "Generated", "Phase", "Sentiment", "Risk",
		"Confidence", "Trend", "Suggestion", "Entry", "Stop", "TP1", "Leverage", "Size %", "Reasoning"}
	if err := writeHeader(fx, sheet, headerStyle, headers); err != nil {
		return err
	}

	for i, a := range analyses {
		row := i + 2
		values := []interface{}{
			string(a.SourceTimeframe),
			a.GeneratedTime().Format(time.RFC3339),
			string(a.MarketPhase),
			string(a.OverallSentiment),
			string(a.RiskLevel),
			a.Confidence,
			a.TrendStrength,
			string(a.Signal.Suggestion),
			a.Signal.EntryPrice,
			a.Signal.StopLoss,
			a.Signal.TakeProfit1,
			a.Signal.Leverage,
			a.Signal.PositionSizePct,
			a.Reasoning,
		}
		if err := writeRow(fx, sheet, row, values); err != nil {
			return err
		}
	}
	return nil
}

func writeTradesSheet(fx *excelize.File, sheet string, headerStyle int, records []*trading.TradeRecord) error {
	headers := []string{"Time", "Trigger", "Symbol", "Suggestion", "Entry", "Stop",
		"TP1", "Leverage", "Size %", "Plan", "Actions", "Completed"}
	if err := writeHeader(fx, sheet, headerStyle, headers); err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		values := []interface{}{
			r.Timestamp.Format(time.RFC3339),
			string(r.Trigger),
			r.Symbol,
			string(r.Signal.Suggestion),
			r.Signal.EntryPrice,
			r.Signal.StopLoss,
			r.Signal.TakeProfit1,
			r.Signal.Leverage,
			r.Signal.PositionSizePct,
			r.Plan.String(),
			len(r.Outcomes),
			r.Completed,
		}
		if err := writeRow(fx, sheet, row, values); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(fx *excelize.File, sheet string, style int, headers []string) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(fx *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
