package app_test

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbitrageDomain "github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-bot/business/ledger/app"
	"github.com/fd1az/arbitrage-bot/business/ledger/domain"
	venueDomain "github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/logger"
	"github.com/fd1az/arbitrage-bot/internal/money"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

func testOpportunity() arbitrageDomain.Opportunity {
	instrument, _ := money.ParseInstrument("BTC/USDT")
	return arbitrageDomain.Opportunity{
		Instrument:    instrument,
		BuyVenue:      "alpha",
		SellVenue:     "beta",
		BuyPrice:      decimal.NewFromInt(100),
		SellPrice:     decimal.NewFromInt(101),
		Amount:        decimal.NewFromInt(1),
		ProfitAmount:  decimal.NewFromFloat(0.8),
		ProfitPercent: decimal.NewFromFloat(0.8),
		Timestamp:     time.Now(),
	}
}

func TestLedger_RecordStartThenComplete(t *testing.T) {
	cfg := app.Config{FilePath: filepath.Join(t.TempDir(), "ledger.json"), OrphanThreshold: time.Hour}
	l := app.New(cfg, testLogger())

	opp := testOpportunity()
	tradeKey, err := l.RecordStart(opp)
	if err != nil {
		t.Fatalf("RecordStart: %v", err)
	}
	if tradeKey != opp.TradeKey() {
		t.Errorf("tradeKey = %q, want %q", tradeKey, opp.TradeKey())
	}

	buyResult := &venueDomain.OrderResult{
		Venue:           opp.BuyVenue,
		FilledAmount:    opp.Amount,
		RequestedAmount: opp.Amount,
		AvgPrice:        opp.BuyPrice,
	}
	if err := l.RecordBuyExecuted(tradeKey, buyResult); err != nil {
		t.Fatalf("RecordBuyExecuted: %v", err)
	}

	sellResult := &venueDomain.OrderResult{
		Venue:           opp.SellVenue,
		FilledAmount:    opp.Amount,
		RequestedAmount: opp.Amount,
		AvgPrice:        opp.SellPrice,
	}
	if err := l.RecordComplete(tradeKey, true, sellResult, ""); err != nil {
		t.Fatalf("RecordComplete: %v", err)
	}

	// A completed trade is removed from the active set, so recovering
	// a second Ledger instance from the same file should find nothing
	// to resume or investigate.
	l2 := app.New(cfg, testLogger())
	result, err := l2.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(result.Resumable) != 0 || len(result.Orphaned) != 0 {
		t.Errorf("expected no active trades after completion, got resumable=%d orphaned=%d", len(result.Resumable), len(result.Orphaned))
	}
}

func TestLedger_RecoverClassifiesOrphans(t *testing.T) {
	cfg := app.Config{FilePath: filepath.Join(t.TempDir(), "ledger.json"), OrphanThreshold: 10 * time.Millisecond}
	l := app.New(cfg, testLogger())

	opp := testOpportunity()
	if _, err := l.RecordStart(opp); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	l2 := app.New(cfg, testLogger())
	result, err := l2.Recover()
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if len(result.Orphaned) != 1 {
		t.Fatalf("expected 1 orphaned entry, got %d", len(result.Orphaned))
	}
	if len(result.Resumable) != 0 {
		t.Errorf("expected 0 resumable entries, got %d", len(result.Resumable))
	}
}

func TestLedger_RecoverMissingFileStartsEmpty(t *testing.T) {
	cfg := app.Config{FilePath: filepath.Join(t.TempDir(), "does-not-exist.json"), OrphanThreshold: time.Hour}
	l := app.New(cfg, testLogger())

	result, err := l.Recover()
	if err != nil {
		t.Fatalf("Recover on missing file should not error: %v", err)
	}
	if len(result.Resumable) != 0 || len(result.Orphaned) != 0 {
		t.Error("expected empty recovery result")
	}
}

func TestLedger_RecordCompleteUnknownTradeKeyErrors(t *testing.T) {
	cfg := app.Config{FilePath: filepath.Join(t.TempDir(), "ledger.json"), OrphanThreshold: time.Hour}
	l := app.New(cfg, testLogger())

	if err := l.RecordComplete("nonexistent", true, nil, ""); err == nil {
		t.Error("expected error completing an unknown tradeKey")
	}
}

func TestLedger_AcknowledgeOrphanRemovesEntry(t *testing.T) {
	cfg := app.Config{FilePath: filepath.Join(t.TempDir(), "ledger.json"), OrphanThreshold: time.Hour}
	l := app.New(cfg, testLogger())

	opp := testOpportunity()
	tradeKey, err := l.RecordStart(opp)
	if err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	if err := l.AcknowledgeOrphan(tradeKey); err != nil {
		t.Fatalf("AcknowledgeOrphan: %v", err)
	}
	if err := l.AcknowledgeOrphan(tradeKey); err == nil {
		t.Error("expected error acknowledging an already-removed tradeKey")
	}
}

func TestTradeLedgerEntry_IsOrphaned(t *testing.T) {
	entry := domain.TradeLedgerEntry{
		Status:    domain.StatusPending,
		StartedAt: domain.NewEpochMillis(time.Now().Add(-2 * time.Hour)),
	}
	if !entry.IsOrphaned(time.Now(), time.Hour) {
		t.Error("expected a 2h-old pending entry to be orphaned at a 1h threshold")
	}

	entry.Status = domain.StatusCompleted
	if entry.IsOrphaned(time.Now(), time.Hour) {
		t.Error("terminal entries are never orphaned regardless of age")
	}
}
