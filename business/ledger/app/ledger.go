// Package app implements the trade state ledger: a crash-consistent,
// file-backed record of every arbitrage attempt from intent through
// resolution.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	arbitrageDomain "github.com/fd1az/arbitrage-bot/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-bot/business/ledger/domain"
	venueDomain "github.com/fd1az/arbitrage-bot/business/venue/domain"
	"github.com/fd1az/arbitrage-bot/internal/apperror"
	"github.com/fd1az/arbitrage-bot/internal/logger"
)

// Config parameterizes the ledger's storage path and orphan detection
// threshold.
type Config struct {
	FilePath       string
	OrphanThreshold time.Duration
}

// DefaultConfig points the ledger at a local state file with a 24h
// orphan threshold.
func DefaultConfig() Config {
	return Config{
		FilePath:        "data/trade-state.json",
		OrphanThreshold: 24 * time.Hour,
	}
}

// RecoverResult is the output of Recover: entries safe to resume
// (still en route to a terminal status within the orphan threshold)
// versus entries old enough that an operator must inspect them.
type RecoverResult struct {
	Resumable []domain.TradeLedgerEntry
	Orphaned  []domain.TradeLedgerEntry
}

// Ledger is a single-writer, crash-consistent JSON file recording
// every in-flight arbitrage trade; an entry is removed from the file
// once it reaches a terminal state. Every
// mutating operation fsyncs before returning, so a crash between two
// mutations never loses the last acknowledged one.
type Ledger struct {
	cfg Config
	log logger.LoggerInterface

	mu  sync.Mutex
	doc domain.Document
}

// New constructs a Ledger over cfg.FilePath without loading it; call
// Recover to load and classify existing entries.
func New(cfg Config, log logger.LoggerInterface) *Ledger {
	return &Ledger{
		cfg: cfg,
		log: log,
		doc: domain.Document{
			Version:      domain.CurrentVersion,
			ActiveTrades: make(map[string]domain.TradeLedgerEntry),
		},
	}
}

// Recover loads the ledger file (starting empty if it is missing or
// at a mismatched schema version) and classifies every active entry
// as resumable or orphaned based on cfg.OrphanThreshold. Orphaned
// entries are reported but left in the active set until an operator
// calls AcknowledgeOrphan.
func (l *Ledger) Recover() (RecoverResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.cfg.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return RecoverResult{}, nil
		}
		return RecoverResult{}, apperror.External(apperror.CodeLedgerCorrupt, "reading ledger file", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		l.log.Warn(context.Background(), "ledger file corrupt, starting empty", "path", l.cfg.FilePath, "error", err.Error())
		return RecoverResult{}, nil
	}
	if doc.Version != domain.CurrentVersion {
		l.log.Warn(context.Background(), "ledger schema version mismatch, starting empty", "want", domain.CurrentVersion, "got", doc.Version)
		return RecoverResult{}, nil
	}
	if doc.ActiveTrades == nil {
		doc.ActiveTrades = make(map[string]domain.TradeLedgerEntry)
	}
	l.doc = doc

	now := time.Now()
	var result RecoverResult
	for _, entry := range doc.ActiveTrades {
		if entry.IsOrphaned(now, l.cfg.OrphanThreshold) {
			result.Orphaned = append(result.Orphaned, entry)
		} else {
			result.Resumable = append(result.Resumable, entry)
		}
	}
	return result, nil
}

// RecordStart creates a new entry in state pending, fsyncs, and
// returns its tradeKey.
func (l *Ledger) RecordStart(opp arbitrageDomain.Opportunity) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tradeKey := opp.TradeKey()
	now := domain.NewEpochMillis(time.Now())
	l.doc.ActiveTrades[tradeKey] = domain.TradeLedgerEntry{
		TradeKey:    tradeKey,
		Opportunity: opp,
		Status:      domain.StatusPending,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.persistLocked(); err != nil {
		delete(l.doc.ActiveTrades, tradeKey)
		return "", err
	}
	return tradeKey, nil
}

// RecordBuyExecuted transitions tradeKey to buyExecuted and fsyncs.
func (l *Ledger) RecordBuyExecuted(tradeKey string, buyResult *venueDomain.OrderResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.doc.ActiveTrades[tradeKey]
	if !ok {
		return apperror.NotFound(apperror.CodeTradeNotFound, fmt.Sprintf("no active trade for key %q", tradeKey))
	}
	entry.Status = domain.StatusBuyExecuted
	entry.BuyResult = buyResult
	entry.UpdatedAt = domain.NewEpochMillis(time.Now())
	l.doc.ActiveTrades[tradeKey] = entry
	return l.persistLocked()
}

// RecordComplete transitions tradeKey to completed or failed,
// attaches sellResult and a failure reason where applicable, fsyncs,
// and removes the entry from the active set.
func (l *Ledger) RecordComplete(tradeKey string, success bool, sellResult *venueDomain.OrderResult, failReason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.doc.ActiveTrades[tradeKey]
	if !ok {
		return apperror.NotFound(apperror.CodeTradeNotFound, fmt.Sprintf("no active trade for key %q", tradeKey))
	}
	if success {
		entry.Status = domain.StatusCompleted
		entry.SellResult = sellResult
	} else {
		entry.Status = domain.StatusFailed
		entry.FailReason = failReason
	}
	entry.UpdatedAt = domain.NewEpochMillis(time.Now())

	delete(l.doc.ActiveTrades, tradeKey)
	if err := l.persistLocked(); err != nil {
		return err
	}
	l.log.Info(context.Background(), "trade ledger entry finalized", "tradeKey", tradeKey, "status", string(entry.Status))
	return nil
}

// AcknowledgeOrphan removes an orphaned entry after human inspection.
func (l *Ledger) AcknowledgeOrphan(tradeKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.doc.ActiveTrades[tradeKey]; !ok {
		return apperror.NotFound(apperror.CodeOrphanNotAcknowledged, fmt.Sprintf("no active trade for key %q", tradeKey))
	}
	delete(l.doc.ActiveTrades, tradeKey)
	return l.persistLocked()
}

// persistLocked writes the document atomically: serialize, write to a
// temp file in the same directory, fsync, then rename over the target
// path. Called with l.mu held.
func (l *Ledger) persistLocked() error {
	l.doc.LastUpdated = domain.NewEpochMillis(time.Now())

	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return apperror.Internal(apperror.CodeLedgerWriteFailed, "marshaling ledger document", err)
	}

	dir := filepath.Dir(l.cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperror.External(apperror.CodeLedgerWriteFailed, "creating ledger directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return apperror.External(apperror.CodeLedgerWriteFailed, "creating ledger temp file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperror.External(apperror.CodeLedgerWriteFailed, "writing ledger temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return apperror.External(apperror.CodeLedgerWriteFailed, "fsyncing ledger temp file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return apperror.External(apperror.CodeLedgerWriteFailed, "closing ledger temp file", err)
	}
	if err := os.Rename(tmpPath, l.cfg.FilePath); err != nil {
		os.Remove(tmpPath)
		return apperror.External(apperror.CodeLedgerWriteFailed, "renaming ledger temp file into place", err)
	}
	return nil
}
