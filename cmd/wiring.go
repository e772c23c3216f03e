package cmd

import (
	"fmt"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// keyPolicy maps the configured identity key mode to a store policy.
func keyPolicy(cfg *config.Config) store.KeyPolicy {
	if cfg.KeyMode() == config.KeyModeName {
		return store.DisplayNameKey
	}
	return store.ExternalIDKey
}

// openStore builds the identity store over the configured data directory.
func openStore(cfg *config.Config) *store.Store {
	return store.New(cfg.Data.IdentitiesFile(), store.Options{
		Dim:         cfg.Matcher.EmbeddingDim,
		KeyPolicy:   keyPolicy(cfg),
		LockTimeout: cfg.Data.LockTimeout,
	})
}

// ledgerColumns converts the embedded attribute schema into ledger columns.
func ledgerColumns(cfg *config.Config) []ledger.Column {
	cols := make([]ledger.Column, 0, len(cfg.Schema.Attributes))
	for _, a := range cfg.Schema.Attributes {
		cols = append(cols, ledger.Column{Key: a.Key, Label: a.Label})
	}
	return cols
}

// openLedger builds the attendance ledger in the configured format.
func openLedger(cfg *config.Config) (*ledger.Ledger, error) {
	format, err := ledger.ParseFormat(cfg.Ledger.Format)
	if err != nil {
		return nil, err
	}
	return ledger.New(cfg.Data.LedgerFile(format.Ext()), format, ledger.Options{
		AttributeColumns: ledgerColumns(cfg),
		LockTimeout:      cfg.Data.LockTimeout,
	}), nil
}

// parseAttrs turns repeated key=value flags into an attribute map.
func parseAttrs(pairs []string) (map[string]string, error) {
	attrs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid attribute %q (want key=value)", p)
		}
		attrs[k] = v
	}
	return attrs, nil
}
