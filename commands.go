package acceptor

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/log"

	"github.com/wasvm/wasm-acceptor/converter"
	"github.com/wasvm/wasm-acceptor/corpus"
	"github.com/wasvm/wasm-acceptor/history"
	"github.com/wasvm/wasm-acceptor/metrics"
	"github.com/wasvm/wasm-acceptor/reporting"
)

// Convert rebuilds the processed corpus and prints the conversion report.
// Scripts that fail to convert are part of the report, not an error.
func Convert(ctx context.Context, cfg *converter.Config, w io.Writer, color bool) (*converter.Result, error) {
	c, err := converter.New(*cfg)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to create converter: %w", err))
	}
	res, err := c.Convert(ctx)
	if err != nil {
		metrics.RecordErrorDetails("convert", err)
		return nil, NewRuntimeError(err)
	}
	if err := reporting.WriteConversion(w, res, color); err != nil {
		return res, NewRuntimeError(fmt.Errorf("failed to write conversion report: %w", err))
	}
	return res, nil
}

// Inspect loads every manifest of the selected groups and prints the
// inventory with the corpus digest.
func Inspect(root string, filters []string, w io.Writer, logger log.Logger) ([]*corpus.Inventory, error) {
	groups, err := corpus.Discover(root)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to discover corpus: %w", err))
	}
	groups, err = corpus.Filter(groups, filters)
	if err != nil {
		return nil, NewRuntimeError(err)
	}
	digest, err := corpus.Digest(root)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to digest corpus: %w", err))
	}

	runnable := corpus.Runnable(groups)
	invs := make([]*corpus.Inventory, 0, len(runnable))
	for _, g := range runnable {
		inv := corpus.Inspect(g)
		if !inv.OK() {
			logger.Warn("Group has problems", "group", g.Name, "error", inv.Err,
				"missing", len(inv.MissingFiles), "invalid", len(inv.InvalidValues))
		}
		invs = append(invs, inv)
	}
	if err := reporting.WriteInventory(w, invs, digest); err != nil {
		return invs, NewRuntimeError(err)
	}
	return invs, nil
}

// ListHistory prints the most recent runs recorded under dsn.
func ListHistory(ctx context.Context, dsn string, limit int, w io.Writer) error {
	store, err := history.Open(ctx, dsn)
	if err != nil {
		return NewRuntimeError(err)
	}
	defer store.Close()

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to list runs: %w", err))
	}
	return reporting.WriteHistory(w, runs)
}
