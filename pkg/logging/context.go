package logging

import (
	"log/slog"

	"clustore/pkg/primitives"
)

// WithTx creates a logger with transaction context.
//
// Example:
//
//	log := logging.WithTx(tid)
//	log.Debug("page pinned", "page", pid)
func WithTx(tid *primitives.TransactionID) *slog.Logger {
	if tid == nil {
		return GetLogger()
	}
	return GetLogger().With("tx_id", tid.ID())
}

// WithTable creates a logger with table context.
func WithTable(tableID primitives.TableID) *slog.Logger {
	return GetLogger().With("table_id", uint64(tableID))
}

// WithTableTx creates a logger with both transaction and table context.
func WithTableTx(tid *primitives.TransactionID, tableID primitives.TableID) *slog.Logger {
	return WithTx(tid).With("table_id", uint64(tableID))
}

// WithPage creates a logger with page context.
// Useful for buffer pool and storage operations.
//
// Example:
//
//	log := logging.WithPage(pid.String())
//	log.Debug("page evicted", "dirty", true)
func WithPage(pageID string) *slog.Logger {
	return GetLogger().With("page_id", pageID)
}

// WithLock creates a logger with lock context.
func WithLock(tid *primitives.TransactionID, resourceID string) *slog.Logger {
	return WithTx(tid).With("resource", resourceID)
}

// WithComponent creates a logger with component/subsystem context.
//
// Example:
//
//	log := logging.WithComponent("bufferpool")
//	log.Info("component initialized")
func WithComponent(component string) *slog.Logger {
	return GetLogger().With("component", component)
}

// WithError creates a logger with error context.
func WithError(err error) *slog.Logger {
	return GetLogger().With("error", err.Error())
}
