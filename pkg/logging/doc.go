// Package logging provides a process-wide structured logger for clustore.
//
// The package wraps [log/slog] and exposes a single global logger instance
// that is initialized once and then retrieved via GetLogger. All subsystems
// obtain a logger through this package rather than constructing their own
// slog.Logger values, so that log level and output destination are controlled
// from a single place.
//
// # Initialisation
//
// Call Init (or InitDefault for sensible defaults) once at program startup:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "json"}); err != nil {
//	    log.Fatal(err)
//	}
//
// Format "zap" routes records through a zap production core via zapslog.
//
// If GetLogger is called before Init, a default INFO text logger on stdout
// is installed on first use.
//
// # Context helpers
//
//	log := logging.WithTx(tid)          // adds tx_id field
//	log := logging.WithTable(tableID)   // adds table_id field
//	log := logging.WithComponent("lock") // adds component field
package logging
