package invoicestore

import (
	"fmt"

	"go.uber.org/zap"
)

const DriverMemory = "memory"

// Open returns the store for the driver with paid invoices served from an LRU cache of cacheSize.
// The returned close function releases the database.
func Open(logger *zap.Logger, driver, dsn string, cacheSize int) (*Cached, func() error, error) {
	switch driver {
	case DriverMemory:
		logger.Warn("invoices are kept in memory and will be lost on restart")
		return NewCached(NewMemoryStore(), cacheSize), func() error { return nil }, nil
	case DriverSQLite, DriverPostgres:
		store, err := NewSQLStore(logger, driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		return NewCached(store, cacheSize), store.Close, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
}
