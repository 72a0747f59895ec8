package shared

import "fmt"

// StockReconcileLockKey builds the redis key guarding stock reconciliation runs.
func StockReconcileLockKey() string {
	return "inventory:stock:reconcile:lock"
}

// QuoteExpiryLockKey builds the redis key guarding the quote expiry sweep for a day.
func QuoteExpiryLockKey(day string) string {
	return fmt.Sprintf("sales:quotes:expire:%s:lock", day)
}
