package leaderboard

import "time"

// Test-only accessors for unexported internals, so the external test
// package can exercise them without importing this package's dependents.

const MaxLocalEntries = maxLocalEntries

// SetNow overrides the client's clock in tests.
func (c *Client) SetNow(now func() time.Time) { c.now = now }
