package retry

// TransactionGuard records whether a transaction is open on a session and how
// many statements ran inside it. A guard belongs to one call chain and is not
// safe for concurrent use.
type TransactionGuard struct {
	open     bool
	executed int
}

// Begin marks a transaction as open.
func (g *TransactionGuard) Begin() {
	g.open = true
	g.executed = 0
}

// Record counts a statement that completed inside the open transaction.
func (g *TransactionGuard) Record() {
	if g.open {
		g.executed++
	}
}

// End marks the transaction as finished, by commit or rollback.
func (g *TransactionGuard) End() {
	g.open = false
	g.executed = 0
}

// Restart starts over on a fresh transaction after a reconnect and returns
// how many previously executed statements were discarded with the old one.
func (g *TransactionGuard) Restart() int {
	dropped := g.executed
	g.executed = 0
	return dropped
}

// Open reports whether a transaction is open.
func (g *TransactionGuard) Open() bool {
	return g.open
}

// Executed returns the number of statements run in the open transaction.
func (g *TransactionGuard) Executed() int {
	if !g.open {
		return 0
	}
	return g.executed
}
