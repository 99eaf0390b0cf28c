package conn

// Tx collects store mutations for one packet translation.
type Tx struct {
	store  *Store
	staged []func(*Store)
	done   bool
}

// Begin opens a Tx over s. Reads go straight to s; writes wait for Commit.
func (s *Store) Begin() *Tx {
	return &Tx{store: s}
}

func (tx *Tx) Store() *Store { return tx.store }

// Stage queues fn to run against the store on Commit.
func (tx *Tx) Stage(fn func(*Store)) {
	if tx.done || fn == nil {
		return
	}
	tx.staged = append(tx.staged, fn)
}

// Pending is the number of staged mutations.
func (tx *Tx) Pending() int { return len(tx.staged) }

// Commit applies staged mutations in staging order.
func (tx *Tx) Commit() {
	if tx.done {
		return
	}
	tx.done = true
	for _, fn := range tx.staged {
		fn(tx.store)
	}
	tx.staged = nil
}

// Discard drops staged mutations.
func (tx *Tx) Discard() {
	tx.done = true
	tx.staged = nil
}
