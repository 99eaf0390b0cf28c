package entity

// Record is what a connection knows about one spawned entity.
type Record struct {
	ID       int32
	Declared Type
	Resolved Type
	meta     []Entry
}

// Meta is the entity's current metadata in the older version's form.
func (r *Record) Meta() []Entry {
	return append([]Entry(nil), r.meta...)
}

// Merge overlays entries by index.
func (r *Record) Merge(entries []Entry) {
	r.meta = Merge(r.meta, entries)
}

// Tracker holds the records of one connection. It is owned by the
// connection's worker and not safe for concurrent use.
type Tracker struct {
	entities map[int32]*Record
}

func NewTracker() *Tracker {
	return &Tracker{entities: make(map[int32]*Record)}
}

// Track starts (or restarts) tracking id.
func (t *Tracker) Track(id int32, declared, resolved Type) *Record {
	rec := &Record{ID: id, Declared: declared, Resolved: resolved}
	t.entities[id] = rec
	return rec
}

func (t *Tracker) Entity(id int32) (*Record, bool) {
	rec, ok := t.entities[id]
	return rec, ok
}

func (t *Tracker) Remove(ids ...int32) {
	for _, id := range ids {
		delete(t.entities, id)
	}
}

func (t *Tracker) Clear() {
	clear(t.entities)
}

func (t *Tracker) Len() int { return len(t.entities) }
