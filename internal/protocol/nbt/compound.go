package nbt

// Compound is an ordered mapping of names to tags.
type Compound struct {
	keys []string
	vals map[string]Tag
}

func NewCompound() *Compound {
	return &Compound{vals: make(map[string]Tag)}
}

func (c *Compound) Kind() Kind { return KindCompound }

func (c *Compound) Len() int { return len(c.keys) }

// Keys returns the names in insertion order.
func (c *Compound) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c *Compound) Get(key string) (Tag, bool) {
	t, ok := c.vals[key]
	return t, ok
}

// Put stores t under key. Replacing an existing key keeps its position.
func (c *Compound) Put(key string, t Tag) {
	if c.vals == nil {
		c.vals = make(map[string]Tag)
	}
	if _, exists := c.vals[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.vals[key] = t
}

// Remove deletes key and reports whether it was present.
func (c *Compound) Remove(key string) bool {
	if _, ok := c.vals[key]; !ok {
		return false
	}
	delete(c.vals, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

func (c *Compound) Compound(key string) (*Compound, bool) {
	t, ok := c.vals[key].(*Compound)
	return t, ok
}

func (c *Compound) List(key string) (*List, bool) {
	t, ok := c.vals[key].(*List)
	return t, ok
}

func (c *Compound) Leaf(key string) (*Leaf, bool) {
	t, ok := c.vals[key].(*Leaf)
	return t, ok
}
