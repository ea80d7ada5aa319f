package urlcodec

// Param is one key with its ordered values.
type Param struct {
	Key    string
	Values []string
}

// Params is an ordered multimap. Keys keep first-seen order and values keep
// insertion order.
type Params []Param

// Add appends values to key, creating it at the end if missing.
func (p *Params) Add(key string, values ...string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Values = append((*p)[i].Values, values...)
			return
		}
	}
	*p = append(*p, Param{Key: key, Values: append([]string(nil), values...)})
}

// Set replaces the values of key, keeping its position when present.
func (p *Params) Set(key string, values ...string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Values = append([]string(nil), values...)
			return
		}
	}
	*p = append(*p, Param{Key: key, Values: append([]string(nil), values...)})
}

// Get returns the values of key or nil.
func (p Params) Get(key string) []string {
	for _, e := range p {
		if e.Key == key {
			return e.Values
		}
	}
	return nil
}

// Keys returns the keys in order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, e := range p {
		keys = append(keys, e.Key)
	}
	return keys
}

// Len returns the number of distinct keys.
func (p Params) Len() int { return len(p) }
