// Package attributes holds the string message attributes carried next to a
// message body, and the reserved keys the pipeline reads and writes.
package attributes

const (
	// CorrelationID tracks related messages across publish and receive boundaries.
	CorrelationID = "CorrelationId"

	// ContentEncoding names the codec the body was compressed with.
	ContentEncoding = "Content-Encoding"

	// ErrorDetail carries the handler failure on dead-lettered messages.
	ErrorDetail = "ErrorDetail"
)

// Attributes represents the headers carried alongside a message.
type Attributes map[string]string

func (a Attributes) cloneWithExtra(extra int) Attributes {
	size := len(a) + extra
	if size <= 0 {
		return Attributes{}
	}

	cloned := make(Attributes, size)
	for k, v := range a {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a copy of the attribute map. The copy never aliases a.
func (a Attributes) Clone() Attributes {
	return a.cloneWithExtra(0)
}

// With returns a cloned map containing the provided key/value pair.
func (a Attributes) With(key, value string) Attributes {
	cloned := a.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned map containing the supplied entries.
func (a Attributes) WithAll(entries Attributes) Attributes {
	cloned := a.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// Without returns a cloned map with key removed.
func (a Attributes) Without(key string) Attributes {
	cloned := a.Clone()
	delete(cloned, key)
	return cloned
}

// Get returns the value for key, or "" when absent.
func (a Attributes) Get(key string) string {
	return a[key]
}

// New constructs Attributes from alternating key/value pairs.
func New(pairs ...string) Attributes {
	attrs := make(Attributes, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		attrs[pairs[i]] = pairs[i+1]
	}
	return attrs
}
