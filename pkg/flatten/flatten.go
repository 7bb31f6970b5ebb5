// Package flatten converts arbitrarily nested JSON-like records into
// single-level maps keyed by dot-joined paths, the shape the persistence
// layer writes and the batch-query warehouse reads.
package flatten

// Record is a flattened key-value view of a nested record.
type Record map[string]interface{}

// Flatten walks a nested map and produces a Record whose keys are the
// dot-joined paths to each leaf. Arrays are leaves: they are preserved
// verbatim and never recursed into. Flattening an already-flat map returns
// an equal map, so the operation is idempotent.
func Flatten(input map[string]interface{}) Record {
	out := make(Record, len(input))
	walk("", input, out)
	return out
}

func walk(prefix string, node map[string]interface{}, out Record) {
	for key, value := range node {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if child, ok := value.(map[string]interface{}); ok {
			walk(path, child, out)
			continue
		}
		out[path] = value
	}
}
