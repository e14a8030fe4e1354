package registry

import "github.com/drblury/queueflow/internal/runtime/config"

// QueueConfig is the canonical form of a declared queue. Every other
// component sees queues only in this shape.
type QueueConfig struct {
	Logical    string
	Physical   string
	DeadLetter string
	Readers    int
	Endpoint   string
	// Implicit marks a queue synthesized from another queue's dead-letter target.
	Implicit bool
}

// Normalize turns declared queue specs into QueueConfigs. Bare-name entries
// and option entries end up identical once defaults are applied. Every
// dead-letter target that is not itself declared gets an implicit entry on
// the endpoint of the queue that names it; a target named by several queues
// still gets a single entry.
func Normalize(specs config.QueueSet) []QueueConfig {
	out := make([]QueueConfig, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		logical := spec.LogicalName()
		if logical == "" {
			continue
		}
		if _, dup := seen[logical]; dup {
			continue
		}
		seen[logical] = struct{}{}
		out = append(out, canonical(spec, logical))
	}

	declared := len(out)
	for i := 0; i < declared; i++ {
		target := out[i].DeadLetter
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, QueueConfig{
			Logical:  target,
			Physical: target,
			Readers:  1,
			Endpoint: out[i].Endpoint,
			Implicit: true,
		})
	}
	return out
}

func canonical(spec config.QueueSpec, logical string) QueueConfig {
	qc := QueueConfig{
		Logical:    logical,
		Physical:   spec.Name,
		DeadLetter: spec.DeadLetter,
		Readers:    spec.Readers,
		Endpoint:   spec.Endpoint,
	}
	if qc.Physical == "" {
		qc.Physical = logical
	}
	if qc.Readers <= 0 {
		qc.Readers = 1
	}
	if qc.Endpoint == "" {
		qc.Endpoint = config.DefaultEndpoint
	}
	return qc
}
