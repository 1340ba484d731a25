package normalize

import (
	"encoding/json"

	"github.com/opsdeck/opsdeck/pkg/engine"
)

// Embedded decodes page._embedded[key] element by element and maps each
// element with fn. Elements that fail to decode or map to a record without
// an ID are skipped.
func Embedded[W any, R interface{ RecordID() string }](page Page, key string, fn func(W) R) []R {
	raw := page.Embedded[key]
	out := make([]R, 0, len(raw))
	for _, elem := range raw {
		var wire W
		if err := json.Unmarshal(elem, &wire); err != nil {
			continue
		}
		record := fn(wire)
		if record.RecordID() == "" {
			continue
		}
		out = append(out, record)
	}
	return out
}

// Operations normalizes an operations collection page.
func Operations(page Page) []engine.Operation {
	return Embedded(page, "operations", Operation)
}

// Databases normalizes a databases collection page.
func Databases(page Page) []engine.Database {
	return Embedded(page, "databases", Database)
}

// Apps normalizes an apps collection page.
func Apps(page Page) []engine.App {
	return Embedded(page, "apps", App)
}

// Services normalizes a services collection page.
func Services(page Page) []engine.Service {
	return Embedded(page, "services", Service)
}

// Endpoints normalizes a vhosts collection page.
func Endpoints(page Page) []engine.Endpoint {
	return Embedded(page, "vhosts", Endpoint)
}

// Environments normalizes an accounts collection page.
func Environments(page Page) []engine.Environment {
	return Embedded(page, "accounts", Environment)
}

// Certificates normalizes a certificates collection page.
func Certificates(page Page) []engine.Certificate {
	return Embedded(page, "certificates", Certificate)
}

// LogDrains normalizes a log drains collection page.
func LogDrains(page Page) []engine.LogDrain {
	return Embedded(page, "log_drains", LogDrain)
}

// MetricDrains normalizes a metric drains collection page.
func MetricDrains(page Page) []engine.MetricDrain {
	return Embedded(page, "metric_drains", MetricDrain)
}
