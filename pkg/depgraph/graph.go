package depgraph

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// DefaultProviderDomain is the database host domain matched when no other
// domain is configured.
const DefaultProviderDomain = "aptible.in"

// NodeType is the kind of resource a configuration value references.
type NodeType string

const (
	// NodeTypeDatabase marks a database connection string.
	NodeTypeDatabase NodeType = "db"

	// NodeTypeApp marks an https URL that may belong to an app endpoint.
	NodeTypeApp NodeType = "app"
)

// Node is one configuration entry that references another resource.
type Node struct {
	Key   string   `json:"key"`
	Value string   `json:"value"`
	Type  NodeType `json:"type"`

	// RefID is the referenced database ID. It is empty for app nodes, which
	// are matched by Value.
	RefID string `json:"ref_id,omitempty"`
}

type options struct {
	providerDomain string
}

// Option configures BuildDependencyGraph.
type Option func(*options)

// WithProviderDomain sets the domain database hosts live under.
func WithProviderDomain(domain string) Option {
	return func(o *options) {
		if domain != "" {
			o.providerDomain = domain
		}
	}
}

var (
	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

// databasePattern returns the compiled host pattern for domain.
func databasePattern(domain string) *regexp.Regexp {
	patternsMu.Lock()
	defer patternsMu.Unlock()

	re, ok := patterns[domain]
	if !ok {
		re = regexp.MustCompile(`(\d+)\.` + regexp.QuoteMeta(domain) + `:`)
		patterns[domain] = re
	}
	return re
}

// BuildDependencyGraph scans env for values that reference databases or app
// endpoints. Keys are visited in sorted order so the result is stable.
func BuildDependencyGraph(env map[string]string, opts ...Option) []Node {
	o := options{providerDomain: DefaultProviderDomain}
	for _, opt := range opts {
		opt(&o)
	}
	dbPattern := databasePattern(o.providerDomain)

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]Node, 0)
	for _, key := range keys {
		value := env[key]

		if m := dbPattern.FindStringSubmatch(value); m != nil {
			nodes = append(nodes, Node{Key: key, Value: value, Type: NodeTypeDatabase, RefID: m[1]})
			continue
		}
		if strings.Contains(value, "https://") {
			nodes = append(nodes, Node{Key: key, Value: value, Type: NodeTypeApp})
		}
	}
	return nodes
}
