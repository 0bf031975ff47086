package dataflow

import (
	"regexp"
	"sort"
)

// envRef matches $VAR, ${VAR} and ${VAR:-default}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// EnvRequirement is an environment variable referenced by a node env value.
type EnvRequirement struct {
	NodeID string
	// Key is the node env key whose value holds the reference.
	Key        string
	Variable   string
	Default    string
	HasDefault bool
	// IsSet reports whether Variable was set when the dataflow was parsed.
	IsSet bool
}

// Missing reports whether the variable is unset and has no default.
func (r EnvRequirement) Missing() bool {
	return !r.IsSet && !r.HasDefault
}

// envRequirements lists the references in env, ordered by key.
func envRequirements(nodeID string, env map[string]string, lookup func(string) (string, bool)) []EnvRequirement {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var reqs []EnvRequirement
	for _, k := range keys {
		for _, m := range envRef.FindAllStringSubmatch(env[k], -1) {
			r := EnvRequirement{NodeID: nodeID, Key: k}
			if m[1] != "" {
				r.Variable = m[1]
				r.HasDefault = m[2] != ""
				r.Default = m[3]
			} else {
				r.Variable = m[4]
			}
			_, r.IsSet = lookup(r.Variable)
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// ExpandEnv replaces the references in s with their values from lookup.
// ${VAR:-default} yields the default when VAR is unset or empty. Other
// unresolved references become "".
func ExpandEnv(s string, lookup func(string) (string, bool)) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[4]
		}
		if v, ok := lookup(name); ok && (v != "" || m[2] == "") {
			return v
		}
		return m[3]
	})
}

// ResolvedEnv returns the env of n with every reference expanded.
func (n *ParsedNode) ResolvedEnv(lookup func(string) (string, bool)) map[string]string {
	if n.Env == nil {
		return nil
	}
	out := make(map[string]string, len(n.Env))
	for k, v := range n.Env {
		out[k] = ExpandEnv(v, lookup)
	}
	return out
}
