package adapter

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Registry holds site-specific adapters in registration order followed by
// the generic fallback. Select never returns nil: the generic adapter
// guarantees extraction can always attempt something.
type Registry struct {
	adapters []*Adapter
	generic  *Adapter
}

// NewRegistry creates a registry over the given site-specific adapters.
func NewRegistry(adapters ...*Adapter) *Registry {
	return &Registry{
		adapters: adapters,
		generic:  Generic(),
	}
}

// Register appends an adapter. Earlier registrations win on overlap.
func (r *Registry) Register(a *Adapter) {
	r.adapters = append(r.adapters, a)
}

// Select returns the first registered adapter whose host pattern matches the
// URL, or the generic fallback.
func (r *Registry) Select(rawURL string) *Adapter {
	for _, a := range r.adapters {
		if a.Matches(rawURL) {
			return a
		}
	}
	return r.generic
}

// Adapters returns the registered site-specific adapters in order. The
// generic fallback is not included.
func (r *Registry) Adapters() []*Adapter {
	return r.adapters
}

// ruleEntry is one adapter definition in the rules file.
type ruleEntry struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`
	Rules Rules    `yaml:"rules"`
}

// rulesFile is the top-level structure of adapters.yaml.
type rulesFile struct {
	Adapters []ruleEntry `yaml:"adapters"`
}

// LoadRegistry reads adapter definitions from a yaml file and builds a
// registry. A missing path yields a registry with only the generic fallback.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return NewRegistry(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Info("adapter: no rules file, using generic adapter only",
				zap.String("path", path),
			)
			return NewRegistry(), nil
		}
		return nil, eris.Wrapf(err, "adapter: read rules file %s", path)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "adapter: parse rules file %s", path)
	}

	reg := NewRegistry()
	for _, entry := range file.Adapters {
		if entry.Name == "" {
			return nil, eris.Errorf("adapter: rules file %s: adapter without a name", path)
		}
		a, err := New(entry.Name, entry.Hosts, entry.Rules)
		if err != nil {
			return nil, err
		}
		reg.Register(a)
	}

	zap.L().Info("adapter: registry loaded",
		zap.String("path", path),
		zap.Int("site_adapters", len(reg.adapters)),
	)
	return reg, nil
}
