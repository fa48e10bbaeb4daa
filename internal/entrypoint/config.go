package entrypoint

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/wrouesnel/makepki/pkg/models"
	"github.com/wrouesnel/makepki/version"
	"gopkg.in/yaml.v3"
)

// ConfigPaths are the configuration files read when present, lowest priority first.
func ConfigPaths() []string {
	return []string{
		filepath.Join("~", ".config", version.Name, "config.yml"),
		version.Name + ".yml",
	}
}

// YAMLConfigLoader resolves flag values from a YAML document. A flag such as
// --log-level may be given as "log-level", "log_level" or nested as
// log: {level: ...}. Operation flags are never read from configuration.
func YAMLConfigLoader(r io.Reader) (kong.Resolver, error) {
	values := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parsing YAML configuration")
	}

	return kong.ResolverFunc(func(kongCtx *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		if models.Selector(flag.Name).IsValid() {
			return nil, nil
		}
		value, found := lookup(values, flag.Name)
		if !found {
			return nil, nil
		}
		switch v := value.(type) {
		case string, bool:
			return v, nil
		case []interface{}:
			return nil, fmt.Errorf("configuration key %s: lists are not supported", flag.Name)
		case map[string]interface{}:
			return nil, fmt.Errorf("configuration key %s: expected a value, got a mapping", flag.Name)
		default:
			return fmt.Sprint(v), nil
		}
	}), nil
}

func lookup(values map[string]interface{}, name string) (interface{}, bool) {
	for _, key := range []string{name, strings.ReplaceAll(name, "-", "_")} {
		if v, ok := values[key]; ok {
			return v, true
		}
	}

	head, rest, nested := strings.Cut(name, "-")
	if !nested {
		return nil, false
	}
	section, ok := values[head].(map[string]interface{})
	if !ok {
		return nil, false
	}
	return lookup(section, rest)
}
