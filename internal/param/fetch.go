package param

import (
	"context"
	"os"
	"sort"
	"strings"
)

type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}

type EnvFetcher struct{}

func (EnvFetcher) Fetch(_ context.Context, name string) (string, error) {
	return os.Getenv(name), nil
}

// FetchAll returns the values of every variable whose name starts with prefix,
// ordered by name.
func (EnvFetcher) FetchAll(_ context.Context, prefix string) ([]string, error) {
	var names []string
	values := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
			values[k] = v
		}
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, values[n])
	}
	return out, nil
}
