package param

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/do"
)

var ErrNotFound = errors.New("parameter not found")

// IsParameterPath reports whether ref names an SSM parameter rather than an
// environment variable.
func IsParameterPath(ref string) bool {
	return strings.HasPrefix(ref, "/")
}

// Source resolves references to values. References with a leading slash are
// read from Parameter Store; anything else names environment variables. The
// Parameter Store client is only built the first time a path is resolved.
type Source struct {
	store func() (Fetcher, error)
	env   Fetcher
}

func NewSource(i *do.Injector) (*Source, error) {
	return &Source{
		store: func() (Fetcher, error) {
			f, err := do.Invoke[*ParameterStoreFetcher](i)
			if err != nil {
				return nil, err
			}
			return f, nil
		},
		env: EnvFetcher{},
	}, nil
}

func (s *Source) fetcher(ref string) (Fetcher, error) {
	if IsParameterPath(ref) {
		return s.store()
	}
	return s.env, nil
}

func (s *Source) Fetch(ctx context.Context, ref string) (string, error) {
	f, err := s.fetcher(ref)
	if err != nil {
		return "", err
	}
	return f.Fetch(ctx, ref)
}

func (s *Source) FetchAll(ctx context.Context, ref string) ([]string, error) {
	f, err := s.fetcher(ref)
	if err != nil {
		return nil, err
	}
	return f.FetchAll(ctx, ref)
}

// Value returns explicit when it is set, otherwise the value ref points at.
// An empty ref with no explicit value yields "".
func (s *Source) Value(ctx context.Context, explicit, ref string) (string, error) {
	if explicit != "" || ref == "" {
		return explicit, nil
	}
	return s.Fetch(ctx, ref)
}

// Values returns the values under ref, or defaults when ref is empty or
// resolves to nothing. On error defaults are returned alongside it.
func (s *Source) Values(ctx context.Context, defaults []string, ref string) ([]string, error) {
	if ref == "" {
		return defaults, nil
	}
	values, err := s.FetchAll(ctx, ref)
	if err != nil || len(values) == 0 {
		return defaults, err
	}
	return values, nil
}
