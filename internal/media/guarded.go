package media

import "context"

// CallerErrors are Store errors caused by the request rather than the backend.
var CallerErrors = []error{ErrUnsupportedType, ErrForeignURL}

type Breaker interface {
	Call(ctx context.Context, fn func(context.Context) error) error
}

// GuardedStore routes every Store call through a circuit breaker so an
// unreachable bucket fails fast.
type GuardedStore struct {
	next    Store
	breaker Breaker
}

func NewGuardedStore(next Store, breaker Breaker) *GuardedStore {
	return &GuardedStore{next: next, breaker: breaker}
}

func (g *GuardedStore) Upload(ctx context.Context, folder string, file Upload) (string, error) {
	var url string
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		url, err = g.next.Upload(ctx, folder, file)
		return err
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (g *GuardedStore) Delete(ctx context.Context, url string) error {
	return g.breaker.Call(ctx, func(ctx context.Context) error {
		return g.next.Delete(ctx, url)
	})
}
