package registry

import (
	"context"
	"time"

	"github.com/adatrace/ada-trace/pkg/log"
)

// queryHooks satisfies sqlhooks.Hooks, logging every statement the
// registry issues together with its elapsed time.
type queryHooks struct{}

func (h *queryHooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("registry: query %s %q", query, args)
	return context.WithValue(ctx, beginKey{}, time.Now()), nil
}

func (h *queryHooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	begin, _ := ctx.Value(beginKey{}).(time.Time)
	log.Debugf("registry: took %s", time.Since(begin))
	return ctx, nil
}

type beginKey struct{}
