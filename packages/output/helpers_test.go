package output

import (
	"context"
	"testing"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/runner"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func pass(ctx context.Context) error { return nil }

var fail = suite.Func(func(ctx context.Context) error {
	return errors.New("failed")
})

// sampleSuite covers every kind of outcome a reporter has to render.
func sampleSuite(b *suite.Builder) {
	b.Test("root passes", suite.Func(pass))
	b.Context("math", func(b *suite.Builder) {
		b.Test("adds", suite.Func(pass))
		b.Test("fails", suite.Func(func(ctx context.Context) error {
			return errors.New("boom")
		}))
		b.Test("multiline", suite.Func(func(ctx context.Context) error {
			return errors.New("first line:\nsecond line")
		}))
		b.Skip("later", suite.Func(pass))
	})
	b.Context("broken", func(b *suite.Builder) {
		b.Setup("connect", suite.Func(func(ctx context.Context) error {
			return errors.New("refused")
		}))
		b.Test("never", suite.Func(pass))
	})
	b.Context("panics", func(b *suite.Builder) {
		b.Test("explodes", suite.Func(func(ctx context.Context) error {
			panic("kaboom")
		}))
	})
}

// runWith executes defs with the given handlers subscribed to every event.
func runWith(t *testing.T, defs []suite.Definition, handlers ...event.Handler) {
	t.Helper()
	root, err := suite.Load(defs...)
	require.NoError(t, err)

	bus := event.NewBus()
	for _, h := range handlers {
		bus.OnAll(h)
	}
	require.NoError(t, runner.NewRunner(bus, nil).Run(context.Background(), root))
}
