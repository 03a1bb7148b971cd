package suite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context) error { return nil }

func namedGroup(b *Builder) {
	b.Test("inside", Func(noop))
}

func TestBuilder_Context(t *testing.T) {
	t.Run("nests and restores the cursor", func(t *testing.T) {
		b := NewBuilder()
		root := b.Current()

		b.Context("outer", func(b *Builder) {
			b.Test("outer test", Func(noop))
			b.Context("inner", func(b *Builder) {
				b.Test("inner test", Func(noop))
			})
			assert.Equal(t, "outer", b.Current().Label)
		})

		assert.Same(t, root, b.Current())
		require.Len(t, root.Children(), 1)

		outer := root.Children()[0]
		assert.Equal(t, "outer", outer.Label)
		assert.Same(t, root, outer.Parent())
		require.Len(t, outer.Children(), 1)

		inner := outer.Children()[0]
		assert.Equal(t, []*Context{root, outer}, inner.Parents())
		assert.Equal(t, 2, inner.Depth())
		assert.Equal(t, []string{"outer", "inner"}, inner.Path())
		require.Len(t, inner.Tasks(KindTest), 1)
		assert.Same(t, inner, inner.Tasks(KindTest)[0].Context())
	})

	t.Run("derives label from declared function name", func(t *testing.T) {
		b := NewBuilder()
		b.Context("", namedGroup)
		b.Context("", func(b *Builder) {})

		children := b.Current().Children()
		require.Len(t, children, 2)
		assert.Equal(t, "namedGroup", children[0].Label)
		assert.Equal(t, "", children[1].Label)
	})

	t.Run("restores the cursor when the definition panics", func(t *testing.T) {
		b := NewBuilder()
		root := b.Current()

		assert.PanicsWithValue(t, "boom", func() {
			b.Context("broken", func(b *Builder) {
				panic("boom")
			})
		})
		assert.Same(t, root, b.Current())
	})

	t.Run("nil definition panics", func(t *testing.T) {
		b := NewBuilder()
		assert.PanicsWithValue(t, ErrNilDefinition, func() {
			b.Context("empty", nil)
		})
	})
}

func TestBuilder_SkipCascade(t *testing.T) {
	b := NewBuilder()
	b.SkipContext("skipped", func(b *Builder) {
		b.Test("direct", Func(noop))
		b.Context("level 1", func(b *Builder) {
			b.Context("level 2", func(b *Builder) {
				b.Test("deep", Func(noop))
			})
		})
	})
	b.Context("plain", func(b *Builder) {
		b.Test("runs", Func(noop))
	})

	root := b.Root()
	skipped := root.Children()[0]
	assert.True(t, skipped.Skip)
	assert.True(t, skipped.Tasks(KindTest)[0].Skipped())

	deep := skipped.Children()[0].Children()[0]
	assert.True(t, deep.Skip)
	task := deep.Tasks(KindTest)[0]
	assert.False(t, task.Skip)
	assert.True(t, task.Skipped())

	plain := root.Children()[1]
	assert.False(t, plain.Skip)
	assert.False(t, plain.Tasks(KindTest)[0].Skipped())
}

func TestBuilder_Sequences(t *testing.T) {
	b := NewBuilder()
	b.Setup("setup", Func(noop))
	b.Teardown("teardown", Func(noop))
	b.Before("before", Func(noop))
	b.After("after", Func(noop))
	b.Test("first", Func(noop))
	b.Skip("second", nil)
	b.Test("third", Func(noop))
	b.Only("exclusive", Func(noop))

	root := b.Root()

	tests := []struct {
		kind  Kind
		label string
	}{
		{KindSetup, "setup"},
		{KindTeardown, "teardown"},
		{KindBefore, "before"},
		{KindAfter, "after"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			seq := root.Tasks(tt.kind)
			require.Len(t, seq, 1)
			assert.Equal(t, tt.label, seq[0].Label)
			assert.Equal(t, tt.kind, seq[0].Kind())
			assert.True(t, seq[0].Kind().IsHook())
		})
	}

	plain := root.Tasks(KindTest)
	require.Len(t, plain, 3)
	assert.Equal(t, "first", plain[0].Label)
	assert.Equal(t, "second", plain[1].Label)
	assert.True(t, plain[1].Skip)
	assert.Nil(t, plain[1].Body())
	assert.Equal(t, "third", plain[2].Label)

	only := root.Only()
	require.Len(t, only, 1)
	assert.Equal(t, "exclusive", only[0].Label)
	assert.Equal(t, only, root.Selected())
}

func TestBuilder_TaskLabelFromBody(t *testing.T) {
	b := NewBuilder()
	b.Test("", Func(noop))
	b.Test("", Func(func(ctx context.Context) error { return nil }))

	tests := b.Root().Tasks(KindTest)
	assert.Equal(t, "noop", tests[0].Label)
	assert.Equal(t, "", tests[1].Label)
}

func TestBuilder_Sealed(t *testing.T) {
	b := NewBuilder()
	b.Root()

	assert.PanicsWithValue(t, ErrSealed, func() {
		b.Test("late", Func(noop))
	})
	assert.PanicsWithValue(t, ErrSealed, func() {
		b.Context("late", func(b *Builder) {})
	})
}

func TestLoad(t *testing.T) {
	t.Run("builds a sealed tree", func(t *testing.T) {
		root, err := Load(
			func(b *Builder) { b.Test("a", Func(noop)) },
			nil,
			func(b *Builder) { b.Context("b", func(b *Builder) {}) },
		)
		require.NoError(t, err)
		assert.Len(t, root.Tasks(KindTest), 1)
		assert.Len(t, root.Children(), 1)
	})

	t.Run("turns a registration panic into an error", func(t *testing.T) {
		cause := errors.New("bad fixture")
		root, err := Load(func(b *Builder) {
			b.Context("broken", func(b *Builder) {
				panic(cause)
			})
		})
		assert.Nil(t, root)
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "loading suite")
	})

	t.Run("non-error panic values are reported", func(t *testing.T) {
		_, err := Load(func(b *Builder) { panic("nope") })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nope")
	})
}

func TestContext_Walk(t *testing.T) {
	root, err := Load(func(b *Builder) {
		b.Context("a", func(b *Builder) {
			b.Context("a1", func(b *Builder) {})
		})
		b.Context("b", func(b *Builder) {})
	})
	require.NoError(t, err)

	var visited []string
	root.Walk(func(c *Context) bool {
		visited = append(visited, c.Label)
		return c.Label != "a"
	})
	assert.Equal(t, []string{"", "a", "b"}, visited)
}
