package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/event"
	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trace records every event as a short string.
type trace struct {
	lines []string
	tests []*suite.Task
	hooks []*suite.Task
}

func (tr *trace) HandleEvent(e event.Event) {
	switch ev := e.(type) {
	case event.Start:
		tr.lines = append(tr.lines, "start")
	case event.ContextStart:
		tr.lines = append(tr.lines, "context:"+ev.Context.Label)
	case event.Hook:
		tr.hooks = append(tr.hooks, ev.Task)
		tr.lines = append(tr.lines, string(ev.Name())+":"+ev.Task.Label)
	case event.Test:
		tr.tests = append(tr.tests, ev.Task)
		status := "pass"
		if ev.Task.Skipped() {
			status = "skip"
		} else if ev.Task.Err != nil {
			status = "fail"
		}
		tr.lines = append(tr.lines, "test:"+ev.Task.Label+":"+status)
	case event.ContextEnd:
		tr.lines = append(tr.lines, "end:"+ev.Context.Label)
	case event.End:
		tr.lines = append(tr.lines, "end")
	}
}

func (tr *trace) count(prefix string) int {
	n := 0
	for _, l := range tr.lines {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

func run(t *testing.T, defs ...suite.Definition) (*suite.Context, *trace) {
	t.Helper()
	root, err := suite.Load(defs...)
	require.NoError(t, err)

	tr := &trace{}
	bus := event.NewBus()
	bus.OnAll(tr)

	require.NoError(t, NewRunner(bus, nil).Run(context.Background(), root))
	return root, tr
}

func ok(ctx context.Context) error { return nil }

func fail(msg string) suite.Runnable {
	return suite.Func(func(ctx context.Context) error { return errors.New(msg) })
}

func TestNewRunner(t *testing.T) {
	t.Run("with nil config and bus", func(t *testing.T) {
		r := NewRunner(nil, nil)
		assert.NotNil(t, r)
		assert.NotNil(t, r.Bus())
		assert.NotNil(t, r.config)
		assert.NotNil(t, r.log)
	})

	t.Run("with custom config", func(t *testing.T) {
		bus := event.NewBus()
		r := NewRunner(bus, &Config{Language: "de"})
		assert.Same(t, bus, r.Bus())
		assert.Equal(t, "de", r.config.Language)
	})
}

func TestRunner_EventOrder(t *testing.T) {
	_, tr := run(t, func(b *suite.Builder) {
		b.Test("root test", suite.Func(ok))
		b.Context("A", func(b *suite.Builder) {
			b.Setup("setup", suite.Func(ok))
			b.Test("a1", suite.Func(ok))
			b.Context("A1", func(b *suite.Builder) {
				b.Test("deep", suite.Func(ok))
			})
			b.Teardown("teardown", suite.Func(ok))
		})
		b.Context("B", func(b *suite.Builder) {
			b.Test("b1", fail("nope"))
		})
	})

	assert.Equal(t, []string{
		"start",
		"context:",
		"test:root test:pass",
		"end:",
		"context:A",
		"test:a1:pass",
		"end:A",
		"context:A1",
		"test:deep:pass",
		"end:A1",
		"context:B",
		"test:b1:fail",
		"end:B",
		"end",
	}, tr.lines)
}

func TestRunner_OneEventPerSelectedTest(t *testing.T) {
	root, tr := run(t, func(b *suite.Builder) {
		b.Context("plain", func(b *suite.Builder) {
			b.Test("one", suite.Func(ok))
			b.Skip("two", nil)
			b.Test("three", fail("x"))
		})
		b.Context("exclusive", func(b *suite.Builder) {
			b.Test("excluded", suite.Func(ok))
			b.Only("chosen", suite.Func(ok))
		})
	})

	seen := map[*suite.Task]int{}
	for _, task := range tr.tests {
		seen[task]++
	}

	expected := 0
	root.Walk(func(c *suite.Context) bool {
		for _, task := range c.Selected() {
			expected++
			assert.Equal(t, 1, seen[task], "task %q", task.Label)
		}
		return true
	})
	assert.Equal(t, expected, len(tr.tests))
	assert.Equal(t, 4, expected)
	assert.NotContains(t, tr.lines, "test:excluded:pass")
}

func TestRunner_SkipCascade(t *testing.T) {
	var ran []string
	record := func(name string) suite.Runnable {
		return suite.Func(func(ctx context.Context) error {
			ran = append(ran, name)
			return nil
		})
	}

	_, tr := run(t, func(b *suite.Builder) {
		b.SkipContext("skipped", func(b *suite.Builder) {
			b.Setup("setup", record("setup"))
			b.Before("before", record("before"))
			b.Test("direct", record("direct"))
			b.Context("level 1", func(b *suite.Builder) {
				b.Context("level 2", func(b *suite.Builder) {
					b.Context("level 3", func(b *suite.Builder) {
						b.Test("deep", record("deep"))
					})
				})
			})
			b.Teardown("teardown", record("teardown"))
		})
	})

	assert.Empty(t, ran)
	require.Len(t, tr.tests, 2)
	for _, task := range tr.tests {
		assert.True(t, task.Skipped(), task.Label)
		assert.Equal(t, suite.TaskTiming{}, task.Timing)
	}
	assert.False(t, tr.tests[1].Skip)
	assert.Equal(t, 1, tr.count("end:level 3"))
}

func TestRunner_OnlyScoping(t *testing.T) {
	var ran []string
	record := func(name string) suite.Runnable {
		return suite.Func(func(ctx context.Context) error {
			ran = append(ran, name)
			return nil
		})
	}

	_, tr := run(t, func(b *suite.Builder) {
		b.Context("selective", func(b *suite.Builder) {
			b.Test("plain", record("plain"))
			b.Skip("plain skipped", record("plain skipped"))
			b.Only("only one", record("only one"))
			b.Only("only two", record("only two"))
		})
		b.Context("sibling", func(b *suite.Builder) {
			b.Test("sibling plain", record("sibling plain"))
		})
	})

	assert.Equal(t, []string{"only one", "only two", "sibling plain"}, ran)
	assert.Equal(t, 3, tr.count("test:"))
	assert.Zero(t, tr.count("test:plain"))
}

func TestRunner_SetupFailureGating(t *testing.T) {
	var ran []string
	record := func(name string) suite.Runnable {
		return suite.Func(func(ctx context.Context) error {
			ran = append(ran, name)
			return nil
		})
	}

	root, tr := run(t, func(b *suite.Builder) {
		b.Context("A", func(b *suite.Builder) {
			b.Setup("first setup", record("first setup"))
			b.Setup("setup should fail", fail("Setup Error"))
			b.Setup("never", record("third setup"))
			b.Test("this should not run", record("test"))
			b.Teardown("teardown should not run", record("teardown"))
			b.Context("child", func(b *suite.Builder) {
				b.Test("child test", record("child"))
			})
		})
		b.Context("B", func(b *suite.Builder) {
			b.Test("unaffected", record("unaffected"))
		})
	})

	assert.Equal(t, []string{"first setup", "unaffected"}, ran)
	assert.Equal(t, []string{
		"start",
		"context:",
		"end:",
		"context:A",
		"setup:setup should fail",
		"end:A",
		"context:B",
		"test:unaffected:pass",
		"end:B",
		"end",
	}, tr.lines)

	a := root.Children()[0]
	require.Error(t, a.Err)
	assert.Equal(t, "Setup Error", a.Err.Error())
	assert.Equal(t, suite.StateFatal, a.State)
	assert.Equal(t, suite.StatePending, a.Children()[0].State)

	hook := a.Tasks(suite.KindSetup)[1]
	assert.Same(t, hook, tr.hooks[0])
	assert.Equal(t, a.Err, hook.Err)
	assert.Nil(t, a.Tasks(suite.KindSetup)[2].Err)
}

func TestRunner_TeardownFailureGating(t *testing.T) {
	root, tr := run(t, func(b *suite.Builder) {
		b.Context("A", func(b *suite.Builder) {
			b.Test("test should run", suite.Func(ok))
			b.Test("failing test", fail("x"))
			b.Teardown("teardown should fail", fail("Teardown Error"))
			b.Context("child", func(b *suite.Builder) {
				b.Test("child test", suite.Func(ok))
			})
		})
	})

	assert.Equal(t, []string{
		"start",
		"context:",
		"end:",
		"context:A",
		"test:test should run:pass",
		"test:failing test:fail",
		"teardown:teardown should fail",
		"end:A",
		"end",
	}, tr.lines)

	a := root.Children()[0]
	assert.Equal(t, suite.StateFatal, a.State)
	assert.EqualError(t, a.Err, "Teardown Error")
	assert.Nil(t, a.Tasks(suite.KindTest)[0].Err)
}

func TestRunner_BeforeAfterHooks(t *testing.T) {
	var calls []string
	record := func(name string) suite.Runnable {
		return suite.Func(func(ctx context.Context) error {
			calls = append(calls, name)
			return nil
		})
	}

	t.Run("wrap every executed test", func(t *testing.T) {
		calls = nil
		_, tr := run(t, func(b *suite.Builder) {
			b.Before("b1", record("before 1"))
			b.Before("b2", record("before 2"))
			b.After("a1", record("after"))
			b.Test("first", record("first"))
			b.Test("failing", suite.Func(func(ctx context.Context) error {
				calls = append(calls, "failing")
				return errors.New("x")
			}))
			b.Skip("skipped", record("skipped"))
		})

		assert.Equal(t, []string{
			"before 1", "before 2", "first", "after",
			"before 1", "before 2", "failing", "after",
		}, calls)
		assert.Equal(t, 3, tr.count("test:"))
	})

	t.Run("failure aborts only the hook sequence", func(t *testing.T) {
		calls = nil
		attempt := 0
		_, tr := run(t, func(b *suite.Builder) {
			b.Before("flaky", suite.Func(func(ctx context.Context) error {
				attempt++
				if attempt == 1 {
					return errors.New("before failed")
				}
				return nil
			}))
			b.Before("second before", record("second before"))
			b.After("broken after", fail("after failed"))
			b.After("never after", record("never after"))
			b.Test("first", record("first"))
			b.Test("second", record("second"))
		})

		assert.Equal(t, []string{"first", "second before", "second"}, calls)
		assert.Equal(t, []string{
			"start",
			"context:",
			"before:flaky",
			"after:broken after",
			"test:first:pass",
			"after:broken after",
			"test:second:pass",
			"end:",
			"end",
		}, tr.lines)
	})
}

func TestRunner_Timing(t *testing.T) {
	sleep := func(d time.Duration) suite.Runnable {
		return suite.Func(func(ctx context.Context) error {
			time.Sleep(d)
			return nil
		})
	}

	root, tr := run(t, func(b *suite.Builder) {
		b.Before("before", sleep(2*time.Millisecond))
		b.After("after", sleep(2*time.Millisecond))
		b.Test("timed", sleep(5*time.Millisecond))
		b.Skip("skipped", sleep(5*time.Millisecond))
	})

	require.Len(t, tr.tests, 2)
	timed := tr.tests[0].Timing
	assert.Equal(t, timed.Before+timed.Task+timed.After, timed.Total)
	assert.GreaterOrEqual(t, timed.Task, 5*time.Millisecond)
	assert.GreaterOrEqual(t, timed.Before, 2*time.Millisecond)
	assert.GreaterOrEqual(t, timed.After, 2*time.Millisecond)

	assert.Equal(t, suite.TaskTiming{}, tr.tests[1].Timing)

	assert.GreaterOrEqual(t, root.Timing.Total, root.Timing.Tasks)
	assert.Equal(t, suite.StateDone, root.State)
}

func TestRunner_SiblingOrder(t *testing.T) {
	_, tr := run(t, func(b *suite.Builder) {
		for _, label := range []string{"b", "a", "c10", "c2"} {
			b.Context(label, func(b *suite.Builder) {})
		}
	})

	var order []string
	for _, l := range tr.lines {
		if strings.HasPrefix(l, "context:") && l != "context:" {
			order = append(order, strings.TrimPrefix(l, "context:"))
		}
	}
	assert.Equal(t, []string{"a", "b", "c2", "c10"}, order)
}

func TestRunner_Scenarios(t *testing.T) {
	t.Run("callback reports error through done", func(t *testing.T) {
		_, tr := run(t, func(b *suite.Builder) {
			b.Test("callback error", suite.Callback(func(ctx context.Context, done suite.Done) {
				done(errors.New("x"))
			}))
		})
		require.Len(t, tr.tests, 1)
		assert.EqualError(t, tr.tests[0].Err, "x")
	})

	t.Run("rejected channel without done", func(t *testing.T) {
		_, tr := run(t, func(b *suite.Builder) {
			b.Test("async error", suite.Async(func(ctx context.Context) <-chan error {
				ch := make(chan error, 1)
				go func() {
					time.Sleep(time.Millisecond)
					ch <- errors.New("x")
				}()
				return ch
			}))
		})
		require.Len(t, tr.tests, 1)
		assert.EqualError(t, tr.tests[0].Err, "x")
	})

	t.Run("synchronous panic does not stop the next test", func(t *testing.T) {
		_, tr := run(t, func(b *suite.Builder) {
			b.Test("throws", suite.Func(func(ctx context.Context) error {
				panic("It is supposed to fail")
			}))
			b.Test("still runs", suite.Func(ok))
		})

		require.Len(t, tr.tests, 2)
		var pe *suite.PanicError
		require.ErrorAs(t, tr.tests[0].Err, &pe)
		assert.Equal(t, "It is supposed to fail", pe.Value)
		assert.NotEmpty(t, pe.Stack)
		assert.NoError(t, tr.tests[1].Err)
	})

	t.Run("callback settled late from a goroutine", func(t *testing.T) {
		_, tr := run(t, func(b *suite.Builder) {
			for i := 0; i < 4; i++ {
				b.Test(fmt.Sprintf("nested.async(%d)", i+1), suite.Callback(func(ctx context.Context, done suite.Done) {
					time.AfterFunc(time.Millisecond, func() { done(nil) })
				}))
			}
		})
		require.Len(t, tr.tests, 4)
		for _, task := range tr.tests {
			assert.NoError(t, task.Err)
		}
	})

	t.Run("only the first settlement counts", func(t *testing.T) {
		_, tr := run(t, func(b *suite.Builder) {
			b.Test("twice", suite.Callback(func(ctx context.Context, done suite.Done) {
				done(nil)
				done(errors.New("ignored"))
				panic("also ignored")
			}))
		})
		require.Len(t, tr.tests, 1)
		assert.NoError(t, tr.tests[0].Err)
	})
}

func TestRunner_MissingBody(t *testing.T) {
	root, tr := run(t, func(b *suite.Builder) {
		b.Test("no body", nil)
		b.Skip("skipped no body", nil)
	})

	require.Len(t, tr.tests, 2)
	assert.ErrorIs(t, tr.tests[0].Err, suite.ErrNoBody)
	assert.NoError(t, tr.tests[1].Err)
	assert.Equal(t, suite.StateDone, root.State)
}

func TestRunner_ContextReachesBodies(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	var got any
	root, err := suite.Load(func(b *suite.Builder) {
		b.Test("reads ctx", suite.Func(func(ctx context.Context) error {
			got = ctx.Value(key{})
			return nil
		}))
	})
	require.NoError(t, err)

	require.NoError(t, NewRunner(nil, nil).Run(ctx, root))
	assert.Equal(t, "value", got)
}

func TestRunner_RunOnce(t *testing.T) {
	r := NewRunner(nil, nil)
	assert.ErrorIs(t, r.Run(context.Background(), nil), ErrNilRoot)

	root, err := suite.Load(func(b *suite.Builder) {
		b.Test("t", suite.Func(ok))
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), root))
	assert.ErrorIs(t, r.Run(context.Background(), root), ErrAlreadyRun)
}

func TestRunner_HandlerPanicEscapes(t *testing.T) {
	root, err := suite.Load(func(b *suite.Builder) {
		b.Test("t", suite.Func(ok))
	})
	require.NoError(t, err)

	bus := event.NewBus()
	bus.On(event.NameTest, event.HandlerFunc(func(event.Event) { panic("reporter defect") }))

	assert.PanicsWithValue(t, "reporter defect", func() {
		_ = NewRunner(bus, nil).Run(context.Background(), root)
	})
}
