package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/control/packages/core/suite"
	"github.com/pkg/errors"
)

var pass = suite.Func(func(context.Context) error { return nil })

func nope(context.Context) error {
	return errors.New("Nope")
}

// basics mirrors the smallest useful tree: root tests, nested contexts,
// skips and an exclusive test.
func basics(b *suite.Builder) {
	b.Test("sum", suite.Func(func(context.Context) error {
		if 1+1 != 2 {
			return errors.New("arithmetic is broken")
		}
		return nil
	}))
	b.Test("fail", suite.Func(func(context.Context) error {
		return errors.Errorf("expected %v to be truthy", false)
	}))

	b.Context("context", func(b *suite.Builder) {
		b.Test("context.ok", pass)
		b.Skip(".skip", suite.Func(func(context.Context) error {
			panic("should not run")
		}))
		b.Test("context.fail", suite.Func(nope))

		b.Context("nested context", func(b *suite.Builder) {
			b.Test("nested.ok", pass)
			b.Skip("nested.skip", nil)
			for i := 1; i <= 4; i++ {
				b.Test(fmt.Sprintf("nested.async(%d)", i), suite.Callback(func(_ context.Context, done suite.Done) {
					time.AfterFunc(time.Millisecond, func() { done(nil) })
				}))
			}

			b.Context("level 2", func(b *suite.Builder) {
				b.Test("l2.ok", pass)
				b.Skip("l2.skip", pass)
				b.Test("l2.fail", suite.Func(nope))
			})

			b.Test("nested.fail", suite.Func(nope))
		})

		b.Context("sibling", func(b *suite.Builder) {
			b.Test("sibling.ok", pass)
			b.Skip("sibling.skip", pass)
			b.Test("sibling.fail", suite.Func(nope))
		})

		b.Context("selective sibling", func(b *suite.Builder) {
			b.Test("selective.ok", pass)
			b.Only("selective.only", pass)
			b.Test("selective.fail", suite.Func(nope))
		})
	})
}

// store is a toy resource shared by the hooks of the lifecycle suite.
type store struct {
	mu   sync.Mutex
	open bool
	rows map[string]string
}

func (s *store) put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return errors.New("store is closed")
	}
	s.rows[key] = value
	return nil
}

func (s *store) get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[key]
	if !ok {
		return "", errors.Errorf("key %q not found", key)
	}
	return v, nil
}

// lifecycle exercises every hook kind and how their failures propagate.
func lifecycle(b *suite.Builder) {
	b.Context("store", func(b *suite.Builder) {
		s := &store{}

		b.Setup("open", suite.Func(func(context.Context) error {
			s.open = true
			s.rows = make(map[string]string)
			return nil
		}))
		b.Before("seed", suite.Func(func(context.Context) error {
			return s.put("greeting", "hello")
		}))
		b.After("clear", suite.Func(func(context.Context) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			clear(s.rows)
			return nil
		}))
		b.Teardown("close", suite.Func(func(context.Context) error {
			s.open = false
			return nil
		}))

		b.Test("reads seeded rows", suite.Func(func(context.Context) error {
			v, err := s.get("greeting")
			if err != nil {
				return err
			}
			if v != "hello" {
				return errors.Errorf("got %q", v)
			}
			return nil
		}))
		b.Test("rows do not leak between tests", suite.Func(func(context.Context) error {
			if _, err := s.get("scratch"); err == nil {
				return errors.New("scratch row survived the after hook")
			}
			return s.put("scratch", "x")
		}))
		b.Test("async write", suite.Async(func(context.Context) <-chan error {
			ch := make(chan error, 1)
			go func() {
				ch <- s.put("async", "done")
			}()
			return ch
		}))
	})

	b.Context("unreachable database", func(b *suite.Builder) {
		b.Setup("connect", suite.Func(func(context.Context) error {
			return errors.Wrap(errors.New("connection refused"), "dial 127.0.0.1:5432")
		}))
		b.Test("never runs", pass)
		b.Context("migrations", func(b *suite.Builder) {
			b.Test("never runs either", pass)
		})
	})

	b.Context("leaky cache", func(b *suite.Builder) {
		b.Teardown("flush", suite.Callback(func(_ context.Context, done suite.Done) {
			go done(errors.New("flush timed out"))
		}))
		b.Test("warms", pass)
		b.Context("eviction", func(b *suite.Builder) {
			b.Test("is skipped after the failed teardown", pass)
		})
	})

	b.Context("flaky hooks", func(b *suite.Builder) {
		calls := 0
		b.Before("maybe", suite.Func(func(context.Context) error {
			calls++
			if calls == 2 {
				return errors.New("second before failed")
			}
			return nil
		}))
		b.Test("first", pass)
		b.Test("second still runs", pass)
		b.Test("third", pass)
	})
}

// failures shows how unusual failures are reported.
func failures(b *suite.Builder) {
	b.Context("panics", func(b *suite.Builder) {
		b.Test("explodes", suite.Func(func(context.Context) error {
			var m map[string]int
			m["boom"]++
			return nil
		}))
		b.Test("keeps going", pass)
	})

	b.Context("callbacks", func(b *suite.Builder) {
		b.Test("first settlement wins", suite.Callback(func(_ context.Context, done suite.Done) {
			done(nil)
			done(errors.New("ignored"))
		}))
		b.Test("error through done", suite.Callback(func(_ context.Context, done suite.Done) {
			done(errors.New("callback failed"))
		}))
		b.Test("callback and channel", suite.CallbackAsync(func(_ context.Context, done suite.Done) <-chan error {
			ch := make(chan error)
			go func() {
				time.Sleep(time.Millisecond)
				close(ch)
			}()
			return ch
		}))
	})

	b.SkipContext("legacy", func(b *suite.Builder) {
		b.Test("old behaviour", suite.Func(nope))
		b.Context("older", func(b *suite.Builder) {
			b.Test("ancient behaviour", suite.Func(nope))
		})
	})
}
