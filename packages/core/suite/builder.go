package suite

import (
	"github.com/pkg/errors"
)

// Definition registers contexts and tasks on a builder.
type Definition func(b *Builder)

// Builder is the registration cursor. Every call attaches to the current
// context, which Context and SkipContext move down for the duration of their
// definition function.
type Builder struct {
	root    *Context
	current *Context
	sealed  bool
}

// NewBuilder returns a builder positioned at a fresh anonymous root.
func NewBuilder() *Builder {
	root := newContext("")
	return &Builder{
		root:    root,
		current: root,
	}
}

// Load runs every definition against a new builder and returns the sealed
// root. A panic raised while registering is returned as an error and no tree
// is produced.
func Load(defs ...Definition) (root *Context, err error) {
	b := NewBuilder()
	defer func() {
		if r := recover(); r != nil {
			root = nil
			if e, ok := r.(error); ok {
				err = errors.Wrap(e, "loading suite")
				return
			}
			err = errors.Errorf("loading suite: %v", r)
		}
	}()
	for _, def := range defs {
		if def == nil {
			continue
		}
		def(b)
	}
	return b.Root(), nil
}

// Root seals the builder and returns the root context.
func (b *Builder) Root() *Context {
	b.sealed = true
	return b.root
}

// Current returns the context registration currently attaches to.
func (b *Builder) Current() *Context {
	return b.current
}

// Context registers a child context of the current context that inherits its
// skip flag, and invokes fn with the child as the current context. An empty
// label is derived from fn's declared name.
func (b *Builder) Context(label string, fn func(b *Builder)) {
	b.context(label, fn, false)
}

// SkipContext is Context with the skip flag forced on. Contexts nested inside
// inherit the flag.
func (b *Builder) SkipContext(label string, fn func(b *Builder)) {
	b.context(label, fn, true)
}

func (b *Builder) context(label string, fn func(b *Builder), skip bool) {
	b.checkOpen()
	if fn == nil {
		panic(ErrNilDefinition)
	}
	if label == "" {
		label = funcLabel(fn)
	}

	parent := b.current
	child := newContext(label)
	child.Skip = skip || parent.Skip
	child.parent = parent
	child.parents = append(append(make([]*Context, 0, len(parent.parents)+1), parent.parents...), parent)
	parent.children = append(parent.children, child)

	b.current = child
	defer func() { b.current = parent }()
	fn(b)
}

// Setup registers a hook run once before the tests of the current context.
func (b *Builder) Setup(label string, body Runnable) {
	b.checkOpen()
	b.current.setup = append(b.current.setup, newTask(b.current, KindSetup, label, body))
}

// Teardown registers a hook run once after the tests of the current context.
func (b *Builder) Teardown(label string, body Runnable) {
	b.checkOpen()
	b.current.teardown = append(b.current.teardown, newTask(b.current, KindTeardown, label, body))
}

// Before registers a hook run before every test of the current context.
func (b *Builder) Before(label string, body Runnable) {
	b.checkOpen()
	b.current.before = append(b.current.before, newTask(b.current, KindBefore, label, body))
}

// After registers a hook run after every test of the current context.
func (b *Builder) After(label string, body Runnable) {
	b.checkOpen()
	b.current.after = append(b.current.after, newTask(b.current, KindAfter, label, body))
}

// Test registers a test.
func (b *Builder) Test(label string, body Runnable) {
	b.checkOpen()
	b.current.tests = append(b.current.tests, newTask(b.current, KindTest, label, body))
}

// Skip registers a test that is reported as skipped without running.
func (b *Builder) Skip(label string, body Runnable) {
	b.checkOpen()
	task := newTask(b.current, KindTest, label, body)
	task.Skip = true
	b.current.tests = append(b.current.tests, task)
}

// Only registers an exclusive test. When a context has exclusive tests its
// plain tests are not run.
func (b *Builder) Only(label string, body Runnable) {
	b.checkOpen()
	b.current.only = append(b.current.only, newTask(b.current, KindTest, label, body))
}

func (b *Builder) checkOpen() {
	if b.sealed {
		panic(ErrSealed)
	}
}
