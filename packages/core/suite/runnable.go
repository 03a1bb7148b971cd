package suite

import (
	"context"
	"fmt"
)

// Done signals that a callback-style body finished. A nil error marks success.
// Only the first call counts.
type Done func(err error)

// Runnable is the body of a task. Run must eventually invoke done exactly
// once; the runner ignores any later invocation.
type Runnable interface {
	Run(ctx context.Context, done Done)
}

// funcBody completes when the function returns.
type funcBody func(ctx context.Context) error

// Func wraps a body whose completion is its return.
func Func(fn func(ctx context.Context) error) Runnable {
	if fn == nil {
		return nil
	}
	return labeled{Runnable: funcBody(fn), label: funcLabel(fn)}
}

func (f funcBody) Run(ctx context.Context, done Done) {
	done(f(ctx))
}

// asyncBody completes when the returned channel yields or closes.
type asyncBody func(ctx context.Context) <-chan error

// Async wraps a body that starts work and hands back a channel settled with
// the outcome. A closed channel is a success; a nil channel completes at once.
func Async(fn func(ctx context.Context) <-chan error) Runnable {
	if fn == nil {
		return nil
	}
	return labeled{Runnable: asyncBody(fn), label: funcLabel(fn)}
}

func (f asyncBody) Run(ctx context.Context, done Done) {
	await(f(ctx), done)
}

// callbackBody completes only through done.
type callbackBody func(ctx context.Context, done Done)

// Callback wraps a body that reports completion through its Done handle.
func Callback(fn func(ctx context.Context, done Done)) Runnable {
	if fn == nil {
		return nil
	}
	return labeled{Runnable: callbackBody(fn), label: funcLabel(fn)}
}

func (f callbackBody) Run(ctx context.Context, done Done) {
	f(ctx, done)
}

// callbackAsyncBody settles on whichever of done or the channel comes first.
type callbackAsyncBody func(ctx context.Context, done Done) <-chan error

// CallbackAsync wraps a body that receives a Done handle and may also return
// a channel. The first settlement wins. When the returned channel is nil the
// body completes only through done.
func CallbackAsync(fn func(ctx context.Context, done Done) <-chan error) Runnable {
	if fn == nil {
		return nil
	}
	return labeled{Runnable: callbackAsyncBody(fn), label: funcLabel(fn)}
}

func (f callbackAsyncBody) Run(ctx context.Context, done Done) {
	if ch := f(ctx, done); ch != nil {
		await(ch, done)
	}
}

func await(ch <-chan error, done Done) {
	if ch == nil {
		done(nil)
		return
	}
	go func() {
		err, ok := <-ch
		if !ok {
			err = nil
		}
		done(err)
	}()
}

// labeled carries the declared name of the wrapped function.
type labeled struct {
	Runnable
	label string
}

func bodyLabel(r Runnable) string {
	if l, ok := r.(labeled); ok {
		return l.label
	}
	return ""
}

// PanicError is recorded when a body panics while it is invoked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return fmt.Sprintf("panic: %v", err)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
