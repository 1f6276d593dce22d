// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/office2img/pkg/types"
)

// bounded runs fn and waits at most limit for it. A call that outlives the
// limit yields ErrBackendTimeout; the goroutine running it is abandoned
// because a hung automation call cannot be interrupted from Go. A zero limit
// calls fn directly.
func bounded[T any](ctx context.Context, limit time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	return boundedRelease(ctx, limit, op, fn, nil)
}

// boundedRelease is bounded for calls whose result owns a resource. When the
// wait is abandoned, release receives the value if fn later succeeds.
func boundedRelease[T any](ctx context.Context, limit time.Duration, op string, fn func(context.Context) (T, error), release func(T)) (T, error) {
	if limit <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	timeout := func() error {
		return fmt.Errorf("%w: %s did not return within %v", types.ErrBackendTimeout, op, limit)
	}

	drain := func() {
		if release == nil {
			return
		}
		go func() {
			if r := <-done; r.err == nil {
				release(r.v)
			}
		}()
	}

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return r.v, timeout()
		}
		return r.v, r.err
	case <-ctx.Done():
		drain()
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, timeout()
		}
		return zero, ctx.Err()
	}
}

func boundedErr(ctx context.Context, limit time.Duration, op string, fn func(context.Context) error) error {
	_, err := bounded(ctx, limit, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// timedDocuments applies the bounded wait to every call into a Documents
// session and the documents it opens.
type timedDocuments struct {
	inner Documents
	limit time.Duration
}

func (t *timedDocuments) Quit(ctx context.Context) error {
	return boundedErr(ctx, t.limit, "quit document application", t.inner.Quit)
}

func (t *timedDocuments) Open(ctx context.Context, path string) (Document, error) {
	doc, err := bounded(ctx, t.limit, "open document", func(ctx context.Context) (Document, error) {
		return t.inner.Open(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return &timedDocument{inner: doc, limit: t.limit}, nil
}

type timedDocument struct {
	inner Document
	limit time.Duration
}

func (t *timedDocument) PageCount(ctx context.Context) (int, error) {
	return bounded(ctx, t.limit, "read page count", t.inner.PageCount)
}

func (t *timedDocument) ExportPDF(ctx context.Context, outPath string) error {
	return boundedErr(ctx, t.limit, "export PDF", func(ctx context.Context) error {
		return t.inner.ExportPDF(ctx, outPath)
	})
}

func (t *timedDocument) Close(ctx context.Context) error {
	return boundedErr(ctx, t.limit, "close document", t.inner.Close)
}

type timedPresentations struct {
	inner Presentations
	limit time.Duration
}

func (t *timedPresentations) Quit(ctx context.Context) error {
	return boundedErr(ctx, t.limit, "quit presentation application", t.inner.Quit)
}

func (t *timedPresentations) Open(ctx context.Context, path string) (Presentation, error) {
	p, err := bounded(ctx, t.limit, "open presentation", func(ctx context.Context) (Presentation, error) {
		return t.inner.Open(ctx, path)
	})
	if err != nil {
		return nil, err
	}
	return &timedPresentation{inner: p, limit: t.limit}, nil
}

type timedPresentation struct {
	inner Presentation
	limit time.Duration
}

func (t *timedPresentation) SlideCount(ctx context.Context) (int, error) {
	return bounded(ctx, t.limit, "read slide count", t.inner.SlideCount)
}

func (t *timedPresentation) SlideSize(ctx context.Context) (float64, float64, error) {
	type size struct{ w, h float64 }
	s, err := bounded(ctx, t.limit, "read slide size", func(ctx context.Context) (size, error) {
		w, h, err := t.inner.SlideSize(ctx)
		return size{w, h}, err
	})
	return s.w, s.h, err
}

func (t *timedPresentation) ExportSlide(ctx context.Context, index int, outPath string, filter ExportFilter, width, height int) error {
	return boundedErr(ctx, t.limit, fmt.Sprintf("export slide %d", index), func(ctx context.Context) error {
		return t.inner.ExportSlide(ctx, index, outPath, filter, width, height)
	})
}

func (t *timedPresentation) Shapes(ctx context.Context, index int) ([]Shape, error) {
	return bounded(ctx, t.limit, fmt.Sprintf("read shapes of slide %d", index), func(ctx context.Context) ([]Shape, error) {
		return t.inner.Shapes(ctx, index)
	})
}

func (t *timedPresentation) Close(ctx context.Context) error {
	return boundedErr(ctx, t.limit, "close presentation", t.inner.Close)
}
