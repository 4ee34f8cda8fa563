/*
Copyright 2021 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package effect is the inversion-of-control seam between the pure
// planner and the effectful shell (§4.1, §9). Side-effecting operations
// are not performed directly; they are described as an Intent and
// dispatched through Perform or Parallel. Tests substitute intents (or the
// providers they call) that return canned values, so the planner and
// converger stay unit-testable without a network.
package effect

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Intent describes a side effect without performing it. An intent that has
// never been performed has no observable effect.
type Intent[T any] interface {
	// Perform executes the intent using ctx for cancellation, returning its
	// result or an error.
	Perform(ctx context.Context) (T, error)
}

// IntentFunc adapts a plain function to an Intent.
type IntentFunc[T any] func(ctx context.Context) (T, error)

// Perform implements Intent.
func (f IntentFunc[T]) Perform(ctx context.Context) (T, error) { return f(ctx) }

// Perform dispatches a single intent. It exists so call sites read as
// effect.Perform(ctx, intent) rather than intent.Perform(ctx), keeping the
// dispatch point textually uniform with Parallel below.
func Perform[T any](ctx context.Context, i Intent[T]) (T, error) {
	return i.Perform(ctx)
}

// Parallel evaluates every intent concurrently and returns their results in
// input order. If any intent fails, Parallel returns the *first* error
// encountered (by argument position, not completion order) so callers see
// the originating provider error class directly rather than a wrapper —
// this is the FirstError rule of §4.1.c, on which the converger's
// first-error-unwrapping tests depend (§8, scenario 4).
func Parallel[T any](ctx context.Context, intents ...Intent[T]) ([]T, error) {
	results := make([]T, len(intents))
	errs := make([]error, len(intents))

	g, gctx := errgroup.WithContext(ctx)
	for i, intent := range intents {
		i, intent := i, intent
		g.Go(func() error {
			r, err := intent.Perform(gctx)
			results[i] = r
			errs[i] = err
			return nil // collect; don't let errgroup pick an arbitrary winner
		})
	}
	if err := g.Wait(); err != nil {
		// g.Go never returns a non-nil error above, so this is unreachable;
		// kept so a future refactor that does return err from Go fails loud.
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
