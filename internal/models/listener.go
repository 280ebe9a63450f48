package models

import "context"

// ChainListener is a long-running watcher for one chain. Run blocks until
// the context is cancelled; it calls Connect itself, retrying until the
// chain endpoint answers, and recovers from transient chain errors on its
// own. Watch and Unwatch mutate the listener's owned watch-list at runtime.
type ChainListener interface {
	Watcher

	Chain() Chain
	Connect(ctx context.Context) error
	Run(ctx context.Context)
}
