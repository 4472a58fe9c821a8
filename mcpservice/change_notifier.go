package mcpservice

import (
	"context"
	"sync"
)

// ChangeNotifier is an in-process pub-sub for "this list changed" events. The
// Registry owns one per namespace; other capability implementations can embed
// one to offer list_changed support.
type ChangeNotifier struct {
	mu     sync.Mutex
	subs   map[chan struct{}]struct{}
	closed bool
}

// Notify signals every subscriber. Sends never block: a subscriber that has not
// consumed the previous signal is already due to observe a change.
func (cn *ChangeNotifier) Notify(ctx context.Context) error {
	cn.mu.Lock()
	defer cn.mu.Unlock()

	if cn.closed {
		return nil
	}
	for ch := range cn.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that receives a signal after each Notify. The
// subscription is removed and the channel closed once ctx is done or the
// notifier is closed.
func (cn *ChangeNotifier) Subscribe(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)

	cn.mu.Lock()
	if cn.closed {
		cn.mu.Unlock()
		close(ch)
		return ch
	}
	if cn.subs == nil {
		cn.subs = make(map[chan struct{}]struct{})
	}
	cn.subs[ch] = struct{}{}
	cn.mu.Unlock()

	go func() {
		<-ctx.Done()
		cn.mu.Lock()
		defer cn.mu.Unlock()
		if _, ok := cn.subs[ch]; ok {
			delete(cn.subs, ch)
			close(ch)
		}
	}()
	return ch
}

// Subscribers reports the number of live subscriptions.
func (cn *ChangeNotifier) Subscribers() int {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	return len(cn.subs)
}

// Close closes all subscriber channels. Later subscriptions receive an
// already-closed channel.
func (cn *ChangeNotifier) Close() {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.closed {
		return
	}
	cn.closed = true
	for ch := range cn.subs {
		close(ch)
	}
	cn.subs = nil
}

// forward runs fn for every signal on ch until ch closes or ctx is done.
func forward(ctx context.Context, ch <-chan struct{}, fn func(ctx context.Context) error, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			if err := fn(ctx); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
