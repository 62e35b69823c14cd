package inputrouter

import "github.com/tim-agents/tim/internal/tim"

// RegisterTunnel installs the tunnel-forwarding route: every content
// string the returned handler is called with becomes a
// follow-up message, until stdin closes, at which point the handler is
// a no-op.
func (r *Router) RegisterTunnel() func(content string) {
	r.mu.Lock()
	r.source = tim.InputSourceTunnel
	r.mu.Unlock()

	return func(content string) {
		if r.closed.Load() {
			return
		}
		r.submitFollowup(content)
	}
}

// RegisterGUI installs the headless/GUI route: identical to tunnel
// forwarding, but additionally mirrors the content to any
// live tunnel server and fires OnUserInput with source "gui".
func (r *Router) RegisterGUI() func(content string) {
	r.mu.Lock()
	r.source = tim.InputSourceGUI
	r.mu.Unlock()

	return func(content string) {
		if r.closed.Load() {
			return
		}
		r.submitFollowup(content)
		if r.MirrorToTunnel != nil {
			r.MirrorToTunnel(content)
		}
		if r.OnUserInput != nil {
			r.OnUserInput(UserInputEvent{Source: tim.InputSourceGUI, Content: content})
		}
	}
}

// ClearGUIHandler is part of the cleanup stack: it simply
// forgets the active source so a stale callback can't be mistaken for
// a live one; the handler closure returned by RegisterGUI already
// checks r.closed before doing anything.
func (r *Router) ClearGUIHandler() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = tim.InputSourceNone
}

// ActiveSource reports which route is currently feeding stdin.
func (r *Router) ActiveSource() tim.InputSourcePolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}
