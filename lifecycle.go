package syncstore

// WhenReady wraps an event handler so that it is only ever called once the store is ready.
//
// Events passed to the returned function before the store is ready are held, and delivered to
// handler in the order they arrived as soon as the store becomes ready. After that, events are
// delivered immediately on the caller's goroutine.
//
//	onMessage := syncstore.WhenReady(store, func(msg Message) {
//	    if syncstore.Get(store, syncstore.ToClipboard) {
//	        // ...
//	    }
//	})
func WhenReady[T any](s *Store, handler func(T)) func(T) {
	return func(event T) {
		s.replica.OnReady(func() {
			handler(event)
		})
	}
}
