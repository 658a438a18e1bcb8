package mocks

import (
	"sync"

	"github.com/snapshelf/syncstore/subsystems"
)

// SingleComponentConfigurer is a test implementation of ComponentConfigurer that always returns the same
// pre-existing instance.
type SingleComponentConfigurer[T any] struct {
	Instance T
}

// Build builds the component.
func (c SingleComponentConfigurer[T]) Build(clientContext subsystems.ClientContext) (T, error) {
	return c.Instance, nil
}

// ComponentConfigurerThatReturnsError is a test implementation of ComponentConfigurer that always returns
// an error.
type ComponentConfigurerThatReturnsError[T any] struct {
	Err error
}

// Build builds the component.
func (c ComponentConfigurerThatReturnsError[T]) Build(clientContext subsystems.ClientContext) (T, error) {
	var empty T
	return empty, c.Err
}

// ComponentConfigurerThatCapturesClientContext is a test decorator for a ComponentConfigurer that allows
// tests to see every ClientContext that was passed to it.
type ComponentConfigurerThatCapturesClientContext[T any] struct {
	Configurer subsystems.ComponentConfigurer[T]
	received   []subsystems.ClientContext
	lock       sync.Mutex
}

// Build builds the component.
func (c *ComponentConfigurerThatCapturesClientContext[T]) Build(clientContext subsystems.ClientContext) (T, error) {
	c.lock.Lock()
	c.received = append(c.received, clientContext)
	c.lock.Unlock()
	return c.Configurer.Build(clientContext)
}

// ReceivedClientContexts returns the contexts passed to Build so far, in order.
func (c *ComponentConfigurerThatCapturesClientContext[T]) ReceivedClientContexts() []subsystems.ClientContext {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]subsystems.ClientContext(nil), c.received...)
}
