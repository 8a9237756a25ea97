// Package di is a minimal dependency injection container: named
// values registered eagerly, and typed tokens registered as lazily
// resolved factories. Each bounded context declares its own tokens
// (see business/*/di) and wires them in its module's RegisterServices.
package di

import (
	"fmt"
	"sync"
)

// Token identifies a typed service by name. The zero value is unusable;
// construct with NewToken.
type Token[T any] struct {
	name string
}

// NewToken creates a Token identified by name. name should be unique
// across the whole container, conventionally "context.ServiceName" for
// public services and "context:privateDep" for internal ones.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// Name returns the token's registration key.
func (t Token[T]) Name() string {
	return t.name
}

// ServiceRegistry is the read side of the container: resolve a value
// by name. Factories receive a ServiceRegistry rather than a full
// Container so they cannot register new services during resolution.
type ServiceRegistry interface {
	Get(name string) any
}

// Container is the write side: register eager values and lazy
// factories.
type Container interface {
	ServiceRegistry
	Register(name string, value any)
	RegisterFactory(name string, factory func(ServiceRegistry) any)
}

type registry struct {
	mu        sync.Mutex
	values    map[string]any
	factories map[string]func(ServiceRegistry) any
}

// NewContainer creates an empty Container.
func NewContainer() Container {
	return &registry{
		values:    make(map[string]any),
		factories: make(map[string]func(ServiceRegistry) any),
	}
}

// Register stores an already-constructed value under name.
func (r *registry) Register(name string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name] = value
}

// RegisterFactory stores a factory that is invoked at most once, the
// first time name is resolved via Get. The resolved value is then
// cached as if it had been Register-ed directly.
func (r *registry) RegisterFactory(name string, factory func(ServiceRegistry) any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get resolves name, invoking and caching its factory on first use.
// Panics if name has neither a value nor a factory registered.
func (r *registry) Get(name string) any {
	r.mu.Lock()
	if v, ok := r.values[name]; ok {
		r.mu.Unlock()
		return v
	}
	factory, ok := r.factories[name]
	r.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("di: service %q is not registered", name))
	}

	value := factory(r)

	r.mu.Lock()
	r.values[name] = value
	delete(r.factories, name)
	r.mu.Unlock()
	return value
}

// RegisterToken registers factory as the lazy resolver for token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.RegisterFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves token from sr, panicking if the stored value does
// not have the token's static type (a wiring bug, not a runtime
// condition callers should recover from).
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	value := sr.Get(token.name)
	typed, ok := value.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q does not have the expected type", token.name))
	}
	return typed
}
