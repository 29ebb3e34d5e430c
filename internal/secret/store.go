// Package secret stores credentials behind opaque, namespaced references
// so the rest of the pipeline never handles a concrete backend.
package secret

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a reference does not resolve to a secret.
var ErrNotFound = errors.New("secret not found")

// Store is the capability the pipeline depends on. References are opaque
// strings of the form "<kind>:<id>"; the kind prefix selects the backend.
type Store interface {
	// Save stores a secret and returns its reference. Passing a previous
	// reference updates that entry in place and returns the same reference.
	Save(secret, existingRef string) (string, error)
	// Resolve returns the secret behind a reference.
	Resolve(ref string) (string, error)
	// Delete removes the secret. A missing reference is a silent no-op.
	Delete(ref string) error
}

// Kind extracts the namespace prefix of a reference, or "" when absent.
func Kind(ref string) string {
	if i := strings.IndexByte(ref, ':'); i > 0 {
		return ref[:i]
	}
	return ""
}

// Registry routes operations to the store registered for a reference's
// namespace. New secrets go to the default store.
type Registry struct {
	stores       map[string]Store
	defaultStore Store
	defaultKind  string
}

// NewRegistry creates a registry with the given default backend.
func NewRegistry(defaultKind string, defaultStore Store) *Registry {
	return &Registry{
		stores:       map[string]Store{defaultKind: defaultStore},
		defaultStore: defaultStore,
		defaultKind:  defaultKind,
	}
}

// Register adds a backend for a namespace.
func (r *Registry) Register(kind string, store Store) {
	r.stores[kind] = store
}

// Save routes to the existing reference's backend, or to the default for a
// new secret.
func (r *Registry) Save(secret, existingRef string) (string, error) {
	if existingRef != "" {
		store, err := r.storeFor(existingRef)
		if err != nil {
			return "", err
		}
		return store.Save(secret, existingRef)
	}
	return r.defaultStore.Save(secret, "")
}

// Resolve returns the secret behind ref.
func (r *Registry) Resolve(ref string) (string, error) {
	store, err := r.storeFor(ref)
	if err != nil {
		return "", err
	}
	return store.Resolve(ref)
}

// Delete removes the secret behind ref.
func (r *Registry) Delete(ref string) error {
	store, err := r.storeFor(ref)
	if err != nil {
		return err
	}
	return store.Delete(ref)
}

func (r *Registry) storeFor(ref string) (Store, error) {
	kind := Kind(ref)
	store, ok := r.stores[kind]
	if !ok {
		return nil, fmt.Errorf("no secret backend for reference kind %q", kind)
	}
	return store, nil
}
