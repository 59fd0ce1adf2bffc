// Package schema loads and filters the field descriptors of an entity class.
package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/oshokin/secpi-console/internal/domain/entity"
	"github.com/oshokin/secpi-console/internal/gateway"
	"github.com/oshokin/secpi-console/internal/logger"
)

// Schema caches the ordered field descriptors of one class.
type Schema struct {
	class  entity.Class
	caller gateway.Caller

	mu     sync.RWMutex
	fields []entity.FieldDescriptor
	loaded bool
}

// New creates an empty schema for class.
func New(class entity.Class, caller gateway.Caller) *Schema {
	return &Schema{
		class:  class,
		caller: caller,
	}
}

// Class returns the class the schema describes.
func (s *Schema) Class() entity.Class {
	return s.class
}

// Load fetches the descriptors with one remote call and replaces the cache.
// On failure the previous cache is kept.
func (s *Schema) Load(ctx context.Context) error {
	res, err := s.caller.Call(ctx, s.class.Endpoint(entity.OpFieldList), nil)
	if err != nil {
		return fmt.Errorf("load %s field list: %w", s.class, err)
	}

	fields, err := entity.DecodeFieldList(res.Data)
	if err != nil {
		return fmt.Errorf("load %s field list: %w", s.class, err)
	}

	s.mu.Lock()
	s.fields = fields
	s.loaded = true
	s.mu.Unlock()

	logger.DebugKV(ctx, "Field list loaded", "class", s.class.String(), "fields", len(fields))

	return nil
}

// Reload is Load under another name for callers that refresh explicitly.
func (s *Schema) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Loaded reports whether a load has succeeded at least once.
func (s *Schema) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loaded
}

// Fields returns all cached descriptors in server order.
func (s *Schema) Fields() []entity.FieldDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]entity.FieldDescriptor(nil), s.fields...)
}

// FieldsFor returns the cached descriptors visible in purpose, in server order.
func (s *Schema) FieldsFor(purpose entity.Purpose) []entity.FieldDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]entity.FieldDescriptor, 0, len(s.fields))

	for _, f := range s.fields {
		if f.VisibleIn(purpose) {
			result = append(result, f)
		}
	}

	return result
}

// Defaults builds an entity holding the declared default of every field
// visible in purpose.
func (s *Schema) Defaults(purpose entity.Purpose) entity.Entity {
	result := entity.Entity{}

	for _, f := range s.FieldsFor(purpose) {
		if v, ok := f.Default(); ok {
			result[f.Key] = v
		}
	}

	return result.Clone()
}
