// Package talos is a document ODM built around explicit translation. This
// file defines the middleware system, which allows cross-cutting concerns
// (logging, caching, auditing) to be applied to ODM operations.
package talos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Operation represents the type of operation being executed by the ODM.
//
// It is used within middlewares to distinguish between inserts, updates,
// deletes, queries, and pipeline runs.
type Operation string

const (
	// OperationInsert corresponds to an insert (create) operation.
	OperationInsert Operation = "insert"
	// OperationUpdate corresponds to an update operation.
	OperationUpdate Operation = "update"
	// OperationDelete corresponds to a delete operation.
	OperationDelete Operation = "delete"
	// OperationFind corresponds to a query (find) operation.
	OperationFind Operation = "find"
	// OperationAggregate corresponds to a pipeline run.
	OperationAggregate Operation = "aggregate"
)

// Handler is the function signature executed by the operation pipeline.
//
// It receives a context, the operation type, and an arbitrary payload.
// Handlers are composed by middlewares to add cross-cutting logic.
type Handler func(ctx context.Context, op Operation, payload any) error

// Middleware is a function that wraps a Handler with additional logic.
//
// Middlewares are chained globally and executed for every operation.
// They follow the decorator pattern.
type Middleware func(next Handler) Handler

var globalMiddlewareList []Middleware

// Use registers a new global middleware, applied to all operations.
//
// Middlewares are executed in reverse registration order: the most recently
// registered middleware is executed first.
func Use(mw Middleware) {
	globalMiddlewareList = append(globalMiddlewareList, mw)
}

// runMiddlewares applies the chain of middlewares to the final handler.
func runMiddlewares(final Handler) Handler {
	h := final
	// Apply in reverse order (last registered runs first).
	for i := len(globalMiddlewareList) - 1; i >= 0; i-- {
		h = globalMiddlewareList[i](h)
	}
	return h
}

// dispatchOperation executes an operation through the global middleware
// chain.
//
// The exec function contains the core logic of the operation and is wrapped
// by the registered middlewares.
func dispatchOperation(ctx context.Context, op Operation, payload any, exec func() error) error {
	handler := runMiddlewares(func(ctx context.Context, op Operation, payload any) error {
		return exec()
	})
	return handler(ctx, op, payload)
}

// LoggingMiddleware logs every operation with its outcome and duration.
//
// Example:
//
//	logger, _ := zap.NewDevelopment()
//	talos.Use(talos.LoggingMiddleware(logger))
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			start := time.Now()
			err := next(ctx, op, payload)
			elapsed := time.Since(start)
			if err != nil {
				logger.Error("operation failed",
					zap.String("op", string(op)), zap.Duration("took", elapsed), zap.Error(err))
			} else {
				logger.Debug("operation done",
					zap.String("op", string(op)), zap.Duration("took", elapsed))
			}
			return err
		}
	}
}

// Cache defines the interface for pluggable caching mechanisms.
//
// A Cache stores arbitrary values with a TTL (time-to-live) and can be used
// by middlewares to avoid hitting the database repeatedly.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// memoryCache is a simple in-memory Cache implementation.
//
// It uses a map protected by a RWMutex and supports expiration.
type memoryCache struct {
	data  map[string]memoryEntry
	mutex sync.RWMutex
}

type memoryEntry struct {
	value      any
	expiration time.Time
}

// NewMemoryCache creates a new in-memory Cache instance.
func NewMemoryCache() Cache {
	return &memoryCache{
		data: make(map[string]memoryEntry),
	}
}

// Get retrieves a value from the cache by key.
// It returns false if the key does not exist or is expired.
func (c *memoryCache) Get(key string) (any, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	entry, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if !entry.expiration.IsZero() && time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value in the cache with the given TTL (time-to-live).
// If TTL is 0, the entry does not expire.
func (c *memoryCache) Set(key string, value any, ttl time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.data[key] = memoryEntry{value: value, expiration: exp}
}

// CacheMiddleware short-circuits repeated read operations within the TTL
// window. Results are keyed by the operation and the compiled payload, so two
// queries that compile to the same filter share an entry.
//
// On a cache hit the operation is skipped entirely and the payload's result
// destination is left untouched; it is assumed to already hold the data from
// the execution that populated the cache entry.
//
// Example:
//
//	cache := talos.NewMemoryCache()
//	talos.Use(talos.CacheMiddleware(cache, time.Minute))
func CacheMiddleware(cache Cache, ttl time.Duration) Middleware {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			if op != OperationFind && op != OperationAggregate {
				return next(ctx, op, payload)
			}

			key := fmt.Sprintf("%s:%#v", op, payload)
			if _, ok := cache.Get(key); ok {
				// Skip execution; the result destination is assumed to be
				// filled from the run that created the entry.
				return nil
			}

			err := next(ctx, op, payload)
			if err == nil {
				cache.Set(key, struct{}{}, ttl)
			}
			return err
		}
	}
}
