/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package ffi owns the buffers that cross the foreign call boundary.
//
// Every call to Exchange.Request returns exactly one buffer allocated by the
// Allocator, on success and error paths alike. The caller owns it until it
// hands it back through Exchange.Release.
package ffi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"unsafe"

	"go.uber.org/zap"
)

// Allocator produces caller-owned NUL-terminated strings
type Allocator interface {
	Alloc(s string) unsafe.Pointer
	Free(p unsafe.Pointer)
}

// Buffers tracks allocations handed to the caller
type Buffers struct {
	alloc  Allocator
	logger *zap.Logger

	mu   sync.Mutex
	live map[uintptr]struct{}
}

// NewBuffers creates a tracker over alloc
func NewBuffers(alloc Allocator, logger *zap.Logger) *Buffers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Buffers{
		alloc:  alloc,
		logger: logger.With(zap.String("component", "ffi")),
		live:   make(map[uintptr]struct{}),
	}
}

// Export copies s into a new caller-owned buffer
func (b *Buffers) Export(s string) unsafe.Pointer {
	p := b.alloc.Alloc(s)

	b.mu.Lock()
	b.live[uintptr(p)] = struct{}{}
	b.mu.Unlock()

	return p
}

// Release frees a buffer returned by Export. Unknown pointers, nil and
// double releases are ignored and reported as false.
func (b *Buffers) Release(p unsafe.Pointer) bool {
	if p == nil {
		return false
	}

	b.mu.Lock()
	_, ok := b.live[uintptr(p)]
	delete(b.live, uintptr(p))
	b.mu.Unlock()

	if !ok {
		b.logger.Warn("Ignoring release of unknown buffer", zap.Uintptr("ptr", uintptr(p)))
		return false
	}

	b.alloc.Free(p)
	return true
}

// Outstanding reports buffers exported but not yet released
func (b *Buffers) Outstanding() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

// Handler is the string-in/string-out router behind the boundary
type Handler interface {
	Handle(ctx context.Context, body string) string
}

// Exchange joins a Handler with buffer ownership
type Exchange struct {
	handler Handler
	buffers *Buffers
}

// NewExchange creates the boundary adapter
func NewExchange(handler Handler, buffers *Buffers) *Exchange {
	return &Exchange{handler: handler, buffers: buffers}
}

// Request handles body and returns a caller-owned reply buffer
func (e *Exchange) Request(body string) unsafe.Pointer {
	return e.buffers.Export(e.respond(body))
}

func (e *Exchange) respond(body string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			data, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("internal error: %v", r)})
			out = string(data)
		}
	}()
	return e.handler.Handle(context.Background(), body)
}

// Release returns a reply buffer to the allocator
func (e *Exchange) Release(p unsafe.Pointer) bool {
	return e.buffers.Release(p)
}

// Outstanding reports reply buffers the caller still holds
func (e *Exchange) Outstanding() int {
	return e.buffers.Outstanding()
}
