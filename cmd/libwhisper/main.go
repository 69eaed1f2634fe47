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

// Command libwhisper builds the bridge as a C shared library:
//
//	go build -tags whisper -buildmode=c-shared -o libwhisper.so ./cmd/libwhisper
//
// Every reply returned by request must be handed back to request_free.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-whisper-bridge/internal/config"
	"github.com/loqalabs/loqa-whisper-bridge/internal/engine"
	"github.com/loqalabs/loqa-whisper-bridge/internal/ffi"
	"github.com/loqalabs/loqa-whisper-bridge/internal/logging"
	"github.com/loqalabs/loqa-whisper-bridge/internal/server"
)

// cAllocator hands out C heap strings the caller can hold across calls
type cAllocator struct{}

func (cAllocator) Alloc(s string) unsafe.Pointer { return unsafe.Pointer(C.CString(s)) }

func (cAllocator) Free(p unsafe.Pointer) { C.free(p) }

var (
	setupOnce sync.Once
	exchange  *ffi.Exchange
)

// setup runs on the first call. Configuration problems fall back to the
// built-in defaults so the library always answers.
func setup() {
	cfg, cfgErr := config.Load()
	if cfgErr != nil {
		cfg = config.Defaults()
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		_ = logging.InitializeWithConfig(logging.LogConfig{Level: "warn", Output: "stderr"})
	}
	if cfgErr != nil {
		logging.LogWarn("Invalid configuration, using defaults", zap.Error(cfgErr))
	}

	srv, err := server.New(cfg, engine.NewWhisper())
	if err != nil {
		logging.LogError(err, "Request journal disabled")
		cfg.Journal.Path = ""
		srv, _ = server.New(cfg, engine.NewWhisper())
	}

	exchange = ffi.NewExchange(srv.Handler(), ffi.NewBuffers(cAllocator{}, logging.Named("ffi")))
}

//export request
func request(body *C.char) *C.char {
	setupOnce.Do(setup)
	return (*C.char)(exchange.Request(C.GoString(body)))
}

//export request_free
func request_free(reply *C.char) {
	setupOnce.Do(setup)
	exchange.Release(unsafe.Pointer(reply))
}

//export request_outstanding
func request_outstanding() C.int {
	setupOnce.Do(setup)
	return C.int(exchange.Outstanding())
}

func main() {}
