package core

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// LoadedExecutableKind discriminates the two forms a trigger's preloaded
// executable may take.
type LoadedExecutableKind uint8

const (
	LoadedInstructions LoadedExecutableKind = iota
	LoadedWasmModule
)

// LoadedExecutable is an Executable after preload: the instruction vector
// unchanged, or a compiled and validated WASM module handle ready to be
// instantiated by a host collaborator.
type LoadedExecutable struct {
	Kind         LoadedExecutableKind
	Instructions []Instruction
	Module       *wasmer.Module
	BytecodeHash Hash
}

// WasmEngine wraps a single wasmer.Engine shared by every WASM trigger.
// Cloning the handle (sharing the *WasmEngine pointer) is cheap; the engine
// itself is safe for concurrent compilation. Compiled modules are interned
// in an LRU keyed by the SHA-256 of their bytecode, so triggers registered
// with identical WASM blobs share one compiled module instead of paying to
// recompile and store it per trigger.
type WasmEngine struct {
	engine *wasmer.Engine
	store  *wasmer.Store

	mu    sync.Mutex
	cache *lru.Cache[Hash, *wasmer.Module]
}

// NewWasmEngine constructs a WasmEngine with a module cache holding up to
// cacheSize compiled modules.
func NewWasmEngine(cacheSize int) (*WasmEngine, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[Hash, *wasmer.Module](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("construct wasm module cache: %w", err)
	}
	engine := wasmer.NewEngine()
	return &WasmEngine{
		engine: engine,
		store:  wasmer.NewStore(engine),
		cache:  cache,
	}, nil
}

// Preload compiles and validates bytecode, returning a LoadedExecutable
// wrapping the resulting module. Identical bytecode (by hash) returns the
// cached module instead of recompiling.
func (e *WasmEngine) Preload(bytecode []byte) (LoadedExecutable, error) {
	h := HashBytes(bytecode)

	e.mu.Lock()
	if mod, ok := e.cache.Get(h); ok {
		e.mu.Unlock()
		return LoadedExecutable{Kind: LoadedWasmModule, Module: mod, BytecodeHash: h}, nil
	}
	e.mu.Unlock()

	mod, err := wasmer.NewModule(e.store, bytecode)
	if err != nil {
		return LoadedExecutable{}, fmt.Errorf("%w: %v", ErrPreload, err)
	}

	e.mu.Lock()
	e.cache.Add(h, mod)
	e.mu.Unlock()

	return LoadedExecutable{Kind: LoadedWasmModule, Module: mod, BytecodeHash: h}, nil
}

// PreloadExecutable preloads an Executable: instructions pass through
// unchanged, WASM blobs are compiled via Preload.
func (e *WasmEngine) PreloadExecutable(exe Executable) (LoadedExecutable, error) {
	switch exe.Kind {
	case ExecutableInstructions:
		return LoadedExecutable{Kind: LoadedInstructions, Instructions: exe.Instructions}, nil
	case ExecutableWasm:
		return e.Preload(exe.Wasm)
	default:
		return LoadedExecutable{}, fmt.Errorf("%w: unknown executable kind", ErrStructural)
	}
}

// Store exposes the underlying wasmer.Store for instantiating a module. The
// actual instantiation / host-import wiring is outside this package's
// scope: callers that need to execute a trigger's WASM module bring their
// own host import object.
func (e *WasmEngine) Store() *wasmer.Store { return e.store }
