package activation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	wazsys "github.com/tetratelabs/wazero/sys"

	"github.com/policyforge/policyforge/pkg/artifact"
)

// DiscoveryFunction is the well-known function every wasm artifact must
// answer. It takes no arguments and writes a JSON list of function
// descriptors to stdout.
const DiscoveryFunction = "list_available_functions"

// wasmMagic is the preamble of every wasm binary ("\0asm").
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// WasmLimits bounds one guest invocation. MemoryBytes is rounded down to
// 64KiB wasm pages; CallTimeout cancels runaway guests via context.
type WasmLimits struct {
	MemoryBytes int64
	CallTimeout time.Duration
}

// DefaultWasmLimits is generous for rule evaluation but still keeps a
// misbehaving module from taking the process with it.
var DefaultWasmLimits = WasmLimits{
	MemoryBytes: 16 << 20,
	CallTimeout: 5 * time.Second,
}

type wasmRequest struct {
	Function string         `json:"function"`
	Args     map[string]any `json:"args"`
}

// WasmNamespace runs a compiled WASI command module once per call. The
// guest reads a {"function", "args"} request from stdin and writes a
// JSON object (or, for discovery, a JSON list) to stdout.
type WasmNamespace struct {
	entityID string
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	limits   WasmLimits
	funcs    []artifact.FunctionDescriptor

	// Serializes invocations: each call owns the module's stdio.
	mu sync.Mutex
}

// IsWasm reports whether blob carries the wasm binary preamble.
func IsWasm(blob []byte) bool {
	return bytes.HasPrefix(blob, wasmMagic)
}

// LoadWasm compiles a wasm blob, then performs the discovery call to
// learn its callable surface. The returned namespace must be closed.
func LoadWasm(ctx context.Context, entityID string, blob []byte, limits WasmLimits) (*WasmNamespace, error) {
	runtimeConfig := wazero.NewRuntimeConfig()
	if limits.MemoryBytes > 0 {
		pages := uint32(limits.MemoryBytes / 65536)
		if pages == 0 {
			pages = 1
		}
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(pages)
	}

	r := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	compiled, err := r.CompileModule(ctx, blob)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("failed to compile wasm module: %w", err)
	}

	ns := &WasmNamespace{
		entityID: entityID,
		runtime:  r,
		compiled: compiled,
		limits:   limits,
	}

	raw, err := ns.invoke(ctx, DiscoveryFunction, nil)
	if err != nil {
		_ = ns.Close(ctx)
		return nil, fmt.Errorf("discovery call failed: %w", err)
	}
	var funcs []artifact.FunctionDescriptor
	if err := json.Unmarshal(raw, &funcs); err != nil {
		_ = ns.Close(ctx)
		return nil, fmt.Errorf("discovery response is not a descriptor list: %w", err)
	}
	ns.funcs = funcs
	return ns, nil
}

// EntityID reports the owning entity passed at load time.
func (ns *WasmNamespace) EntityID() string { return ns.entityID }

// AvailableFunctions lists the descriptors reported by the module's
// discovery call, in the order the module returned them.
func (ns *WasmNamespace) AvailableFunctions() []artifact.FunctionDescriptor {
	out := make([]artifact.FunctionDescriptor, len(ns.funcs))
	copy(out, ns.funcs)
	return out
}

// Call invokes a guest function and decodes its JSON object result. A
// guest-reported {"error": ...} field is surfaced as a Go error.
func (ns *WasmNamespace) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	raw, err := ns.invoke(ctx, name, args)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("function %s returned invalid JSON: %w", name, err)
	}
	if msg, ok := out["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("function %s failed: %s", name, msg)
	}
	return out, nil
}

// Close releases the wazero runtime and everything compiled into it.
func (ns *WasmNamespace) Close(ctx context.Context) error {
	return ns.runtime.Close(ctx)
}

func (ns *WasmNamespace) invoke(ctx context.Context, name string, args map[string]any) ([]byte, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()

	req, err := json.Marshal(wasmRequest{Function: name, Args: args})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	if ns.limits.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ns.limits.CallTimeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	config := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(req)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		// Anonymous so sequential instantiations never collide on name.
		WithName("")

	mod, err := ns.runtime.InstantiateModule(ctx, ns.compiled, config)
	if mod != nil {
		defer mod.Close(ctx)
	}
	if err != nil {
		// WASI guests terminate via proc_exit; code 0 is a normal run.
		var exitErr *wazsys.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != 0 {
			return nil, fmt.Errorf("module execution failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
	}
	return stdout.Bytes(), nil
}
