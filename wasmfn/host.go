package wasmfn

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/benmills/robotskirt/buffer"
	"github.com/benmills/robotskirt/engine"
)

// HostModule is the import module name plugins link against.
const HostModule = "robotskirt"

// call is the state of the slot call currently running in a plugin.
type call struct {
	ob   *buffer.Buffer
	args engine.Args
}

func (c *call) arg(i uint32) []byte {
	switch i {
	case 0:
		return c.args.A
	case 1:
		return c.args.B
	case 2:
		return c.args.C
	}
	return nil
}

// host routes the plugin's imports to the call in progress.
type host struct {
	cur *call
}

// instantiate registers the host functions. Signatures:
//
//	put(ptr, len)        append guest bytes to the output buffer
//	arg_len(i) -> len    length of text argument i
//	arg_read(i, ptr)     copy text argument i into guest memory
//	arg_int() -> n       the integer argument (flags, level)
func (h *host) instantiate(ctx context.Context, r wazero.Runtime) (api.Closer, error) {
	return r.NewHostModuleBuilder(HostModule).
		// put: (i32, i32) -> nil
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, n uint32) {
			data, ok := NewMemory(m.Memory()).ReadBytes(ptr, n)
			if !ok {
				panic(fmt.Errorf("put: range [%d, %d) out of memory", ptr, uint64(ptr)+uint64(n)))
			}
			if h.cur != nil {
				h.cur.ob.Put(data)
			}
		}).
		Export("put").
		// arg_len: (i32) -> i32
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, i uint32) uint32 {
			if h.cur == nil {
				return 0
			}
			return uint32(len(h.cur.arg(i)))
		}).
		Export("arg_len").
		// arg_read: (i32, i32) -> nil
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, i, ptr uint32) {
			if h.cur == nil {
				return
			}
			if !NewMemory(m.Memory()).WriteBytes(ptr, h.cur.arg(i)) {
				panic(fmt.Errorf("arg_read: argument %d does not fit at %d", i, ptr))
			}
		}).
		Export("arg_read").
		// arg_int: () -> i32
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context) int32 {
			if h.cur == nil {
				return 0
			}
			return int32(h.cur.args.N)
		}).
		Export("arg_int").
		Instantiate(ctx)
}
