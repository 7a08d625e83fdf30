package wasmfn

import (
	"github.com/tetratelabs/wazero/api"
)

// Memory provides raw access to a plugin's linear memory.
type Memory struct {
	mem api.Memory
}

// NewMemory wraps a wazero memory instance.
func NewMemory(mem api.Memory) *Memory {
	return &Memory{mem: mem}
}

// ReadBytes reads n bytes from the given offset. The result is a copy.
func (m *Memory) ReadBytes(offset, n uint32) ([]byte, bool) {
	if m.mem == nil {
		return nil, n == 0
	}
	data, ok := m.mem.Read(offset, n)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// WriteBytes writes data at the given offset.
func (m *Memory) WriteBytes(offset uint32, data []byte) bool {
	if m.mem == nil {
		return len(data) == 0
	}
	return m.mem.Write(offset, data)
}
