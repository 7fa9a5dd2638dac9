package graph

// DefaultChunkSize is the number of float64 values per MemoryPool block.
const DefaultChunkSize = 1 << 20

// MemoryPool is a chunked arena for node buffers.
//
// Nodes request their value, gradient and scratch buffers once at Init time;
// the pool hands out sub-slices of large blocks instead of allocating one
// slice per buffer. Buffers are never returned individually, the whole pool is
// dropped together with the graph that owns it.
//
// A nil *MemoryPool is valid and falls back to plain allocation.
type MemoryPool struct {
	chunk     int
	blocks    [][]float64
	cur       []float64
	off       int
	allocated int
}

// NewMemoryPool creates a pool with the given block size (in float64 values).
// A non-positive size selects DefaultChunkSize.
func NewMemoryPool(chunkSize int) *MemoryPool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &MemoryPool{chunk: chunkSize}
}

// Alloc returns a zeroed slice of length and capacity n.
func (p *MemoryPool) Alloc(n int) []float64 {
	if n <= 0 {
		return nil
	}
	if p == nil {
		return make([]float64, n)
	}
	p.allocated += n

	// Oversized requests get a dedicated block so the current block keeps its tail.
	if n > p.chunk {
		p.blocks = append(p.blocks, make([]float64, n))
		return p.blocks[len(p.blocks)-1]
	}
	if p.off+n > len(p.cur) {
		p.cur = make([]float64, p.chunk)
		p.blocks = append(p.blocks, p.cur)
		p.off = 0
	}
	buf := p.cur[p.off : p.off+n : p.off+n]
	p.off += n
	return buf
}

// Allocated returns the number of float64 values handed out.
func (p *MemoryPool) Allocated() int {
	if p == nil {
		return 0
	}
	return p.allocated
}

// Reserved returns the number of float64 values held in blocks.
func (p *MemoryPool) Reserved() int {
	if p == nil {
		return 0
	}
	total := 0
	for _, b := range p.blocks {
		total += len(b)
	}
	return total
}
