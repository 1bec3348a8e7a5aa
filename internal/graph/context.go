// Package graph is a small pull-based audio graph with Web Audio style
// parameter automation. Control goroutines build sub-graphs and schedule
// automation; the output device renders them in fixed quanta.
package graph

import (
	"fmt"
	"sync"
)

// Quantum is the number of frames rendered per processing block.
const Quantum = 128

// Block is one quantum of audio. Mono blocks only use L.
type Block struct {
	L, R     [Quantum]float64
	Channels int
}

func (b *Block) clear(channels int) {
	b.L = [Quantum]float64{}
	b.R = [Quantum]float64{}
	b.Channels = channels
}

// mixFrom adds src into b, up-mixing mono to both channels when b is stereo.
func (b *Block) mixFrom(src *Block) {
	if src.Channels == 2 && b.Channels < 2 {
		b.R = b.L
		b.Channels = 2
	}
	for i := 0; i < Quantum; i++ {
		b.L[i] += src.L[i]
	}
	if b.Channels == 2 {
		right := &src.R
		if src.Channels < 2 {
			right = &src.L
		}
		for i := 0; i < Quantum; i++ {
			b.R[i] += right[i]
		}
	}
}

// Node is anything that can be wired into a Context.
type Node interface {
	base() *node
	process(out *Block)
}

type node struct {
	ctx     *Context
	inputs  []Node
	outputs []Node
	quantum int64
	out     Block
}

func (n *node) base() *node { return n }

// Context owns the sample clock and the destination of the graph.
type Context struct {
	mu         sync.Mutex
	sampleRate float64
	frame      int64
	quantum    int64
	dest       *Destination

	pending Block
	offset  int
}

// NewContext creates a context rendering at sampleRate.
func NewContext(sampleRate float64) (*Context, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("graph: invalid sample rate %.0f", sampleRate)
	}
	c := &Context{sampleRate: sampleRate, offset: Quantum}
	c.dest = &Destination{}
	c.dest.ctx = c
	c.dest.quantum = -1
	return c, nil
}

// SampleRate returns the rendering rate in Hz.
func (c *Context) SampleRate() float64 { return c.sampleRate }

// CurrentTime returns the time of the next frame to be rendered, in seconds.
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

func (c *Context) now() float64 {
	return float64(c.frame) / c.sampleRate
}

// Destination returns the final node of the graph.
func (c *Context) Destination() *Destination { return c.dest }

// Render fills out with interleaved stereo frames and advances the clock.
func (c *Context) Render(out []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i+1 < len(out); i += 2 {
		if c.offset >= Quantum {
			c.renderQuantum()
			c.offset = 0
		}
		out[i] = float32(c.pending.L[c.offset])
		out[i+1] = float32(c.pending.R[c.offset])
		c.offset++
		c.frame++
	}
}

func (c *Context) renderQuantum() {
	c.quantum++
	block := c.pull(c.dest)
	c.pending = *block
	if c.pending.Channels < 2 {
		c.pending.R = c.pending.L
		c.pending.Channels = 2
	}
}

// quantumStart is the time of the first frame in the quantum being rendered.
// Rendering always begins on a quantum boundary, so the frame counter there
// equals the number of frames already produced.
func (c *Context) quantumStart() float64 {
	return float64(c.frame) / c.sampleRate
}

func (c *Context) pull(n Node) *Block {
	b := n.base()
	if b.quantum == c.quantum {
		return &b.out
	}
	b.quantum = c.quantum
	n.process(&b.out)
	return &b.out
}

// mixInputs sums every input of n into dst.
func (c *Context) mixInputs(n *node, dst *Block) {
	dst.clear(1)
	for _, in := range n.inputs {
		dst.mixFrom(c.pull(in))
	}
}

func (c *Context) newNode() node {
	return node{ctx: c, quantum: -1}
}

// Connect wires src into dst.
func Connect(src, dst Node) {
	s := src.base()
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	connect(s, src, dst)
}

func connect(s *node, src, dst Node) {
	d := dst.base()
	for _, in := range d.inputs {
		if in == src {
			return
		}
	}
	d.inputs = append(d.inputs, src)
	s.outputs = append(s.outputs, dst)
}

// Chain connects each node to the next and returns the last one.
func Chain(nodes ...Node) Node {
	if len(nodes) == 0 {
		return nil
	}
	ctx := nodes[0].base().ctx
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	for i := 0; i+1 < len(nodes); i++ {
		connect(nodes[i].base(), nodes[i], nodes[i+1])
	}
	return nodes[len(nodes)-1]
}

// Disconnect removes every outgoing connection of n. A sub-graph that no
// longer reaches the destination stops being rendered.
func Disconnect(n Node) {
	b := n.base()
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	for _, dst := range b.outputs {
		d := dst.base()
		kept := d.inputs[:0]
		for _, in := range d.inputs {
			if in != n {
				kept = append(kept, in)
			}
		}
		d.inputs = kept
	}
	b.outputs = nil
}

// Inputs reports how many nodes feed n.
func Inputs(n Node) int {
	b := n.base()
	b.ctx.mu.Lock()
	defer b.ctx.mu.Unlock()
	return len(b.inputs)
}

// Destination sums everything connected to it into the rendered output.
type Destination struct {
	node
}

func (d *Destination) process(out *Block) {
	d.ctx.mixInputs(&d.node, out)
}
