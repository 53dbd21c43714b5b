package buffer

// FrameID is the index of a frame inside the buffer pool
type FrameID uint32

// ClockReplacer picks victim frames with the clock sweep algorithm: each
// unpinned frame gets a reference bit that buys it one more sweep before it
// is evicted.
type ClockReplacer struct {
	inReplacer []bool
	refBit     []bool
	hand       FrameID
	size       uint32
}

func NewClockReplacer(poolSize uint32) *ClockReplacer {
	return &ClockReplacer{
		inReplacer: make([]bool, poolSize),
		refBit:     make([]bool, poolSize),
	}
}

// Victim sweeps the clock and returns the first frame whose reference bit is
// already cleared. Returns nil when every frame is pinned.
func (c *ClockReplacer) Victim() *FrameID {
	if c.size == 0 {
		return nil
	}
	for {
		if c.inReplacer[c.hand] {
			if c.refBit[c.hand] {
				c.refBit[c.hand] = false
			} else {
				victim := c.hand
				c.inReplacer[victim] = false
				c.size--
				c.advance()
				return &victim
			}
		}
		c.advance()
	}
}

// Pin removes a frame from eviction candidates because a page was pinned to it.
func (c *ClockReplacer) Pin(id FrameID) {
	if c.inReplacer[id] {
		c.inReplacer[id] = false
		c.size--
	}
}

// Unpin makes a frame an eviction candidate again.
func (c *ClockReplacer) Unpin(id FrameID) {
	if !c.inReplacer[id] {
		c.inReplacer[id] = true
		c.refBit[id] = true
		c.size++
	}
}

func (c *ClockReplacer) Size() uint32 {
	return c.size
}

func (c *ClockReplacer) advance() {
	c.hand = (c.hand + 1) % FrameID(len(c.inReplacer))
}
