package world

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Column file layout (before zstd):
//
//	magic "E2WC" | version u16 | height u16 | palette count u16
//	palette entries: name len u16 | name | data u16
//	cells: u16 palette index per block, 0 = unset
var columnMagic = [4]byte{'E', '2', 'W', 'C'}

const columnVersion = 1

var errColumnFormat = errors.New("invalid column file")

// column is one 16 x height x 16 block column.
type column struct {
	height  int
	palette []Block // palette[0] is the unset sentinel
	lookup  map[Block]uint16
	cells   []uint16
	dirty   bool
}

func newColumn(height int) *column {
	return &column{
		height:  height,
		palette: []Block{{}},
		lookup:  make(map[Block]uint16),
		cells:   make([]uint16, columnWidth*height*columnWidth),
	}
}

func (c *column) cell(lx, y, lz int) int {
	return (lz*c.height+y)*columnWidth + lx
}

func (c *column) get(lx, y, lz int) (Block, bool) {
	p := c.cells[c.cell(lx, y, lz)]
	if p == 0 {
		return Block{}, false
	}
	return c.palette[p], true
}

func (c *column) set(lx, y, lz int, b Block) error {
	p, ok := c.lookup[b]
	if !ok {
		if len(c.palette) > 0xFFFF {
			return errors.New("column palette full")
		}
		p = uint16(len(c.palette))
		c.palette = append(c.palette, b)
		c.lookup[b] = p
	}
	c.cells[c.cell(lx, y, lz)] = p
	c.dirty = true
	return nil
}

func (c *column) marshal() []byte {
	size := 4 + 2 + 2 + 2 + 2*len(c.cells)
	for _, b := range c.palette[1:] {
		size += 2 + len(b.Name) + 2
	}

	buf := make([]byte, 0, size)
	buf = append(buf, columnMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, columnVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(c.height))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(c.palette)-1))
	for _, b := range c.palette[1:] {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(b.Name)))
		buf = append(buf, b.Name...)
		buf = binary.LittleEndian.AppendUint16(buf, b.Data)
	}
	for _, p := range c.cells {
		buf = binary.LittleEndian.AppendUint16(buf, p)
	}
	return buf
}

func unmarshalColumn(buf []byte, height int) (*column, error) {
	if len(buf) < 10 || [4]byte(buf[0:4]) != columnMagic {
		return nil, errColumnFormat
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != columnVersion {
		return nil, fmt.Errorf("%w: version %d", errColumnFormat, v)
	}
	if h := int(binary.LittleEndian.Uint16(buf[6:8])); h != height {
		return nil, fmt.Errorf("%w: height %d, world %d", errColumnFormat, h, height)
	}

	c := newColumn(height)
	n := int(binary.LittleEndian.Uint16(buf[8:10]))
	off := 10
	for i := 0; i < n; i++ {
		if off+2 > len(buf) {
			return nil, errColumnFormat
		}
		l := int(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
		if off+l+2 > len(buf) {
			return nil, errColumnFormat
		}
		b := Block{Name: string(buf[off : off+l]), Data: binary.LittleEndian.Uint16(buf[off+l:])}
		off += l + 2
		c.lookup[b] = uint16(len(c.palette))
		c.palette = append(c.palette, b)
	}

	if len(buf)-off != 2*len(c.cells) {
		return nil, fmt.Errorf("%w: %d cell bytes, want %d", errColumnFormat, len(buf)-off, 2*len(c.cells))
	}
	for i := range c.cells {
		p := binary.LittleEndian.Uint16(buf[off+2*i:])
		if int(p) >= len(c.palette) {
			return nil, fmt.Errorf("%w: palette index %d", errColumnFormat, p)
		}
		c.cells[i] = p
	}
	return c, nil
}
