package kfile

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	ErrOutOfBounds = "offset out of bounds"
)

// Page is a fixed-size byte buffer, the unit of disk I/O.
type Page struct {
	data []byte
	mu   sync.RWMutex
}

func NewPage() *Page {
	return &Page{
		data: make([]byte, PageSize),
	}
}

func NewPageFromBytes(b []byte) *Page {
	if len(b) != PageSize {
		panic(fmt.Sprintf("page buffer must be %d bytes, got %d", PageSize, len(b)))
	}
	return &Page{
		data: b,
	}
}

func (p *Page) GetInt(offset int) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if offset+4 > len(p.data) {
		return 0, fmt.Errorf("%s: getting int", ErrOutOfBounds)
	}
	return int(binary.BigEndian.Uint32(p.data[offset:])), nil
}

func (p *Page) SetInt(offset int, val int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if offset+4 > len(p.data) {
		return fmt.Errorf("%s: setting int", ErrOutOfBounds)
	}
	binary.BigEndian.PutUint32(p.data[offset:], uint32(val))
	return nil
}

// GetBytes reads a length-prefixed byte segment written by SetBytes.
func (p *Page) GetBytes(offset int) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if offset+4 > len(p.data) {
		return nil, fmt.Errorf("%s: getting bytes", ErrOutOfBounds)
	}
	length := int(binary.BigEndian.Uint32(p.data[offset:]))
	if offset+4+length > len(p.data) {
		return nil, fmt.Errorf("%s: getting bytes", ErrOutOfBounds)
	}

	dataCopy := make([]byte, length)
	copy(dataCopy, p.data[offset+4:offset+4+length])
	return dataCopy, nil
}

// SetBytes writes val at offset with a 4-byte length prefix.
func (p *Page) SetBytes(offset int, val []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if offset+4+len(val) > len(p.data) {
		return fmt.Errorf("%s: setting bytes", ErrOutOfBounds)
	}
	binary.BigEndian.PutUint32(p.data[offset:], uint32(len(val)))
	copy(p.data[offset+4:], val)
	return nil
}

func (p *Page) GetString(offset int) (string, error) {
	b, err := p.GetBytes(offset)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (p *Page) SetString(offset int, val string) error {
	return p.SetBytes(offset, []byte(val))
}

// Contents exposes the raw page buffer for disk I/O.
func (p *Page) Contents() []byte {
	return p.data
}

// Reset zeroes the page buffer.
func (p *Page) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.data {
		p.data[i] = 0
	}
}
