package log

import (
	"encoding/binary"
	"fmt"
	"io"

	"minidb/kfile"
)

// LogIterator reads length-prefixed records back from the log file,
// oldest first.
type LogIterator struct {
	data []byte
	pos  int
}

func NewLogIterator(dm *kfile.DiskMgr) (*LogIterator, error) {
	size, err := dm.LogSize()
	if err != nil {
		return nil, &Error{Op: "iterator", Err: err}
	}

	data := make([]byte, size)
	if size > 0 {
		n, err := dm.ReadLog(data, 0)
		if err != nil && err != io.EOF {
			return nil, &Error{Op: "iterator", Err: err}
		}
		data = data[:n]
	}

	return &LogIterator{data: data}, nil
}

// HasNext indicates whether there is another record to read.
func (it *LogIterator) HasNext() bool {
	return it.pos+4 <= len(it.data)
}

// Next returns the next record in append order.
func (it *LogIterator) Next() ([]byte, error) {
	if it.pos+4 > len(it.data) {
		return nil, &Error{Op: "next", Err: fmt.Errorf("no more records")}
	}
	length := int(binary.BigEndian.Uint32(it.data[it.pos:]))
	it.pos += 4
	if it.pos+length > len(it.data) {
		return nil, &Error{Op: "next", Err: fmt.Errorf("truncated record at offset %d", it.pos-4)}
	}
	rec := make([]byte, length)
	copy(rec, it.data[it.pos:it.pos+length])
	it.pos += length
	return rec, nil
}
