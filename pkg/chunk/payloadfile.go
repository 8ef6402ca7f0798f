package chunk

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Payload file format:
//
// Header (16 bytes):
//   Magic:   4 bytes  (0x45584350 = "EXCP")
//   Version: 4 bytes  (1)
//   Count:   8 bytes  (number of payloads)
//
// Records:
//   X:              4 bytes (int32)
//   Y:              4 bytes (int32)
//   CompressedSize: 4 bytes (uint32, declared by the head segment)
//   DataLen:        4 bytes (uint32)
//   Data:           DataLen bytes

const (
	payloadFileMagic   = 0x45584350 // "EXCP"
	payloadFileVersion = 1
	payloadFileHeader  = 16
	payloadRecordFixed = 16
)

// PayloadWriter writes reconstructed payloads to a file.
type PayloadWriter struct {
	file   *os.File
	writer *bufio.Writer
	count  uint64
	path   string
	buf    [payloadRecordFixed]byte
	closed bool
}

// NewPayloadWriter creates a payload file at path.
func NewPayloadWriter(path string) (*PayloadWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create payload file: %w", err)
	}

	w := &PayloadWriter{
		file:   f,
		writer: bufio.NewWriterSize(f, 256*1024),
		path:   path,
	}

	header := make([]byte, payloadFileHeader)
	binary.LittleEndian.PutUint32(header[0:4], payloadFileMagic)
	binary.LittleEndian.PutUint32(header[4:8], payloadFileVersion)

	if _, err := w.writer.Write(header); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write header: %w", err)
	}

	return w, nil
}

// Write appends one payload.
func (w *PayloadWriter) Write(p Payload) error {
	binary.LittleEndian.PutUint32(w.buf[0:4], uint32(p.X))
	binary.LittleEndian.PutUint32(w.buf[4:8], uint32(p.Y))
	binary.LittleEndian.PutUint32(w.buf[8:12], p.CompressedSize)
	binary.LittleEndian.PutUint32(w.buf[12:16], uint32(len(p.Data)))

	if _, err := w.writer.Write(w.buf[:]); err != nil {
		return fmt.Errorf("write record header: %w", err)
	}
	if _, err := w.writer.Write(p.Data); err != nil {
		return fmt.Errorf("write record data: %w", err)
	}

	w.count++
	return nil
}

// WriteAll appends every payload in order.
func (w *PayloadWriter) WriteAll(payloads []Payload) error {
	for _, p := range payloads {
		if err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of payloads written.
func (w *PayloadWriter) Count() uint64 {
	return w.count
}

// Close flushes the buffer, patches the count and closes the file.
func (w *PayloadWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("flush: %w", err)
	}

	if _, err := w.file.Seek(8, io.SeekStart); err != nil {
		w.file.Close()
		return fmt.Errorf("seek: %w", err)
	}

	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], w.count)
	if _, err := w.file.Write(countBuf[:]); err != nil {
		w.file.Close()
		return fmt.Errorf("update header: %w", err)
	}

	return w.file.Close()
}

// PayloadReader reads payloads back from a payload file.
type PayloadReader struct {
	file   *os.File
	reader *bufio.Reader
	count  uint64
	read   uint64
	path   string
	closed bool
}

// OpenPayloadFile opens a payload file for reading.
func OpenPayloadFile(path string) (*PayloadReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open payload file: %w", err)
	}

	r := &PayloadReader{
		file:   f,
		reader: bufio.NewReaderSize(f, 256*1024),
		path:   path,
	}

	header := make([]byte, payloadFileHeader)
	if _, err := io.ReadFull(r.reader, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != payloadFileMagic {
		f.Close()
		return nil, fmt.Errorf("invalid magic: got %x, want %x", magic, payloadFileMagic)
	}

	version := binary.LittleEndian.Uint32(header[4:8])
	if version != payloadFileVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported version: %d", version)
	}

	r.count = binary.LittleEndian.Uint64(header[8:16])
	return r, nil
}

// Read returns the next payload, or io.EOF after the last one.
func (r *PayloadReader) Read() (Payload, error) {
	if r.read >= r.count {
		return Payload{}, io.EOF
	}

	var fixed [payloadRecordFixed]byte
	if _, err := io.ReadFull(r.reader, fixed[:]); err != nil {
		return Payload{}, fmt.Errorf("read record header: %w", err)
	}

	p := Payload{
		X:              int32(binary.LittleEndian.Uint32(fixed[0:4])),
		Y:              int32(binary.LittleEndian.Uint32(fixed[4:8])),
		CompressedSize: binary.LittleEndian.Uint32(fixed[8:12]),
	}
	n := binary.LittleEndian.Uint32(fixed[12:16])
	p.Data = make([]byte, n)
	if _, err := io.ReadFull(r.reader, p.Data); err != nil {
		return Payload{}, fmt.Errorf("read record data: %w", err)
	}

	r.read++
	return p, nil
}

// Count returns the total number of payloads in the file.
func (r *PayloadReader) Count() uint64 {
	return r.count
}

// Close closes the payload file.
func (r *PayloadReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
