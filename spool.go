package fcrepo

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// DefaultSpoolThreshold is the in-memory limit for cached response bodies
// before they spill to a temp file.
const DefaultSpoolThreshold = 512 * 1024

// bodySpool buffers response bodies in memory up to a threshold, then spills
// to a temp file. Close releases the buffer or removes the file.
type bodySpool struct {
	threshold int64
	buf       []byte
	file      *os.File
	pooled    bool
}

var spoolBufferPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, DefaultSpoolThreshold)
	},
}

func newBodySpool(threshold int64) *bodySpool {
	bs := &bodySpool{threshold: threshold}
	if threshold <= 0 {
		return bs
	}
	maxInt := int64(^uint(0) >> 1)
	if threshold > maxInt {
		threshold = maxInt
	}
	bufCap := int(threshold)
	if threshold == DefaultSpoolThreshold {
		if buf, ok := spoolBufferPool.Get().([]byte); ok {
			if cap(buf) < bufCap {
				buf = make([]byte, 0, bufCap)
			} else {
				buf = buf[:0]
			}
			bs.buf = buf
			bs.pooled = true
			return bs
		}
	}
	if bufCap > 0 {
		bs.buf = make([]byte, 0, bufCap)
	}
	return bs
}

func (b *bodySpool) Write(data []byte) (int, error) {
	if b.file != nil {
		return b.file.Write(data)
	}
	if int64(len(b.buf))+int64(len(data)) <= b.threshold {
		b.buf = append(b.buf, data...)
		return len(data), nil
	}
	f, err := os.CreateTemp("", "fcrepo-body-")
	if err != nil {
		return 0, err
	}
	if len(b.buf) > 0 {
		if _, err := f.Write(b.buf); err != nil {
			f.Close()
			_ = os.Remove(f.Name())
			return 0, err
		}
	}
	if b.pooled && b.buf != nil {
		spoolBufferPool.Put(b.buf[:0]) //nolint:staticcheck // avoid extra allocation by pooling value slice
		b.pooled = false
	}
	n, err := f.Write(data)
	if err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return n, err
	}
	b.file = f
	b.buf = nil
	return n, nil
}

func (b *bodySpool) Size() int64 {
	if b.file != nil {
		if info, err := b.file.Stat(); err == nil {
			return info.Size()
		}
		return 0
	}
	return int64(len(b.buf))
}

func (b *bodySpool) Reader() (io.ReadSeeker, error) {
	if b.file != nil {
		if _, err := b.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return b.file, nil
	}
	return bytes.NewReader(b.buf), nil
}

func (b *bodySpool) Close() error {
	if b.file != nil {
		name := b.file.Name()
		err := b.file.Close()
		_ = os.Remove(name)
		b.file = nil
		return err
	}
	if b.pooled && b.buf != nil {
		spoolBufferPool.Put(b.buf[:0]) //nolint:staticcheck // avoid extra allocation by pooling value slice
		b.pooled = false
	}
	b.buf = nil
	return nil
}

// spoolReader exposes a cached response body as a replayable
// io.ReadSeekCloser. Closing it releases the underlying spool.
type spoolReader struct {
	spool     *bodySpool
	reader    io.ReadSeeker
	closeOnce sync.Once
	closeErr  error
}

func (r *spoolReader) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

func (r *spoolReader) Seek(offset int64, whence int) (int64, error) {
	return r.reader.Seek(offset, whence)
}

func (r *spoolReader) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.spool.Close()
	})
	return r.closeErr
}

// spoolBody drains src into a fresh spool and returns a replayable reader.
// A nil reader with nil error means the entity was empty.
func spoolBody(src io.Reader, threshold int64) (*spoolReader, error) {
	spool := newBodySpool(threshold)
	if _, err := io.Copy(spool, src); err != nil {
		spool.Close()
		return nil, err
	}
	if spool.Size() == 0 {
		spool.Close()
		return nil, nil
	}
	reader, err := spool.Reader()
	if err != nil {
		spool.Close()
		return nil, err
	}
	return &spoolReader{spool: spool, reader: reader}, nil
}
