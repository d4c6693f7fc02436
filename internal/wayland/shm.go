package wayland

import (
	"errors"
	"fmt"

	"github.com/ItsNotGoodName/csdwin/internal/csd"
	"github.com/neurlang/wayland/wl"
	"golang.org/x/sys/unix"
)

// wl_shm formats.
const (
	shmFormatARGB8888 uint32 = 0
	shmFormatXRGB8888 uint32 = 1
)

type shmBuffer struct {
	buffer *wl.Buffer
	width  int32
	height int32
	data   []byte
	queue  *eventQueue
}

func (buf *shmBuffer) id() csd.BufferID {
	return csd.BufferID(buf.buffer.Id())
}

func (buf *shmBuffer) HandleBufferRelease(wl.BufferReleaseEvent) {
	if buf.queue != nil {
		buf.queue.push(csd.BufferReleaseEvent{Buffer: buf.id()})
	}
}

// createShmBuffer backs a single wl_buffer with its own memfd. The pool and
// fd are dropped straight away since the buffer keeps the memory alive.
func (b *Backend) createShmBuffer(width, height int32, format uint32) (*shmBuffer, error) {
	stride := width * 4
	size := int(stride) * int(height)

	fd, err := unix.MemfdCreate("csdwin-shm", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("memfd: %w", err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	pool, err := b.shm.CreatePool(uintptr(fd), int32(size))
	if err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("create pool: %w", err)
	}
	buffer, err := pool.CreateBuffer(0, width, height, stride, format)
	if err != nil {
		unix.Munmap(data)
		return nil, errors.Join(fmt.Errorf("create buffer: %w", err), pool.Destroy())
	}
	if err := pool.Destroy(); err != nil {
		unix.Munmap(data)
		return nil, err
	}

	return &shmBuffer{
		buffer: buffer,
		width:  width,
		height: height,
		data:   data,
	}, nil
}

func (b *Backend) destroyShmBuffer(buf *shmBuffer) error {
	err := buf.buffer.Destroy()
	if buf.data != nil {
		if merr := unix.Munmap(buf.data); err == nil {
			err = merr
		}
		buf.data = nil
	}
	return err
}
