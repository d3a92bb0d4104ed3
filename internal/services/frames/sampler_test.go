package frames

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firesmoke-api/internal/models"
)

// fakeReader yields total frames; frame n has its red channel set to n
type fakeReader struct {
	fps    float64
	total  int
	next   int
	closed bool
}

func (f *fakeReader) FPS() float64 { return f.fps }

func (f *fakeReader) Read() (*image.RGBA, error) {
	if f.next >= f.total {
		return nil, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: uint8(f.next), A: 255})
	f.next++
	return img, nil
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

func openerFor(r *fakeReader) (Opener, *string) {
	var opened string
	return func(path string) (FrameReader, error) {
		opened = path
		return r, nil
	}, &opened
}

func TestFrameInterval(t *testing.T) {
	assert.Equal(t, 30, FrameInterval(30, 1))
	assert.Equal(t, 15, FrameInterval(30, 2))
	assert.Equal(t, 8, FrameInterval(25, 3)) // 8.33 rounds down
	assert.Equal(t, 10, FrameInterval(29.97, 3))
	assert.Equal(t, 1, FrameInterval(10, 30))
	assert.Equal(t, 1, FrameInterval(0, 1))
	assert.Equal(t, 1, FrameInterval(30, 0))
}

func TestSample_KeepsEveryIntervalFrame(t *testing.T) {
	reader := &fakeReader{fps: 10, total: 35}
	open, _ := openerFor(reader)
	s := NewSamplerWithOpener(open, t.TempDir())

	frames, err := s.Sample(context.Background(), Source{Path: "clip.mp4"}, 2, 30)
	require.NoError(t, err)
	require.Len(t, frames, 7) // decoded 0,5,10,...,30

	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, uint8(i*5), f.Image.RGBAAt(0, 0).R)
	}
	assert.True(t, reader.closed)
}

func TestSample_StopsAtMaxFrames(t *testing.T) {
	reader := &fakeReader{fps: 30, total: 10000}
	open, _ := openerFor(reader)
	s := NewSamplerWithOpener(open, t.TempDir())

	frames, err := s.Sample(context.Background(), Source{Path: "long.mp4"}, 1, 4)
	require.NoError(t, err)
	assert.Len(t, frames, 4)
	assert.Less(t, reader.next, 10000, "sampling must stop reading once the cap is hit")
}

func TestSample_EmptyStream(t *testing.T) {
	reader := &fakeReader{fps: 30, total: 0}
	open, _ := openerFor(reader)
	s := NewSamplerWithOpener(open, t.TempDir())

	frames, err := s.Sample(context.Background(), Source{Path: "empty.mp4"}, 1, 30)
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestSample_OpenFailure(t *testing.T) {
	s := NewSamplerWithOpener(func(path string) (FrameReader, error) {
		return nil, errors.New("codec missing")
	}, t.TempDir())

	_, err := s.Sample(context.Background(), Source{Path: "broken.avi"}, 1, 30)
	assert.ErrorIs(t, err, models.ErrSourceUnreadable)
}

func TestSample_BytesUseTempFile(t *testing.T) {
	dir := t.TempDir()
	reader := &fakeReader{fps: 1, total: 3}
	open, opened := openerFor(reader)
	s := NewSamplerWithOpener(open, dir)

	frames, err := s.Sample(context.Background(), Source{Data: []byte("not really a video"), Ext: ".avi"}, 1, 30)
	require.NoError(t, err)
	assert.Len(t, frames, 3)
	assert.Contains(t, *opened, dir)
	assert.Contains(t, *opened, ".avi")

	_, statErr := os.Stat(*opened)
	assert.True(t, os.IsNotExist(statErr), "temp file must be removed after sampling")
}
