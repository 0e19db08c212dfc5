package groundctl

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jd3nn1s/groundctl/clock"
	"github.com/jd3nn1s/groundctl/naio"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStaleAfter = 500 * time.Millisecond

func compress(t *testing.T, data []byte) []byte {
	buf := bytes.NewBuffer(nil)
	zw := zlib.NewWriter(buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func createStager() (*Stager, *Slot[*naio.StereoImage], *clock.Mock) {
	slot := &Slot[*naio.StereoImage]{}
	c := clock.NewMock(time.Unix(1000, 0))
	return NewStager(slot, c, testStaleAfter), slot, c
}

func TestStagerStartsWithPattern(t *testing.T) {
	s, _, _ := createStager()
	f := s.Snapshot()
	assert.True(t, f.Fallback)
	assert.Len(t, f.Data, StagingCapacity)
	assert.Equal(t, uint8(0), f.Data[0])
	assert.Equal(t, uint8(254), f.Data[254])
	assert.Equal(t, uint8(0), f.Data[255])
	assert.Equal(t, uint8(1), f.Data[256])
}

func TestStagerCompressedRaw(t *testing.T) {
	s, slot, _ := createStager()
	slot.Set(&naio.StereoImage{
		Type: naio.RawImagesZlib,
		Data: compress(t, []byte{10, 20, 30}),
	})
	require.NoError(t, s.Tick())

	f := s.Snapshot()
	assert.False(t, f.Fallback)
	assert.Equal(t, naio.RawImagesZlib, f.Type)
	assert.Equal(t, rawWidth, f.Width)
	assert.Equal(t, rawHeight, f.Height)
	assert.Equal(t, 3, f.Channels)
	assert.Equal(t, []byte{10, 10, 10, 20, 20, 20, 30, 30, 30}, f.Data)

	// the slot is consumed
	_, ok := slot.Get()
	assert.False(t, ok)
	seq := f.Seq
	require.NoError(t, s.Tick())
	assert.Equal(t, seq, s.Info().Seq)
}

func TestStagerRectified(t *testing.T) {
	s, slot, _ := createStager()
	slot.Set(&naio.StereoImage{
		Type: naio.RectifiedColorizedImages,
		Data: []byte{1, 2, 3, 4, 5, 6},
	})
	require.NoError(t, s.Tick())

	f := s.Snapshot()
	assert.Equal(t, rectWidth, f.Width)
	assert.Equal(t, rectHeight, f.Height)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, f.Data)

	info := s.Info()
	assert.Nil(t, info.Data)
	assert.Equal(t, f.Seq, info.Seq)
}

func TestStagerDropsOversize(t *testing.T) {
	s, slot, _ := createStager()
	before := s.Info()

	slot.Set(&naio.StereoImage{
		Type: naio.RawImagesZlib,
		Data: compress(t, make([]byte, rawSourceSize+1)),
	})
	assert.Error(t, s.Tick())

	slot.Set(&naio.StereoImage{
		Type: naio.RectifiedColorizedImages,
		Data: make([]byte, rectSourceSize+1),
	})
	assert.Error(t, s.Tick())

	slot.Set(&naio.StereoImage{
		Type: naio.RectifiedColorizedImagesZlib,
		Data: []byte("not zlib"),
	})
	assert.Error(t, s.Tick())

	assert.Equal(t, before, s.Info())
}

func TestStagerFullSizeRaw(t *testing.T) {
	s, slot, _ := createStager()
	data := make([]byte, rawSourceSize)
	data[len(data)-1] = 7
	slot.Set(&naio.StereoImage{Type: naio.RawImagesZlib, Data: compress(t, data)})
	require.NoError(t, s.Tick())

	f := s.Snapshot()
	assert.Len(t, f.Data, StagingCapacity)
	assert.Equal(t, []byte{7, 7, 7}, f.Data[StagingCapacity-3:])
}

func TestStagerFallsBackWhenStale(t *testing.T) {
	s, slot, c := createStager()
	slot.Set(&naio.StereoImage{Type: naio.RawImages, Data: []byte{9}})
	require.NoError(t, s.Tick())
	staged := s.Info().Seq

	c.Advance(400 * time.Millisecond)
	require.NoError(t, s.Tick())
	assert.False(t, s.Info().Fallback)

	c.Advance(200 * time.Millisecond)
	require.NoError(t, s.Tick())
	f := s.Info()
	assert.True(t, f.Fallback)
	assert.Equal(t, staged+1, f.Seq)

	// the pattern is only rewritten once it is stale itself
	require.NoError(t, s.Tick())
	assert.Equal(t, staged+1, s.Info().Seq)
	c.Advance(testStaleAfter + time.Millisecond)
	require.NoError(t, s.Tick())
	assert.Equal(t, staged+2, s.Info().Seq)
}

func TestStagerRun(t *testing.T) {
	s, slot, _ := createStager()
	slot.Set(&naio.StereoImage{Type: naio.RawImages, Data: []byte{3}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, time.Millisecond)
	}()
	assert.Eventually(t, func() bool {
		return !s.Info().Fallback
	}, time.Second, time.Millisecond)
	cancel()
	assert.Equal(t, context.Canceled, <-done)
}
