package compute_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
)

func TestImagePoolReusesReleasedSlot(t *testing.T) {
	device := compute.NewSoftwareDevice()
	pool := compute.NewImagePool(device)
	defer pool.Close()

	first, err := pool.Acquire(64, 36)
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())

	first.Release()
	// release is asynchronous; give the drain goroutine a moment.
	require.Eventually(t, func() bool {
		second, err := pool.Acquire(64, 36)
		if err != nil {
			return false
		}
		defer second.Release()
		return pool.Len() == 1
	}, time.Second, time.Millisecond)
}

func TestImagePoolGrowsForDistinctDimensions(t *testing.T) {
	device := compute.NewSoftwareDevice()
	pool := compute.NewImagePool(device)
	defer pool.Close()

	a, err := pool.Acquire(64, 36)
	require.NoError(t, err)
	b, err := pool.Acquire(128, 72)
	require.NoError(t, err)

	require.Equal(t, 2, pool.Len())
	a.Release()
	b.Release()
}

func TestPooledImageRetainRelease(t *testing.T) {
	device := compute.NewSoftwareDevice()
	pool := compute.NewImagePool(device)
	defer pool.Close()

	img, err := pool.Acquire(10, 10)
	require.NoError(t, err)

	img.Retain()
	img.Release()

	// one reference remains; a fresh acquire of the same size must not
	// reuse this slot yet.
	time.Sleep(10 * time.Millisecond)
	other, err := pool.Acquire(10, 10)
	require.NoError(t, err)
	require.Equal(t, 2, pool.Len())

	img.Release()
	other.Release()
}

func TestSoftwareDeviceBufferImageRoundTrip(t *testing.T) {
	device := compute.NewSoftwareDevice()

	img, err := device.AllocateImage(2, 2)
	require.NoError(t, err)

	buf, err := device.AllocateBuffer(2 * 2 * 4 * 4)
	require.NoError(t, err)

	data := make([]byte, 2*2*4*4)
	for i := range data {
		data[i] = byte(i % 251)
	}

	ev, err := device.LoadHostToBuffer(buf, data)
	require.NoError(t, err)
	ev.Wait()

	require.NoError(t, device.CopyBufferToImage(buf, img))

	out := make([]byte, len(data))
	require.NoError(t, device.CopyImageToBuffer(img, buf))
	require.NoError(t, device.ReadBufferToHost(buf, out, nil))
	require.Equal(t, data, out)
}

func TestSoftwareDeviceBlackImageCache(t *testing.T) {
	ctx := compute.NewContext(compute.NewSoftwareDevice())
	defer ctx.Close()

	a, err := ctx.BlackImage(16, 9)
	require.NoError(t, err)
	b, err := ctx.BlackImage(16, 9)
	require.NoError(t, err)
	require.Same(t, a, b)
}
