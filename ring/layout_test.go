package ring

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestLayoutSizes(t *testing.T) {
	require.EqualValues(t, 64, unsafe.Sizeof(Cursor{}))
	require.EqualValues(t, 8, unsafe.Sizeof(Header{}))
	require.EqualValues(t, 64, unsafe.Sizeof(ConnectionState{}))
	require.EqualValues(t, 64, unsafe.Sizeof(SlotDescriptor{}))
}

func TestLayoutOffsets(t *testing.T) {
	var rb RingBuffer
	require.EqualValues(t, 0, unsafe.Offsetof(rb.Publish))
	require.EqualValues(t, 64, unsafe.Offsetof(rb.Claim))
	require.EqualValues(t, 128, unsafe.Offsetof(rb.Connections))
	require.EqualValues(t, 128+MaxConnections*64, unsafe.Offsetof(rb.Slots))
	require.EqualValues(t, 16512, unsafe.Offsetof(rb.Slots))
}

func TestSlotIndexIsPureFunctionOfSequence(t *testing.T) {
	require.EqualValues(t, 0, SlotIndex(0))
	require.EqualValues(t, MaxSlots-1, SlotIndex(MaxSlots-1))
	require.EqualValues(t, 0, SlotIndex(MaxSlots))
	require.EqualValues(t, 1, SlotIndex(MaxSlots+1))
	require.EqualValues(t, SlotIndex(12345), SlotIndex(12345+MaxSlots))
}

func TestRegionNames(t *testing.T) {
	require.Equal(t, "disruptor:t1", HeaderRegionName("t1"))
	require.Equal(t, "disruptor:t1:rb", RingRegionName("t1"))
	require.Equal(t, "disruptor:t1:7", ArenaRegionName("t1", 7))
}
