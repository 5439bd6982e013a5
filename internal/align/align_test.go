package align

import (
	"testing"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Test_CacheLineSize verifies CacheLineSize against the actual platform
// cache line size, the same way eventloop/align_test.go verifies its own
// sizeOfCacheLine constant.
func Test_CacheLineSize(t *testing.T) {
	actual := unsafe.Sizeof(cpu.CacheLinePad{})
	if CacheLineSize < uint64(actual) {
		t.Errorf("CacheLineSize (%d) is less than actual cache line size (%d)", CacheLineSize, actual)
	}
	if CacheLineSize%uint64(actual) != 0 {
		t.Errorf("CacheLineSize (%d) is not a multiple of actual cache line size (%d)", CacheLineSize, actual)
	}
}

func TestPadSize(t *testing.T) {
	var p Pad
	if unsafe.Sizeof(p) != CacheLineSize {
		t.Errorf("Pad size = %d, want %d", unsafe.Sizeof(p), CacheLineSize)
	}
}
