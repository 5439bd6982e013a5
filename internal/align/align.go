// Package align provides the cache-line sizing constants shared by every
// struct in this module that separates hot atomics to avoid false sharing
// (the node pool's free-list head and current chunk, hazard records, queue
// nodes, queue head/tail).
package align

// CacheLineSize is the padding unit used throughout the core.
//
// 64 bytes is standard for x86-64. 128 bytes is standard for Apple Silicon
// (M1/M2/M3) and other ARM64 parts with adjacent-cache-line prefetch. 128
// is used everywhere to satisfy the largest common requirement; it is
// verified against golang.org/x/sys/cpu.CacheLinePad in align_test.go.
const CacheLineSize = 128

// Pad is a zero-sized-for-access, fixed-size byte array used as a struct
// field to force the following field onto its own cache line. It carries
// no data; its only purpose is to occupy CacheLineSize bytes of layout.
type Pad [CacheLineSize]byte
