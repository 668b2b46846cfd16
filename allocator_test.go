package weealloc

import (
	"bytes"
	"math"
	"testing"

	"github.com/cznic/mathutil"
)

const quota = 4 << 20

func newTestAllocator() *Allocator {
	heap := make([]byte, 4*quota)
	return NewAllocator(NewStaticPageSource(heap), NewMutexExclusive[uintptr])
}

var (
	smallMax = 1 << 10
	bigMax   = 1 << 16
)

func test1(t *testing.T, max int) {
	alloc := newTestAllocator()
	rem := quota
	var a [][]byte
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		t.Fatal(err)
	}

	rng.Seed(42)
	pos := rng.Pos()
	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		b := alloc.Malloc(size)
		if b == nil {
			t.Fatal("Malloc failed")
		}

		a = append(a, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for i, b := range a {
		if g, e := len(b), rng.Next()%max+1; g != e {
			t.Fatal(i, g, e)
		}
		for i, g := range b {
			if e := byte(rng.Next()); g != e {
				t.Fatalf("%v %p: %#02x %#02x", i, &b[i], g, e)
			}
			b[i] = 0
		}
	}

	for i := range a {
		j := rng.Next() % len(a)
		a[i], a[j] = a[j], a[i]
	}

	for _, b := range a {
		alloc.Free(b)
	}
}

func Test1Small(t *testing.T) { test1(t, smallMax) }
func Test1Big(t *testing.T)   { test1(t, bigMax) }

func test2(t *testing.T, max int) {
	alloc := newTestAllocator()
	rem := quota
	var a [][]byte
	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		t.Fatal(err)
	}

	rng.Seed(42)
	pos := rng.Pos()
	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		b := alloc.Malloc(size)
		if b == nil {
			t.Fatal("Malloc failed")
		}
		a = append(a, b)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for i, b := range a {
		if g, e := len(b), rng.Next()%max+1; g != e {
			t.Fatal(i, g, e)
		}
		for i, g := range b {
			if e := byte(rng.Next()); g != e {
				t.Fatalf("%v %p: %#02x %#02x", i, &b[i], g, e)
			}
			b[i] = 0
		}
		alloc.Free(b)
	}
}

func Test2Small(t *testing.T) { test2(t, smallMax) }
func Test2Big(t *testing.T)   { test2(t, bigMax) }

func test3(t *testing.T, max int) {
	alloc := newTestAllocator()
	rem := quota
	m := map[*[]byte][]byte{}
	rng, err := mathutil.NewFC32(1, max, true)
	if err != nil {
		t.Fatal(err)
	}

	for rem > 0 {
		switch rng.Next() % 3 {
		case 0, 1: // 2/3 allocate
			size := rng.Next()
			rem -= size
			b := alloc.Malloc(size)
			if b == nil {
				t.Fatal("Malloc failed")
			}
			m[&b] = append([]byte(nil), b...)
		default: // 1/3 free
			for k := range m {
				b := *k
				for i := range b {
					b[i] = 0
				}
				rem += len(b)
				alloc.Free(b)
				delete(m, k)
				break
			}
		}
	}

	for k, v := range m {
		b := *k
		if !bytes.Equal(b, v) {
			t.Fatal("corrupted heap")
		}
		for i := range b {
			b[i] = 0
		}
		alloc.Free(b)
	}
}

func Test3Small(t *testing.T) { test3(t, smallMax) }
func Test3Big(t *testing.T)   { test3(t, bigMax) }

func TestFreeEmptySlice(t *testing.T) {
	alloc := newTestAllocator()
	b := alloc.Malloc(1)
	if b == nil {
		t.Fatal("Malloc failed")
	}
	alloc.Free(b[:0]) // empty slice: a no-op, must not panic
	alloc.Free(nil)   // must not panic
	alloc.Free(b)
}

func TestMallocZero(t *testing.T) {
	alloc := newTestAllocator()
	if b := alloc.Malloc(0); b != nil {
		t.Fatalf("Malloc(0) = %v, want nil", b)
	}
}

func TestUsableSizeRoundsUpToWord(t *testing.T) {
	alloc := newTestAllocator()
	b := alloc.Malloc(1)
	if b == nil {
		t.Fatal("Malloc failed")
	}
	if got := alloc.UsableSize(b); got < int(WordSize) {
		t.Fatalf("UsableSize = %d, want >= %d", got, WordSize)
	}
	alloc.Free(b)
}

func TestReallocPreservesPrefix(t *testing.T) {
	alloc := newTestAllocator()
	b := alloc.Malloc(8)
	for i := range b {
		b[i] = byte(i + 1)
	}
	b2 := alloc.Realloc(b, 64)
	if b2 == nil {
		t.Fatal("Realloc failed")
	}
	for i := 0; i < 8; i++ {
		if b2[i] != byte(i+1) {
			t.Fatalf("byte %d: got %#x, want %#x", i, b2[i], i+1)
		}
	}
	alloc.Free(b2)
}

func TestAllocInvalidAlignment(t *testing.T) {
	alloc := newTestAllocator()
	if _, err := alloc.Alloc(Layout{Size: 8, Align: 0}); err != ErrInvalidLayout {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
	if _, err := alloc.Alloc(Layout{Size: 8, Align: 3}); err != ErrInvalidLayout {
		t.Fatalf("err = %v, want ErrInvalidLayout", err)
	}
}

func TestAllocZeroSizeIsAligned(t *testing.T) {
	alloc := newTestAllocator()
	ptr, err := alloc.Alloc(Layout{Size: 0, Align: 16})
	if err != nil {
		t.Fatal(err)
	}
	if uintptr(ptr)%16 != 0 {
		t.Fatalf("zero-size pointer %p not aligned to 16", ptr)
	}
	alloc.Dealloc(ptr, Layout{Size: 0, Align: 16})
}

func benchmarkFree(b *testing.B, size int) {
	alloc := newTestAllocator()
	ptrs := make([][]byte, b.N)
	for i := 0; i < b.N; i++ {
		p := alloc.Malloc(size)
		if p == nil {
			b.Fatal("Malloc failed")
		}
		ptrs[i] = p
	}
	b.ResetTimer()
	for _, p := range ptrs {
		alloc.Free(p)
	}
}

func BenchmarkFree16(b *testing.B) { benchmarkFree(b, 1<<4) }
func BenchmarkFree32(b *testing.B) { benchmarkFree(b, 1<<5) }
func BenchmarkFree64(b *testing.B) { benchmarkFree(b, 1<<6) }

func benchmarkMalloc(b *testing.B, size int) {
	alloc := newTestAllocator()
	ptrs := make([][]byte, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := alloc.Malloc(size)
		if p == nil {
			b.Fatal("Malloc failed")
		}
		ptrs[i] = p
	}
	b.StopTimer()
	for _, p := range ptrs {
		alloc.Free(p)
	}
}

func BenchmarkMalloc16(b *testing.B) { benchmarkMalloc(b, 1<<4) }
func BenchmarkMalloc32(b *testing.B) { benchmarkMalloc(b, 1<<5) }
func BenchmarkMalloc64(b *testing.B) { benchmarkMalloc(b, 1<<6) }

func benchmarkCalloc(b *testing.B, size int) {
	alloc := newTestAllocator()
	ptrs := make([][]byte, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := alloc.Calloc(size)
		if p == nil {
			b.Fatal("Calloc failed")
		}
		ptrs[i] = p
	}
	b.StopTimer()
	for _, p := range ptrs {
		alloc.Free(p)
	}
}

func BenchmarkCalloc16(b *testing.B) { benchmarkCalloc(b, 1<<4) }
func BenchmarkCalloc32(b *testing.B) { benchmarkCalloc(b, 1<<5) }
func BenchmarkCalloc64(b *testing.B) { benchmarkCalloc(b, 1<<6) }
