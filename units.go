package weealloc

import "unsafe"

// WordSize is the machine word size in bytes. The allocator's cell headers,
// free-list links, and tagged pointers all assume this alignment.
const WordSize = Bytes(unsafe.Sizeof(uintptr(0)))

// PageSize is the size, in bytes, of a single page obtained from a
// PageSource. It matches the WebAssembly page size that this allocator was
// originally sized around, and conventional OS backends simply round up to
// it.
const PageSize = Bytes(65536)

// Bytes is a byte count. Keeping it as a distinct type from Words and Pages
// prevents the unit-confusion bugs that plague pointer arithmetic in this
// kind of code: a size that's actually in words, accidentally added to a
// byte offset, is a classic source of heap corruption.
type Bytes uintptr

// Words is a count of machine words.
type Words uintptr

// Pages is a count of PageSize-sized pages.
type Pages uintptr

// Bytes converts a word count to a byte count.
func (w Words) Bytes() Bytes { return Bytes(w) * WordSize }

// Bytes converts a page count to a byte count.
func (p Pages) Bytes() Bytes { return Bytes(p) * PageSize }

// Words converts a page count to a word count.
func (p Pages) Words() Words { return Words(p.Bytes() / WordSize) }

// RoundUpToWords rounds b up to the nearest whole number of words.
func (b Bytes) RoundUpToWords() Words {
	return Words(roundUp(uintptr(b), uintptr(WordSize)) / uintptr(WordSize))
}

// RoundUpToPages rounds b up to the nearest whole number of pages.
func (b Bytes) RoundUpToPages() Pages {
	return Pages(roundUp(uintptr(b), uintptr(PageSize)) / uintptr(PageSize))
}

// checkedRoundUpToWords is like RoundUpToWords but reports overflow instead
// of wrapping: a requested size that overflows when rounded up is an
// OutOfMemory condition, not undefined behavior.
func (b Bytes) checkedRoundUpToWords() (Words, bool) {
	rounded, ok := checkedRoundUp(uintptr(b), uintptr(WordSize))
	return Words(rounded / uintptr(WordSize)), ok
}

// checkedRoundUpToPages is like RoundUpToPages but reports overflow.
func (b Bytes) checkedRoundUpToPages() (Pages, bool) {
	rounded, ok := checkedRoundUp(uintptr(b), uintptr(PageSize))
	return Pages(rounded / uintptr(PageSize)), ok
}

// roundUp rounds n up to the nearest multiple of m. m must be a power of two.
func roundUp(n, m uintptr) uintptr { return (n + m - 1) &^ (m - 1) }

// checkedRoundUp is roundUp, but returns ok=false on overflow of n+m-1.
func checkedRoundUp(n, m uintptr) (uintptr, bool) {
	sum := n + (m - 1)
	if sum < n {
		return 0, false
	}
	return sum &^ (m - 1), true
}

// isPowerOfTwo reports whether n is a power of two. Zero is not.
func isPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}
