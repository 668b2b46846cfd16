package weealloc

// NewHostGrowPageSource adapts grow — a host intrinsic that reserves n more
// pages and reports whether it succeeded — into a PageSource. This is the
// shape a size-constrained runtime's own "grow my linear memory" primitive
// takes; the WebAssembly memory.grow instruction is the canonical example,
// but the same adapter fits any host that exposes an analogous call rather
// than a general-purpose mmap.
func NewHostGrowPageSource(grow func(n Pages) (uintptr, bool)) PageSource {
	return HostGrowFunc(grow)
}
