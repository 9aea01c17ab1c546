package host

import "runtime"

const bytesPerMB = 1024 * 1024

// memSample is a point-in-time memory observation. Go has no managed/native
// heap split the way a hosted CLR runtime does, so HeapAllocMB stands in for
// "managed" memory and SysMB — the memory the runtime has obtained from the
// OS — stands in for "working set".
type memSample struct {
	HeapAllocMB float64
	SysMB       float64
}

func sampleMemory() memSample {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return memSample{
		HeapAllocMB: float64(m.HeapAlloc) / bytesPerMB,
		SysMB:       float64(m.Sys) / bytesPerMB,
	}
}
