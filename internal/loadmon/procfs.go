package loadmon

import (
	"errors"
	"runtime"

	"github.com/prometheus/procfs"
)

// ProcReader reads load average and memory from a procfs mount.
type ProcReader struct {
	fs   procfs.FS
	cpus int
}

// NewProcReader opens the procfs mount at path (usually "/proc").
func NewProcReader(path string) (*ProcReader, error) {
	fs, err := procfs.NewFS(path)
	if err != nil {
		return nil, err
	}
	return &ProcReader{fs: fs, cpus: runtime.NumCPU()}, nil
}

// Read implements Reader. CPULoad is the one minute load average divided by the
// number of CPUs.
func (p *ProcReader) Read() (Reading, error) {
	avg, err := p.fs.LoadAvg()
	if err != nil {
		return Reading{}, err
	}
	mem, err := p.fs.Meminfo()
	if err != nil {
		return Reading{}, err
	}
	if mem.MemTotal == nil || *mem.MemTotal == 0 {
		return Reading{}, errors.New("meminfo: MemTotal missing")
	}

	total := *mem.MemTotal
	avail := total
	switch {
	case mem.MemAvailable != nil:
		avail = *mem.MemAvailable
	case mem.MemFree != nil:
		avail = *mem.MemFree
	}
	if avail > total {
		avail = total
	}

	cpus := p.cpus
	if cpus <= 0 {
		cpus = 1
	}

	return Reading{
		CPULoad:        avg.Load1 / float64(cpus),
		MemUsedPercent: float64(total-avail) / float64(total) * 100,
		FreeMemoryMB:   avail / 1024,
	}, nil
}

// NopReader always fails, so a Monitor built on it reports normal load.
type NopReader struct{}

func (NopReader) Read() (Reading, error) {
	return Reading{}, errors.New("host metrics unavailable")
}
