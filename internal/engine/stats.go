package engine

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

// statsSampler caches process diagnostics so reader views never block on
// /proc reads. sample runs on the engine's stats ticker; snapshot is called
// under the engine lock.
type statsSampler struct {
	mu   sync.Mutex
	proc *process.Process
	rss  uint64
	cpu  float64
}

func (s *statsSampler) sample() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return
		}
		s.proc = p
	}
	if mi, err := s.proc.MemoryInfo(); err == nil && mi != nil {
		s.rss = mi.RSS
	}
	if pct, err := s.proc.CPUPercent(); err == nil {
		s.cpu = pct
	}
}

func (s *statsSampler) snapshot() (rss uint64, cpu float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rss, s.cpu
}

// statsLocked assembles reading progress for the open document plus the
// latest process sample.
func (e *Engine) statsLocked() protocol.ReadingStats {
	d := e.doc
	if d == nil {
		return protocol.ReadingStats{}
	}
	rss, cpu := e.stats.snapshot()
	st := protocol.ReadingStats{
		PageWords:      d.pageWords(),
		TotalWords:     d.totalWords,
		WordsRead:      d.wordsBefore(e.furthest + 1),
		PagesRead:      len(e.visited),
		ReadingSeconds: time.Since(e.openedAt).Seconds(),
		EngineRSSBytes: rss,
		EngineCPUPct:   cpu,
	}
	if st.ReadingSeconds >= 1 {
		st.WordsPerMinute = float64(st.WordsRead) / (st.ReadingSeconds / 60)
	}
	if n := len(d.sentences); n > 0 {
		st.PercentRead = 100 * float64(e.furthest+1) / float64(n)
	}
	return st
}
