package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sguzman/lantern-leaf-sub000/internal/protocol"
)

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore()
	st := s.Snapshot()

	if st.Session.Mode != protocol.ModeStarter {
		t.Errorf("new store mode = %s, want starter", st.Session.Mode)
	}
	if st.Reader != nil {
		t.Error("new store has a reader view")
	}
	if st.Busy {
		t.Error("new store is busy")
	}
	if st.LogLevel != "info" {
		t.Errorf("new store log level = %q, want info", st.LogLevel)
	}
}

func TestSnapshotReturnsCopy(t *testing.T) {
	s := NewStore()
	h := 1
	s.SetReader(&protocol.ReaderView{
		ResourceID: "r1",
		Sentences:  []string{"one.", "two."},
		Highlight:  &h,
	})
	s.SetEntries([]protocol.CatalogEntry{{ID: "e1", Title: "original"}})

	snap := s.Snapshot()
	snap.Session.Theme = "mutated"
	snap.Reader.Sentences[0] = "mutated."
	*snap.Reader.Highlight = 99
	snap.Entries[0].Title = "mutated"

	got := s.Snapshot()
	if got.Session.Theme == "mutated" {
		t.Error("session mutation leaked into store")
	}
	if got.Reader.Sentences[0] != "one." {
		t.Error("reader sentence mutation leaked into store")
	}
	if *got.Reader.Highlight != 1 {
		t.Error("highlight mutation leaked into store")
	}
	if got.Entries[0].Title != "original" {
		t.Error("entry mutation leaked into store")
	}
}

func TestSetReaderStoresCopy(t *testing.T) {
	s := NewStore()
	v := &protocol.ReaderView{ResourceID: "r1", Sentences: []string{"one."}}
	s.SetReader(v)

	v.Sentences[0] = "mutated."

	if got := s.Snapshot(); got.Reader.Sentences[0] != "one." {
		t.Error("SetReader did not copy input; external mutation leaked into store")
	}
}

func TestClearReader(t *testing.T) {
	s := NewStore()
	s.SetReader(&protocol.ReaderView{ResourceID: "r1"})
	s.ClearReader()

	if s.Snapshot().Reader != nil {
		t.Error("reader still present after ClearReader")
	}
}

func TestNotifyReplaces(t *testing.T) {
	s := NewStore()
	s.Notify(NoticeError, "first")
	s.Notify(NoticeInfo, "second")

	st := s.Snapshot()
	if st.Notice == nil {
		t.Fatal("no notice after Notify")
	}
	if st.Notice.Text != "second" || st.Notice.Kind != NoticeInfo {
		t.Errorf("notice = %+v, want the second notice only", st.Notice)
	}

	s.ClearNotice()
	if s.Snapshot().Notice != nil {
		t.Error("notice survived ClearNotice")
	}
}

func TestMutateIsAtomic(t *testing.T) {
	s := NewStore()
	s.Mutate(func(st *State) {
		st.Session.Mode = protocol.ModeReader
		st.Session.ResourceID = "r1"
		st.Reader = &protocol.ReaderView{ResourceID: "r1"}
	})

	st := s.Snapshot()
	if st.Session.ResourceID != "r1" || st.Reader == nil {
		t.Errorf("Mutate applied partially: %+v", st.Session)
	}
}

func TestJobUpsertAndClear(t *testing.T) {
	s := NewStore()
	s.SetJob(protocol.JobEvent{JobID: "j1", Kind: protocol.JobPrecompute, Percent: 10})
	s.SetJob(protocol.JobEvent{JobID: "j1", Kind: protocol.JobPrecompute, Percent: 60})
	s.SetJob(protocol.JobEvent{JobID: "j2", Kind: protocol.JobPrecompute, Percent: 5})

	st := s.Snapshot()
	if len(st.Jobs) != 2 {
		t.Fatalf("jobs len = %d, want 2", len(st.Jobs))
	}
	if st.Jobs["j1"].Percent != 60 {
		t.Errorf("job j1 percent = %v, want 60 (latest upsert)", st.Jobs["j1"].Percent)
	}

	s.ClearJob("j1")
	if _, ok := s.Snapshot().Jobs["j1"]; ok {
		t.Error("job j1 survived ClearJob")
	}
}

func TestSetEntriesStoresCopy(t *testing.T) {
	s := NewStore()
	in := []protocol.CatalogEntry{{ID: "e1", Title: "original"}}
	s.SetEntries(in)

	in[0].Title = "mutated"

	if got := s.Snapshot().Entries[0].Title; got != "original" {
		t.Error("SetEntries did not copy input; external mutation leaked into store")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	const goroutines = 50

	for i := 0; i < goroutines; i++ {
		wg.Add(3)

		go func(n int) {
			defer wg.Done()
			s.SetSession(protocol.Session{Mode: protocol.ModeReader, ResourceID: fmt.Sprintf("r%d", n), Theme: protocol.ThemeDark})
			s.SetReader(&protocol.ReaderView{ResourceID: fmt.Sprintf("r%d", n)})
		}(i)

		go func(n int) {
			defer wg.Done()
			s.Snapshot()
			s.SetJob(protocol.JobEvent{JobID: fmt.Sprintf("j%d", n)})
		}(i)

		go func() {
			defer wg.Done()
			s.Mutate(func(st *State) {
				st.Busy = !st.Busy
			})
		}()
	}
	wg.Wait()
}
