package syncer

import (
	"sync"

	"github.com/0KvinayK0/android-pass/internal/domain"
)

// Phase is the observable state of a vault's reconciliation.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePulling Phase = "pulling"
	PhasePushing Phase = "pushing"
)

// shareSerializer grants exclusive, in-order access per vault. All
// mutations and event application for one vault pass through its lock,
// so per-vault writes never interleave; different vaults proceed in
// parallel.
type shareSerializer struct {
	mu     sync.Mutex
	locks  map[domain.ShareID]*sync.Mutex
	phases map[domain.ShareID]Phase
}

func newShareSerializer() *shareSerializer {
	return &shareSerializer{
		locks:  make(map[domain.ShareID]*sync.Mutex),
		phases: make(map[domain.ShareID]Phase),
	}
}

func (s *shareSerializer) lockFor(shareID domain.ShareID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[shareID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[shareID] = l
	}
	return l
}

func (s *shareSerializer) setPhase(shareID domain.ShareID, p Phase) {
	s.mu.Lock()
	s.phases[shareID] = p
	s.mu.Unlock()
}

// phase reports the vault's current reconciliation phase.
func (s *shareSerializer) phase(shareID domain.ShareID) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.phases[shareID]; ok {
		return p
	}
	return PhaseIdle
}

// do runs fn while holding the vault's lock, marking the given phase for
// the duration.
func (s *shareSerializer) do(shareID domain.ShareID, p Phase, fn func() error) error {
	l := s.lockFor(shareID)
	l.Lock()
	defer l.Unlock()

	s.setPhase(shareID, p)
	defer s.setPhase(shareID, PhaseIdle)
	return fn()
}
