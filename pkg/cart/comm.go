// Package cart provides the process-topology handles the reconstruction runs
// over: a 2D Cartesian grid of processes together with its row and column
// groups. Processes are goroutines; every collective blocks until all members
// of the group have entered it.
package cart

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrAborted is returned by every collective on a group that was aborted.
	ErrAborted = errors.New("communicator aborted")

	// ErrInvalidShape is returned for grids with a non-positive dimension.
	ErrInvalidShape = errors.New("invalid grid shape")

	// ErrCountMismatch is returned when members pass inconsistent buffers.
	ErrCountMismatch = errors.New("collective buffer mismatch")
)

// Comm is a group of cooperating processes. All members must call the same
// collectives in the same order; a member that never arrives blocks the rest
// of the group until the group is aborted.
type Comm interface {
	// Rank is the caller's index inside the group.
	Rank() int

	// Size is the number of members.
	Size() int

	// AllreduceSum replaces data with the element-wise sum over all members.
	AllreduceSum(data []float64) error

	// ReduceScatterSum sums data over all members and returns the segment
	// belonging to the caller; counts[i] is the length of member i's segment.
	ReduceScatterSum(data []float64, counts []int) ([]float64, error)

	// Allgather concatenates every member's part in rank order.
	Allgather(part []float64) ([]float64, error)

	// Barrier returns once every member has entered it.
	Barrier() error
}

// hub is the rendezvous shared by the members of one group.
type hub struct {
	mu      sync.Mutex
	cond    *sync.Cond
	size    int
	gen     uint64
	arrived int
	slots   [][]float64
	err     error
}

func newHub(size int) *hub {
	h := &hub{size: size, slots: make([][]float64, size)}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// exchange deposits a copy of data and waits for the rest of the group.
// It returns every member's contribution for this round, indexed by rank.
func (h *hub) exchange(rank int, data []float64) ([][]float64, error) {
	buf := make([]float64, len(data))
	copy(buf, data)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err != nil {
		return nil, h.err
	}

	gen := h.gen
	slots := h.slots
	slots[rank] = buf
	h.arrived++
	if h.arrived == h.size {
		h.gen++
		h.arrived = 0
		h.slots = make([][]float64, h.size)
		h.cond.Broadcast()
		return slots, nil
	}

	for gen == h.gen && h.err == nil {
		h.cond.Wait()
	}
	if gen == h.gen {
		return nil, h.err
	}
	return slots, nil
}

func (h *hub) abort(cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.err == nil {
		if cause == nil {
			h.err = ErrAborted
		} else {
			h.err = fmt.Errorf("%w: %v", ErrAborted, cause)
		}
	}
	h.cond.Broadcast()
}

// member is one process's handle on a hub.
type member struct {
	hub  *hub
	rank int
}

var _ Comm = (*member)(nil)

func (m *member) Rank() int { return m.rank }

func (m *member) Size() int { return m.hub.size }

func (m *member) AllreduceSum(data []float64) error {
	slots, err := m.hub.exchange(m.rank, data)
	if err != nil {
		return err
	}
	for i, s := range slots {
		if len(s) != len(data) {
			return fmt.Errorf("%w: allreduce length %d from rank %d, want %d", ErrCountMismatch, len(s), i, len(data))
		}
	}

	copy(data, slots[0])
	for _, s := range slots[1:] {
		floats.Add(data, s)
	}
	return nil
}

func (m *member) ReduceScatterSum(data []float64, counts []int) ([]float64, error) {
	if len(counts) != m.hub.size {
		return nil, fmt.Errorf("%w: %d counts for a group of %d", ErrCountMismatch, len(counts), m.hub.size)
	}
	total, offset := 0, 0
	for i, c := range counts {
		if i == m.rank {
			offset = total
		}
		total += c
	}
	if total != len(data) {
		return nil, fmt.Errorf("%w: counts sum to %d, buffer has %d", ErrCountMismatch, total, len(data))
	}

	slots, err := m.hub.exchange(m.rank, data)
	if err != nil {
		return nil, err
	}

	out := make([]float64, counts[m.rank])
	for i, s := range slots {
		if len(s) != total {
			return nil, fmt.Errorf("%w: reduce-scatter length %d from rank %d, want %d", ErrCountMismatch, len(s), i, total)
		}
		floats.Add(out, s[offset:offset+counts[m.rank]])
	}
	return out, nil
}

func (m *member) Allgather(part []float64) ([]float64, error) {
	slots, err := m.hub.exchange(m.rank, part)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, s := range slots {
		total += len(s)
	}
	out := make([]float64, 0, total)
	for _, s := range slots {
		out = append(out, s...)
	}
	return out, nil
}

func (m *member) Barrier() error {
	_, err := m.hub.exchange(m.rank, nil)
	return err
}
