package database

import (
	"errors"
	"sync"

	"github.com/coder/hnsw"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// StudentIndex is an in-memory HNSW index over enrolled student embeddings.
// It serves the duplicate-enrollment guard and nearest-neighbor lookups
// without a database round-trip. The exhaustive matcher stays authoritative
// for the attendance decision; the index is an accelerator.
type StudentIndex struct {
	graph       *hnsw.Graph[int64]
	idToStudent map[int64]*Student
	mu          sync.RWMutex
}

// NewStudentIndex creates an empty student index.
func NewStudentIndex() *StudentIndex {
	return &StudentIndex{
		idToStudent: make(map[int64]*Student),
	}
}

func newStudentGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with the given students.
func (idx *StudentIndex) Build(students []Student) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(students) == 0 {
		idx.graph = nil
		idx.idToStudent = make(map[int64]*Student)
		return nil
	}

	g := newStudentGraph()
	idx.idToStudent = make(map[int64]*Student, len(students))

	for i := range students {
		s := &students[i]
		if len(s.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(s.ID, s.Embedding))
		idx.idToStudent[s.ID] = s
	}

	idx.graph = g
	return nil
}

// Add inserts a single newly enrolled student into the index.
func (idx *StudentIndex) Add(s *Student) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(s.Embedding) == 0 {
		return
	}
	if idx.graph == nil {
		idx.graph = newStudentGraph()
	}
	idx.graph.Add(hnsw.MakeNode(s.ID, s.Embedding))
	idx.idToStudent[s.ID] = s
}

// Remove drops a deactivated student from the index.
func (idx *StudentIndex) Remove(id int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.graph != nil {
		idx.graph.Delete(id)
	}
	delete(idx.idToStudent, id)
}

// Search returns the k nearest enrolled students and their euclidean
// distances to the query embedding.
func (idx *StudentIndex) Search(query []float32, k int) ([]int64, []float64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := idx.graph.Search(query, k)

	ids := make([]int64, len(neighbors))
	distances := make([]float64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
		if len(n.Value) > 0 {
			distances[i] = float64(hnsw.EuclideanDistance(query, n.Value))
		}
	}
	return ids, distances, nil
}

// Get returns the indexed student for an id, nil if absent.
func (idx *StudentIndex) Get(id int64) *Student {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.idToStudent[id]
}

// Count returns the number of indexed students.
func (idx *StudentIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.idToStudent)
}
