package database

import "testing"

func indexedStudents() []Student {
	return []Student{
		{ID: 1, StudentCode: "S1", Embedding: []float32{1, 0, 0}},
		{ID: 2, StudentCode: "S2", Embedding: []float32{0, 1, 0}},
		{ID: 3, StudentCode: "S3", Embedding: []float32{0, 0, 1}},
	}
}

func TestStudentIndexSearch(t *testing.T) {
	idx := NewStudentIndex()
	if err := idx.Build(indexedStudents()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ids, distances, err := idx.Search([]float32{0.9, 0.1, 0}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("expected nearest student 1, got %v", ids)
	}
	if distances[0] > 0.2 {
		t.Errorf("distance = %v, expected small", distances[0])
	}

	if s := idx.Get(ids[0]); s == nil || s.StudentCode != "S1" {
		t.Errorf("Get(%d) returned %+v, want S1", ids[0], s)
	}
}

func TestStudentIndexSearchEmpty(t *testing.T) {
	idx := NewStudentIndex()
	if _, _, err := idx.Search([]float32{1, 0, 0}, 1); err == nil {
		t.Fatal("expected error for uninitialized index")
	}
}

func TestStudentIndexAddRemove(t *testing.T) {
	idx := NewStudentIndex()
	if err := idx.Build(indexedStudents()); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	idx.Add(&Student{ID: 4, StudentCode: "S4", Embedding: []float32{0.9, 0.05, 0}})
	if idx.Count() != 4 {
		t.Fatalf("count = %d, want 4", idx.Count())
	}

	ids, _, err := idx.Search([]float32{0.9, 0.05, 0}, 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if ids[0] != 4 {
		t.Errorf("expected newly added student 4 as nearest, got %d", ids[0])
	}

	idx.Remove(4)
	if idx.Count() != 3 {
		t.Errorf("count after remove = %d, want 3", idx.Count())
	}
	if idx.Get(4) != nil {
		t.Error("removed student still retrievable")
	}
}

func TestStudentIndexSkipsEmptyEmbeddings(t *testing.T) {
	idx := NewStudentIndex()
	students := append(indexedStudents(), Student{ID: 9, StudentCode: "S9"})
	if err := idx.Build(students); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if idx.Count() != 3 {
		t.Errorf("count = %d, want 3 (empty embedding skipped)", idx.Count())
	}
}
