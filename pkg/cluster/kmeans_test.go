package cluster

import "testing"

func TestKMeansSeparatesObviousClusters(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, 0}, {0.9, 0.1}, {0.95, 0},
		{0, 1}, {0.1, 0.9}, {0, 0.95},
	}
	result := KMeans(vectors, 2)
	if result.K != 2 {
		t.Fatalf("expected 2 clusters, got %d", result.K)
	}

	// All x-axis vectors share one cluster, all y-axis vectors the other.
	first := result.Assignments[0]
	for i := 1; i < 3; i++ {
		if result.Assignments[i] != first {
			t.Errorf("vector %d should share cluster with vector 0", i)
		}
	}
	second := result.Assignments[3]
	if second == first {
		t.Fatal("the two groups must land in different clusters")
	}
	for i := 4; i < 6; i++ {
		if result.Assignments[i] != second {
			t.Errorf("vector %d should share cluster with vector 3", i)
		}
	}
}

func TestKMeansDeterministic(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, 0}, {0, 1}, {0.5, 0.5}, {0.9, 0.2}, {0.1, 0.8}, {0.3, 0.3},
	}
	a := KMeans(vectors, 3)
	b := KMeans(vectors, 3)
	for i := range a.Assignments {
		if a.Assignments[i] != b.Assignments[i] {
			t.Fatalf("assignment %d differs between identical runs", i)
		}
	}
}

func TestKMeansClampsK(t *testing.T) {
	t.Parallel()

	result := KMeans([][]float32{{1, 0}, {0, 1}}, 5)
	if result.K != 2 {
		t.Errorf("k must clamp to input size, got %d", result.K)
	}
	empty := KMeans(nil, 3)
	if empty.K != 0 || empty.Assignments != nil {
		t.Errorf("empty input must yield empty result, got %+v", empty)
	}
}

func TestRepresentatives(t *testing.T) {
	t.Parallel()

	vectors := [][]float32{
		{1, 0}, {0.7, 0.7},
		{0, 1}, {0.1, 0.99},
	}
	result := KMeans(vectors, 2)
	reps := Representatives(vectors, result)
	if len(reps) != 2 {
		t.Fatalf("expected 2 representatives, got %d", len(reps))
	}
	for c, rep := range reps {
		if rep < 0 || rep >= len(vectors) {
			t.Errorf("cluster %d representative out of range: %d", c, rep)
		}
		if result.Assignments[rep] != c {
			t.Errorf("cluster %d representative belongs to cluster %d", c, result.Assignments[rep])
		}
	}
}
