package store

import "context"

// Stats summarizes store contents.
type Stats struct {
	Documents   int  `json:"documents"`
	Chunks      int  `json:"chunks"`
	Embedded    int  `json:"embedded_chunks"`
	Reflections int  `json:"reflections"`
	VectorMode  bool `json:"vector_mode"`
}

// GetStats returns document, chunk, and reflection counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	st := &Stats{VectorMode: s.embedder != nil}

	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM documents`, &st.Documents},
		{`SELECT COUNT(*) FROM chunks`, &st.Chunks},
		{`SELECT COUNT(*) FROM chunks WHERE embedding IS NOT NULL`, &st.Embedded},
		{`SELECT COUNT(*) FROM reflections`, &st.Reflections},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return st, nil
}
