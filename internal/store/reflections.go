package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/rehydrate/internal/embedding"
	"github.com/rcliao/rehydrate/internal/episodic"
	"github.com/rcliao/rehydrate/internal/model"
)

// SaveReflectionParams holds parameters for recording a completed task.
type SaveReflectionParams struct {
	TaskDescription string
	WhatWorked      []string
	WhatToAvoid     []string
	Agent           string
	TaskType        string
}

// SaveReflection stores a new episode. This is the task-completion hook's
// entry point; the retrieval engine itself never calls it.
func (s *Store) SaveReflection(ctx context.Context, p SaveReflectionParams) (*model.Reflection, error) {
	if p.TaskDescription == "" {
		return nil, fmt.Errorf("task description required")
	}

	now := time.Now().UTC()
	id := s.newID()

	var embJSON *string
	var vec embedding.Vector
	if s.embedder != nil {
		var err error
		vec, err = s.embedder.Embed(ctx, p.TaskDescription)
		if err != nil {
			return nil, fmt.Errorf("embed reflection: %w", err)
		}
		b, _ := json.Marshal(vec)
		j := string(b)
		embJSON = &j
	}

	workedJSON, _ := json.Marshal(p.WhatWorked)
	avoidJSON, _ := json.Marshal(p.WhatToAvoid)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reflections (id, task_description, what_worked, what_to_avoid, agent, task_type, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.TaskDescription, string(workedJSON), string(avoidJSON),
		p.Agent, p.TaskType, embJSON, now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert reflection: %w", err)
	}

	s.logger.Debug("reflection saved", zap.String("id", id), zap.String("task_type", p.TaskType))

	return &model.Reflection{
		EpisodeID:       id,
		TaskDescription: p.TaskDescription,
		WhatWorked:      p.WhatWorked,
		WhatToAvoid:     p.WhatToAvoid,
		Agent:           p.Agent,
		TaskType:        p.TaskType,
		Embedding:       vec,
		CreatedAt:       now,
	}, nil
}

// SearchReflections hybrid-ranks stored episodes against a task description:
// blended = 0.7·cosine + 0.3·token-overlap, lexical-only when embeddings are
// unavailable. Results are ordered by blended score descending, recency
// breaking ties.
func (s *Store) SearchReflections(ctx context.Context, task string, topN int) ([]model.ReflectionHit, error) {
	if topN <= 0 {
		topN = 5
	}

	var queryVec embedding.Vector
	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, task)
		if err != nil {
			s.logger.Warn("task embedding failed, lexical-only reflection rank", zap.Error(err))
		} else {
			queryVec = vec
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_description, what_worked, what_to_avoid, agent, task_type, embedding, created_at
		FROM reflections`)
	if err != nil {
		return nil, fmt.Errorf("query reflections: %w", err)
	}
	defer rows.Close()

	var hits []model.ReflectionHit
	for rows.Next() {
		var r model.Reflection
		var workedJSON, avoidJSON, createdAt string
		var embJSON *string
		if err := rows.Scan(&r.EpisodeID, &r.TaskDescription, &workedJSON, &avoidJSON,
			&r.Agent, &r.TaskType, &embJSON, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(workedJSON), &r.WhatWorked)
		json.Unmarshal([]byte(avoidJSON), &r.WhatToAvoid)
		if embJSON != nil {
			json.Unmarshal([]byte(*embJSON), &r.Embedding)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		hit := model.ReflectionHit{Reflection: r}
		hit.Lexical = episodic.LexicalOverlap(task, r.TaskDescription)
		hasEmbedding := queryVec != nil && len(r.Embedding) > 0
		if hasEmbedding {
			hit.Cosine = embedding.CosineSimilarity(queryVec, r.Embedding)
		}
		hit.Blended = episodic.Blend(hit.Cosine, hit.Lexical, hasEmbedding)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Blended != hits[j].Blended {
			return hits[i].Blended > hits[j].Blended
		}
		return hits[i].CreatedAt.After(hits[j].CreatedAt)
	})
	if len(hits) > topN {
		hits = hits[:topN]
	}
	return hits, nil
}
