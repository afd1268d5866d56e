package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/viperh/rolegate/internal/jobs"
)

// RunIntegrityScan walks the role hierarchy and reports cycles in the parent
// chain. Permission resolution tolerates cycles at read time; this scan exists
// so operators learn about them instead of silently losing inherited grants.
func RunIntegrityScan(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) error {
	rows, err := pool.Query(ctx, `SELECT id, parent_role_id FROM roles`)
	if err != nil {
		return err
	}
	defer rows.Close()

	parents := make(map[int64]*int64)
	for rows.Next() {
		var id int64
		var parent *int64
		if err := rows.Scan(&id, &parent); err != nil {
			return err
		}
		parents[id] = parent
	}
	if err := rows.Err(); err != nil {
		return err
	}

	cycles := findCycles(parents)
	metrics.AddCycles(len(cycles))
	if logger != nil {
		for _, cycle := range cycles {
			logger.Warn("role hierarchy cycle detected",
				slog.String("job", "integrity_scan"),
				slog.Any("role_ids", cycle))
		}
		logger.Info("integrity scan completed",
			slog.String("job", "integrity_scan"),
			slog.Int("roles", len(parents)),
			slog.Int("cycles", len(cycles)))
	}
	return nil
}

// findCycles returns each distinct cycle in the parent graph as a sorted slice
// of the role IDs on the cycle. Every role has at most one parent, so each
// role belongs to at most one cycle.
func findCycles(parents map[int64]*int64) [][]int64 {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[int64]int, len(parents))
	var cycles [][]int64

	for start := range parents {
		if state[start] != unvisited {
			continue
		}
		var stack []int64
		node := start
		for {
			if state[node] == done {
				break
			}
			if state[node] == inStack {
				// Found a cycle; collect stack entries from node onward.
				var cycle []int64
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append(cycle, stack[i])
					if stack[i] == node {
						break
					}
				}
				sort.Slice(cycle, func(i, j int) bool { return cycle[i] < cycle[j] })
				cycles = append(cycles, cycle)
				break
			}
			state[node] = inStack
			stack = append(stack, node)
			parent := parents[node]
			if parent == nil {
				break
			}
			if _, known := parents[*parent]; !known {
				// Dangling parent reference, not a cycle.
				break
			}
			node = *parent
		}
		for _, id := range stack {
			state[id] = done
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// NewIntegrityScanHandler returns the Asynq handler for integrity scan tasks.
func NewIntegrityScanHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IntegrityScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := metrics.Track("integrity_scan")
		return tracker.End(RunIntegrityScan(ctx, pool, logger, metrics))
	}
}
