package game

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/scythe504/linkrace-backend/internal"
)

// =============================================================================
// FINAL RANKING
// =============================================================================

type rankCandidate struct {
	name          string
	ref           string
	order         int
	steps         int
	reached       bool
	surrendered   bool
	surrenderedAt int64
	distance      *int
}

// buildRanking fills st.ranking. When a path finder is configured the
// distances of players short of the target are looked up in the background
// and st stays pending until they are in.
func (r *Room) buildRanking(st *finishedState) {
	candidates := r.rankCandidates()

	var lookups []*rankCandidate
	for _, c := range candidates {
		if !c.reached && !c.surrendered && c.ref != "" {
			lookups = append(lookups, c)
		}
	}

	if r.deps.Paths == nil || len(lookups) == 0 {
		r.finishRanking(st, candidates)
		return
	}

	st.pending = true
	ctx, cancel := context.WithTimeout(context.Background(), r.registry.lookupTimeout())
	st.cancel = cancel

	type result struct {
		name     string
		distance *int
	}
	targets := make([]rankCandidate, len(lookups))
	for i, c := range lookups {
		targets[i] = *c
	}
	end := r.End

	log.Debug().Str("room", r.ID).Int("lookups", len(targets)).Msg("[buildRanking] fetching distances")
	go func() {
		defer cancel()

		results := make([]result, len(targets))
		var wg sync.WaitGroup
		for i, c := range targets {
			wg.Add(1)
			go func(i int, c rankCandidate) {
				defer wg.Done()
				results[i].name = c.name
				info, err := r.deps.Paths.FetchShortestPaths(ctx, c.ref, end)
				if err != nil || info == nil {
					log.Debug().Err(err).Str("room", r.ID).Str("player", c.name).Msg("[buildRanking] distance unavailable")
					return
				}
				d := info.Length
				results[i].distance = &d
			}(i, c)
		}
		wg.Wait()

		r.post(func() {
			if r.state != phaseState(st) {
				return
			}
			for _, res := range results {
				for _, c := range candidates {
					if c.name == res.name {
						c.distance = res.distance
					}
				}
			}
			st.cancel = nil
			r.finishRanking(st, candidates)
			r.broadcastState()
		})
	}()
}

func (r *Room) rankCandidates() []*rankCandidate {
	var out []*rankCandidate
	for _, p := range r.participants() {
		if p.Role != internal.RolePlayer && !p.Surrendered {
			continue
		}
		c := &rankCandidate{
			name:          p.Name,
			ref:           p.CurrentRef(),
			steps:         p.Steps(),
			surrendered:   p.Surrendered,
			surrenderedAt: p.SurrenderedAt.UnixNano(),
		}
		if i := p.CurrentIndex(); i >= 0 {
			c.order = p.Path[i].Order
		}
		c.reached = !c.surrendered && internal.SameRef(c.ref, r.End)
		out = append(out, c)
	}
	return out
}

// finishRanking orders candidates: winner, others on the target by submission
// order, the rest by distance then submission order, surrendered players last.
func (r *Room) finishRanking(st *finishedState, candidates []*rankCandidate) {
	group := func(c *rankCandidate) int {
		switch {
		case c.name == r.winner:
			return 0
		case c.reached:
			return 1
		case c.surrendered:
			return 3
		default:
			return 2
		}
	}

	sorted := slices.Clone(candidates)
	slices.SortStableFunc(sorted, func(a, b *rankCandidate) int {
		if ga, gb := group(a), group(b); ga != gb {
			return ga - gb
		}
		switch group(a) {
		case 2:
			if (a.distance == nil) != (b.distance == nil) {
				if a.distance == nil {
					return 1
				}
				return -1
			}
			if a.distance != nil && *a.distance != *b.distance {
				return *a.distance - *b.distance
			}
		case 3:
			if a.surrenderedAt != b.surrenderedAt {
				if a.surrenderedAt < b.surrenderedAt {
					return -1
				}
				return 1
			}
		}
		return a.order - b.order
	})

	st.ranking = make([]internal.RankEntry, len(sorted))
	for i, c := range sorted {
		st.ranking[i] = internal.RankEntry{
			Position:    i + 1,
			Name:        c.name,
			Reached:     c.reached,
			Surrendered: c.surrendered,
			Distance:    c.distance,
			Steps:       c.steps,
		}
	}
	st.pending = false

	log.Info().Str("room", r.ID).Str("winner", r.winner).Int("ranked", len(st.ranking)).Msg("[finishRanking] ranking complete")
	r.publish(internal.RoomEvent{
		Type:    internal.EventGameFinished,
		RoomID:  r.ID,
		Phase:   internal.PhaseFinished,
		Winner:  r.winner,
		Ranking: st.ranking,
		At:      r.clock.Now(),
	})
}
