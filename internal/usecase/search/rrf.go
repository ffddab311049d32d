package search

import (
	"sort"

	"github.com/kailas-cloud/docdex/internal/domain/search/result"
)

// scoreBlendFactor weighs the normalized raw score mixed into the RRF
// score when blending is enabled. Small enough that rank dominates and
// the raw score only breaks ties between equally-ranked documents.
const scoreBlendFactor = 0.1

// sourceList pairs one searcher's ranked results with its fusion
// weight. A weight of zero removes the list from fusion entirely.
type sourceList struct {
	source  result.Source
	weight  float64
	results []result.Result
}

// fuseRRF merges ranked lists by reciprocal rank fusion: each document
// accumulates weight/(k+rank) per list that ranked it, rank being
// 1-based. Documents seen by several sources appear once, with merged
// match details (earlier lists win on key conflicts) and the full set
// of contributing sources. Entries without an id cannot be fused and
// are dropped; the count is returned for the caller to surface.
//
// Output ordering is deterministic: fused score descending, first-seen
// position breaking exact ties.
func fuseRRF(lists []sourceList, k int, blendScores bool) ([]result.Fused, int) {
	type entry struct {
		base    result.Result
		score   float64
		sources []result.Source
		details map[string]string
		seq     int
	}

	byID := make(map[string]*entry)
	order := make([]*entry, 0)
	dropped := 0

	for _, list := range lists {
		if list.weight == 0 {
			continue
		}
		for rank, r := range list.results {
			if r.ID() == "" {
				dropped++
				continue
			}

			contribution := list.weight / float64(k+rank+1)
			if blendScores {
				contribution += list.weight * scoreBlendFactor * r.Score()
			}

			e, ok := byID[r.ID()]
			if !ok {
				e = &entry{base: r, seq: len(order)}
				byID[r.ID()] = e
				order = append(order, e)
			}
			e.score += contribution
			e.sources = append(e.sources, list.source)
			for key, val := range r.MatchDetails() {
				if e.details == nil {
					e.details = make(map[string]string)
				}
				if _, seen := e.details[key]; !seen {
					e.details[key] = val
				}
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].score != order[j].score {
			return order[i].score > order[j].score
		}
		return order[i].seq < order[j].seq
	})

	fused := make([]result.Fused, 0, len(order))
	for _, e := range order {
		base := e.base
		if e.details != nil {
			base = base.WithMatchDetails(e.details)
		}
		fused = append(fused, result.NewFused(base, e.score, e.sources))
	}
	return fused, dropped
}

// contextBoostFactor scales up the fused score of documents the caller
// pinned as conversational context.
const contextBoostFactor = 0.15

// boostContextResults raises fused results whose document (or, for
// chunks, whose backing file) is one of the caller-pinned context
// files, then restores descending score order. Pinned ids absent from
// the results are ignored.
func boostContextResults(fused []result.Fused, ids []string) []result.Fused {
	pinned := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			pinned[id] = struct{}{}
		}
	}
	if len(pinned) == 0 {
		return fused
	}

	boosted := false
	for i := range fused {
		if !inContext(&fused[i], pinned) {
			continue
		}
		fused[i].Result = fused[i].Result.WithScore(fused[i].Score() * (1 + contextBoostFactor))
		boosted = true
	}
	if boosted {
		sort.SliceStable(fused, func(i, j int) bool {
			return fused[i].Score() > fused[j].Score()
		})
	}
	return fused
}

func inContext(f *result.Fused, pinned map[string]struct{}) bool {
	if _, ok := pinned[f.ID()]; ok {
		return true
	}
	if fileID := f.Metadata()["file_id"]; fileID != "" {
		if _, ok := pinned[fileID]; ok {
			return true
		}
	}
	return false
}
