package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zoobzio/capitan"
)

// candidate pairs a scored StreamEntry with its total score, kept together
// for the sort + tie-break pass.
type candidate struct {
	entry StreamEntry
	score float64
}

// Selector is "the I": the competitive consumer that reduces the
// candidates visible in one cycle to exactly one winner (§4.3).
type Selector struct {
	streams   StreamService
	forgetter *Forgetter
	graph     *AssociationGraph
	weights   Weights
	connWeight float64
	group     string
	consumer  string
	forgetThreshold   float64
	coactivationDelta float64
}

// NewSelector constructs a Selector. Construction fails (I2) if
// connWeight is below MinConnection. graph may be nil, in which case
// same-cycle coactivation strengthening is skipped (e.g. a test Selector
// with no association graph wired up).
func NewSelector(streams StreamService, forgetter *Forgetter, graph *AssociationGraph, weights Weights, connWeight, forgetThreshold, coactivationDelta float64, group, consumer string) (*Selector, error) {
	if connWeight < MinConnection {
		return nil, &ConfigError{Field: "connection.weight", Reason: fmt.Sprintf("%.4f < MIN_CONNECTION %.4f", connWeight, MinConnection)}
	}
	return &Selector{
		streams:           streams,
		forgetter:         forgetter,
		graph:             graph,
		weights:           weights,
		connWeight:        connWeight,
		group:             group,
		consumer:          consumer,
		forgetThreshold:   forgetThreshold,
		coactivationDelta: coactivationDelta,
	}, nil
}

// SelectionResult is what one Selection stage produces for the cycle.
type SelectionResult struct {
	Winner            *StreamEntry
	CandidatesScored  int
	ForgottenCount    int
	RetainedCount     int
}

// Select reads all working streams, scores every candidate, picks the
// winner by the I4 comparator, acks the winner, and resolves losers:
// archive-and-delete if below forgetThreshold, otherwise leave in stream.
func (s *Selector) Select(ctx context.Context, n int64, blockMs time.Duration) (SelectionResult, error) {
	entries, err := s.streams.ReadGroup(ctx, WorkingStreams, s.group, s.consumer, n, blockMs)
	if err != nil {
		return SelectionResult{}, &StreamError{Op: "read_group", Stream: "working", Err: err}
	}

	if len(entries) == 0 {
		return SelectionResult{}, nil
	}

	candidates := make([]candidate, 0, len(entries))
	for _, e := range entries {
		score := total(e.Salience, s.weights, s.connWeight)
		candidates = append(candidates, candidate{entry: e, score: score})
		capitan.Emit(ctx, CandidateScored,
			FieldStreamName.Field(string(e.Stream)),
			FieldTotalScore.Field(score),
		)
	}

	sortCandidates(candidates)

	winner := candidates[0]
	if err := s.streams.Ack(ctx, winner.entry.Stream, s.group, winner.entry.ID); err != nil {
		return SelectionResult{}, &StreamError{Op: "ack", Stream: string(winner.entry.Stream), Err: err}
	}
	capitan.Emit(ctx, WinnerSelected,
		FieldStreamName.Field(string(winner.entry.Stream)),
		FieldTotalScore.Field(winner.score),
	)

	result := SelectionResult{Winner: &winner.entry, CandidatesScored: len(candidates)}

	for _, c := range candidates[1:] {
		if c.score < s.forgetThreshold {
			if err := s.forgetter.Forget(ctx, c.entry, "low_salience"); err != nil {
				return result, err
			}
			result.ForgottenCount++
			capitan.Emit(ctx, CandidateArchived,
				FieldStreamName.Field(string(c.entry.Stream)),
				FieldTotalScore.Field(c.score),
				FieldForgetThreshold.Field(s.forgetThreshold),
			)
		} else {
			result.RetainedCount++
			// Both the winner and this candidate scored high enough to stay
			// in play this cycle; treat that as same-cycle coactivation and
			// strengthen the edge between them (§4.8's coactivation_delta).
			if s.graph != nil {
				if _, err := s.graph.Strengthen(ctx, contentUUID(winner.entry.Content), contentUUID(c.entry.Content), s.coactivationDelta, AssocTemporal); err != nil {
					return result, err
				}
			}
			capitan.Emit(ctx, CandidateRetained,
				FieldStreamName.Field(string(c.entry.Stream)),
				FieldTotalScore.Field(c.score),
			)
		}
	}

	return result, nil
}

// sortCandidates orders by descending total score, tie-broken
// lexicographically by (stream_priority, stream_id, entry_id) per I4. The
// stream_id component is the stream name itself, ordered alphabetically,
// since no separate numeric stream identifier exists in this design.
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if pa, pb := a.entry.Stream.Priority(), b.entry.Stream.Priority(); pa != pb {
			return pa < pb
		}
		if a.entry.Stream != b.entry.Stream {
			return a.entry.Stream < b.entry.Stream
		}
		return a.entry.ID < b.entry.ID
	})
}
