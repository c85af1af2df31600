package core

import "time"

// StreamName identifies one of the named working streams (§4.2).
type StreamName string

const (
	StreamSensory   StreamName = "sensory"
	StreamMemory    StreamName = "memory"
	StreamEmotion   StreamName = "emotion"
	StreamReasoning StreamName = "reasoning"
	StreamAssembled StreamName = "assembled"
)

// WorkingStreams lists the streams the Selector reads from each cycle. The
// assembled stream is a separate sink consumed only by the Consolidator
// (§9 open question, preserved as-is).
var WorkingStreams = []StreamName{StreamSensory, StreamMemory, StreamEmotion, StreamReasoning}

// streamPriority gives each working stream a fixed priority for the
// tie-break comparator (I4): (stream_priority, stream_id, entry_id).
// Lower value sorts first.
var streamPriority = map[StreamName]int{
	StreamSensory:   0,
	StreamEmotion:   1,
	StreamReasoning: 2,
	StreamMemory:    3,
	StreamAssembled: 4,
}

// Priority returns the fixed priority used for tie-breaking (I4).
func (n StreamName) Priority() int {
	return streamPriority[n]
}

// StreamEntry is one candidate appended to a working stream.
type StreamEntry struct {
	ID         int64
	Stream     StreamName
	Content    Content
	Salience   SalienceScore
	Timestamp  time.Time
	Source     string
	Assembled  bool // carried by the Redis encoding; the Selector neither sets it nor appends its winner to "assembled"
}
