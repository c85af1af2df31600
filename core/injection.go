package core

import "context"

// Injector accepts external (content, salience, source_tag) tuples and
// appends them to the sensory working stream as ordinary entries. HMAC
// authentication and rate limiting live in the external injection API, not
// here: the core only knows how to append (§6, "injection collaborator").
type Injector struct {
	streams StreamService
}

// NewInjector builds an Injector bound to the stream service.
func NewInjector(streams StreamService) *Injector {
	return &Injector{streams: streams}
}

// Inject appends one external tuple to the sensory stream and returns the
// assigned entry id.
func (i *Injector) Inject(ctx context.Context, content Content, salience SalienceScore, sourceTag string) (int64, error) {
	entry := StreamEntry{
		Stream:   StreamSensory,
		Content:  content,
		Salience: salience,
		Source:   sourceTag,
	}
	id, err := i.streams.Append(ctx, StreamSensory, entry)
	if err != nil {
		return 0, &StreamError{Op: "append", Stream: string(StreamSensory), Err: err}
	}
	return id, nil
}
