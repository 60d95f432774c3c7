package record

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Schedule repeatedly invokes runOnce at each occurrence of an RFC 5545
// recurrence rule (e.g. "FREQ=DAILY;BYHOUR=2;BYMINUTE=0"), blocking until
// ctx is canceled or the rule is exhausted (e.g. a COUNT/UNTIL-bounded
// rule). A runOnce failure is reported to onError (if non-nil) and does
// not stop future occurrences.
//
// This is an **(expansion)**: the record script format itself has no
// notion of recurrence, but a nightly deterministic re-capture (running
// the same script on a schedule to catch regressions) is exactly the kind
// of use the rrule-go dependency anticipates.
func Schedule(ctx context.Context, rruleStr string, runOnce func() error, onError func(error)) error {
	opts, err := rrule.StrToROption(rruleStr)
	if err != nil {
		return fmt.Errorf("record: parse schedule rule: %w", err)
	}
	opts.Dtstart = time.Now().Truncate(time.Second)
	rule, err := rrule.NewRRule(*opts)
	if err != nil {
		return fmt.Errorf("record: build schedule rule: %w", err)
	}

	next := rule.After(opts.Dtstart, true)
	for {
		if next.IsZero() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
		if err := runOnce(); err != nil && onError != nil {
			onError(err)
		}
		next = rule.After(time.Now(), false)
	}
}
