package protocol

import (
	"context"

	"github.com/cyberinferno/sensorgate/eventlog"
)

// Reply is a directive or acknowledgment sent back to a sensor client.
type Reply string

const (
	ReplyOK       Reply = "OK"
	ReplyBuzzerOn Reply = "BUZ_ON"
	ReplyLEDOn    Reply = "LED_ON"
	ReplyDetected Reply = "DETECTED"

	// replyLegacyDetected is the category 2 payload of an older server
	// revision: a single "Z" declared with a 9 byte length.
	replyLegacyDetected Reply = "Z"
	legacyDetectedSize        = 9
)

const (
	DefaultNearPoint = 10
	DefaultDarkPoint = 400
)

// Recorder persists threshold crossings. *eventlog.Recorder satisfies it.
type Recorder interface {
	Record(ctx context.Context, category int, value int) (eventlog.Entry, error)
}

// Options tunes the dispatcher.
type Options struct {
	// NearPoint is the proximity value below which the buzzer is switched on.
	NearPoint int
	// DarkPoint is the light value below which the LED is switched on.
	DarkPoint int
	// NulTerminated appends a NUL byte to every reply, matching the byte
	// counts firmware clients expect.
	NulTerminated bool
	// LegacyDetect answers category 2 with the old "Z" payload instead of
	// DETECTED.
	LegacyDetect bool
}

// DefaultOptions returns the reference thresholds with NUL-terminated replies.
func DefaultOptions() Options {
	return Options{
		NearPoint:     DefaultNearPoint,
		DarkPoint:     DefaultDarkPoint,
		NulTerminated: true,
	}
}

// Result is the outcome of dispatching one message.
type Result struct {
	Message Message
	// Reply is empty when the category has no defined handling.
	Reply Reply
	// Payload holds the exact bytes to write; nil means no reply.
	Payload []byte
	// Triggered reports a threshold crossing.
	Triggered bool
	// Entry is the recorded log entry when Triggered and recording succeeded.
	Entry *eventlog.Entry
	// RecordErr is set when recording a crossing failed.
	RecordErr error
}

// Dispatcher applies the threshold rules to incoming messages.
type Dispatcher struct {
	opts     Options
	recorder Recorder
}

// NewDispatcher creates a Dispatcher. recorder may be nil, in which case
// crossings are not persisted.
func NewDispatcher(opts Options, recorder Recorder) *Dispatcher {
	return &Dispatcher{
		opts:     opts,
		recorder: recorder,
	}
}

// Options returns the dispatcher configuration.
func (d *Dispatcher) Options() Options {
	return d.opts
}

// Handle parses one read payload and dispatches it.
func (d *Dispatcher) Handle(ctx context.Context, data []byte) Result {
	return d.Dispatch(ctx, ParseMessage(data))
}

// Dispatch decides the reply for msg and records threshold crossings for the
// proximity and light categories. Unknown categories produce an empty Result
// and are otherwise ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Result {
	res := Result{Message: msg}

	switch msg.Category {
	case CategoryProximity:
		res.Triggered = msg.Value < d.opts.NearPoint
		res.Reply = ReplyOK
		if res.Triggered {
			res.Reply = ReplyBuzzerOn
		}
	case CategoryLight:
		res.Triggered = msg.Value < d.opts.DarkPoint
		res.Reply = ReplyOK
		if res.Triggered {
			res.Reply = ReplyLEDOn
		}
	case CategoryIdentification:
		res.Reply = ReplyDetected
		if d.opts.LegacyDetect {
			res.Reply = replyLegacyDetected
		}
	default:
		return res
	}

	res.Payload = d.Encode(res.Reply)

	if res.Triggered && d.recorder != nil {
		e, err := d.recorder.Record(ctx, int(msg.Category), msg.Value)
		if err != nil {
			res.RecordErr = err
		} else {
			res.Entry = &e
		}
	}

	return res
}

// Encode returns the wire bytes for r.
func (d *Dispatcher) Encode(r Reply) []byte {
	if r == replyLegacyDetected {
		return fixedLengthBytes(string(r), legacyDetectedSize)
	}

	if d.opts.NulTerminated {
		return fixedLengthBytes(string(r), len(r)+1)
	}

	return []byte(r)
}

// fixedLengthBytes copies str into a zero-padded slice of the given length.
func fixedLengthBytes(str string, length int) []byte {
	b := make([]byte, length)
	copy(b, str)
	return b
}
