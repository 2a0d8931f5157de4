package engine

import (
	"iter"
	"reflect"
)

// Protocol declares how an external Source signals that it is exhausted.
// The engine never infers the protocol from produced values: a source that
// can legitimately produce false, 0, "" or nil must use ProtocolPair.
type Protocol int

const (
	// ProtocolPair sources report completion with Step.Done.
	ProtocolPair Protocol = iota + 1

	// ProtocolSentinel sources end at the first falsy Step.Value
	// (nil, false, zero numbers, the empty string). Done is ignored.
	ProtocolSentinel
)

func (p Protocol) String() string {
	switch p {
	case ProtocolPair:
		return "pair"
	case ProtocolSentinel:
		return "sentinel"
	default:
		return "unknown"
	}
}

// Step is one pull from a Source.
type Step struct {
	Value any
	Done  bool
}

// Source is a pull-based, possibly infinite sequence. A Value may be a
// *Future; the engine waits for it to settle before filtering.
//
// Sources that hold resources may also implement Close() error; the engine
// calls it when a pass over the source ends.
type Source interface {
	Protocol() Protocol
	Pull() Step
}

type funcSource struct {
	protocol Protocol
	pull     func() Step
	close    func() error
}

func (s *funcSource) Protocol() Protocol { return s.protocol }
func (s *funcSource) Pull() Step         { return s.pull() }

func (s *funcSource) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// PairSource builds a ProtocolPair source from a function returning the
// next value and whether the source is done.
func PairSource(next func() (value any, done bool)) Source {
	return &funcSource{protocol: ProtocolPair, pull: func() Step {
		v, done := next()
		return Step{Value: v, Done: done}
	}}
}

// SentinelSource builds a ProtocolSentinel source: the first falsy value
// returned by next ends the traversal.
func SentinelSource(next func() any) Source {
	return &funcSource{protocol: ProtocolSentinel, pull: func() Step {
		return Step{Value: next()}
	}}
}

// SeqSource adapts an iterator. Values are pulled lazily with iter.Pull and
// the iterator is stopped when the pass ends, so a restarted pass iterates
// the sequence again from the beginning.
func SeqSource(seq iter.Seq[any]) Source {
	var next func() (any, bool)
	var stop func()
	return &funcSource{
		protocol: ProtocolPair,
		pull: func() Step {
			if next == nil {
				next, stop = iter.Pull(seq)
			}
			v, ok := next()
			return Step{Value: v, Done: !ok}
		},
		close: func() error {
			if stop != nil {
				stop()
			}
			next, stop = nil, nil
			return nil
		},
	}
}

// ChanSource pulls from a channel until it is closed. Receiving blocks the
// whole scheduler while the channel is empty, so producers should send
// *Future values or keep the channel buffered when the traversal is
// cooperative.
func ChanSource(ch <-chan any) Source {
	return PairSource(func() (any, bool) {
		v, ok := <-ch
		return v, !ok
	})
}

// pull normalizes both protocols into (value, ok).
func pull(src Source) (any, bool) {
	step := src.Pull()
	switch src.Protocol() {
	case ProtocolSentinel:
		if isFalsy(step.Value) {
			return nil, false
		}
		return step.Value, true
	default:
		if step.Done {
			return nil, false
		}
		return step.Value, true
	}
}

func closeSource(src Source) error {
	if c, ok := src.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// isFalsy reports whether v terminates a ProtocolSentinel source.
func isFalsy(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f == 0 || f != f
	case reflect.String:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
