package signal

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"signalbot/internal/pkg/symbol"
)

// ErrMalformedAlert matches every parse failure via errors.Is.
var ErrMalformedAlert = errors.New("malformed alert")

// MalformedAlertError describes why an alert line was rejected.
type MalformedAlertError struct {
	Input  string
	Reason string
}

func (e *MalformedAlertError) Error() string {
	return fmt.Sprintf("malformed alert %q: %s", e.Input, e.Reason)
}

func (e *MalformedAlertError) Is(target error) bool { return target == ErrMalformedAlert }

func malformed(input, format string, args ...any) error {
	return &MalformedAlertError{Input: input, Reason: fmt.Sprintf(format, args...)}
}

// Parse converts "<exchange> <pair> <frame> <indicator> <value>" into a Signal.
func Parse(line string) (Signal, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Signal{}, malformed(line, "want 5 tokens, got %d", len(fields))
	}
	exchange := strings.ToUpper(fields[0])
	pair := symbol.Normalize(fields[1])
	if pair == "" {
		return Signal{}, malformed(line, "empty pair")
	}
	frame, ok := ParseTimeframe(fields[2])
	if !ok {
		return Signal{}, malformed(line, "unknown frame %q", fields[2])
	}
	ind, ok := ParseIndicator(fields[3])
	if !ok {
		return Signal{}, malformed(line, "unknown indicator %q", fields[3])
	}
	sig := Signal{Exchange: exchange, Pair: pair, Frame: frame, Indicator: ind}

	if ind == IndicatorSI {
		side, ok := ParseSide(fields[4])
		if !ok {
			return Signal{}, malformed(line, "SI value must be BUY or SELL, got %q", fields[4])
		}
		sig.Kind = KindEntry
		sig.Side = side
		return sig, nil
	}

	val, err := strconv.ParseFloat(fields[4], 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
		return Signal{}, malformed(line, "%s value must be numeric, got %q", ind, fields[4])
	}
	sig.Kind = KindTrend
	sig.Value = val
	return sig, nil
}
