package command

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"yqhp/distcalc/internal/transport"
	"yqhp/distcalc/pkg/types"
)

// Kind identifies a parsed command.
type Kind int

const (
	// KindIntegrate runs ExecuteTask over [Lower, Upper].
	KindIntegrate Kind = iota
	// KindKill sends kill directives to Count workers.
	KindKill
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindIntegrate:
		return "integrate"
	case KindKill:
		return "kill"
	default:
		return "unknown"
	}
}

// Command is one parsed line of the command stream.
type Command struct {
	Kind Kind

	Lower float64
	Upper float64

	Count        int
	SleepSeconds int
}

// Parse parses one line. It returns nil without error for blank lines and
// lines starting with '#'.
func Parse(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil, nil
	}

	if fields[0] == transport.DieMessage {
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: %q: want DIE <count> <seconds>", types.ErrMalformedMessage, line)
		}
		count, err := strconv.Atoi(fields[1])
		if err != nil || count < 0 {
			return nil, fmt.Errorf("%w: invalid kill count %q", types.ErrMalformedMessage, fields[1])
		}
		secs, err := strconv.Atoi(fields[2])
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("%w: invalid sleep time %q", types.ErrMalformedMessage, fields[2])
		}
		return &Command{Kind: KindKill, Count: count, SleepSeconds: secs}, nil
	}

	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: %q: want <lower> <upper>", types.ErrMalformedMessage, line)
	}
	lower, err := parseBound(fields[0])
	if err != nil {
		return nil, err
	}
	upper, err := parseBound(fields[1])
	if err != nil {
		return nil, err
	}
	return &Command{Kind: KindIntegrate, Lower: lower, Upper: upper}, nil
}

func parseBound(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: invalid bound %q", types.ErrMalformedMessage, s)
	}
	return v, nil
}
