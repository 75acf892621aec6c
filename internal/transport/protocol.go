package transport

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"yqhp/distcalc/pkg/types"
)

const (
	// TaskMessage prefixes a task request.
	TaskMessage = "TASK"
	// DieMessage prefixes a kill directive.
	DieMessage = "DIE"
	// DiscoveryMessage is the probe payload.
	DiscoveryMessage = "MASTER_DISCOVERY"
	// DiscoveryResponse is the reply payload.
	DiscoveryResponse = "MASTER_DISCOVERY_RESPONSE"

	// MaxMessageSize bounds every read on both sides of the wire.
	MaxMessageSize = 256
)

// RequestKind identifies a decoded TCP request.
type RequestKind int

const (
	// RequestTask asks the worker to compute a partial result.
	RequestTask RequestKind = iota
	// RequestDie asks the worker to enter the dead state.
	RequestDie
)

// Request is a decoded TCP request.
type Request struct {
	Kind         RequestKind
	Lower        float64
	Upper        float64
	SleepSeconds int
}

// EncodeTask serializes a task request.
func EncodeTask(task types.Task) []byte {
	return []byte(TaskMessage + "\n" + formatFloat(task.Lower) + " " + formatFloat(task.Upper) + "\n")
}

// EncodeKill serializes a kill directive.
func EncodeKill(sleepSeconds int) []byte {
	return []byte(DieMessage + "\n" + strconv.Itoa(sleepSeconds) + "\n")
}

// EncodeResult serializes a worker result.
func EncodeResult(value float64) []byte {
	return []byte(formatFloat(value))
}

// ParseResult parses a worker reply into a float.
func ParseResult(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return 0, fmt.Errorf("%w: empty result", types.ErrMalformedMessage)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: result %q is not numeric", types.ErrMalformedMessage, s)
	}
	return v, nil
}

// DecodeRequest parses a TCP request as sent by EncodeTask or EncodeKill.
// Fields may be separated by any whitespace.
func DecodeRequest(payload []byte) (*Request, error) {
	fields := strings.Fields(string(payload))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty request", types.ErrMalformedMessage)
	}

	switch fields[0] {
	case TaskMessage:
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: task needs 2 bounds, got %d", types.ErrMalformedMessage, len(fields)-1)
		}
		lower, err := parseBound(fields[1])
		if err != nil {
			return nil, err
		}
		upper, err := parseBound(fields[2])
		if err != nil {
			return nil, err
		}
		return &Request{Kind: RequestTask, Lower: lower, Upper: upper}, nil

	case DieMessage:
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: die needs a sleep time", types.ErrMalformedMessage)
		}
		secs, err := strconv.Atoi(fields[1])
		if err != nil || secs < 0 {
			return nil, fmt.Errorf("%w: invalid sleep time %q", types.ErrMalformedMessage, fields[1])
		}
		return &Request{Kind: RequestDie, SleepSeconds: secs}, nil

	default:
		return nil, fmt.Errorf("%w: unknown request %q", types.ErrMalformedMessage, fields[0])
	}
}

// EncodeDiscoveryResponse builds the probe reply. A zero port sends the bare
// literal so the coordinator falls back to its configured task port.
func EncodeDiscoveryResponse(port int) []byte {
	if port == 0 {
		return []byte(DiscoveryResponse)
	}
	return []byte(DiscoveryResponse + " " + strconv.Itoa(port))
}

// ParseDiscoveryResponse reports whether payload is a valid probe reply and
// returns the advertised port (0 when none was advertised).
func ParseDiscoveryResponse(payload []byte) (int, bool) {
	s := string(payload)
	if s == DiscoveryResponse {
		return 0, true
	}
	rest, ok := strings.CutPrefix(s, DiscoveryResponse+" ")
	if !ok {
		return 0, false
	}
	port, err := strconv.Atoi(rest)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// IsDiscoveryProbe reports whether payload is a discovery probe.
func IsDiscoveryProbe(payload []byte) bool {
	return string(payload) == DiscoveryMessage
}

func parseBound(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: invalid bound %q", types.ErrMalformedMessage, s)
	}
	return v, nil
}

// formatFloat uses the shortest representation that round-trips exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
