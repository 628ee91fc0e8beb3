package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MetricName is the single gauge the daemon exposes.
const MetricName = "is_turnserver_ok"

const help = "Whether the TURN server answered the last probe correctly (1) or not (0)."

// ErrMalformed is returned by Parse for anything but a complete document.
var ErrMalformed = errors.New("malformed snapshot document")

// Snapshot is the published health value and when it was measured.
type Snapshot struct {
	OK         bool
	MeasuredAt time.Time
}

// Encode renders s as an OpenMetrics text exposition:
//
//	# TYPE is_turnserver_ok gauge
//	# HELP is_turnserver_ok ...
//	is_turnserver_ok 1 1723982400.123456
//	# EOF
func Encode(s Snapshot) []byte {
	v := 0
	if s.OK {
		v = 1
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "# TYPE %s gauge\n", MetricName)
	fmt.Fprintf(&b, "# HELP %s %s\n", MetricName, help)
	fmt.Fprintf(&b, "%s %d %s\n", MetricName, v, formatTimestamp(s.MeasuredAt))
	b.WriteString("# EOF\n")
	return b.Bytes()
}

// Parse decodes a document produced by Encode. Truncated or mixed content
// is rejected with ErrMalformed.
func Parse(data []byte) (Snapshot, error) {
	text := string(data)
	if !strings.HasSuffix(text, "\n") {
		return Snapshot{}, fmt.Errorf("%w: missing final newline", ErrMalformed)
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if len(lines) != 4 {
		return Snapshot{}, fmt.Errorf("%w: want 4 lines, got %d", ErrMalformed, len(lines))
	}
	if lines[0] != "# TYPE "+MetricName+" gauge" ||
		!strings.HasPrefix(lines[1], "# HELP "+MetricName+" ") ||
		lines[3] != "# EOF" {
		return Snapshot{}, fmt.Errorf("%w: unexpected header or terminator", ErrMalformed)
	}

	fields := strings.Fields(lines[2])
	if len(fields) != 3 || fields[0] != MetricName {
		return Snapshot{}, fmt.Errorf("%w: bad sample line %q", ErrMalformed, lines[2])
	}
	var s Snapshot
	switch fields[1] {
	case "1":
		s.OK = true
	case "0":
	default:
		return Snapshot{}, fmt.Errorf("%w: bad value %q", ErrMalformed, fields[1])
	}
	ts, err := parseTimestamp(fields[2])
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	s.MeasuredAt = ts
	return s, nil
}

// formatTimestamp writes unix seconds with microsecond fraction. Seconds
// and fraction are formatted separately to avoid float64 rounding.
func formatTimestamp(t time.Time) string {
	us := t.UnixMicro()
	return fmt.Sprintf("%d.%06d", us/1e6, us%1e6)
}

func parseTimestamp(s string) (time.Time, error) {
	sec, frac, hasFrac := strings.Cut(s, ".")
	if !allDigits(sec) || (hasFrac && !allDigits(frac)) {
		return time.Time{}, fmt.Errorf("timestamp %q: not unsigned decimal seconds", s)
	}
	secs, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	var nanos int64
	if len(frac) > 9 {
		frac = frac[:9]
	}
	for i := 0; i < 9; i++ {
		nanos *= 10
		if i < len(frac) {
			nanos += int64(frac[i] - '0')
		}
	}
	return time.Unix(secs, nanos), nil
}

func allDigits(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
