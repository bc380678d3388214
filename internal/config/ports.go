package config

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxPort is the highest valid TCP port number.
const MaxPort = 65535

// ParsePortRange parses "start-end" or a single port into an inclusive range.
// Whitespace around the numbers is ignored.
func ParsePortRange(spec string) (start, end int, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, ErrInvalidPortRange
	}

	lo, hi, isRange := strings.Cut(spec, "-")
	start, err = parsePort(lo)
	if err != nil {
		return 0, 0, err
	}
	if !isRange {
		return start, start, nil
	}

	end, err = parsePort(hi)
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: %d is greater than %d", ErrInvalidPortRange, start, end)
	}
	return start, end, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidPortRange, s)
	}
	if p < 1 || p > MaxPort {
		return 0, fmt.Errorf("%w: %d is out of range", ErrInvalidPortRange, p)
	}
	return p, nil
}
