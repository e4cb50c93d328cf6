package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseEpochSeconds parses an optional epoch-seconds query value. An empty
// value means unbounded and yields nil.
func ParseEpochSeconds(name, value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid '%s' parameter: must be epoch seconds", name)
	}
	return &n, nil
}
