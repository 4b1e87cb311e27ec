package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDScheme selects how request ids are derived.
type RequestIDScheme string

const (
	// RequestIDTimestamp yields {userId}-{epochMillis}. Two commands from the
	// same user within one millisecond collide and the second insert fails.
	RequestIDTimestamp RequestIDScheme = "timestamp"
	// RequestIDUUID yields {userId}-{uuid}.
	RequestIDUUID RequestIDScheme = "uuid"
)

func ParseRequestIDScheme(s string) (RequestIDScheme, error) {
	switch RequestIDScheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", RequestIDTimestamp:
		return RequestIDTimestamp, nil
	case RequestIDUUID:
		return RequestIDUUID, nil
	default:
		return "", fmt.Errorf("usecase: unknown request id scheme %q", s)
	}
}

func (s RequestIDScheme) build(userID string, now time.Time) string {
	if s == RequestIDUUID {
		return userID + "-" + newUUID()
	}
	return userID + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}

var newUUID = func() string {
	return uuid.NewString()
}
