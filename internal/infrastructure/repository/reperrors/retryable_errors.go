package reperrors

import (
	"errors"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// IsRetryableError reports whether a failed archive write is worth retrying:
// transient ClickHouse exceptions (pool/memory/timeout classes), anywhere in
// the wrap chain.
func IsRetryableError(err error) bool {
	var exception *clickhouse.Exception

	for {
		if errors.As(err, &exception) {
			switch exception.Code {
			case 209, 516, 160, 241, 319, 1002:
				return true
			}
		}

		nextErr := errors.Unwrap(err)
		if nextErr == nil {
			break
		}
		err = nextErr
	}

	return false
}
