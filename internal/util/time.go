package util

import "time"

// Now devolve o instante atual em UTC; timestamps persistidos usam sempre UTC.
func Now() time.Time {
	return time.Now().UTC()
}
