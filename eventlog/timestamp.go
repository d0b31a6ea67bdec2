package eventlog

import "time"

// TimestampLayout renders as YYYY/MM/DD hh:mm:ss with every field zero-padded.
const TimestampLayout = "2006/01/02 15:04:05"

// Clock returns the current wall-clock time.
type Clock func() time.Time

// FormatTimestamp renders t in the local time zone using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Local().Format(TimestampLayout)
}
