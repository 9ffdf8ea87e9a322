package timezone

import (
	"time"
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/Los_Angeles")
	if err != nil {
		panic(err)
	}
}

// notification footers are read by people on the west coast, so
// timestamps are pinned to LA regardless of where the process runs
func Now() time.Time {
	return time.Now().In(Location)
}

// Stamp renders t the way footers display it, ex. "3/9/2024, 4:05:09 PM".
func Stamp(t time.Time) string {
	return t.In(Location).Format("1/2/2006, 3:04:05 PM")
}
