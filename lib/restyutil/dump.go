package restyutil

import (
	"fmt"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

type InstrumentOutput interface {
	Write(id string, contents string)
}

// DumpExchanges writes every completed request/response pair to
// `output` as "<prefix>-<n>". a nil output leaves the client untouched.
func DumpExchanges(client *resty.Client, prefix string, output InstrumentOutput) {
	if output == nil {
		return
	}

	var counter uint64
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := fmt.Sprintf("%s-%d", prefix, atomic.AddUint64(&counter, 1))
		output.Write(id, formatHttpMessage(res))
		return nil
	})
}
