package dvid

import "sync/atomic"

var denyRequests int32 // default 0 = allow requests

// AllowRequests lets the HTTP API process label requests.
func AllowRequests() {
	atomic.StoreInt32(&denyRequests, 0)
}

// DenyRequests makes the HTTP API refuse new requests, e.g., while shutting down
// and flushing the sample store.
func DenyRequests() {
	atomic.StoreInt32(&denyRequests, 1)
}

// RequestsOK returns true if requests should be handled.
func RequestsOK() bool {
	return atomic.LoadInt32(&denyRequests) == 0
}
