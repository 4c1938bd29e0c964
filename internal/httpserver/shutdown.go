package httpserver

import "time"

// ShutdownTimeout controls how long to wait for graceful shutdowns. It also
// bounds draining of in-flight transcode and archive jobs, which can outlive
// the request that queued them.
var ShutdownTimeout = 30 * time.Second
