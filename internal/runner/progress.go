package runner

// Reporter receives progress after every answered item: current is the
// number of items answered so far and total is never less than current.
//
// Report runs on the driver's goroutine. A panicking Reporter aborts the
// run; the panic is not recovered.
type Reporter interface {
	Report(current, total int)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(current, total int)

func (f ReporterFunc) Report(current, total int) { f(current, total) }

// Nop discards progress.
var Nop Reporter = ReporterFunc(func(int, int) {})
