// Package crash reports unrecoverable allocator failures.
//
// The heap has no caller to hand an error back to when the system refuses
// memory or an internal invariant breaks, so it prints where it happened,
// logs the error with its stack and aborts the process. Tests replace the
// abort step with SetAbortHandler.
package crash

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/brn/yatsc-sub001/internal/logger"
)

// DebugEnvVar enables contract assertions when set to a true value.
const DebugEnvVar = "YATSC_HEAP_DEBUG"

// ErrAssertion is wrapped by every failed Assert.
var ErrAssertion = errors.New("crash: assertion failed")

var (
	mu    sync.Mutex
	out   io.Writer = os.Stderr
	abort           = func(error) { os.Exit(2) }
	debug atomic.Bool
)

func init() {
	if on, _ := strconv.ParseBool(os.Getenv(DebugEnvVar)); on {
		debug.Store(true)
	}
}

// SetAbortHandler replaces the final step of Fatal and returns the previous
// handler. If the handler returns, Fatal panics with the error instead.
func SetAbortHandler(fn func(error)) func(error) {
	mu.Lock()
	defer mu.Unlock()
	prev := abort
	abort = fn
	return prev
}

// SetOutput redirects the diagnostic printout. Default: os.Stderr.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// SetDebug toggles contract assertions.
func SetDebug(on bool) { debug.Store(on) }

// Debug reports whether contract assertions are active.
func Debug() bool { return debug.Load() }

// Fatal reports err and aborts. It does not return.
func Fatal(err error) {
	fatal(errors.WithStack(err), 2)
}

// Fatalf formats a message and aborts. It does not return.
func Fatalf(format string, args ...any) {
	fatal(errors.Errorf(format, args...), 2)
}

// Assert aborts with msg when cond is false and assertions are enabled.
func Assert(cond bool, msg string) {
	if cond || !debug.Load() {
		return
	}
	fatal(errors.Wrap(ErrAssertion, msg), 2)
}

func fatal(err error, skip int) {
	where := "unknown"
	if pc, file, line, ok := runtime.Caller(skip); ok {
		fn := "?"
		if f := runtime.FuncForPC(pc); f != nil {
			fn = f.Name()
		}
		where = fmt.Sprintf("%s:%d %s", file, line, fn)
	}

	logger.Error("fatal", "at", where, "err", err.Error())

	mu.Lock()
	w, handler := out, abort
	mu.Unlock()

	fmt.Fprintf(w, "FATAL %s: %v\n%+v\n", where, err, err)
	handler(err)
	panic(err)
}
