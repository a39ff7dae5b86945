package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"syscall"
	"testing"
)

type timeoutErr struct{}

func (*timeoutErr) Error() string   { return "i/o timeout" }
func (*timeoutErr) Timeout() bool   { return true }
func (*timeoutErr) Temporary() bool { return true }

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error must not be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	err := fmt.Errorf("download: %w", Transient(errors.New("http 503"), 503))
	if !IsTransient(err) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.OpError{Op: "dial", Err: &timeoutErr{}}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if !IsTransient(fmt.Errorf("read: %w", errno)) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_FTPReplies(t *testing.T) {
	if !IsTransient(&textproto.Error{Code: 421, Msg: "service not available"}) {
		t.Error("ftp 421 should be transient")
	}
	if !IsTransient(&textproto.Error{Code: 450, Msg: "file busy"}) {
		t.Error("ftp 450 should be transient")
	}
	if IsTransient(&textproto.Error{Code: 550, Msg: "no such file"}) {
		t.Error("ftp 550 is permanent")
	}
}

func TestIsTransient_PlainError(t *testing.T) {
	if IsTransient(errors.New("404 not found")) {
		t.Error("plain error must not be transient")
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 304, 400, 403, 404} {
		if IsTransientStatus(code) {
			t.Errorf("status %d must not be transient", code)
		}
	}
}
