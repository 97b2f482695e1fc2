package datasets

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusErrorMessageIncludesErrno(t *testing.T) {
	err := fromErrno("write", syscall.EIO)
	require.Equal(t, CodeInternal, err.Code)
	require.Contains(t, err.Error(), "errno")
	require.Contains(t, err.Error(), "write failed")
}

func TestStatusErrorMessageWithoutErrno(t *testing.T) {
	err := invalidArgumentf("floating point exception")
	require.NotContains(t, err.Error(), "errno")
	require.Equal(t, "invalid-argument: floating point exception", err.Error())
}

func TestIsRetryable(t *testing.T) {
	require.True(t, isRetryable(syscall.EINTR))
	require.True(t, isRetryable(syscall.EAGAIN))
	require.False(t, isRetryable(syscall.EIO))
	require.False(t, isRetryable(nil))
}

func TestCodeString(t *testing.T) {
	require.Equal(t, "ok", CodeOK.String())
	require.Equal(t, "invalid-argument", CodeInvalidArgument.String())
	require.Equal(t, "internal", CodeInternal.String())
}
