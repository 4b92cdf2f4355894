package customerrors

import (
	"io/fs"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestIO(t *testing.T) {
	require.Nil(t, IO(nil, "noop"))

	_, cause := os.Open("/definitely/missing/file")
	err := errors.Wrap(IO(cause, "failed to open"), "failed to read node")

	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.NotErrorIs(t, err, ErrTimeout)
	require.Contains(t, err.Error(), "failed to open")
}
