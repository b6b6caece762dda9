package trickle_test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/trickle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE2E(t *testing.T) {
	root := t.TempDir()
	oracle := strings.Repeat("A frog walks into a bank... ", 100)
	require.NoError(t, os.WriteFile(filepath.Join(root, "joke.txt"), []byte(oracle), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	addr, err, errC := trickle.Serve(ctx, 0, &trickle.Config{Root: root, Rate: 1 << 20})
	require.NoError(t, err)
	port := addr.(*net.TCPAddr).Port

	out := &bytes.Buffer{}
	require.NoError(t, trickle.Receive(context.Background(), out, "127.0.0.1", port, "joke.txt"))
	assert.Equal(t, oracle, out.String())

	err = trickle.Receive(context.Background(), &bytes.Buffer{}, "127.0.0.1", port, "punchline.txt")
	assert.Equal(t, exitcode.RemoteFile, exitcode.KindOf(err))

	cancel()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestMergeConfig(t *testing.T) {
	merged := trickle.MergeConfig(trickle.Config{Rate: trickle.DefaultRate, Backlog: 10}, &trickle.Config{Root: "/srv"})
	assert.Equal(t, trickle.Config{Rate: trickle.DefaultRate, Backlog: 10, Root: "/srv"}, merged)

	merged = trickle.MergeConfig(merged, nil)
	assert.Equal(t, "/srv", merged.Root)
}

func TestServePortInUse(t *testing.T) {
	l, err := net.Listen("tcp4", ":0")
	require.NoError(t, err)
	defer l.Close()

	_, err, errC := trickle.Serve(context.Background(), l.Addr().(*net.TCPAddr).Port, nil)
	assert.Equal(t, exitcode.Connect, exitcode.KindOf(err))
	assert.Nil(t, errC)
}
