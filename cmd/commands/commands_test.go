package commands

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/semver"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// HOME is changed per test.
func init() {
	homedir.DisableCache = true
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestServerArguments(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	for name, tc := range map[string]struct {
		argv []string
		kind exitcode.Kind
	}{
		"no arguments":     {nil, exitcode.ParamCount},
		"port only":        {[]string{"-p", "8080"}, exitcode.ParamCount},
		"missing rate":     {[]string{"-p", "8080", "-d"}, exitcode.ParamCount},
		"unknown flag":     {[]string{"-x", "8080", "-d", "10"}, exitcode.Param},
		"port not numeric": {[]string{"-p", "http", "-d", "10"}, exitcode.Param},
		"zero rate":        {[]string{"-d", "0", "-p", "8080"}, exitcode.Param},
		"long flags":       {[]string{"--port", "8080", "--rate", "10"}, exitcode.Param},
	} {
		t.Run(name, func(t *testing.T) {
			err := Server(semver.Current(), tc.argv).Execute()
			assert.Equal(t, tc.kind, exitcode.KindOf(err))
		})
	}
}

func TestClientArguments(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	chdir(t, t.TempDir())
	for name, tc := range map[string]struct {
		argv []string
		kind exitcode.Kind
	}{
		"no arguments":   {nil, exitcode.ParamCount},
		"two arguments":  {[]string{"a:1/b", "c:2/d"}, exitcode.ParamCount},
		"missing port":   {[]string{"localhost/file"}, exitcode.Param},
		"unknown flag":   {[]string{"--fast", "localhost:1/file"}, exitcode.Param},
		"connect failed": {[]string{fmt.Sprintf("127.0.0.1:%d/file", freePort(t))}, exitcode.Connect},
	} {
		t.Run(name, func(t *testing.T) {
			err := Client(semver.Current(), tc.argv).Execute()
			assert.Equal(t, tc.kind, exitcode.KindOf(err))
		})
	}
	assert.NoFileExists(t, "file")
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := Server(semver.Current(), []string{"--version"})
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), semver.Current().String())
}

func TestServerAndClient(t *testing.T) {
	root := t.TempDir()
	data := bytes.Repeat([]byte("trickle "), 500)
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), data, 0o644))
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRICKLE_ROOT", root)

	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Server(semver.Current(), []string{"-d", "1000000", "-p", strconv.Itoa(port)}).ExecuteContext(ctx)
	}()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()
	require.Eventually(t, func() bool {
		c, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			return false
		}
		c.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	chdir(t, t.TempDir())
	require.NoError(t, Client(semver.Current(), []string{fmt.Sprintf("127.0.0.1:%d/hello.txt", port)}).Execute())
	got, err := os.ReadFile("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	err = Client(semver.Current(), []string{fmt.Sprintf("localhost:%d/missing.txt", port)}).Execute()
	assert.Equal(t, exitcode.RemoteFile, exitcode.KindOf(err))
	assert.NoFileExists(t, "missing.txt")
}
