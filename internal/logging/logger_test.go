package logging

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lineRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{3}  (INFO|WARNING|FATAL)\s*\| .*\n$`)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")
	l := &Logger{}
	require.NoError(t, l.SetLogfile(path))
	return l, path
}

func TestLogLineFormat(t *testing.T) {
	l, path := newTestLogger(t)
	l.Log(Info, "hello %s", "world")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Regexp(t, lineRe, string(data))
	assert.Contains(t, string(data), "hello world")
}

func TestLogLevels(t *testing.T) {
	l, path := newTestLogger(t)
	l.Log(Info, "a")
	l.Log(Warning, "b")
	l.Log(Fatal, "c")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(string(data))
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "INFO")
	assert.Contains(t, lines[1], "WARNING")
	assert.Contains(t, lines[2], "FATAL")
}

func TestSetLogfileReplacesPriorDescriptor(t *testing.T) {
	l, path1 := newTestLogger(t)
	l.Log(Info, "first")

	dir := t.TempDir()
	path2 := filepath.Join(dir, "second.log")
	require.NoError(t, l.SetLogfile(path2))
	l.Log(Info, "second")

	data1, err := os.ReadFile(path1)
	require.NoError(t, err)
	assert.Contains(t, string(data1), "first")
	assert.NotContains(t, string(data1), "second")

	data2, err := os.ReadFile(path2)
	require.NoError(t, err)
	assert.Contains(t, string(data2), "second")
}

func TestCloseLogfileThenLogReopensDefault(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	l := &Logger{}
	l.CloseLogfile()
	l.Log(Info, "after close")

	data, err := os.ReadFile(DefaultLogName)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after close")
}

func TestDefaultAndSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l, _ := newTestLogger(t)
	SetDefault(l)
	assert.Same(t, l, Default())
}

func splitLines(s string) []string {
	var lines []string
	cur := ""
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	return lines
}
