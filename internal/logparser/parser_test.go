package logparser_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Galarius/opencl-language-server/internal/logparser"
)

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		token string
		want  int32
	}{
		{"warning", 2},
		{"error", 1},
		{"fatal error", 1},
		{"Scholar", -1},
		{"note", -1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, logparser.ParseSeverity(c.token), "token %q", c.token)
	}
}

func TestParse_MixedBuildLog(t *testing.T) {
	t.Parallel()

	buildLog := "<program source>:12:5: warning: no previous prototype for function 'getChannel'\n" +
		"<program source>:16:27: error: use of undeclared identifier 'r'\n" +
		"<custom source>:100:2: fatal error: unexpected end of file"

	p := logparser.New(nil)
	diagnostics := p.Parse(buildLog, "kernel.cl", 10)

	require.Len(t, diagnostics, 3)

	wantLines := []uint32{11, 15, 99}
	wantSeverities := []int32{2, 1, 1}
	for i, d := range diagnostics {
		assert.Equal(t, wantLines[i], d.Range.Start.Line, "diagnostic %d", i)
		assert.Equal(t, wantLines[i], d.Range.End.Line, "diagnostic %d", i)
		assert.Equal(t, wantSeverities[i], d.Severity, "diagnostic %d", i)
		assert.Equal(t, "kernel.cl", d.Source, "diagnostic %d", i)
	}
}

func TestParse_ProblemCap(t *testing.T) {
	t.Parallel()

	buildLog := "<program source>:12:5: warning: no previous prototype for function 'getChannel'\n" +
		"<program source>:16:27: error: use of undeclared identifier 'r'\n" +
		"<custom source>:100:2: fatal error: unexpected end of file"

	p := logparser.New(nil)
	diagnostics := p.Parse(buildLog, "kernel.cl", 2)

	require.Len(t, diagnostics, 2)
	assert.Equal(t, uint32(11), diagnostics[0].Range.Start.Line)
	assert.Equal(t, uint32(15), diagnostics[1].Range.Start.Line)
}

func TestParse_CapEqualsLineCount(t *testing.T) {
	t.Parallel()

	for k := 0; k <= 4; k++ {
		for l := uint64(0); l <= 4; l++ {
			var lines string
			for i := 0; i < k; i++ {
				lines += fmt.Sprintf("src:%d:1: warning: msg\n", i+1)
			}
			p := logparser.New(nil)
			got := p.Parse(lines, "", l)
			want := k
			if uint64(k) > l {
				want = int(l)
			}
			assert.Len(t, got, want, "k=%d l=%d", k, l)
		}
	}
}

func TestParse_NoMatchesReturnsEmpty(t *testing.T) {
	t.Parallel()

	p := logparser.New(nil)
	assert.Empty(t, p.Parse("nothing to see here\njust plain text", "", 10))
	assert.Empty(t, p.Parse("", "", 10))
}

func TestParse_SkipsZeroLine(t *testing.T) {
	t.Parallel()

	p := logparser.New(nil)
	diagnostics := p.Parse("src:0:1: warning: msg", "", 10)
	assert.Empty(t, diagnostics)
}

func TestParse_NoNameOverrideKeepsCapturedSource(t *testing.T) {
	t.Parallel()

	p := logparser.New(nil)
	diagnostics := p.Parse("<program source>:12:5: warning: msg", "", 10)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, "<program source>", diagnostics[0].Source)
}
