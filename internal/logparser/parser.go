// Package logparser turns an OpenCL compiler build log into structured LSP
// diagnostics.
package logparser

import (
	"regexp"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// lineRegexp matches a single build-log line of the shape:
//
//	<program source>:13:5: warning: no previous prototype for function 'getChannel'
//
// Capture groups: 1=source label, 2=line (1-based), 3=column,
// 4=severity token (possibly "fatal error"), 5=optional "fatal " prefix,
// 6=message.
var lineRegexp = regexp.MustCompile(`^(.*):(\d+):(\d+): ((fatal )?error|warning|Scholar): (.*)$`)

// Parser scans build logs line by line for diagnostics.
type Parser struct {
	logger *zap.SugaredLogger
}

// New returns a Parser that logs through logger (may be nil, in which case
// logging is a no-op).
func New(logger *zap.SugaredLogger) *Parser {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Parser{logger: logger}
}

// ParseSeverity maps a captured severity token to an LSP diagnostic
// severity: "warning" maps to Warning; any token ending in "error"
// (including "fatal error") maps to Error; anything else is reported as -1,
// which has no protocol.DiagnosticSeverity equivalent, so callers that need
// a typed value should treat it as "unknown".
func ParseSeverity(token string) int32 {
	switch {
	case token == "warning":
		return int32(protocol.DiagnosticSeverityWarning)
	case strings.HasSuffix(token, "error"):
		return int32(protocol.DiagnosticSeverityError)
	default:
		return -1
	}
}

// Match is a single parsed build-log line, prior to building the LSP
// Diagnostic wrapper.
type Match struct {
	Source   string
	Line0    int // 0-indexed
	Column   int
	Severity int32
	Message  string
}

// Diagnostic is a single reported compiler message. Range reuses
// go.lsp.dev/protocol's Position/Range types (they fit unmodified), but
// Severity is a plain int32 rather than protocol.DiagnosticSeverity: the
// wire contract here admits -1 for "neither error nor warning", a value
// outside the LSP DiagnosticSeverity enum (1-4).
type Diagnostic struct {
	Source   string         `json:"source"`
	Range    protocol.Range `json:"range"`
	Severity int32          `json:"severity"`
	Message  string         `json:"message"`
}

// parseMatch converts one set of regexp captures into a Match. line0 is the
// compiler's 1-based line minus one; a compiler-reported line of 0 yields a
// negative Line0, which callers must skip (see Parse).
func parseMatch(captures []string) Match {
	line, _ := strconv.Atoi(captures[2])
	col, _ := strconv.Atoi(captures[3])
	return Match{
		Source:   captures[1],
		Line0:    line - 1,
		Column:   col,
		Severity: ParseSeverity(captures[4]),
		Message:  captures[6],
	}
}

// Parse splits buildLog into lines, matches each against lineRegexp, and
// builds up to problemsLimit diagnostics. If nameOverride is non-empty, it
// replaces the captured source label on every diagnostic. Hitting the cap
// is logged and stops parsing; it is never reported as an error. Lines that
// don't match are silently skipped. A compiler-reported line of 0 (so
// Line0 < 0) is also skipped, since LSP positions cannot be negative.
func (p *Parser) Parse(buildLog string, nameOverride string, problemsLimit uint64) []Diagnostic {
	if buildLog == "" {
		return nil
	}

	var diagnostics []Diagnostic
	for _, line := range strings.Split(buildLog, "\n") {
		line = strings.TrimRight(line, "\r")
		captures := lineRegexp.FindStringSubmatch(line)
		if captures == nil {
			continue
		}

		match := parseMatch(captures)
		if match.Line0 < 0 {
			continue
		}

		if uint64(len(diagnostics)) >= problemsLimit {
			p.logger.Warnw("maximum number of problems reached, remaining diagnostics are dropped",
				"limit", problemsLimit)
			break
		}

		source := match.Source
		if nameOverride != "" {
			source = nameOverride
		}

		position := protocol.Position{Line: uint32(match.Line0), Character: uint32(match.Column)}
		diagnostics = append(diagnostics, Diagnostic{
			Source:   source,
			Range:    protocol.Range{Start: position, End: position},
			Severity: match.Severity,
			Message:  match.Message,
		})
	}
	return diagnostics
}
