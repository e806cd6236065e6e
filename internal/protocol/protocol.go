// Package protocol parses the textual output protocol of probe workers.
// Each captured line is classified into exactly one of three record kinds:
// a statistics update, a finding, or raw output. Classification is stateless
// and never fails; lines that only partially match a grammar degrade to raw
// output instead of aborting capture.
package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// ansiPattern matches CSI sequences and OSC sequences terminated by BEL.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07`)

	// statsPattern matches worker progress lines such as
	//   "tasks=5 mem=120MB targets=10 attempts=50 done=25 (50.0%) errors=2 speed=12.5 reqs/s"
	// anywhere in the line. The errors field is optional.
	statsPattern = regexp.MustCompile(`tasks=(\d+)\s+mem=(.+?)\s+targets=(\d+)\s+attempts=(\d+)\s+done=(\d+)\s+\((.+?)%\)(?:\s+errors=(\d+))?\s+speed=(.+?)\s+reqs/s`)

	// findingPattern matches result lines such as
	//   "[2024-01-01T00:00:00] (sql-injection) <http://target> found admin:admin123"
	// where the <target> segment is optional.
	findingPattern = regexp.MustCompile(`\[(.+)\]\s+\(([^)]+)\)(?:\s+<(.+?)>)?\s+(.+)`)
)

// Statistics is the latest known progress snapshot for a session. Every
// field reflects the most recent matching line, not a running aggregate.
type Statistics struct {
	Tasks       int     `json:"tasks"`
	Memory      string  `json:"memory"`
	Targets     int     `json:"targets"`
	Attempts    int     `json:"attempts"`
	Errors      int     `json:"errors"`
	Done        int     `json:"done"`
	DonePercent float64 `json:"done_percent"`
	ReqsPerSec  float64 `json:"reqs_per_sec"`
}

// Finding is a structured result record extracted from a recognized line.
type Finding struct {
	FoundAt string `json:"found_at"`
	Plugin  string `json:"plugin"`
	Target  string `json:"target,omitempty"`
	Data    string `json:"data"`
}

// Kind identifies what a classified line turned out to be.
type Kind int

const (
	// KindEmpty means the line was blank after escape stripping and
	// produces no record.
	KindEmpty Kind = iota
	KindStatistics
	KindFinding
	KindRaw
)

// Record is the result of classifying a single line.
type Record struct {
	Kind       Kind
	Statistics Statistics
	Finding    Finding
	Raw        string
}

// StripEscapes removes terminal escape sequences from a line.
func StripEscapes(line string) string {
	if !strings.ContainsRune(line, '\x1b') {
		return line
	}
	return ansiPattern.ReplaceAllString(line, "")
}

// Classify strips escape sequences from line and matches it against the
// statistics grammar, then the finding grammar. Matching is first-match-wins;
// anything else is preserved verbatim as trimmed raw output.
func Classify(line string) Record {
	line = strings.TrimSpace(StripEscapes(line))
	if line == "" {
		return Record{Kind: KindEmpty}
	}

	if caps := statsPattern.FindStringSubmatch(line); caps != nil {
		if stats, ok := parseStatistics(caps); ok {
			return Record{Kind: KindStatistics, Statistics: stats}
		}
		// A matched line with an unparseable field is treated as raw
		// output rather than failing capture.
		return Record{Kind: KindRaw, Raw: line}
	}

	if caps := findingPattern.FindStringSubmatch(line); caps != nil {
		return Record{Kind: KindFinding, Finding: Finding{
			FoundAt: caps[1],
			Plugin:  caps[2],
			Target:  caps[3],
			Data:    caps[4],
		}}
	}

	return Record{Kind: KindRaw, Raw: line}
}

// parseStatistics converts the capture groups of statsPattern into a
// Statistics value. The errors group defaults to zero when absent.
func parseStatistics(caps []string) (Statistics, bool) {
	var stats Statistics
	var err error

	if stats.Tasks, err = strconv.Atoi(caps[1]); err != nil {
		return Statistics{}, false
	}
	stats.Memory = caps[2]
	if stats.Targets, err = strconv.Atoi(caps[3]); err != nil {
		return Statistics{}, false
	}
	if stats.Attempts, err = strconv.Atoi(caps[4]); err != nil {
		return Statistics{}, false
	}
	if stats.Done, err = strconv.Atoi(caps[5]); err != nil {
		return Statistics{}, false
	}
	if stats.DonePercent, err = strconv.ParseFloat(caps[6], 64); err != nil {
		return Statistics{}, false
	}
	if caps[7] != "" {
		if stats.Errors, err = strconv.Atoi(caps[7]); err != nil {
			return Statistics{}, false
		}
	}
	if stats.ReqsPerSec, err = strconv.ParseFloat(caps[8], 64); err != nil {
		return Statistics{}, false
	}

	return stats, true
}
