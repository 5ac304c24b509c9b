package scan

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/jdgilhuly/go_pillar_eval/pkg/evalerr"
	"github.com/jdgilhuly/go_pillar_eval/pkg/worker"
)

// maxScanBytes bounds how much of a single file is read.
const maxScanBytes = 1 << 20

type secretPattern struct {
	name string
	re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"aws_access_key", regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
	{"private_key", regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY-----`)},
	{"github_token", regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{"slack_token", regexp.MustCompile(`\bxox[abpr]-[A-Za-z0-9-]{10,}\b`)},
	{"generic_secret", regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|password|passwd|token)\b\s*[:=]\s*["']?[A-Za-z0-9_\-/+=]{8,}["']?`)},
}

// SecretScanner implements worker.SecretScanner with line-oriented regex
// matching. Binary files are skipped.
type SecretScanner struct{}

// NewSecretScanner returns a scanner using the built-in patterns.
func NewSecretScanner() *SecretScanner { return &SecretScanner{} }

// SecretScan reports at most one finding per pattern per line.
func (s *SecretScanner) SecretScan(ctx context.Context, files []string) ([]worker.SecretFinding, error) {
	out := []worker.SecretFinding{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readHead(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, evalerr.Transient("secret_scan", err)
		}
		if isBinary(data) {
			continue
		}
		out = append(out, scanLines(path, data)...)
	}
	return out, nil
}

// scanLines matches each line of data. Lines of any length are scanned.
func scanLines(path string, data []byte) []worker.SecretFinding {
	var out []worker.SecretFinding
	line := 0
	for len(data) > 0 {
		text := data
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			text, data = data[:i], data[i+1:]
		} else {
			data = nil
		}
		line++
		text = bytes.TrimSuffix(text, []byte("\r"))
		for _, p := range secretPatterns {
			if m := p.re.Find(text); m != nil {
				out = append(out, worker.SecretFinding{
					Pattern: p.name,
					File:    path,
					Line:    line,
					Snippet: redact(string(m)),
				})
			}
		}
	}
	return out
}

// redact keeps the first four characters of a match.
func redact(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", min(len(s)-4, 12))
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxScanBytes))
}

func isBinary(data []byte) bool {
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	return bytes.IndexByte(head, 0) >= 0
}
