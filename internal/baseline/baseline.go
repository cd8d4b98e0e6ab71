// Package baseline records accepted findings so later scans report only new ones.
package baseline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/deadwood/pkg/results"
)

// Version is the file format version written by Save.
const Version = 1

// ErrVersion is returned for baseline files written by an incompatible version.
var ErrVersion = errors.New("unsupported baseline version")

// Baseline is a set of finding fingerprints.
type Baseline struct {
	Version      int      `json:"version"`
	Fingerprints []string `json:"fingerprints"`

	set map[string]bool
}

// Fingerprint identifies a finding independently of its line and column so
// edits elsewhere in a file do not invalidate the baseline.
func Fingerprint(r results.Result) string {
	var b strings.Builder
	b.WriteString(string(r.Annotation))
	b.WriteByte(0)
	if len(r.Usrs) > 0 {
		b.WriteString(r.Usrs[0])
	} else {
		b.WriteString(string(r.Kind))
		b.WriteByte(0)
		b.WriteString(r.Container)
		b.WriteByte(0)
		b.WriteString(r.Name)
	}
	b.WriteByte(0)
	b.WriteString(filepath.ToSlash(r.Location.File))
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// FromReport captures every finding in r.
func FromReport(r *results.Report) *Baseline {
	b := &Baseline{Version: Version, set: make(map[string]bool)}
	for _, res := range r.Results() {
		b.add(Fingerprint(res))
	}
	sort.Strings(b.Fingerprints)
	return b
}

func (b *Baseline) add(fp string) {
	if !b.set[fp] {
		b.set[fp] = true
		b.Fingerprints = append(b.Fingerprints, fp)
	}
}

// Contains reports whether the finding was accepted.
func (b *Baseline) Contains(r results.Result) bool {
	return b.set[Fingerprint(r)]
}

// Len is the number of accepted findings.
func (b *Baseline) Len() int {
	return len(b.Fingerprints)
}

// Filter returns r without the accepted findings.
func (b *Baseline) Filter(r *results.Report) *results.Report {
	return r.Without(b.Contains)
}

// Load reads a baseline file.
func Load(path string) (*Baseline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	var b Baseline
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode baseline %s: %w", path, err)
	}
	if b.Version != Version {
		return nil, fmt.Errorf("%s: %w %d", path, ErrVersion, b.Version)
	}
	b.set = make(map[string]bool, len(b.Fingerprints))
	for _, fp := range b.Fingerprints {
		b.set[fp] = true
	}
	return &b, nil
}

// Save writes the baseline to path, creating parent directories.
func (b *Baseline) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create baseline dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
