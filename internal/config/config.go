// Package config reads and writes a repository's .dits/config file, an
// INI document in the same shape git/go-git use. Decoding goes through
// gopkg.in/gcfg.v1, the same library go-git's
// storage/filesystem/config.go leans on for its own ConfigFile.Decode.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/gcfg.v1"
)

// Core holds the [core] section: chunking bounds and behavioral knobs
// that must stay consistent for a single repository's lifetime. Tags use
// the literal key spellings spec.md documents (core.chunkMin and so on),
// not gcfg's usual kebab-case convention.
type Core struct {
	ChunkMin         uint64 `gcfg:"chunkMin"`
	ChunkAvg         uint64 `gcfg:"chunkAvg"`
	ChunkMax         uint64 `gcfg:"chunkMax"`
	Compression      int    `gcfg:"compression"`
	BigFileThreshold uint64 `gcfg:"bigFileThreshold"`
	ContainerAware   bool   `gcfg:"containerAware"`
}

// Remote holds one [remote "name"] section, mirroring go-git's
// config.RemoteConfig shape. Only url has a typed field; other keys in the
// section round-trip as unknown entries.
type Remote struct {
	URL string `gcfg:"url"`
}

// User holds the [user] section used to stamp commit author/committer.
type User struct {
	Name  string `gcfg:"name"`
	Email string `gcfg:"email"`
}

// File is the full parsed .dits/config document.
type File struct {
	Core   Core               `gcfg:"core"`
	User   User               `gcfg:"user"`
	Remote map[string]*Remote `gcfg:"remote"`

	// unknown holds every section/key gcfg's typed Decode above has no
	// field for, captured by a secondary raw pass over the same bytes so
	// Save can re-emit them verbatim instead of silently dropping them.
	unknown []unknownEntry
}

// unknownEntry is one INI key outside File's recognized schema: an
// unfamiliar section entirely, or a key inside a known section this
// struct has no field for.
type unknownEntry struct {
	Section    string
	Subsection string
	Key        string
	Value      string
}

// Default returns a config with the repository defaults filled in.
func Default() *File {
	return &File{
		Core: Core{
			ChunkMin:         32 * 1024,
			ChunkAvg:         64 * 1024,
			ChunkMax:         256 * 1024,
			Compression:      5,
			BigFileThreshold: 512 * 1024 * 1024,
			ContainerAware:   true,
		},
	}
}

// Decode parses an INI document from r into f: gcfg populates the known
// struct fields, then a secondary raw pass over the same bytes captures
// anything gcfg's typed schema doesn't recognize, so Save can round-trip
// it (spec.md: "unknown keys are preserved").
func (f *File) Decode(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := gcfg.FatalOnly(gcfg.ReadInto(f, bytes.NewReader(raw))); err != nil {
		return err
	}
	unknown, err := parseUnknown(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	f.unknown = unknown
	return nil
}

// Load reads and parses the config file at path. A missing file returns
// Default() rather than an error, matching a freshly initialized repo.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f := Default()
	if err := f.Decode(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// knownKeys lists, per section, the keys a typed field already covers;
// parseUnknown skips these so Save doesn't duplicate what encode already
// writes from f.Core/f.User/f.Remote.
var knownKeys = map[string]map[string]bool{
	"core":   {"chunkmin": true, "chunkavg": true, "chunkmax": true, "compression": true, "bigfilethreshold": true, "containeraware": true},
	"user":   {"name": true, "email": true},
	"remote": {"url": true},
}

// parseUnknown re-scans an INI document by hand, git-config style
// ([section] / [section "subsection"] headers, tab-indented key = value
// lines), and returns every entry knownKeys doesn't cover. gcfg only ever
// decodes into the struct it's given; it has no API for reporting what it
// skipped, so recovering that data means walking the bytes a second time.
func parseUnknown(r io.Reader) ([]unknownEntry, error) {
	scanner := bufio.NewScanner(r)
	var entries []unknownEntry
	var section, subsection string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inner := strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if sp := strings.IndexByte(inner, ' '); sp != -1 {
				section = strings.ToLower(strings.TrimSpace(inner[:sp]))
				subsection = strings.Trim(strings.TrimSpace(inner[sp+1:]), `"`)
			} else {
				section = strings.ToLower(inner)
				subsection = ""
			}
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq == -1 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if knownKeys[section][strings.ToLower(key)] {
			continue
		}
		entries = append(entries, unknownEntry{Section: section, Subsection: subsection, Key: key, Value: value})
	}
	return entries, scanner.Err()
}

// Save serializes f as INI text and writes it to path.
func Save(f *File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	body := encode(f)
	tmp, err := os.CreateTemp(dir, "config-tmp-*")
	if err != nil {
		return fmt.Errorf("config: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("config: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("config: rename: %w", err)
	}
	return nil
}

// encode writes f by hand rather than through gcfg (which only decodes);
// the section set is small and fixed, so a direct writer keeps key order
// stable across saves instead of depending on map iteration order.
func encode(f *File) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[core]\n")
	fmt.Fprintf(&buf, "\tchunkMin = %d\n", f.Core.ChunkMin)
	fmt.Fprintf(&buf, "\tchunkAvg = %d\n", f.Core.ChunkAvg)
	fmt.Fprintf(&buf, "\tchunkMax = %d\n", f.Core.ChunkMax)
	fmt.Fprintf(&buf, "\tcompression = %d\n", f.Core.Compression)
	fmt.Fprintf(&buf, "\tbigFileThreshold = %d\n", f.Core.BigFileThreshold)
	fmt.Fprintf(&buf, "\tcontainerAware = %t\n", f.Core.ContainerAware)
	writeUnknown(&buf, f.unknown, "core", "")

	userHeader := f.User.Name != "" || f.User.Email != ""
	for _, e := range f.unknown {
		if e.Section == "user" && e.Subsection == "" {
			userHeader = true
		}
	}
	if userHeader {
		fmt.Fprintf(&buf, "[user]\n")
		if f.User.Name != "" {
			fmt.Fprintf(&buf, "\tname = %s\n", f.User.Name)
		}
		if f.User.Email != "" {
			fmt.Fprintf(&buf, "\temail = %s\n", f.User.Email)
		}
	}
	writeUnknown(&buf, f.unknown, "user", "")

	for name, r := range f.Remote {
		fmt.Fprintf(&buf, "[remote %q]\n", name)
		fmt.Fprintf(&buf, "\turl = %s\n", r.URL)
		writeUnknown(&buf, f.unknown, "remote", name)
	}

	writeUnknownSections(&buf, f.unknown, f.Remote)
	return buf.String()
}

// writeUnknown re-emits the unknown entries belonging to exactly
// (section, subsection), inline with the section encode already wrote a
// header for.
func writeUnknown(buf *bytes.Buffer, unknown []unknownEntry, section, subsection string) {
	for _, e := range unknown {
		if e.Section == section && e.Subsection == subsection {
			fmt.Fprintf(buf, "\t%s = %s\n", e.Key, e.Value)
		}
	}
}

// writeUnknownSections re-emits unknown entries under a section/subsection
// combination encode never writes a header for on its own — an entirely
// unrecognized section, or a named remote with no typed Remote entry.
func writeUnknownSections(buf *bytes.Buffer, unknown []unknownEntry, remotes map[string]*Remote) {
	type sectionKey struct{ section, subsection string }
	known := map[sectionKey]bool{{"core", ""}: true, {"user", ""}: true}
	for name := range remotes {
		known[sectionKey{"remote", name}] = true
	}

	var order []sectionKey
	grouped := map[sectionKey][]unknownEntry{}
	for _, e := range unknown {
		k := sectionKey{e.Section, e.Subsection}
		if known[k] {
			continue
		}
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], e)
	}

	for _, k := range order {
		if k.subsection != "" {
			fmt.Fprintf(buf, "[%s %q]\n", k.section, k.subsection)
		} else {
			fmt.Fprintf(buf, "[%s]\n", k.section)
		}
		for _, e := range grouped[k] {
			fmt.Fprintf(buf, "\t%s = %s\n", e.Key, e.Value)
		}
	}
}
