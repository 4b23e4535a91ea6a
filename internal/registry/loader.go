// Package registry reads the inference service's on-disk model cache.
//
// The cache root holds one directory per publisher, each holding one
// directory per downloaded model:
//
//	<root>/<publisher>/<model-dir>
//
// Model directory names are model ids with ':' replaced by '-'.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"localchat/internal/common/fsutil"
)

// ErrNoMatch is returned when no model directory matches a model id.
var ErrNoMatch = errors.New("no matching model directory")

// Entry is one model directory in the cache.
type Entry struct {
	Publisher string
	Name      string
	Path      string
}

// Listing is the result of scanning a cache root. Publisher directories that
// could not be read are reported in Unreadable instead of failing the scan.
type Listing struct {
	Entries    []Entry
	Unreadable map[string]error
}

// MatchKind tells how FindModelDir picked its answer.
type MatchKind string

const (
	MatchExact  MatchKind = "exact"
	MatchPrefix MatchKind = "prefix"
)

// Scan walks root one publisher level deep. A root that cannot be enumerated
// is an error (wrapping the os error, so errors.Is(err, fs.ErrPermission)
// works); unreadable publisher directories are collected in the listing.
func Scan(root string) (Listing, error) {
	base, err := fsutil.ExpandHome(root)
	if err != nil {
		return Listing{}, err
	}
	pubs, err := os.ReadDir(base)
	if err != nil {
		return Listing{}, fmt.Errorf("read cache root: %w", err)
	}
	var l Listing
	for _, pub := range pubs {
		if !pub.IsDir() {
			continue
		}
		pubPath := filepath.Join(base, pub.Name())
		models, err := os.ReadDir(pubPath)
		if err != nil {
			if l.Unreadable == nil {
				l.Unreadable = make(map[string]error)
			}
			l.Unreadable[pubPath] = err
			continue
		}
		for _, m := range models {
			if !m.IsDir() {
				continue
			}
			l.Entries = append(l.Entries, Entry{
				Publisher: pub.Name(),
				Name:      m.Name(),
				Path:      filepath.Join(pubPath, m.Name()),
			})
		}
	}
	return l, nil
}

// DirName maps a model id to its expected cache directory name.
func DirName(modelID string) string {
	return strings.ReplaceAll(modelID, ":", "-")
}

// StripVersion drops a trailing ":<version>" suffix from a model id.
func StripVersion(modelID string) string {
	if i := strings.LastIndex(modelID, ":"); i > 0 {
		return modelID[:i]
	}
	return modelID
}

// FindModelDir locates the cache directory for modelID: first an exact
// directory-name match across all publishers, then the first directory whose
// name starts with the version-less id. When nothing matches and some
// publisher directories were unreadable, the first such error is returned in
// place of ErrNoMatch.
func FindModelDir(root, modelID string) (Entry, MatchKind, error) {
	l, err := Scan(root)
	if err != nil {
		return Entry{}, "", err
	}
	want := DirName(modelID)
	for _, e := range l.Entries {
		if strings.EqualFold(e.Name, want) {
			return e, MatchExact, nil
		}
	}
	prefix := strings.ToLower(DirName(StripVersion(modelID)))
	if prefix != "" {
		for _, e := range l.Entries {
			if strings.HasPrefix(strings.ToLower(e.Name), prefix) {
				return e, MatchPrefix, nil
			}
		}
	}
	for path, rerr := range l.Unreadable {
		return Entry{}, "", fmt.Errorf("read publisher dir %s: %w", path, rerr)
	}
	return Entry{}, "", ErrNoMatch
}
