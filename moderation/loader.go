package moderation

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"

	"support-chat/errors"

	"github.com/samber/lo"
)

//go:embed censored/*.txt
var censoredFS embed.FS

// CensoredData is the merged dictionary and the languages it was built from.
type CensoredData struct {
	Words     []string
	Languages []string
}

// CensoredLoader reads one word list per language ("fr.txt" is French), one word per line.
type CensoredLoader struct {
	fs fs.FS
}

func NewCensoredLoader(f fs.FS) *CensoredLoader {
	return &CensoredLoader{fs: f}
}

// LoadAll merges every .txt list under dir. Blank lines and duplicates are dropped.
func (l *CensoredLoader) LoadAll(dir string) (CensoredData, error) {
	entries, err := fs.ReadDir(l.fs, dir)
	if err != nil {
		return CensoredData{}, err
	}

	var languages []string
	unique := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".txt" {
			continue
		}
		languages = append(languages, strings.TrimSuffix(entry.Name(), ".txt"))

		data, err := fs.ReadFile(l.fs, path.Join(dir, entry.Name()))
		if err != nil {
			return CensoredData{}, err
		}
		// Scanner copes with \r\n endings.
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				unique[line] = struct{}{}
			}
		}
		if err = scanner.Err(); err != nil {
			return CensoredData{}, err
		}
	}

	if len(unique) == 0 {
		return CensoredData{}, errors.ErrEmptyWords
	}
	words := lo.Keys(unique)
	slices.Sort(words)
	return CensoredData{Words: words, Languages: languages}, nil
}

// NewDefaultModerator builds a moderator over the embedded word lists.
func NewDefaultModerator(log *slog.Logger) (*Moderator, error) {
	return NewEmbeddedModerator(DefaultCensoredChar, log)
}

func NewEmbeddedModerator(censoredChar rune, log *slog.Logger) (*Moderator, error) {
	data, err := NewCensoredLoader(censoredFS).LoadAll("censored")
	if err != nil {
		return nil, err
	}
	log.Debug("Censored words loaded", "words", len(data.Words), "languages", data.Languages)
	return NewModerator(data.Words, censoredChar, log)
}
