package dict

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"hanpin/internal/pinyin"
)

// LoadError means a mandatory table could not be opened at all. The
// engine cannot operate without its lookup tables, so callers treat it
// as fatal. Per-record damage inside a table is never a LoadError: bad
// records are skipped with a diagnostic and loading continues.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("dictionary table %s unavailable: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Default file names inside a data directory.
const (
	WordFile      = "word.json"
	LexiconFile   = "lexicon.json"
	CharFile      = "char_base.json"
	PolyphoneFile = "polyphone.json"
	ContextsFile  = "polyphone_disambig.json"
)

// Loader reads a data directory into a Store.
type Loader struct {
	log *zap.Logger
}

func NewLoader(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{log: log}
}

// LoadDir loads all tables from dir. The word and character tables are
// mandatory; the lexicon, polyphone, and context tables are optional and
// their absence only logs a warning.
func (l *Loader) LoadDir(dir string) (*Store, error) {
	s := &Store{
		words:      make(map[string]string),
		chars:      make(map[string][]string),
		polyphones: make(map[string][]string),
		contexts:   make(map[string]CharContexts),
		thresholds: DefaultThresholds,
	}

	if err := l.loadWords(filepath.Join(dir, WordFile), s.words); err != nil {
		return nil, &LoadError{Table: WordFile, Err: err}
	}
	if err := l.loadChars(filepath.Join(dir, CharFile), s.chars); err != nil {
		return nil, &LoadError{Table: CharFile, Err: err}
	}

	lexPath := filepath.Join(dir, LexiconFile)
	if err := l.loadLexicon(lexPath, s.words); err != nil {
		if os.IsNotExist(err) {
			l.log.Debug("lexicon not present", zap.String("path", lexPath))
		} else {
			l.log.Warn("lexicon skipped", zap.String("path", lexPath), zap.Error(err))
		}
	}
	polyPath := filepath.Join(dir, PolyphoneFile)
	if err := l.loadPolyphones(polyPath, s.polyphones); err != nil {
		l.log.Warn("polyphone table skipped", zap.String("path", polyPath), zap.Error(err))
	}
	ctxPath := filepath.Join(dir, ContextsFile)
	if err := l.loadContexts(ctxPath, s); err != nil {
		l.log.Warn("context table skipped", zap.String("path", ctxPath), zap.Error(err))
	}

	s.indexWordLengths()
	l.log.Info("dictionary loaded",
		zap.Int("words", len(s.words)),
		zap.Int("chars", len(s.chars)),
		zap.Int("polyphones", len(s.polyphones)),
		zap.Int("contexts", len(s.contexts)))
	return s, nil
}

type wordRecord struct {
	Word   string `json:"word"`
	Pinyin string `json:"pinyin"`
}

// loadWords consumes the word table as a record stream: one JSON object
// per line, tolerating array brackets and trailing commas left over from
// partially well-formed exports.
func (l *Loader) loadWords(path string, out map[string]string) error {
	return l.scanRecords(path, func(line []byte) {
		var rec wordRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			l.log.Warn("malformed word record skipped", zap.String("table", WordFile), zap.Error(err))
			return
		}
		if rec.Word == "" || rec.Pinyin == "" || !allHan(rec.Word) {
			return
		}
		if _, dup := out[rec.Word]; dup {
			l.log.Debug("duplicate word, last wins", zap.String("word", rec.Word))
		}
		out[rec.Word] = pinyin.Normalize(rec.Pinyin)
	})
}

type charRecord struct {
	Char   string   `json:"char"`
	Pinyin []string `json:"pinyin"`
}

func (l *Loader) loadChars(path string, out map[string][]string) error {
	return l.scanRecords(path, func(line []byte) {
		var rec charRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			l.log.Warn("malformed char record skipped", zap.String("table", CharFile), zap.Error(err))
			return
		}
		if rec.Char == "" || len(rec.Pinyin) == 0 {
			return
		}
		if _, dup := out[rec.Char]; dup {
			l.log.Debug("duplicate char, last wins", zap.String("char", rec.Char))
		}
		cands := make([]string, 0, len(rec.Pinyin))
		for _, p := range rec.Pinyin {
			cands = append(cands, pinyin.Normalize(p))
		}
		out[rec.Char] = cands
	})
}

// scanRecords feeds each non-empty line of a record-stream file to fn,
// stripping array brackets and trailing commas first. A broken record
// never aborts the load.
func (l *Loader) scanRecords(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimSuffix(line, ",")
		fn([]byte(line))
	}
	return sc.Err()
}

func (l *Loader) loadLexicon(path string, out map[string]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Either {"items": [{word, pinyin}, ...]} or a flat word->pinyin map.
	var withItems struct {
		Items []wordRecord `json:"items"`
	}
	if err := json.Unmarshal(raw, &withItems); err == nil && len(withItems.Items) > 0 {
		for _, rec := range withItems.Items {
			if rec.Word != "" && rec.Pinyin != "" && allHan(rec.Word) {
				out[rec.Word] = pinyin.Normalize(rec.Pinyin)
			}
		}
		return nil
	}

	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return fmt.Errorf("lexicon is neither an items list nor a map: %w", err)
	}
	for w, p := range flat {
		if w != "" && p != "" && allHan(w) {
			out[w] = pinyin.Normalize(p)
		}
	}
	return nil
}

func (l *Loader) loadPolyphones(path string, out map[string][]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var recs []json.RawMessage
	if err := json.Unmarshal(raw, &recs); err != nil {
		return err
	}
	for _, r := range recs {
		var rec charRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			l.log.Warn("malformed polyphone record skipped", zap.Error(err))
			continue
		}
		if rec.Char == "" || len(rec.Pinyin) == 0 {
			continue
		}
		cands := make([]string, 0, len(rec.Pinyin))
		for _, p := range rec.Pinyin {
			cands = append(cands, pinyin.Normalize(p))
		}
		out[rec.Char] = cands
	}
	return nil
}

type contextsFile struct {
	Thresholds *Thresholds `json:"thresholds"`
	Items      []struct {
		Char string `json:"char"`
		CharContexts
	} `json:"items"`
}

func (l *Loader) loadContexts(path string, s *Store) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file contextsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return err
	}
	if file.Thresholds != nil {
		s.thresholds = *file.Thresholds
	}
	for _, it := range file.Items {
		if it.Char == "" {
			l.log.Warn("context record without char skipped")
			continue
		}
		entry := it.CharContexts
		entry.Default = pinyin.Normalize(entry.Default)
		for i, c := range entry.Candidates {
			entry.Candidates[i] = pinyin.Normalize(c)
		}
		for k, stat := range entry.PerKey {
			stat.Best = pinyin.Normalize(stat.Best)
			entry.PerKey[k] = stat
		}
		s.contexts[it.Char] = entry
	}
	return nil
}
