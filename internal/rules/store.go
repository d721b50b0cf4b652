package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"hanpin/internal/pinyin"
)

// Default rule file names inside a data directory.
const (
	BaseFile     = "rules.json"
	OverrideFile = "overrides.json"
)

const ruleFileSchemaVersion = 1

// ruleFile is the on-disk shape shared by the base and override sets.
type ruleFile struct {
	SchemaVersion int    `json:"schema_version"`
	Rules         []Rule `json:"rules"`
}

const ruleFileSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["schema_version", "rules"],
	"properties": {
		"schema_version": {"type": "integer"},
		"rules": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "priority", "target", "choose"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"priority": {"type": "integer"},
					"choose": {"type": "string", "minLength": 1},
					"target": {
						"type": "object",
						"required": ["char", "occurrence"],
						"properties": {
							"char": {"type": "string", "minLength": 1}
						}
					}
				}
			}
		}
	}
}`

var (
	ruleSchemaOnce sync.Once
	ruleSchema     *jsonschema.Schema
	ruleSchemaErr  error
)

func compiledRuleSchema() (*jsonschema.Schema, error) {
	ruleSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("rule_file.json", strings.NewReader(ruleFileSchema)); err != nil {
			ruleSchemaErr = err
			return
		}
		ruleSchema, ruleSchemaErr = c.Compile("rule_file.json")
	})
	return ruleSchema, ruleSchemaErr
}

// Store owns the rule files in a data directory. Appending overrides is
// a single-writer operation guarded by a mutex and written through a
// temp file plus rename so two writers can never interleave-corrupt or
// truncate the override set.
type Store struct {
	dir string
	log *zap.Logger

	appendMu sync.Mutex
}

func NewStore(dir string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, log: log}
}

// LoadSnapshot reads the base and override sets and freezes them into
// one snapshot. A missing base file is an empty base layer; a missing
// override file is created empty so later appends have a file to extend.
func (s *Store) LoadSnapshot() (*Snapshot, error) {
	base, err := s.loadFile(filepath.Join(s.dir, BaseFile), false)
	if err != nil {
		return nil, fmt.Errorf("load base rules: %w", err)
	}
	overrides, err := s.loadFile(filepath.Join(s.dir, OverrideFile), true)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	s.log.Debug("rule snapshot loaded",
		zap.Int("base", len(base)), zap.Int("overrides", len(overrides)))
	return NewSnapshot(base, overrides), nil
}

func (s *Store) loadFile(path string, createIfMissing bool) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if createIfMissing {
			if werr := writeRuleFile(path, ruleFile{SchemaVersion: ruleFileSchemaVersion, Rules: []Rule{}}); werr != nil {
				return nil, werr
			}
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	schema, err := compiledRuleSchema()
	if err != nil {
		return nil, fmt.Errorf("compile rule schema: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var file ruleFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range file.Rules {
		file.Rules[i].Choose = pinyin.Normalize(file.Rules[i].Choose)
	}
	return file.Rules, nil
}

// AppendOverride appends one generated rule to the override file.
// Existing rules are never edited or removed. On any failure the
// previous file remains intact.
func (s *Store) AppendOverride(rule Rule) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	path := filepath.Join(s.dir, OverrideFile)
	current, err := s.loadFile(path, true)
	if err != nil {
		return fmt.Errorf("read override store: %w", err)
	}
	for _, r := range current {
		if r.ID == rule.ID {
			return fmt.Errorf("override id %s already exists", rule.ID)
		}
	}
	rule.Choose = pinyin.Normalize(rule.Choose)
	current = append(current, rule)

	if err := writeRuleFile(path, ruleFile{SchemaVersion: ruleFileSchemaVersion, Rules: current}); err != nil {
		return fmt.Errorf("append override %s: %w", rule.ID, err)
	}
	s.log.Info("override appended", zap.String("id", rule.ID), zap.Int("priority", rule.Priority))
	return nil
}

// OverrideIDs lists the ids currently in the override file, for serial
// allocation by the generator.
func (s *Store) OverrideIDs() ([]string, error) {
	current, err := s.loadFile(filepath.Join(s.dir, OverrideFile), true)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(current))
	for _, r := range current {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// writeRuleFile writes to a temp file in the same directory and renames
// it over the target, so a crash mid-write never leaves a partial file.
func writeRuleFile(path string, file ruleFile) error {
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rules-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
