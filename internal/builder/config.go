package builder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/pelletier/go-toml/v2/unstable"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// ConfigFilename is the default project file name
const ConfigFilename = "abs.toml"

const (
	ModeDebug   = "debug"
	ModeRelease = "release"
)

type Config struct {
	Project      ProjectSection         `toml:"project"`
	Compiler     CompilerSection        `toml:"compiler"`
	Flags        FlagsSection           `toml:"flags"`
	Modes        ModesSection           `toml:"modes"`
	Mode         map[string]ModeSection `toml:"mode"`
	Files        FilesSection           `toml:"files"`
	Dirs         DirsSection            `toml:"dirs"`
	Dependencies DependenciesSection    `toml:"dependencies"`
	Defines      map[string]string      `toml:"defines"`
	Modules      []ModuleSection        `toml:"modules"`

	// HasFiles is false for projects that only aggregate modules
	HasFiles bool `toml:"-"`
	// DefineOrder holds the keys of [defines] in the order they are written
	DefineOrder []string `toml:"-"`
}

// ProjectSection defines the [project] section
type ProjectSection struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Build   string `toml:"build"`
}

// CompilerSection defines the [compiler] section
type CompilerSection struct {
	CC      string `toml:"cc"`
	Build   string `toml:"build"`
	Phase   string `toml:"phase"`
	Cleanup bool   `toml:"cleanup"`
}

// FlagsSection defines the [flags(.*)] section
type FlagsSection struct {
	Common    []string `toml:"common"`
	Hardening []string `toml:"hardening"`
	Defines   []string `toml:"defines"`
}

// ModesSection defines the [modes] section
type ModesSection struct {
	Active string `toml:"active"`
}

// ModeSection defines the [mode.*] sections
type ModeSection struct {
	Flags    []string `toml:"flags"`
	Security bool     `toml:"security"`
}

// FilesSection defines the [files(.*)] section
type FilesSection struct {
	Sources []string `toml:"sources"`
	Output  string   `toml:"output"`
}

// DirsSection defines the [dirs(.*)] section
type DirsSection struct {
	Src      string   `toml:"src"`
	Output   string   `toml:"output"`
	Includes []string `toml:"includes"`
	Libs     []string `toml:"libs"`
	Objects  string   `toml:"objects"`
}

// DependenciesSection defines the [dependencies(.*)] section
type DependenciesSection struct {
	PkgConfigPath string   `toml:"pkg_config_path"`
	PkgConfigLibs []string `toml:"pkg_config_libs"`
	Libs          []string `toml:"libs"`
}

// ModuleSection defines a [[modules]] entry
type ModuleSection struct {
	Name   string `toml:"name"`
	Dir    string `toml:"dir"`
	Config string `toml:"config"`
	Source string `toml:"source"`
}

// KnownModes returns the sorted names of the build modes this config can use
func (c Config) KnownModes() []string {
	modes := slices.Collect(maps.Keys(c.Mode))
	for _, m := range []string{ModeDebug, ModeRelease} {
		if !slices.Contains(modes, m) {
			modes = append(modes, m)
		}
	}
	slices.Sort(modes)
	return modes
}

// listKeys are keys whose values may be written as a space-separated string
var listKeys = map[string]bool{
	"common":          true,
	"hardening":       true,
	"defines":         true,
	"flags":           true,
	"sources":         true,
	"includes":        true,
	"libs":            true,
	"pkg_config_libs": true,
}

// splitLists replaces space-separated strings of list keys with arrays
func splitLists(data any) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			if s, ok := val.(string); ok && listKeys[key] {
				fields := strings.Fields(s)
				list := make([]any, len(fields))
				for i, f := range fields {
					list[i] = f
				}
				v[key] = list
				continue
			}
			splitLists(val)
		}
	case []any:
		for _, item := range v {
			splitLists(item)
		}
	}
}

// mergeStructs merges the fields of the src struct into the dst struct
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection[T any](rawCfg map[string]any, name string, dst *T) error {
	data, ok := rawCfg[name]
	if !ok {
		return nil
	}
	var wrapper map[string]T
	if err := toml.Unmarshal([]byte(mustMarshal(map[string]any{name: data})), &wrapper); err != nil {
		return fmt.Errorf("failed to parse [%s] section: %w", name, err)
	}
	*dst = wrapper[name]
	return nil
}

// unmarshalConditionalSection is a helper to parse, evaluate and merge multiple sections with conditional logic
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			_, err := expr.Compile(key, expr.Env(env))
			if err == nil {
				conditionalFields[key] = subMap
			} else {
				baseFields[key] = val
			}
		} else {
			baseFields[key] = val
		}
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	// merge in a stable order so list flags come out the same on every run
	for _, expression := range slices.Sorted(maps.Keys(conditionalFields)) {
		condMap := conditionalFields[expression]
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		// merge sections if the result is true
		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(condMap)), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		fullMatchStart := matchIndexes[0]
		fullMatchEnd := matchIndexes[1]
		expressionStart := matchIndexes[2]
		expressionEnd := matchIndexes[3]

		builder.WriteString(s[lastIndex:fullMatchStart])

		expression := strings.TrimSpace(s[expressionStart:expressionEnd])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		builder.WriteString(fmt.Sprintf("%v", result))
		lastIndex = fullMatchEnd
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	data, err := io.ReadAll(rdr)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	dec := toml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rawConfig); err != nil {
		if derr, ok := err.(*toml.DecodeError); ok {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}
	if rawConfig == nil {
		rawConfig = make(map[string]any)
	}

	// the build script is evaluated as a whole later
	var buildScript any
	if project, ok := rawConfig["project"].(map[string]any); ok {
		buildScript = project["build"]
		delete(project, "build")
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)
	for _, name := range []string{"flags", "mode", "files", "dirs", "dependencies"} {
		splitLists(rawConfig[name])
	}

	if project, ok := rawConfig["project"].(map[string]any); ok && buildScript != nil {
		project["build"] = buildScript
	}

	cfg := new(Config)
	_, cfg.HasFiles = rawConfig["files"]

	if err := unmarshalSection(rawConfig, "project", &cfg.Project); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "compiler", &cfg.Compiler); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "modes", &cfg.Modes); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "mode", &cfg.Mode); err != nil {
		return nil, err
	}
	if err := unmarshalSection(rawConfig, "defines", &cfg.Defines); err != nil {
		return nil, err
	}
	cfg.DefineOrder = tableKeyOrder(data, "defines")
	if err := unmarshalSection(rawConfig, "modules", &cfg.Modules); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "flags", &cfg.Flags, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "files", &cfg.Files, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "dirs", &cfg.Dirs, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "dependencies", &cfg.Dependencies, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OrderedDefines returns the [defines] table as NAME or NAME=VALUE, in declared order
func (cfg *Config) OrderedDefines() []string {
	keys := slices.Clone(cfg.DefineOrder)
	for _, name := range slices.Sorted(maps.Keys(cfg.Defines)) {
		keys = appendUnique(keys, name)
	}

	var defines []string
	for _, name := range keys {
		v, ok := cfg.Defines[name]
		if !ok {
			continue
		}
		if v != "" {
			defines = append(defines, name+"="+v)
		} else {
			defines = append(defines, name)
		}
	}
	return defines
}

// tableKeyOrder returns the keys of the top-level table name in declaration order.
// The decoded map loses this order.
func tableKeyOrder(data []byte, name string) []string {
	var keys []string
	var p unstable.Parser
	p.Reset(data)

	inTable := false
	for p.NextExpression() {
		e := p.Expression()
		switch e.Kind {
		case unstable.Table, unstable.ArrayTable:
			inTable = e.Kind == unstable.Table && joinKey(e.Key()) == name
		case unstable.KeyValue:
			key := joinKey(e.Key())
			if inTable {
				keys = append(keys, key)
			} else if key == name && e.Value().Kind == unstable.InlineTable {
				it := e.Value().Children()
				for it.Next() {
					keys = append(keys, joinKey(it.Node().Key()))
				}
			}
		}
	}
	return keys
}

func joinKey(it unstable.Iterator) string {
	var parts []string
	for it.Next() {
		parts = append(parts, string(it.Node().Data))
	}
	return strings.Join(parts, ".")
}

func (cfg *Config) validate() error {
	if cfg.HasFiles {
		if cfg.Files.Output == "" {
			return fmt.Errorf("%w: no output file set in [files]", ErrConfig)
		}
		if len(cfg.Files.Sources) == 0 {
			return fmt.Errorf("%w: no sources provided in [files]", ErrConfig)
		}
	}
	for i, mod := range cfg.Modules {
		if mod.Name == "" {
			return fmt.Errorf("%w: module #%d has no name", ErrConfig, i+1)
		}
		if mod.Dir == "" {
			return fmt.Errorf("%w: module %q has no dir", ErrConfig, mod.Name)
		}
	}
	return nil
}

// ParseConfigFromFile parses and validates a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(bufio.NewReader(f), env)
}

//
// expr-lang helpers
//

func (cfg Config) RunBuildScript(env ConfigEnv) error {
	if cfg.Project.Build == "" {
		return nil
	}

	program, err := expr.Compile(cfg.Project.Build, expr.Env(env))
	if err != nil {
		return fmt.Errorf("failed to compile build script for project %q: %w", cfg.Project.Name, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("failed to run build script for project %q: %w", cfg.Project.Name, err)
	}

	if result, ok := result.(bool); !ok || !result {
		return fmt.Errorf("build script for project %q returned false\n%s", cfg.Project.Name, cfg.Project.Build)
	}

	return nil
}

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	RootDir    string            `expr:"root_dir"`
	basedir    string
}

// NewConfigEnv returns the expression environment of a project in basedir. rootDir is
// the directory of the top-level project.
func NewConfigEnv(basedir, rootDir string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		RootDir:    rootDir,
		basedir:    basedir,
	}
}

func (env ConfigEnv) Patch(path, patchText string) bool {
	fullPath := filepath.Join(env.basedir, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}
	origText := string(data)

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		panic(err)
	}
	patchedText, results := dmp.PatchApply(patches, origText)
	if !slices.Contains(results, true) {
		return false // nothing was applied, nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0o644); err != nil {
		panic(err)
	}
	return true
}

func (env ConfigEnv) ReadFile(path string) string {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		panic(fmt.Sprintf("path %q is outside of project directory %q", path, env.basedir))
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}
	return string(data)
}
