package cli

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sprig/internal/compiler"
	"github.com/roach88/sprig/internal/engine"
	"github.com/roach88/sprig/internal/script"
)

// Scene is one buildable script: a script file given on the command line,
// or an entry of a scene manifest.
type Scene struct {
	Name   string
	Source string

	// Path is the script file, or "" for scripts inlined in a manifest.
	Path string

	// Seed overrides the script's seed when non-nil.
	Seed *uint32

	// Set holds criteria overrides; keys starting with $ are variables.
	Set map[string]string
}

// CompileOptions turns the scene's overrides into compiler options.
func (s *Scene) CompileOptions() ([]compiler.Option, error) {
	var opts []compiler.Option
	if s.Seed != nil {
		opts = append(opts, compiler.WithSeed(*s.Seed))
	}
	settings, vars, err := splitOverrides(s.Set)
	if err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		opts = append(opts, compiler.WithCriteria(settings))
	}
	if len(vars) > 0 {
		opts = append(opts, compiler.WithVariables(vars))
	}
	return opts, nil
}

// RecordedSource returns the script with the scene's overrides appended
// as set directives. Settings written last win, so the result builds the
// same objects without any overrides.
func (s *Scene) RecordedSource() string {
	if len(s.Set) == 0 {
		return s.Source
	}
	keys := make([]string, 0, len(s.Set))
	for k := range s.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Source)
	if !strings.HasSuffix(s.Source, "\n") {
		b.WriteByte('\n')
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "set %s %s\n", k, s.Set[k])
	}
	return b.String()
}

// splitOverrides separates criteria settings from $variables.
func splitOverrides(set map[string]string) (map[string]string, map[string]float64, error) {
	settings := make(map[string]string)
	vars := make(map[string]float64)
	for k, v := range set {
		if name, ok := strings.CutPrefix(k, "$"); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("variable $%s: %q is not a number", name, v)
			}
			vars[name] = f
			continue
		}
		settings[k] = v
	}
	return settings, vars, nil
}

// ParseSetFlags parses repeated --set key=value flags.
func ParseSetFlags(pairs []string) (map[string]string, error) {
	set := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", p)
		}
		set[k] = strings.TrimSpace(v)
	}
	return set, nil
}

// LoadError represents an error that occurred while loading a script or
// manifest.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadScenes loads the scenes at path. A file is a single script; a
// directory is a scene manifest of .cue files declaring
//
//	scene: <name>: { script: "..." | file: "path", seed?: int, set?: {...} }
//
// Scenes are returned sorted by name.
func LoadScenes(path string) ([]Scene, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}
	if !info.IsDir() {
		scene, err := LoadScript(path)
		if err != nil {
			return nil, err
		}
		return []Scene{*scene}, nil
	}
	return LoadManifest(path)
}

// LoadScript reads a script file. The scene is named after the file.
func LoadScript(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("script not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading script: %v", err)}
	}
	base := filepath.Base(path)
	return &Scene{
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Source: string(data),
		Path:   path,
	}, nil
}

// sceneSchema constrains manifest entries. #Scene is closed, so unknown
// fields are reported by CUE with their position.
const sceneSchema = `
#Scene: {
	script?: string
	file?:   string
	seed?:   int & >=0 & <=4294967295
	set?: [string]: string | number
}
scene?: [string]: #Scene
`

// LoadManifest loads a directory of .cue scene manifests.
func LoadManifest(dir string) ([]Scene, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	value = ctx.CompileString(sceneSchema).Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeScene, Message: fmt.Sprintf("invalid scene manifest: %v", err)}
	}

	scenesVal := value.LookupPath(cue.ParsePath("scene"))
	if !scenesVal.Exists() {
		return nil, &LoadError{Code: ErrCodeScene, Message: fmt.Sprintf("no scenes declared in %s", dir)}
	}
	iter, err := scenesVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating scenes: %v", err)}
	}

	var scenes []Scene
	for iter.Next() {
		scene, err := decodeScene(dir, iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, *scene)
	}
	if len(scenes) == 0 {
		return nil, &LoadError{Code: ErrCodeScene, Message: fmt.Sprintf("no scenes declared in %s", dir)}
	}

	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Name < scenes[j].Name })
	return scenes, nil
}

func decodeScene(dir, name string, v cue.Value) (*Scene, error) {
	sceneErr := func(format string, args ...any) error {
		return &LoadError{
			Code:    ErrCodeScene,
			Message: fmt.Sprintf("scene %s: ", name) + fmt.Sprintf(format, args...),
			Pos:     v.Pos(),
		}
	}

	scriptVal := v.LookupPath(cue.ParsePath("script"))
	fileVal := v.LookupPath(cue.ParsePath("file"))
	if scriptVal.Exists() == fileVal.Exists() {
		return nil, sceneErr("exactly one of script or file is required")
	}

	scene := &Scene{Name: name}
	if scriptVal.Exists() {
		src, err := scriptVal.String()
		if err != nil {
			return nil, sceneErr("script: %v", err)
		}
		scene.Source = src
	} else {
		file, err := fileVal.String()
		if err != nil {
			return nil, sceneErr("file: %v", err)
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		loaded, err := LoadScript(file)
		if err != nil {
			return nil, err
		}
		scene.Source = loaded.Source
		scene.Path = file
	}

	if seedVal := v.LookupPath(cue.ParsePath("seed")); seedVal.Exists() {
		seed, err := seedVal.Int64()
		if err != nil || seed < 0 || seed > math.MaxUint32 {
			return nil, sceneErr("seed must be an integer in [0, %d]", uint32(math.MaxUint32))
		}
		s := uint32(seed)
		scene.Seed = &s
	}

	if setVal := v.LookupPath(cue.ParsePath("set")); setVal.Exists() {
		fields, err := setVal.Fields()
		if err != nil {
			return nil, sceneErr("set: %v", err)
		}
		scene.Set = make(map[string]string)
		for fields.Next() {
			raw, err := scalarString(fields.Value())
			if err != nil {
				return nil, sceneErr("set %s: %v", fields.Selector().Unquoted(), err)
			}
			scene.Set[fields.Selector().Unquoted()] = raw
		}
	}

	return scene, nil
}

// scalarString renders a CUE string or number as criteria text.
func scalarString(v cue.Value) (string, error) {
	switch v.Kind() {
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		i, err := v.Int64()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(i, 10), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value kind %s", v.Kind())
	}
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Script or CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Trace database error

	// Script errors
	ErrCodeSyntax      = "E101" // Unmatched or malformed statement
	ErrCodeSetting     = "E102" // Invalid set directive or override
	ErrCodeOperator    = "E103" // Unknown or malformed operator token
	ErrCodeVariable    = "E104" // Undefined or invalid variable
	ErrCodeScene       = "E110" // Invalid scene manifest entry
	ErrCodeBadOverride = "E111" // Malformed --set flag
	ErrCodeBadFilter   = "E112" // Malformed trace --where filter

	// Build errors
	ErrCodeUndefinedFallback = "E201" // Fallback names no rule in scope
	ErrCodeBuildError        = "E202" // Any other build failure
	ErrCodeDiverged          = "E301" // Replay differs from the recorded trace
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	head, _, _ := strings.Cut(field, " ")
	switch head {
	case "set", "override":
		return ErrCodeSetting
	case "operator":
		return ErrCodeOperator
	case "variable":
		return ErrCodeVariable
	default:
		return ErrCodeGeneric
	}
}

// describeError maps a load, syntax, compile or build error to a CLI error.
func describeError(err error) CLIError {
	var syntaxErr *script.SyntaxError
	if errors.As(err, &syntaxErr) {
		msg := syntaxErr.Message
		if syntaxErr.Text != "" {
			msg = fmt.Sprintf("%s: %q", msg, syntaxErr.Text)
		}
		return CLIError{Code: ErrCodeSyntax, Message: msg, Line: syntaxErr.Pos.Line, Column: syntaxErr.Pos.Column}
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return CLIError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Line:    compileErr.Pos.Line,
			Column:  compileErr.Pos.Column,
		}
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		e := CLIError{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			e.Line, e.Column = loadErr.Pos.Line(), loadErr.Pos.Column()
			e.Details = loadErr.Pos.Filename()
		}
		return e
	}
	if engine.IsUndefinedFallback(err) {
		return CLIError{Code: ErrCodeUndefinedFallback, Message: err.Error()}
	}
	return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
}

// compileScene loads the scene's overrides and compiles its script.
func compileScene(scene *Scene, extra ...compiler.Option) (*compiledScene, error) {
	opts, err := scene.CompileOptions()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeVariable, Message: err.Error()}
	}
	opts = append(opts, extra...)
	prog, err := compiler.Compile(scene.Source, opts...)
	if err != nil {
		return nil, err
	}
	return &compiledScene{Scene: scene, Program: prog}, nil
}
