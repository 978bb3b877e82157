package catalog

import (
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/floatingatoll/puppet/pkg/resource"
)

// Loader parses CUE manifests into catalogs.
type Loader struct {
	ctx       *cue.Context
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewLoader creates a new catalog loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		ctx:       cuecontext.New(),
		validator: validator.New(),
		logger:    logger.With().Str("component", "catalog").Logger(),
	}
}

// Load parses the given manifest files or directories and returns the
// catalog. CUE parse errors and invalid declarations are collected into
// Catalog.Errors rather than aborting the load, so a single bad
// declaration does not hide the rest of the manifest from inspection.
func (l *Loader) Load(sources []string) (*Catalog, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no manifest sources provided")
	}

	catalog := &Catalog{LoadedAt: time.Now()}
	var unified cue.Value

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var (
			val   cue.Value
			files []string
			errs  []ValidationError
		)
		if info.IsDir() {
			val, files, errs = l.loadDirectory(source)
		} else {
			val, errs = l.loadFile(source)
			files = []string{source}
		}

		catalog.Errors = append(catalog.Errors, errs...)
		catalog.SourceFiles = append(catalog.SourceFiles, files...)

		if val.Exists() {
			if unified.Exists() {
				unified = unified.Unify(val)
			} else {
				unified = val
			}
		}
	}

	if len(catalog.Errors) > 0 {
		return catalog, nil
	}

	if err := unified.Err(); err != nil {
		catalog.Errors = append(catalog.Errors, convertCUEErrors(err)...)
		return catalog, nil
	}

	l.extract(unified, catalog)

	l.logger.Debug().
		Int("resources", len(catalog.Resources)).
		Int("errors", len(catalog.Errors)).
		Strs("sources", sources).
		Msg("Catalog loaded")

	return catalog, nil
}

// loadDirectory loads a directory as a CUE package.
func (l *Loader) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:    dir,
			Message: "no CUE files found",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, convertCUEErrors(inst.Err)
	}

	val := l.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}

	return val, files, nil
}

// loadFile loads a single CUE file.
func (l *Loader) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:    path,
			Message: fmt.Sprintf("failed to read file: %v", err),
		}}
	}

	val := l.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}

	return val, nil
}

// extract pulls the site block and package declarations out of the
// unified manifest value.
func (l *Loader) extract(val cue.Value, catalog *Catalog) {
	siteVal := val.LookupPath(cue.ParsePath("site"))
	if siteVal.Exists() {
		var site siteDecl
		if err := siteVal.Decode(&site); err != nil {
			catalog.Errors = append(catalog.Errors, ValidationError{
				Path:    "site",
				Message: fmt.Sprintf("failed to decode site block: %v", err),
			})
		} else {
			catalog.Name = site.Name
		}
	}

	packagesVal := val.LookupPath(cue.ParsePath("resources.packages"))
	if !packagesVal.Exists() {
		return
	}
	if packagesVal.Kind() != cue.StructKind {
		catalog.Errors = append(catalog.Errors, ValidationError{
			Path:    "resources.packages",
			Message: "resources.packages must be a struct keyed by package name",
		})
		return
	}

	iter, err := packagesVal.Fields(cue.All())
	if err != nil {
		catalog.Errors = append(catalog.Errors, ValidationError{
			Path:    "resources.packages",
			Message: fmt.Sprintf("failed to iterate packages: %v", err),
		})
		return
	}

	for iter.Next() {
		title := iter.Selector().Unquoted()
		res, verr := l.extractPackage(title, iter.Value(), catalog.Name)
		if verr != nil {
			catalog.Errors = append(catalog.Errors, *verr)
			continue
		}
		catalog.Resources = append(catalog.Resources, res)
	}
}

// extractPackage converts one declaration into a resource, normalizing
// its desired values at load time so invalid ensure values surface with
// manifest positions rather than mid-pass.
func (l *Loader) extractPackage(title string, val cue.Value, site string) (*resource.Resource, *ValidationError) {
	pos := val.Pos()
	path := fmt.Sprintf("resources.packages.%s", title)

	var decl packageDecl
	if err := val.Decode(&decl); err != nil {
		return nil, &ValidationError{
			File:    pos.Filename(),
			Line:    pos.Line(),
			Column:  pos.Column(),
			Path:    path,
			Message: fmt.Sprintf("failed to decode declaration: %v", err),
		}
	}

	if err := l.validator.Struct(decl); err != nil {
		return nil, &ValidationError{
			File:    pos.Filename(),
			Line:    pos.Line(),
			Column:  pos.Column(),
			Path:    path,
			Message: fmt.Sprintf("invalid declaration: %v", err),
		}
	}

	raws, ok := decl.Ensure.([]interface{})
	if !ok {
		raws = []interface{}{decl.Ensure}
	}
	should, err := resource.NormalizeAll(raws)
	if err != nil {
		return nil, &ValidationError{
			File:    pos.Filename(),
			Line:    pos.Line(),
			Column:  pos.Column(),
			Path:    path,
			Message: err.Error(),
		}
	}

	var containment []string
	if site != "" {
		containment = []string{site}
	}

	res := &resource.Resource{
		Type:            "package",
		Title:           title,
		File:            pos.Filename(),
		Line:            pos.Line(),
		ContainmentPath: containment,
		Tags:            decl.Tags,
		Should:          should,
		Provider:        decl.Provider,
	}
	if err := res.Validate(); err != nil {
		return nil, &ValidationError{
			File:    pos.Filename(),
			Line:    pos.Line(),
			Path:    path,
			Message: err.Error(),
		}
	}

	return res, nil
}

// convertCUEErrors converts CUE errors to ValidationError slices with
// source positions.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	for _, e := range cueerrors.Errors(err) {
		pos := cueerrors.Positions(e)
		var file string
		var line, column int
		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:    file,
			Line:    line,
			Column:  column,
			Message: cueerrors.Details(e, nil),
		})
	}

	return validationErrors
}
