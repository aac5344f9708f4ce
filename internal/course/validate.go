package course

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaSource string

// ValidationError is one problem found in a course document.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e ValidationError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "course"
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), loc, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// ValidationErrors collects every problem found in a document.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// A cue.Context is not safe for concurrent use; schemaMu serializes Validate.
var (
	schemaMu   sync.Mutex
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func courseSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("compile course schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Course"))
	})
	return schemaCtx, schemaDef, schemaErr
}

// Validate checks a JSON course document. It returns every error found
// (does not fail fast): schema violations first, then cross-field checks.
func Validate(data []byte, filename string) ValidationErrors {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	ctx, schema, err := courseSchema()
	if err != nil {
		return ValidationErrors{{Message: err.Error()}}
	}

	doc := ctx.CompileBytes(data, cue.Filename(filename))
	if err := doc.Err(); err != nil {
		return fromCUE(err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fromCUE(err)
	}

	var c Course
	if err := unified.Decode(&c); err != nil {
		return ValidationErrors{{Message: err.Error()}}
	}
	return checkPages(c.Pages)
}

// fromCUE flattens a CUE error list, keeping the first position of each.
func fromCUE(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range errors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: e.Error(),
		}
		if positions := errors.Positions(e); len(positions) > 0 {
			ve.Pos = positions[0]
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}

// checkPages enforces rules the schema cannot express.
func checkPages(pages []Page) ValidationErrors {
	var out ValidationErrors
	seen := make(map[string]int)

	for i, p := range pages {
		path := fmt.Sprintf("pages.%d", i)
		if p.ID != "" {
			if first, dup := seen[p.ID]; dup {
				out = append(out, ValidationError{
					Path:    path + ".id",
					Message: fmt.Sprintf("duplicate page id %q (first used by pages.%d)", p.ID, first),
				})
			} else {
				seen[p.ID] = i
			}
		}

		switch p.Type {
		case TypeChoice:
			correct := 0
			for _, c := range p.Choices {
				if c.Correct {
					correct++
				}
			}
			if correct == 0 {
				out = append(out, ValidationError{Path: path + ".choices", Message: "at least one choice must be correct"})
			}
			if correct > 1 && !p.MultiSelect {
				out = append(out, ValidationError{Path: path + ".choices", Message: "several correct choices require multiSelect"})
			}
			out = append(out, uniqueIDs(path+".choices", len(p.Choices), func(j int) string { return p.Choices[j].ID })...)
		case TypeMatch:
			out = append(out, uniqueIDs(path+".pairs", len(p.Pairs), func(j int) string { return p.Pairs[j].SourceID })...)
		case TypeWordPuzzle:
			out = append(out, uniqueIDs(path+".blanks", len(p.Blanks), func(j int) string { return p.Blanks[j].ID })...)
		}
	}
	return out
}

func uniqueIDs(path string, n int, id func(int) string) ValidationErrors {
	var out ValidationErrors
	seen := make(map[string]bool, n)
	for j := 0; j < n; j++ {
		v := id(j)
		if seen[v] {
			out = append(out, ValidationError{
				Path:    fmt.Sprintf("%s.%d", path, j),
				Message: fmt.Sprintf("duplicate id %q", v),
			})
		}
		seen[v] = true
	}
	return out
}
