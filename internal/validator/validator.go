// Package validator performs static validation of workflow definitions.
//
// Validation is a pure function of a parsed [definition.Document] and the
// configured agent scopes. Content defects never produce Go errors: every
// defect becomes a [Finding] in the returned [Report], so many definitions can
// be checked in one batch. Only three conditions make a workflow unusable and
// are reported as errors: a syntax failure, a missing required field, and a
// true circular dependency between steps. Everything else is a warning, unless
// [Options.Strict] promotes warnings to errors.
//
// Checks run in a fixed order:
//  1. syntax
//  2. required fields
//  3. sequence integrity
//  4. agent resolution
//  5. artifact flow
//  6. cycle detection
//  7. conditional logic
//  8. handoff completeness
//  9. flow diagram lint
//
// Key types:
//   - [Options] configures strict mode, agent scopes and aggregate artifact names
//   - [Report] holds errors, warnings and suggestions
//   - [Finding] is a single coded result
package validator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/sync/errgroup"

	"bmadflow/internal/agents"
	"bmadflow/internal/definition"
)

// DefaultAggregateArtifacts are requires values that name a group of
// artifacts rather than one concrete file.
var DefaultAggregateArtifacts = []string{"*", "all", "any", "all_stories", "all_artifacts"}

// DefaultPlaceholderAgents are agent values that stand for "whichever agent
// is relevant" and are never resolved.
var DefaultPlaceholderAgents = []string{"various", "all", "any"}

// Options configures a validation run.
type Options struct {
	// Strict promotes every warning to an error.
	Strict bool

	// Squad is the primary resolution scope. Nil when no squad is targeted.
	Squad agents.Resolver

	// Core is the fallback resolution scope. Nil disables resolution when
	// Squad is also nil.
	Core agents.Resolver

	// AggregateArtifacts overrides [DefaultAggregateArtifacts] when non-nil.
	AggregateArtifacts []string

	// PlaceholderAgents overrides [DefaultPlaceholderAgents] when non-nil.
	PlaceholderAgents []string
}

func (o Options) isAggregate(name string) bool {
	list := o.AggregateArtifacts
	if list == nil {
		list = DefaultAggregateArtifacts
	}
	for _, a := range list {
		if name == a {
			return true
		}
	}
	return strings.HasPrefix(name, "all_") ||
		strings.HasPrefix(name, "any_") ||
		strings.Contains(name, "*")
}

func (o Options) isPlaceholder(name string) bool {
	list := o.PlaceholderAgents
	if list == nil {
		list = DefaultPlaceholderAgents
	}
	for _, p := range list {
		if strings.EqualFold(name, p) {
			return true
		}
	}
	return false
}

// Validate checks a parsed document and returns its report.
//
// A nil document is reported as a syntax error and halts further checks.
func Validate(doc *definition.Document, opts Options) *Report {
	path := ""
	if doc != nil {
		path = doc.Path
	}
	r := newReport(path)

	if doc == nil {
		r.addError(CodeSyntaxError, NoStep, "",
			"definition did not parse to an object",
			"Ensure the file contains a YAML mapping with a top-level 'workflow' key")
		return r.finish(opts.Strict)
	}

	if !checkRequiredFields(doc, r) {
		return r.finish(opts.Strict)
	}

	wf := doc.Workflow
	r.WorkflowID = wf.ID

	checkSequenceIntegrity(wf.Sequence, r)
	checkAgents(wf.Sequence, opts, r)
	checkArtifactFlow(wf.Sequence, opts, r)
	checkCycles(wf.Sequence, r)
	checkConditions(wf.Sequence, r)
	checkHandoffs(wf, r)
	checkDiagram(wf.FlowDiagram, r)

	return r.finish(opts.Strict)
}

// ValidateBytes parses and validates an in-memory definition.
func ValidateBytes(data []byte, opts Options) *Report {
	doc, err := definition.Parse(data)
	if err != nil {
		return syntaxReport("", err, opts)
	}
	return Validate(doc, opts)
}

// ValidateFile reads, parses and validates the definition at path.
//
// A file that cannot be read yields a single FILE_NOT_FOUND error; a file
// that cannot be parsed yields a single SYNTAX_ERROR.
func ValidateFile(path string, opts Options) *Report {
	doc, err := definition.ParseFile(path)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			r := newReport(path)
			r.addError(CodeFileNotFound, NoStep, "",
				fmt.Sprintf("cannot read workflow definition: %v", pathErr.Err),
				"Check the path and file permissions")
			return r.finish(opts.Strict)
		}
		return syntaxReport(path, err, opts)
	}
	return Validate(doc, opts)
}

func syntaxReport(path string, err error, opts Options) *Report {
	r := newReport(path)
	r.addError(CodeSyntaxError, NoStep, "", err.Error(),
		"Fix the YAML syntax; the file must contain a mapping with a top-level 'workflow' key")
	return r.finish(opts.Strict)
}

// ValidateMany validates the given files concurrently and returns reports in
// input order. At most concurrency files are validated at once; values below
// one mean one at a time.
//
// The only error returned is ctx's, when the context is cancelled before all
// files were checked.
func ValidateMany(ctx context.Context, paths []string, opts Options, concurrency int) ([]*Report, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	reports := make([]*Report, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reports[i] = ValidateFile(path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
