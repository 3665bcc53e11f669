package validate

import (
	"context"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/corpuscheck/pkg/corpus"
	"github.com/jingkaihe/corpuscheck/pkg/logger"
	"github.com/jingkaihe/corpuscheck/pkg/telemetry"
)

// Validator runs the enabled rules against a corpus snapshot
type Validator struct {
	ignore     []glob.Glob
	cycles     bool
	duplicates bool
}

// Option is a function that configures a Validator
type Option func(*Validator) error

// WithLinkIgnore skips link targets matching any of the patterns
func WithLinkIgnore(patterns ...string) Option {
	return func(v *Validator) error {
		globs, err := CompileIgnore(patterns)
		if err != nil {
			return err
		}
		v.ignore = globs
		return nil
	}
}

// WithCycleCheck enables or disables reference cycle detection
func WithCycleCheck(enabled bool) Option {
	return func(v *Validator) error {
		v.cycles = enabled
		return nil
	}
}

// WithDuplicateNameCheck enables or disables duplicate name detection
func WithDuplicateNameCheck(enabled bool) Option {
	return func(v *Validator) error {
		v.duplicates = enabled
		return nil
	}
}

// NewValidator creates a validator. Frontmatter and link rules always run;
// cycle and duplicate name detection are opt-in.
func NewValidator(opts ...Option) (*Validator, error) {
	v := &Validator{}
	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, errors.Wrap(err, "failed to apply validator option")
		}
	}
	return v, nil
}

type rule struct {
	name string
	run  func([]*corpus.DocumentRecord) []Issue
}

func (v *Validator) rules() []rule {
	rules := []rule{
		{name: "frontmatter", run: Frontmatter},
		{name: "links", run: func(records []*corpus.DocumentRecord) []Issue {
			return Links(records, v.ignore...)
		}},
	}
	if v.cycles {
		rules = append(rules, rule{name: "cycles", run: Cycles})
	}
	if v.duplicates {
		rules = append(rules, rule{name: "duplicate_names", run: DuplicateNames})
	}
	return rules
}

// Run applies every enabled rule to the snapshot and returns the combined
// issues sorted by path and kind
func (v *Validator) Run(ctx context.Context, c *corpus.Corpus) []Issue {
	var issues []Issue

	for _, r := range v.rules() {
		_ = telemetry.WithSpan(ctx, "validate."+r.name, func(ctx context.Context) error {
			found := r.run(c.Records)
			telemetry.SetAttributes(ctx, attribute.Int("validate.issues", len(found)))
			logger.G(ctx).WithField("rule", r.name).WithField("issues", len(found)).Debug("Ran validation rule")
			issues = append(issues, found...)
			return nil
		})
	}

	SortIssues(issues)

	logger.G(ctx).WithField("issues", len(issues)).Info("Validated corpus")
	return issues
}
