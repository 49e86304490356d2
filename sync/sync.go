// Package sync implements the per-language catalog synchronization
// pipeline: detect changed source keys, translate the ones the target is
// missing, and persist the merged target catalog.
//
// The pipeline is deliberately sequential: one target language at a time,
// one key at a time. Each target language owns its output file, so no
// locking is involved. The only resilience contract is that a single
// key's translation failure never prevents the remaining keys or
// languages from being processed.
package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/catsync/catsync/catalog"
	"github.com/catsync/catsync/diff"
	"github.com/catsync/catsync/merge"
	"github.com/catsync/catsync/translate"
)

// Translator obtains a translation for one source string. Implementations
// wrap a translate.Provider; tests substitute stubs.
type Translator func(ctx context.Context, text, langName string) translate.Result

// SnapshotFunc returns the source catalog as of its previous committed
// revision. An error means "no usable snapshot" and degrades to treating
// every source key as new; it never aborts a run.
type SnapshotFunc func(path string) (*catalog.File, error)

// Options configures a single-language run.
type Options struct {
	// SourcePath is the source-language catalog file.
	SourcePath string
	// TargetPath is the target-language catalog file. Created as an
	// empty catalog when missing.
	TargetPath string
	// Lang is the target language code (e.g. "de").
	Lang string
	// LangName is the display name handed to the provider (e.g. "German").
	LangName string
	// SourceLang is the source catalog's root code. Default "en".
	SourceLang string
	// Snapshot retrieves the previous source revision. nil means no
	// history: everything counts as new.
	Snapshot SnapshotFunc
	// Translator performs the per-key provider call.
	Translator Translator
	// Full ignores the change set and considers every source key,
	// still subject to the non-overwrite rule.
	Full bool
	// OnLog emits log messages during the run.
	OnLog func(format string, args ...any)
	// OnError emits diagnostics for non-fatal failures.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) sourceLang() string {
	if o.SourceLang != "" {
		return o.SourceLang
	}
	return "en"
}

// Report summarizes one language run.
type Report struct {
	// Translated counts keys written with a fresh provider translation.
	Translated int
	// Skipped counts keys left untouched because the target already had
	// a non-empty value.
	Skipped int
	// Failed counts keys written with the source text after a provider
	// failure.
	Failed int
}

// Candidates computes the translation workload for one run: flat source
// paths (language prefix stripped) mapped to their current source text.
// Incremental runs restrict to the change set against the previous
// snapshot; Full runs consider every source key.
func Candidates(src *catalog.File, opts *Options) catalog.Flat {
	currentFlat := src.Flatten()

	if opts.Full {
		return catalog.StripPrefix(currentFlat, src.Lang)
	}

	previousFlat := make(catalog.Flat)
	if opts.Snapshot != nil {
		prev, err := opts.Snapshot(opts.SourcePath)
		if err != nil {
			opts.logError("No previous snapshot for %s, treating all keys as new: %v", opts.SourcePath, err)
		} else {
			previousFlat = prev.Flatten()
		}
	}

	changed := diff.Detect(currentFlat, previousFlat)

	out := make(catalog.Flat)
	prefix := src.Lang + catalog.Separator
	for path := range changed {
		if strings.HasPrefix(path, prefix) {
			out[path[len(prefix):]] = currentFlat[path]
		}
	}
	return out
}

// Run synchronizes one target language. It reads the source catalog,
// computes the workload, translates eligible keys, merges the results and
// writes the target file in canonical form. When ctx is cancelled
// mid-run, the progress made so far is persisted before returning
// ctx.Err().
func Run(ctx context.Context, opts Options) (*Report, error) {
	src, err := catalog.ParseFile(opts.SourcePath)
	if err != nil {
		return nil, err
	}
	if src.Lang != opts.sourceLang() {
		return nil, fmt.Errorf("%s is rooted at %q, expected source language %q", opts.SourcePath, src.Lang, opts.sourceLang())
	}

	candidates := Candidates(src, &opts)

	target, err := loadTarget(opts.TargetPath, opts.Lang)
	if err != nil {
		return nil, err
	}
	targetFlat := target.Root.Flatten()

	report := &Report{}
	updates := make(catalog.Flat)

	var interrupted error
	for _, k := range sortedKeys(candidates) {
		if err := ctx.Err(); err != nil {
			interrupted = err
			break
		}

		// Non-destructive merge invariant: an existing non-empty
		// translation is never overwritten, even when the source text
		// changed. Re-translation is opt-in by clearing the value.
		if targetFlat[k] != "" {
			opts.log("Skipping %q: translation already exists", k)
			report.Skipped++
			continue
		}

		v := candidates[k]
		res := opts.Translator(ctx, v, opts.LangName)
		if !res.Ok() {
			if ctx.Err() != nil {
				interrupted = ctx.Err()
				break
			}
			opts.logError("Translating %q failed, keeping source text: %v", k, res.Err)
			updates[k] = v
			report.Failed++
			continue
		}

		opts.log("Translated %q -> %q", k, res.Text)
		updates[k] = res.Text
		report.Translated++
	}

	merge.Apply(targetFlat, updates)
	target.Root = catalog.Unflatten(targetFlat)

	if err := target.WriteFile(opts.TargetPath); err != nil {
		return report, err
	}
	if interrupted != nil {
		return report, interrupted
	}
	return report, nil
}

// loadTarget reads the target catalog, creating an empty one when the
// file does not exist. Any other read or parse failure is fatal for this
// language only.
func loadTarget(path, lang string) (*catalog.File, error) {
	f, err := catalog.ParseFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return catalog.NewFile(lang), nil
		}
		return nil, err
	}
	if f.Lang != lang {
		return nil, fmt.Errorf("%s is rooted at %q, expected %q", path, f.Lang, lang)
	}
	return f, nil
}

func sortedKeys(flat catalog.Flat) []string {
	set := make(diff.Set, len(flat))
	for k := range flat {
		set[k] = true
	}
	return set.Paths()
}

// Target identifies one language in a multi-language run.
type Target struct {
	Lang     string
	LangName string
	Path     string
}

// RunAll processes targets sequentially. A language whose run fails is
// reported and does not stop the remaining languages; the aggregate error
// names the failed languages. Context cancellation stops the loop after
// persisting the in-flight language.
func RunAll(ctx context.Context, targets []Target, base Options) error {
	var failed []string
	for _, t := range targets {
		opts := base
		opts.Lang = t.Lang
		opts.LangName = t.LangName
		opts.TargetPath = t.Path

		report, err := Run(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			base.logError("Error syncing %s: %v", t.Lang, err)
			failed = append(failed, t.Lang)
			continue
		}
		base.log("%s: %d translated, %d skipped, %d fell back to source text",
			t.Lang, report.Translated, report.Skipped, report.Failed)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d language(s) failed: %s", len(failed), strings.Join(failed, ", "))
	}
	return nil
}
