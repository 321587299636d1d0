// Package enhance runs the optional per-entry transforms (text rewrite,
// image attachment) ahead of publishing. Every stage is failure-isolated:
// a broken collaborator degrades the post, it never blocks it.
package enhance

import (
	"context"
	"log/slog"

	"newsbot/internal/config"
	"newsbot/internal/gpt"
	"newsbot/internal/model"
)

// Rewriter rewrites entry text. Implemented by *gpt.Client.
type Rewriter interface {
	Available() bool
	Rewrite(ctx context.Context, title, summary string) (gpt.Result, error)
}

// TemplateRenderer renders a title card. Implemented by *imaging.Renderer.
type TemplateRenderer interface {
	RenderTemplate(ctx context.Context, title string) ([]byte, error)
}

// OriginalFetcher downloads an entry's own image. Implemented by
// *imaging.OriginalFetcher.
type OriginalFetcher interface {
	FetchOriginal(ctx context.Context, url string) ([]byte, error)
}

// Observer counts degradations for operator visibility.
type Observer interface {
	IncAIFallback()
	IncImageFallback()
}

// post is the mutable working copy a stage operates on.
type post struct {
	title   string
	summary string
	result  model.EnhancementResult
}

// stage is one optional transform. Stages run in order and must be
// side-effect-free on the entry so a retried publish can recompute the
// whole result.
type stage func(ctx context.Context, entry model.FeedEntry, p *post)

// Pipeline sequences the configured stages over one entry.
type Pipeline struct {
	stages []stage
	log    *slog.Logger
}

// Options selects which stages run and how images degrade.
type Options struct {
	RewriteEnabled bool
	ImagesEnabled  bool
	ImageSource    config.ImageSource
	ImageFallback  bool
}

// NewPipeline builds the stage list from the options. Collaborators for
// disabled stages may be nil.
func NewPipeline(opts Options, rewriter Rewriter, renderer TemplateRenderer, original OriginalFetcher, obs Observer, log *slog.Logger) *Pipeline {
	p := &Pipeline{log: log}

	if opts.RewriteEnabled && rewriter != nil {
		p.stages = append(p.stages, rewriteStage(rewriter, obs, log))
	}
	if opts.ImagesEnabled && opts.ImageSource != config.ImageSourceNone {
		p.stages = append(p.stages, imageStage(opts, renderer, original, obs, log))
	}
	return p
}

// Run computes the enhancement result for one entry. It never fails:
// the worst outcome is the original feed text with no image.
func (p *Pipeline) Run(ctx context.Context, entry model.FeedEntry) model.EnhancementResult {
	working := &post{
		title:   entry.Title,
		summary: entry.Summary,
		result:  model.EnhancementResult{ImageUsed: model.ImageNone},
	}
	for _, s := range p.stages {
		s(ctx, entry, working)
	}
	working.result.Text = ComposeMessage(working.title, working.summary, entry.Link)
	return working.result
}

// rewriteStage swaps in AI-rewritten text, keeping the original on any
// failure. Failures are logged, counted and otherwise swallowed.
func rewriteStage(rewriter Rewriter, obs Observer, log *slog.Logger) stage {
	return func(ctx context.Context, entry model.FeedEntry, p *post) {
		if !rewriter.Available() {
			p.result.UsedFallback = true
			return
		}
		res, err := rewriter.Rewrite(ctx, p.title, p.summary)
		if err != nil {
			log.Warn("text rewrite failed, keeping original text",
				"entry_id", entry.ID, "error", err)
			p.result.UsedFallback = true
			if obs != nil {
				obs.IncAIFallback()
			}
			return
		}
		p.title = res.Title
		p.summary = res.Summary
		p.result.Rewritten = true
	}
}

// imageStage attaches an image per the configured source. With source
// "original" and fallback enabled, a missing or broken entry image
// degrades to a template render; with fallback disabled the post goes
// out text-only.
func imageStage(opts Options, renderer TemplateRenderer, original OriginalFetcher, obs Observer, log *slog.Logger) stage {
	return func(ctx context.Context, entry model.FeedEntry, p *post) {
		if opts.ImageSource == config.ImageSourceOriginal && original != nil {
			if entry.ImageHint != "" {
				img, err := original.FetchOriginal(ctx, entry.ImageHint)
				if err == nil {
					p.result.ImageBytes = img
					p.result.ImageUsed = model.ImageOriginal
					return
				}
				log.Warn("original image unavailable",
					"entry_id", entry.ID, "url", entry.ImageHint, "error", err)
			}
			if !opts.ImageFallback {
				if obs != nil {
					obs.IncImageFallback()
				}
				return
			}
		}

		if renderer == nil {
			return
		}
		img, err := renderer.RenderTemplate(ctx, p.title)
		if err != nil {
			log.Warn("template render failed, publishing text-only",
				"entry_id", entry.ID, "error", err)
			if obs != nil {
				obs.IncImageFallback()
			}
			return
		}
		if opts.ImageSource == config.ImageSourceOriginal {
			// Reached the template through the fallback path.
			if obs != nil {
				obs.IncImageFallback()
			}
		}
		p.result.ImageBytes = img
		p.result.ImageUsed = model.ImageTemplate
	}
}
