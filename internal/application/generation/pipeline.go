// Package generation turns a listing submission into a stored, generated site.
package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"listing-site-generator/internal/application/listings"
	"listing-site-generator/internal/application/llm"
	"listing-site-generator/internal/application/prompts"
	"listing-site-generator/internal/application/uploads"
	"listing-site-generator/internal/domain"
	"listing-site-generator/internal/pkg/htmldoc"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type State string

const (
	StateValidating      State = "validating"
	StateUploadingAssets State = "uploading_assets"
	StatePrompting       State = "prompting"
	StateStreaming       State = "streaming"
	StateExtracting      State = "extracting"
	StatePersisting      State = "persisting"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// ListingCreator persists a finished listing atomically.
type ListingCreator interface {
	Create(ctx context.Context, in listings.CreateListingInput) (*domain.Listing, error)
}

// Submission is a create request after multipart parsing.
type Submission struct {
	UserID      string
	Name        string
	Description string
	Area        string
	City        string
	Images      []File
	Logo        *File
}

// Generation is one run of the pipeline. Prepare produces it; Run finishes it.
type Generation struct {
	ID      string
	State   State
	Started time.Time

	UserID      string
	Name        string
	Description string
	Area        string
	City        string
	Images      []listings.ImageInput
	ImageURLs   []string
	LogoURL     string
	Prompt      string
}

func (g *Generation) transition(s State) {
	log.Debug().Str("generation_id", g.ID).Str("from", string(g.State)).Str("state", string(s)).Msg("generation: state")
	g.State = s
}

// Pipeline wires the asset store, prompt compiler, model and repository.
type Pipeline struct {
	Assets     uploads.Store
	Model      llm.Model
	Listings   ListingCreator
	Prompts    *prompts.Compiler
	TemplateID string
	MapAPIKey  string
	BaseURL    string // used to build preview links
}

// Prepare validates the submission, uploads every asset and renders the
// prompt. Nothing has been sent to the caller when it returns, so errors
// can still become a plain JSON response.
func (p *Pipeline) Prepare(ctx context.Context, sub Submission) (*Generation, error) {
	g := &Generation{ID: uuid.NewString(), State: StateValidating, Started: time.Now()}

	if err := validate(sub); err != nil {
		g.transition(StateFailed)
		log.Info().Str("generation_id", g.ID).Err(err).Msg("generation: rejected submission")
		return nil, err
	}
	g.UserID = sub.UserID
	g.Name = strings.TrimSpace(sub.Name)
	g.Description = strings.TrimSpace(sub.Description)
	g.Area = strings.TrimSpace(sub.Area)
	g.City = strings.TrimSpace(sub.City)

	g.transition(StateUploadingAssets)
	if err := p.upload(ctx, g, sub); err != nil {
		g.transition(StateFailed)
		log.Error().Str("generation_id", g.ID).Err(err).Msg("generation: asset upload failed")
		return nil, err
	}

	g.transition(StatePrompting)
	prompt, err := p.Prompts.Render(p.templateID(), prompts.Context{
		Name:        g.Name,
		Description: g.Description,
		Area:        g.Area,
		City:        g.City,
		Images:      g.ImageURLs,
		Logo:        g.LogoURL,
		MapAPIKey:   p.MapAPIKey,
	})
	if err != nil {
		g.transition(StateFailed)
		log.Error().Str("generation_id", g.ID).Err(err).Msg("generation: prompt render failed")
		return nil, fmt.Errorf("prompt: %w", err)
	}
	g.Prompt = prompt
	return g, nil
}

// Run streams the model output to sink token by token, then extracts,
// persists and reports the listing. Any failure is reported to sink as a
// single ErrorEvent, after which nothing else is sent.
func (p *Pipeline) Run(ctx context.Context, g *Generation, sink Sink) (*domain.Listing, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.transition(StateStreaming)
	chunks, err := p.Model.Stream(ctx, g.Prompt)
	if err != nil {
		return nil, p.fail(g, sink, fmt.Errorf("model: %w", err))
	}

	var out strings.Builder
	tokens := 0
	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, p.fail(g, sink, fmt.Errorf("model: %w", chunk.Err))
		}
		out.WriteString(chunk.Token)
		tokens++
		if err := sink.Send(TokenEvent{Token: chunk.Token}); err != nil {
			cancel()
			g.transition(StateFailed)
			log.Warn().Str("generation_id", g.ID).Err(err).Int("tokens", tokens).Msg("generation: client disconnected")
			return nil, fmt.Errorf("%w: %v", ErrClientGone, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, p.fail(g, sink, fmt.Errorf("%w: %v", ErrStreamClosed, err))
	}

	g.transition(StateExtracting)
	doc, err := htmldoc.Extract(out.String())
	if err != nil {
		return nil, p.fail(g, sink, fmt.Errorf("%w: %v", ErrNoDocument, err))
	}

	g.transition(StatePersisting)
	listing, err := p.Listings.Create(ctx, listings.CreateListingInput{
		Name:        g.Name,
		Description: g.Description,
		Area:        g.Area,
		City:        g.City,
		Logo:        g.LogoURL,
		UserID:      g.UserID,
		HTML:        doc,
		Images:      g.Images,
		EventData: map[string]interface{}{
			"generation_id": g.ID,
			"model":         p.Model.Name(),
			"template":      p.templateID(),
			"tokens":        tokens,
		},
	})
	if err != nil {
		return nil, p.fail(g, sink, fmt.Errorf("persist: %w", err))
	}

	id := listing.ID.String()
	if err := sink.Send(CompletedEvent{ID: id, Preview: p.PreviewURL(id)}); err != nil {
		log.Warn().Str("generation_id", g.ID).Str("listing_id", id).Err(err).Msg("generation: completion event not delivered")
	}
	g.transition(StateCompleted)
	log.Info().
		Str("generation_id", g.ID).
		Str("listing_id", id).
		Int("tokens", tokens).
		Int64("ms", time.Since(g.Started).Milliseconds()).
		Msg("generation: completed")
	return listing, nil
}

// PreviewURL is the public link for a listing's generated page.
func (p *Pipeline) PreviewURL(id string) string {
	return fmt.Sprintf("%s/listing/preview/%s", strings.TrimRight(p.BaseURL, "/"), id)
}

func (p *Pipeline) templateID() string {
	if p.TemplateID == "" {
		return prompts.ListingSiteV1
	}
	return p.TemplateID
}

func (p *Pipeline) fail(g *Generation, sink Sink, err error) error {
	g.transition(StateFailed)
	log.Error().Str("generation_id", g.ID).Err(err).Msg("generation: failed")
	if sendErr := sink.Send(ErrorEvent{Error: PublicMessage(err)}); sendErr != nil {
		log.Warn().Str("generation_id", g.ID).Err(sendErr).Msg("generation: error event not delivered")
	}
	return err
}

// upload stores the images concurrently alongside the logo. The first
// failure cancels the remaining uploads; already stored objects are left in place.
func (p *Pipeline) upload(ctx context.Context, g *Generation, sub Submission) error {
	eg, egctx := errgroup.WithContext(ctx)

	g.Images = make([]listings.ImageInput, len(sub.Images))
	g.ImageURLs = make([]string, len(sub.Images))
	for i, f := range sub.Images {
		i, f := i, f
		eg.Go(func() error {
			key := storageKey(f)
			url, err := p.Assets.Put(egctx, key, f.Data, f.ContentType)
			if err != nil {
				return fmt.Errorf("upload image %s: %w", key, err)
			}
			img := listings.ImageInput{Key: key}
			if w, h, ok := dimensions(f.Data); ok {
				img.Width, img.Height = &w, &h
			}
			g.Images[i] = img
			g.ImageURLs[i] = url
			return nil
		})
	}

	logo := *sub.Logo
	eg.Go(func() error {
		key := storageKey(logo)
		url, err := p.Assets.Put(egctx, key, logo.Data, logo.ContentType)
		if err != nil {
			return fmt.Errorf("upload logo %s: %w", key, err)
		}
		g.LogoURL = url
		return nil
	})

	return eg.Wait()
}

func storageKey(f File) string {
	if f.Key != "" {
		return f.Key
	}
	return NewFilename(f.Filename)
}

func validate(sub Submission) error {
	if len(sub.Images) == 0 {
		return ErrNoImages
	}
	if sub.Logo == nil || len(sub.Logo.Data) == 0 {
		return ErrNoLogo
	}
	for _, v := range []string{sub.Name, sub.Description, sub.Area, sub.City} {
		if strings.TrimSpace(v) == "" {
			return ErrInvalidFields
		}
	}
	for _, f := range append([]File{*sub.Logo}, sub.Images...) {
		if !Accepted(f.ContentType) {
			return fmt.Errorf("%w: %s", ErrUnsupportedFile, f.ContentType)
		}
		if len(f.Data) == 0 {
			return fmt.Errorf("%w: empty file %s", ErrUnsupportedFile, f.Filename)
		}
	}
	if sub.UserID == "" {
		return ErrMissingOwner
	}
	return nil
}

var _ ListingCreator = (*listings.Service)(nil)
