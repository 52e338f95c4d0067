package listings

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"listing-site-generator/internal/application/generation"
	eventsvc "listing-site-generator/internal/application/listingevents"
	listsvc "listing-site-generator/internal/application/listings"
	"listing-site-generator/internal/middleware"
	"listing-site-generator/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

type Handlers struct {
	Pipeline *generation.Pipeline
	Listings *listsvc.Service
	Events   *eventsvc.Service

	// BaseContext is cancelled when the server shuts down, which stops any
	// generation still streaming. Nil means context.Background().
	BaseContext context.Context
}

// POST /listing/create: multipart form in, server-sent events out.
// Errors found before the first event are plain JSON responses; after that
// they arrive as a single error event.
func (h *Handlers) CreateListing(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	traceID := middleware.GetTraceID(c)

	form, err := c.MultipartForm()
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	sub, err := submission(form, userID)
	if err != nil {
		log.Error().Str("trace_id", traceID).Err(err).Msg("listings: reading upload failed")
		return response.Internal(c)
	}

	g, err := h.Pipeline.Prepare(c.UserContext(), sub)
	if err != nil {
		if generation.IsInputError(err) {
			return response.BadRequest(c, generation.PublicMessage(err))
		}
		log.Error().Str("trace_id", traceID).Err(err).Msg("listings: prepare failed")
		return response.Internal(c)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The writer runs after this handler returns, so it must not touch c.
	pipeline := h.Pipeline
	base := h.BaseContext
	if base == nil {
		base = context.Background()
	}
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(base)
		defer cancel()
		listing, err := pipeline.Run(ctx, g, &generation.SSEWriter{W: w})
		if err != nil {
			log.Warn().Str("trace_id", traceID).Str("generation_id", g.ID).Err(err).Msg("listings: generation did not complete")
			return
		}
		log.Info().Str("trace_id", traceID).Str("listing_id", listing.ID.String()).Msg("listings: generated")
	}))
	return nil
}

// GET /listing/:id, owner only.
func (h *Handlers) GetListing(c *fiber.Ctx) error {
	listing, err := h.Listings.FindByIDAndUser(c.UserContext(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, listsvc.ErrListingNotFound) {
			return response.NotFound(c, listsvc.ErrListingNotFound.Error())
		}
		log.Error().Str("trace_id", middleware.GetTraceID(c)).Err(err).Msg("listings: get failed")
		return response.Internal(c)
	}
	return response.JSON(c, listing)
}

// GET /listing/
func (h *Handlers) GetAllListings(c *fiber.Ctx) error {
	listings, err := h.Listings.FindAllByUser(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		log.Error().Str("trace_id", middleware.GetTraceID(c)).Err(err).Msg("listings: list failed")
		return response.Internal(c)
	}
	return response.JSON(c, listings)
}

// GET /listing/preview/:id is public and serves the stored document verbatim.
func (h *Handlers) Preview(c *fiber.Ctx) error {
	html, err := h.Listings.FindHTML(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, listsvc.ErrListingNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		log.Error().Str("trace_id", middleware.GetTraceID(c)).Err(err).Msg("listings: preview failed")
		return response.Internal(c)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(html)
}

// GET /listing/:id/events, owner only.
func (h *Handlers) GetListingEvents(c *fiber.Ctx) error {
	events, err := h.Events.ListForListing(c.UserContext(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, listsvc.ErrListingNotFound) {
			return response.NotFound(c, listsvc.ErrListingNotFound.Error())
		}
		log.Error().Str("trace_id", middleware.GetTraceID(c)).Err(err).Msg("listings: events failed")
		return response.Internal(c)
	}
	return response.JSON(c, events)
}

// submission maps the multipart form onto a pipeline submission. Files whose
// declared type is not accepted are dropped here, like an upload filter would.
func submission(form *multipart.Form, userID string) (generation.Submission, error) {
	sub := generation.Submission{
		UserID:      userID,
		Name:        formValue(form, "name"),
		Description: formValue(form, "description"),
		Area:        formValue(form, "area"),
		City:        formValue(form, "city"),
	}

	images, err := readFiles(append(form.File["image"], form.File["image[]"]...))
	if err != nil {
		return sub, err
	}
	sub.Images = generation.FilterAccepted(images)

	logos, err := readFiles(form.File["logo"])
	if err != nil {
		return sub, err
	}
	if logos = generation.FilterAccepted(logos); len(logos) > 0 {
		sub.Logo = &logos[0]
	}
	return sub, nil
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func readFiles(headers []*multipart.FileHeader) ([]generation.File, error) {
	files := make([]generation.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		files = append(files, generation.File{
			Filename:    fh.Filename,
			ContentType: strings.TrimSpace(fh.Header.Get(fiber.HeaderContentType)),
			Key:         generation.NewFilename(fh.Filename),
			Data:        data,
		})
	}
	return files, nil
}
