package listings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"listing-site-generator/internal/application/generation"
	eventsvc "listing-site-generator/internal/application/listingevents"
	listsvc "listing-site-generator/internal/application/listings"
	"listing-site-generator/internal/application/llm"
	"listing-site-generator/internal/application/prompts"
	"listing-site-generator/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (m *memStore) DeleteAll(ctx context.Context) (int, error) { return 0, nil }

type scriptedModel struct {
	tokens []string
	err    error
}

func (s *scriptedModel) Name() string { return "scripted" }

func (s *scriptedModel) Stream(ctx context.Context, prompt string) (<-chan llm.Chunk, error) {
	out := make(chan llm.Chunk, len(s.tokens)+1)
	for _, t := range s.tokens {
		out <- llm.Chunk{Token: t}
	}
	if s.err != nil {
		out <- llm.Chunk{Err: s.err}
	}
	close(out)
	return out, nil
}

const testUser = "user_a"

func setupListingsTest(t *testing.T, model *scriptedModel) (*fiber.App, *memStore, *gorm.DB) {
	return setupListingsApp(t, model, nil)
}

func setupListingsApp(t *testing.T, model llm.Model, base context.Context) (*fiber.App, *memStore, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Listing{}, &domain.ListingImage{}, &domain.ListingEvent{}))

	store := &memStore{objects: map[string][]byte{}}
	listings := &listsvc.Service{DB: db, PublicURL: "https://cdn.example.com"}
	h := &Handlers{
		Pipeline: &generation.Pipeline{
			Assets:    store,
			Model:     model,
			Listings:  listings,
			Prompts:   prompts.NewCompiler(),
			MapAPIKey: "map-key",
			BaseURL:   "http://localhost:3000",
		},
		Listings:    listings,
		Events:      &eventsvc.Service{DB: db},
		BaseContext: base,
	}

	app := fiber.New()
	authed := func(c *fiber.Ctx) error {
		if u := c.Get("X-Test-User"); u != "" {
			c.Locals("user", u)
		}
		return c.Next()
	}
	app.Get("/listing/preview/:id", h.Preview)
	app.Get("/listing/:id/events", authed, h.GetListingEvents)
	app.Get("/listing/:id", authed, h.GetListing)
	app.Get("/listing/", authed, h.GetAllListings)
	app.Post("/listing/create", authed, h.CreateListing)
	return app, store, db
}

type part struct {
	field, filename, contentType string
	data                         []byte
}

func multipartBody(t *testing.T, fields map[string]string, files []part) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		hdr.Set("Content-Type", f.contentType)
		pw, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = pw.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

var oakviewFields = map[string]string{"name": "Oakview", "description": "Cozy 2BR", "area": "1200", "city": "Springfield"}

var oakviewFiles = []part{
	{"image", "front.jpg", "image/jpeg", []byte("jpeg-1")},
	{"image", "yard.jpg", "image/jpeg", []byte("jpeg-2")},
	{"logo", "logo.png", "image/png", []byte("png-logo")},
}

func createRequest(t *testing.T, fields map[string]string, files []part) *http.Request {
	body, ct := multipartBody(t, fields, files)
	req := httptest.NewRequest("POST", "/listing/create", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-Test-User", testUser)
	return req
}

func readEvents(t *testing.T, body io.Reader) []map[string]interface{} {
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	var events []map[string]interface{}
	for _, frame := range strings.Split(string(raw), "\n\n") {
		if frame == "" {
			continue
		}
		require.True(t, strings.HasPrefix(frame, "data: "), "frame %q", frame)
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func errorMessage(t *testing.T, resp *http.Response) string {
	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out["error"]
}

func TestCreateListing_StreamsAndPersists(t *testing.T) {
	tokens := []string{"<!DOCTYPE html>", "<html><body>", "Oakview", "</body></html>"}
	app, store, db := setupListingsTest(t, &scriptedModel{tokens: tokens})

	resp, err := app.Test(createRequest(t, oakviewFields, oakviewFiles), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp.Body)
	require.Len(t, events, len(tokens)+1)
	var got []string
	for _, ev := range events[:len(tokens)] {
		got = append(got, ev["token"].(string))
	}
	assert.Equal(t, tokens, got)

	done := events[len(events)-1]
	id := done["id"].(string)
	assert.Equal(t, "http://localhost:3000/listing/preview/"+id, done["preview"])
	assert.Len(t, store.objects, 3)

	var listing domain.Listing
	require.NoError(t, db.Preload("Images").First(&listing, "id = ?", id).Error)
	assert.Equal(t, testUser, listing.UserID)
	assert.Len(t, listing.Images, 2)
	assert.Equal(t, strings.Join(tokens, ""), *listing.HTML)
	assert.True(t, strings.HasPrefix(listing.Logo, "https://cdn.example.com/"))

	// preview serves the stored document verbatim
	resp, err = app.Test(httptest.NewRequest("GET", "/listing/preview/"+id, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, strings.Join(tokens, ""), string(body))

	var events2 []domain.ListingEvent
	require.NoError(t, db.Where("listing_id = ?", id).Find(&events2).Error)
	require.Len(t, events2, 1)
	assert.Equal(t, domain.ListingEventGenerated, events2[0].EventType)
}

func TestCreateListing_MissingLogo(t *testing.T) {
	app, store, _ := setupListingsTest(t, &scriptedModel{})

	resp, err := app.Test(createRequest(t, oakviewFields, oakviewFiles[:2]), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid File or no logo", errorMessage(t, resp))
	assert.Empty(t, store.objects)
}

func TestCreateListing_GifOnlyImages(t *testing.T) {
	app, store, db := setupListingsTest(t, &scriptedModel{})
	files := []part{
		{"image", "anim.gif", "image/gif", []byte("gif")},
		{"logo", "logo.png", "image/png", []byte("png-logo")},
	}

	resp, err := app.Test(createRequest(t, oakviewFields, files), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid File or no images", errorMessage(t, resp))
	assert.Empty(t, store.objects)

	var count int64
	db.Model(&domain.Listing{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateListing_DropsUnsupportedImages(t *testing.T) {
	tokens := []string{"<!DOCTYPE html><html>", "Oakview</html>"}
	app, store, db := setupListingsTest(t, &scriptedModel{tokens: tokens})
	files := []part{
		{"image[]", "anim.gif", "image/gif", []byte("gif")},
		{"image[]", "front.jpg", "image/jpeg", []byte("jpeg-1")},
		{"logo", "logo.png", "image/png", []byte("png-logo")},
	}

	resp, err := app.Test(createRequest(t, oakviewFields, files), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	events := readEvents(t, resp.Body)
	id := events[len(events)-1]["id"].(string)

	assert.Len(t, store.objects, 2)
	for key := range store.objects {
		assert.False(t, strings.HasSuffix(key, ".gif"), key)
	}

	var images []domain.ListingImage
	require.NoError(t, db.Where("listing_id = ?", id).Find(&images).Error)
	require.Len(t, images, 1)
	assert.True(t, strings.HasSuffix(images[0].Key, ".jpg"))
	assert.Equal(t, []byte("jpeg-1"), store.objects[images[0].Key])
}

func TestCreateListing_LiteralNullFieldValues(t *testing.T) {
	tokens := []string{"<!DOCTYPE html><html>", "null</html>"}
	app, _, db := setupListingsTest(t, &scriptedModel{tokens: tokens})
	fields := map[string]string{"name": "null", "description": "[]", "area": "1200", "city": "Springfield"}

	resp, err := app.Test(createRequest(t, fields, oakviewFiles), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	events := readEvents(t, resp.Body)
	done := events[len(events)-1]
	require.Contains(t, done, "id")

	var listing domain.Listing
	require.NoError(t, db.First(&listing, "id = ?", done["id"]).Error)
	assert.Equal(t, "null", listing.Name)
	assert.Equal(t, "[]", listing.Description)
}

// blockingModel emits one token and then holds the stream open until its
// context is cancelled.
type blockingModel struct {
	started chan struct{}
}

func (b *blockingModel) Name() string { return "blocking" }

func (b *blockingModel) Stream(ctx context.Context, prompt string) (<-chan llm.Chunk, error) {
	out := make(chan llm.Chunk, 2)
	out <- llm.Chunk{Token: "<!DOCTYPE html>"}
	go func() {
		defer close(out)
		close(b.started)
		<-ctx.Done()
		out <- llm.Chunk{Err: ctx.Err()}
	}()
	return out, nil
}

func TestCreateListing_ShutdownCancelsStream(t *testing.T) {
	base, cancel := context.WithCancel(context.Background())
	defer cancel()
	model := &blockingModel{started: make(chan struct{})}
	app, _, db := setupListingsApp(t, model, base)

	go func() {
		<-model.started
		cancel()
	}()

	resp, err := app.Test(createRequest(t, oakviewFields, oakviewFiles), -1)
	require.NoError(t, err)
	events := readEvents(t, resp.Body)
	require.Len(t, events, 2)
	assert.Equal(t, "<!DOCTYPE html>", events[0]["token"])
	assert.Equal(t, "Something went wrong", events[1]["error"])

	var count int64
	db.Model(&domain.Listing{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateListing_MissingField(t *testing.T) {
	app, _, _ := setupListingsTest(t, &scriptedModel{})
	fields := map[string]string{"name": "Oakview", "description": "Cozy", "area": "1200"}

	resp, err := app.Test(createRequest(t, fields, oakviewFiles), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid Fields", errorMessage(t, resp))
}

func TestCreateListing_UploadFailure(t *testing.T) {
	app, store, _ := setupListingsTest(t, &scriptedModel{})
	store.err = errors.New("bucket gone")

	resp, err := app.Test(createRequest(t, oakviewFields, oakviewFiles), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Something went wrong", errorMessage(t, resp))
}

func TestCreateListing_NoDocumentSendsErrorEvent(t *testing.T) {
	app, _, db := setupListingsTest(t, &scriptedModel{tokens: []string{"I cannot ", "help with that."}})

	resp, err := app.Test(createRequest(t, oakviewFields, oakviewFiles), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	events := readEvents(t, resp.Body)
	require.Len(t, events, 3)
	assert.Contains(t, events[2], "error")
	assert.NotContains(t, events[2], "id")

	var count int64
	db.Model(&domain.Listing{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCreateListing_ModelErrorMidStream(t *testing.T) {
	app, _, _ := setupListingsTest(t, &scriptedModel{tokens: []string{"<!DOCTYPE html>"}, err: errors.New("rate limited")})

	resp, err := app.Test(createRequest(t, oakviewFields, oakviewFiles), -1)
	require.NoError(t, err)
	events := readEvents(t, resp.Body)
	require.Len(t, events, 2)
	assert.Equal(t, "<!DOCTYPE html>", events[0]["token"])
	assert.Equal(t, "Something went wrong", events[1]["error"])
}

func TestCreateListing_NotMultipart(t *testing.T) {
	app, _, _ := setupListingsTest(t, &scriptedModel{})
	req := httptest.NewRequest("POST", "/listing/create", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-User", testUser)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func seedListing(t *testing.T, db *gorm.DB, userID, html string) *domain.Listing {
	svc := &listsvc.Service{DB: db}
	l, err := svc.Create(context.Background(), listsvc.CreateListingInput{
		Name: "Oakview", Description: "Cozy 2BR", Area: "1200", City: "Springfield",
		Logo: "https://cdn.example.com/logo.png", UserID: userID, HTML: html,
		Images: []listsvc.ImageInput{{Key: generation.NewFilename("a.jpg")}, {Key: generation.NewFilename("b.jpg")}},
	})
	require.NoError(t, err)
	return l
}

func TestGetListing_OwnerOnly(t *testing.T) {
	app, _, db := setupListingsTest(t, &scriptedModel{})
	l := seedListing(t, db, testUser, "<!DOCTYPE html><html></html>")

	req := httptest.NewRequest("GET", "/listing/"+l.ID.String(), nil)
	req.Header.Set("X-Test-User", testUser)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var view map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "Oakview", view["name"])
	assert.Equal(t, testUser, view["userId"])
	images := view["images"].([]interface{})
	require.Len(t, images, 2)
	for _, img := range images {
		assert.True(t, strings.HasPrefix(img.(string), "https://cdn.example.com/"))
		assert.True(t, strings.HasSuffix(img.(string), ".jpg"))
	}

	req = httptest.NewRequest("GET", "/listing/"+l.ID.String(), nil)
	req.Header.Set("X-Test-User", "user_b")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Listing not found", errorMessage(t, resp))

	req = httptest.NewRequest("GET", "/listing/not-a-uuid", nil)
	req.Header.Set("X-Test-User", testUser)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetAllListings(t *testing.T) {
	app, _, db := setupListingsTest(t, &scriptedModel{})
	seedListing(t, db, testUser, "<!DOCTYPE html><html>1</html>")
	seedListing(t, db, testUser, "<!DOCTYPE html><html>2</html>")
	seedListing(t, db, "user_b", "<!DOCTYPE html><html>3</html>")

	req := httptest.NewRequest("GET", "/listing/", nil)
	req.Header.Set("X-Test-User", testUser)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var views []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	assert.Len(t, views, 2)

	req = httptest.NewRequest("GET", "/listing/", nil)
	req.Header.Set("X-Test-User", "user_c")
	resp, err = app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[]`, string(body))
}

func TestPreview_NotFound(t *testing.T) {
	app, _, _ := setupListingsTest(t, &scriptedModel{})

	resp, err := app.Test(httptest.NewRequest("GET", "/listing/preview/0b0f4a9e-3a53-4f7e-9d36-0c1d2b9a6f11", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetListingEvents(t *testing.T) {
	app, _, db := setupListingsTest(t, &scriptedModel{})
	l := seedListing(t, db, testUser, "<!DOCTYPE html><html></html>")

	req := httptest.NewRequest("GET", "/listing/"+l.ID.String()+"/events", nil)
	req.Header.Set("X-Test-User", testUser)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var events []map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, "GENERATED", events[0]["event_type"])

	req = httptest.NewRequest("GET", "/listing/"+l.ID.String()+"/events", nil)
	req.Header.Set("X-Test-User", "user_b")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
