package web

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/foodmap/internal/db"
	"github.com/erazemk/foodmap/internal/foods"
	"github.com/erazemk/foodmap/internal/form"
	"github.com/erazemk/foodmap/internal/media"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

const testJWTSecret = "test-secret"

type testServer struct {
	*httptest.Server
	db     *sql.DB
	images *media.Dir
	loc    *model.Location
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	images, err := media.NewDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewDir: %v", err)
	}
	router, err := NewRouter(database, images, foods.Default(), testJWTSecret, time.UTC)
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	loc, err := store.CreateLocation(context.Background(), database, "Frist Campus Center", 40.3467, -74.6548)
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	return &testServer{Server: server, db: database, images: images, loc: loc}
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Jar: jar}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func (s *testServer) offerings(t *testing.T) []*model.Offering {
	t.Helper()
	all, err := store.ListOfferings(context.Background(), s.db)
	if err != nil {
		t.Fatalf("ListOfferings: %v", err)
	}
	return all
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{0, 200, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPublicPages(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		path     string
		status   int
		contains string
	}{
		{"/", http.StatusOK, `id="map"`},
		{"/submit", http.StatusOK, "Frist Campus Center"},
		{"/static/css/style.css", http.StatusOK, "#map"},
		{"/static/js/map.js", http.StatusOK, "L.map"},
		{"/submitted", http.StatusNotFound, ""},
		{"/media/offerings/missing.jpg", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			body := readBody(t, resp)
			if resp.StatusCode != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, resp.StatusCode)
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("expected body to contain %q", tt.contains)
			}
		})
	}
}

func TestSubmitOffering(t *testing.T) {
	server := setupTestServer(t)
	client := newClient(t)

	resp, err := client.PostForm(server.URL+"/submit", url.Values{
		"location":    {strconv.FormatInt(server.loc.ID, 10)},
		"description": {"Leftover pizza and bagels in the lobby"},
		"timestamp":   {time.Now().UTC().Format("2006-01-02T15:04")},
		"recur":       {"none"},
		"tags":        {model.TagVegetarian},
	})
	if err != nil {
		t.Fatal(err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected confirmation page, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Thanks for sharing") {
		t.Errorf("expected confirmation text, got %s", body)
	}
	if resp.Request.URL.Path != "/submitted" {
		t.Errorf("expected redirect to /submitted, ended at %s", resp.Request.URL.Path)
	}

	offerings := server.offerings(t)
	if len(offerings) != 1 {
		t.Fatalf("expected 1 offering, got %d", len(offerings))
	}
	if !strings.Contains(offerings[0].Title, "Pizza") {
		t.Errorf("expected title from description, got %q", offerings[0].Title)
	}
	if len(offerings[0].Tags) != 1 || offerings[0].Tags[0] != model.TagVegetarian {
		t.Errorf("unexpected tags: %v", offerings[0].Tags)
	}

	// The receipt cookie was cleared, so a reload finds nothing.
	resp, err = client.Get(server.URL + "/submitted")
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on reload, got %d", resp.StatusCode)
	}
}

func TestSubmittedReceiptIsOneShot(t *testing.T) {
	server := setupTestServer(t)
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	resp, err := client.PostForm(server.URL+"/submit", url.Values{
		"location":    {strconv.FormatInt(server.loc.ID, 10)},
		"description": {"Free pizza"},
	})
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}

	var receipt *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == receiptCookie {
			receipt = c
		}
	}
	if receipt == nil || !receipt.HttpOnly {
		t.Fatalf("expected an HttpOnly receipt cookie, got %+v", receipt)
	}

	for i, want := range []int{http.StatusOK, http.StatusNotFound} {
		req, _ := http.NewRequest("GET", server.URL+"/submitted", nil)
		req.AddCookie(&http.Cookie{Name: receiptCookie, Value: receipt.Value})
		resp, err := client.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		readBody(t, resp)
		if resp.StatusCode != want {
			t.Errorf("visit %d: expected %d, got %d", i+1, want, resp.StatusCode)
		}
	}

	req, _ := http.NewRequest("GET", server.URL+"/submitted", nil)
	req.AddCookie(&http.Cookie{Name: receiptCookie, Value: "forged"})
	resp, err = client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for forged receipt, got %d", resp.StatusCode)
	}
}

func TestSubmitOffering_Invalid(t *testing.T) {
	server := setupTestServer(t)
	id := strconv.FormatInt(server.loc.ID, 10)

	tests := []struct {
		name     string
		values   url.Values
		contains string
	}{
		{"no foods", url.Values{"location": {id}, "description": {"come by the lobby"}}, form.MsgNoFoods},
		{"missing description", url.Values{"location": {id}}, form.MsgRequired},
		{"unknown location", url.Values{"location": {"9999"}, "description": {"pizza"}}, form.MsgInvalidChoice},
		{"bad timestamp", url.Values{"location": {id}, "description": {"pizza"}, "timestamp": {"yesterday"}}, form.MsgInvalidDateTime},
		{"recurrence without end", url.Values{"location": {id}, "description": {"pizza"}, "recur": {"weekly"}}, msgRecurrence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(server.URL+"/submit", tt.values)
			if err != nil {
				t.Fatal(err)
			}
			body := readBody(t, resp)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("expected body to contain %q", tt.contains)
			}
			if strings.Contains(resp.Header.Get("Set-Cookie"), receiptCookie) {
				t.Error("rejected submission must not issue a receipt")
			}
		})
	}

	if n := len(server.offerings(t)); n != 0 {
		t.Errorf("expected no offerings, got %d", n)
	}
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile(FieldImage, "photo.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestSubmitOffering_WithImage(t *testing.T) {
	server := setupTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"location":    strconv.FormatInt(server.loc.ID, 10),
		"description": "Bagels by the printer",
	}, testPNG(t))
	resp, err := newClient(t).Post(server.URL+"/submit", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected confirmation page, got %d", resp.StatusCode)
	}

	offerings := server.offerings(t)
	if len(offerings) != 1 || offerings[0].Image == "" {
		t.Fatalf("expected one offering with an image, got %+v", offerings)
	}

	resp, err = http.Get(server.URL + media.URL(offerings[0].Image))
	if err != nil {
		t.Fatal(err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for stored image, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %q", ct)
	}
}

func TestSubmitOffering_RejectsUnreadableImage(t *testing.T) {
	server := setupTestServer(t)

	body, contentType := multipartBody(t, map[string]string{
		"location":    strconv.FormatInt(server.loc.ID, 10),
		"description": "Free pizza",
	}, []byte("definitely not a picture"))
	resp, err := http.Post(server.URL+"/submit", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	page := readBody(t, resp)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if !strings.Contains(page, msgInvalidImage) {
		t.Errorf("expected image error on the page")
	}
	if n := len(server.offerings(t)); n != 0 {
		t.Errorf("expected no offerings, got %d", n)
	}
}
