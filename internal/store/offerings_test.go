package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/foodmap/internal/db"
	"github.com/erazemk/foodmap/internal/model"
)

func TestCreateOffering(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	ts := time.Now().Add(-30 * time.Minute)
	end := ts.Add(30 * 24 * time.Hour)

	o, err := CreateOffering(ctx, database, images, &model.Offering{
		Timestamp:   ts,
		LocationID:  loc.ID,
		Title:       "Pizza, Pasta",
		Description: "Pizza and pasta!",
		ThreadID:    ptr("0123456789abcdef"),
		Recur:       model.RecurWeekly,
		RecurEnd:    &end,
		Tags:        []string{model.TagVegan, model.TagKosher},
	}, testUpload(t))
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	if !o.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", o.Timestamp, ts)
	}
	if o.RecurEnd == nil || !o.RecurEnd.Equal(end) {
		t.Errorf("recur end = %v, want %v", o.RecurEnd, end)
	}
	if o.ThreadID == nil || *o.ThreadID != "0123456789abcdef" {
		t.Errorf("unexpected thread id %v", o.ThreadID)
	}
	if o.Location == nil || o.Location.Name != "Frist Campus Center" {
		t.Errorf("location not joined: %+v", o.Location)
	}
	if diff := cmp.Diff([]string{model.TagVegan, model.TagKosher}, o.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if o.Image == "" || !images.Exists(o.Image) {
		t.Errorf("expected stored image, got %q", o.Image)
	}
}

func TestCreateOffering_FutureTimestamp(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	_, err := CreateOffering(ctx, database, testImages(t), &model.Offering{
		Timestamp:  time.Now().Add(24 * time.Hour),
		LocationID: loc.ID,
		Title:      "Bagels",
	}, nil)
	if err != nil {
		t.Fatalf("expected future timestamp to be accepted, got %v", err)
	}
}

func TestCreateOffering_GuardRejectsBeforeWriting(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	now := time.Now()
	before := now.Add(-time.Hour)

	tests := []struct {
		name   string
		modify func(o *model.Offering)
		want   error
	}{
		{"missing location", func(o *model.Offering) { o.LocationID = loc.ID + 100 }, model.ErrLocationNotFound},
		{"short thread id", func(o *model.Offering) { o.ThreadID = ptr("abc") }, model.ErrThreadIDLength},
		{"long thread id", func(o *model.Offering) { o.ThreadID = ptr("0123456789abcdefX") }, model.ErrThreadIDLength},
		{"recur without end", func(o *model.Offering) { o.Recur = model.RecurDaily }, model.ErrRecurrence},
		{"end without recur", func(o *model.Offering) { o.RecurEnd = &now }, model.ErrRecurrence},
		{"end before timestamp", func(o *model.Offering) {
			o.Recur = model.RecurDaily
			o.RecurEnd = &before
		}, model.ErrRecurrence},
		{"unknown tag", func(o *model.Offering) { o.Tags = []string{"halal-ish"} }, model.ErrUnknownTag},
		{"empty title", func(o *model.Offering) { o.Title = "" }, model.ErrFieldLength},
		{"long description", func(o *model.Offering) {
			o.Description = strings.Repeat("a", model.DescriptionMaxLength+1)
		}, model.ErrFieldLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &model.Offering{Timestamp: now, LocationID: loc.ID, Title: "Cookies"}
			tt.modify(o)
			_, err := CreateOffering(ctx, database, images, o, testUpload(t))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if n := countRows(t, database, "offerings"); n != 0 {
		t.Errorf("expected no offerings, got %d", n)
	}
	if n := storedFiles(t, images); n != 0 {
		t.Errorf("expected no stored images, got %d", n)
	}
}

func TestCreateOffering_DuplicateThreadRemovesStagedImage(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	newOffering := func() *model.Offering {
		return &model.Offering{
			Timestamp:  time.Now(),
			LocationID: loc.ID,
			Title:      "Sushi",
			ThreadID:   ptr("aaaaaaaaaaaaaaaa"),
		}
	}

	if _, err := CreateOffering(ctx, database, images, newOffering(), testUpload(t)); err != nil {
		t.Fatalf("first CreateOffering: %v", err)
	}
	_, err := CreateOffering(ctx, database, images, newOffering(), testUpload(t))
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	if n := countRows(t, database, "offerings"); n != 1 {
		t.Errorf("expected 1 offering, got %d", n)
	}
	if n := storedFiles(t, images); n != 1 {
		t.Errorf("expected only the first image to remain, got %d files", n)
	}
}

func TestCreateOffering_RejectsUnreadableImage(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	_, err := CreateOffering(ctx, database, images, &model.Offering{
		Timestamp:  time.Now(),
		LocationID: loc.ID,
		Title:      "Tacos",
	}, []byte("not an image"))
	if err == nil {
		t.Fatal("expected error for non-image upload")
	}
	if n := countRows(t, database, "offerings"); n != 0 {
		t.Errorf("expected no offerings, got %d", n)
	}
}

func TestListActiveOfferings(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	frist := testLocation(t, database, "Frist Campus Center")
	now := time.Now()

	create := func(title string, age time.Duration, tags ...string) {
		t.Helper()
		_, err := CreateOffering(ctx, database, images, &model.Offering{
			Timestamp:  now.Add(-age),
			LocationID: frist.ID,
			Title:      title,
			Tags:       tags,
		}, nil)
		if err != nil {
			t.Fatalf("CreateOffering %s: %v", title, err)
		}
	}
	create("Fresh", 30*time.Minute, model.TagVegan, model.TagGlutenFree)
	create("Stale", 130*time.Minute)
	create("Edge", 2*time.Hour)
	create("Future", -time.Hour)

	got, err := ListActiveOfferings(ctx, database, now.Add(-model.FreshnessWindow), now)
	if err != nil {
		t.Fatalf("ListActiveOfferings: %v", err)
	}

	var titles []string
	for _, o := range got {
		titles = append(titles, o.Title)
	}
	if diff := cmp.Diff([]string{"Fresh", "Edge"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{model.TagVegan, model.TagGlutenFree}, got[0].Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if got[1].Tags != nil {
		t.Errorf("expected no tags on Edge, got %v", got[1].Tags)
	}
}

func TestListExpiredOfferings(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	now := time.Now()
	for _, age := range []time.Duration{3 * time.Hour, 5 * time.Hour, time.Hour} {
		if _, err := CreateOffering(ctx, database, images, &model.Offering{
			Timestamp:  now.Add(-age),
			LocationID: loc.ID,
			Title:      "Leftovers",
		}, nil); err != nil {
			t.Fatalf("CreateOffering: %v", err)
		}
	}

	expired, err := ListExpiredOfferings(ctx, database, now.Add(-model.FreshnessWindow))
	if err != nil {
		t.Fatalf("ListExpiredOfferings: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expected 2 expired offerings, got %d", len(expired))
	}
	if !expired[0].Timestamp.Before(expired[1].Timestamp) {
		t.Error("expected oldest first")
	}
}

func TestDeleteOffering(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	o, err := CreateOffering(ctx, database, images, &model.Offering{
		Timestamp:  time.Now(),
		LocationID: loc.ID,
		Title:      "Donuts",
		Tags:       []string{model.TagVegetarian},
	}, testUpload(t))
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	if err := DeleteOffering(ctx, database, images, o.ID); err != nil {
		t.Fatalf("DeleteOffering: %v", err)
	}
	if images.Exists(o.Image) {
		t.Error("expected image to be deleted with the offering")
	}
	if n := countRows(t, database, "offering_tags"); n != 0 {
		t.Errorf("expected tags to cascade, got %d", n)
	}
	if got, _ := GetOffering(ctx, database, o.ID); got != nil {
		t.Error("expected offering to be gone")
	}

	if err := DeleteOffering(ctx, database, images, o.ID); !errors.Is(err, model.ErrOfferingNotFound) {
		t.Errorf("expected ErrOfferingNotFound, got %v", err)
	}
}

func TestDeleteOfferingByThread(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	if _, err := CreateOffering(ctx, database, images, &model.Offering{
		Timestamp:  time.Now(),
		LocationID: loc.ID,
		Title:      "Cake",
		ThreadID:   ptr("bbbbbbbbbbbbbbbb"),
	}, nil); err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	found, err := DeleteOfferingByThread(ctx, database, images, "bbbbbbbbbbbbbbbb")
	if err != nil || !found {
		t.Fatalf("DeleteOfferingByThread = %v, %v", found, err)
	}
	found, err = DeleteOfferingByThread(ctx, database, images, "bbbbbbbbbbbbbbbb")
	if err != nil || found {
		t.Errorf("second DeleteOfferingByThread = %v, %v; want false, nil", found, err)
	}
}

func TestReplaceOffering(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	ts := time.Now().Add(-3 * time.Hour)
	end := ts.Add(30 * 24 * time.Hour)
	old, err := CreateOffering(ctx, database, images, &model.Offering{
		Timestamp:  ts,
		LocationID: loc.ID,
		Title:      "Bagels",
		ThreadID:   ptr("cccccccccccccccc"),
		Recur:      model.RecurDaily,
		RecurEnd:   &end,
		Tags:       []string{model.TagKosher},
	}, testUpload(t))
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	successor, ok := old.Successor(time.Now().Add(-model.FreshnessWindow))
	if !ok {
		t.Fatal("expected a successor")
	}
	next, err := ReplaceOffering(ctx, database, images, old, successor)
	if err != nil {
		t.Fatalf("ReplaceOffering: %v", err)
	}

	if !next.Timestamp.Equal(ts.AddDate(0, 0, 1)) {
		t.Errorf("timestamp = %v, want %v", next.Timestamp, ts.AddDate(0, 0, 1))
	}
	if next.ThreadID == nil || *next.ThreadID != "cccccccccccccccc" {
		t.Errorf("expected thread id to carry over, got %v", next.ThreadID)
	}
	if diff := cmp.Diff([]string{model.TagKosher}, next.Tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
	if next.Image == "" || next.Image == old.Image || !images.Exists(next.Image) {
		t.Errorf("expected a separate image copy, got %q (old %q)", next.Image, old.Image)
	}
	if images.Exists(old.Image) {
		t.Error("expected old image to be removed")
	}
	if n := countRows(t, database, "offerings"); n != 1 {
		t.Errorf("expected exactly 1 offering, got %d", n)
	}
}

func TestReplaceOffering_FailureKeepsOldRow(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	old, err := CreateOffering(ctx, database, images, &model.Offering{
		Timestamp:  time.Now().Add(-3 * time.Hour),
		LocationID: loc.ID,
		Title:      "Fruit",
	}, testUpload(t))
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	successor := &model.Offering{Timestamp: time.Now(), LocationID: loc.ID + 100, Title: "Fruit"}
	if _, err := ReplaceOffering(ctx, database, images, old, successor); !IsConstraintViolation(err) {
		t.Fatalf("expected constraint violation, got %v", err)
	}

	if n := countRows(t, database, "offerings"); n != 1 {
		t.Errorf("expected old offering to survive the rollback, got %d rows", n)
	}
	if n := storedFiles(t, images); n != 1 {
		t.Errorf("expected the copy to be discarded, got %d files", n)
	}
}

func TestAddTag(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	loc := testLocation(t, database, "Frist Campus Center")
	o, err := CreateOffering(ctx, database, testImages(t), &model.Offering{
		Timestamp:  time.Now(),
		LocationID: loc.ID,
		Title:      "Salad",
	}, nil)
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	if _, err := AddTag(ctx, database, o.ID, model.TagVegan); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if _, err := AddTag(ctx, database, o.ID, model.TagGlutenFree); err != nil {
		t.Fatalf("AddTag: %v", err)
	}
	if _, err := AddTag(ctx, database, o.ID, "spicy"); !errors.Is(err, model.ErrUnknownTag) {
		t.Errorf("expected ErrUnknownTag, got %v", err)
	}
	if _, err := AddTag(ctx, database, o.ID+1, model.TagVegan); !errors.Is(err, model.ErrOfferingNotFound) {
		t.Errorf("expected ErrOfferingNotFound, got %v", err)
	}

	tags, err := ListTags(ctx, database, o.ID)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if diff := cmp.Diff([]string{model.TagVegan, model.TagGlutenFree}, tags); diff != "" {
		t.Errorf("tags mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaRejectsRecurrenceEndBeforeTimestamp(t *testing.T) {
	database := db.NewTestDB(t)
	loc := testLocation(t, database, "Frist Campus Center")

	_, err := database.Exec(
		`INSERT INTO offerings (timestamp, location_id, title, recur, recur_end_at) VALUES (?, ?, ?, ?, ?)`,
		"2024-03-02T12:00:00Z", loc.ID, "Pizza", "daily", "2024-03-01T12:00:00Z",
	)
	if !IsConstraintViolation(err) {
		t.Fatalf("expected constraint violation, got %v", err)
	}
	if n := countRows(t, database, "offerings"); n != 0 {
		t.Errorf("expected nothing persisted, got %d rows", n)
	}
}

func TestOfferingTimesKeepSubsecondPrecision(t *testing.T) {
	database := db.NewTestDB(t)
	images := testImages(t)
	ctx := context.Background()
	loc := testLocation(t, database, "Frist Campus Center")

	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	end := ts.Add(7*24*time.Hour + 500*time.Millisecond)
	created, err := CreateOffering(ctx, database, images, &model.Offering{
		Timestamp: ts, LocationID: loc.ID, Title: "Pizza", Recur: model.RecurDaily, RecurEnd: &end,
	}, nil)
	if err != nil {
		t.Fatalf("CreateOffering: %v", err)
	}

	got, err := GetOffering(ctx, database, created.ID)
	if err != nil {
		t.Fatalf("GetOffering: %v", err)
	}
	if !got.Timestamp.Equal(ts) || !got.RecurEnd.Equal(end) {
		t.Errorf("times = %v / %v, want %v / %v", got.Timestamp, got.RecurEnd, ts, end)
	}

	// Same second, later nanosecond: text order must still be chronological.
	expired, err := ListExpiredOfferings(ctx, database, ts.Add(-time.Nanosecond))
	if err != nil {
		t.Fatalf("ListExpiredOfferings: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("expected nothing expired a nanosecond early, got %d", len(expired))
	}
}

func TestGetOffering_ReadsSecondPrecisionRows(t *testing.T) {
	database := db.NewTestDB(t)
	loc := testLocation(t, database, "Frist Campus Center")

	result, err := database.Exec(
		`INSERT INTO offerings (timestamp, location_id, title) VALUES (?, ?, ?)`,
		"2024-03-01T12:00:00Z", loc.ID, "Pizza",
	)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := result.LastInsertId()

	got, err := GetOffering(context.Background(), database, id)
	if err != nil {
		t.Fatalf("GetOffering: %v", err)
	}
	if want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC); !got.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, want)
	}
}
