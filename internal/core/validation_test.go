package core

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const nativeHeader = "producer_email,entry_date,outbound_dials,talk_minutes,items_total,referral_qhh,referral_quotes,referral_items,google_ads_qhh,google_ads_quotes,google_ads_items\n"

var ignoreSourceIDs = cmpopts.IgnoreFields(SourceBreakdown{}, "SourceID")

func seededStore() *memStore {
	return newMemStore().
		withProducer("pat@example.com", "Pat Quinn").
		withSource("Referral", 1).
		withSource("Google Ads", 2).
		withSource("Other", 3)
}

func validate(t *testing.T, store *memStore, text string) ValidationResult {
	t.Helper()
	s, err := NewSession(context.Background(), store)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	return s.Validate(context.Background(), text)
}

func TestValidateStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty", "", "CSV file is empty"},
		{"whitespace", " \n\n", "CSV file is empty"},
		{"header only", nativeHeader, "CSV file has no data rows"},
		{"header and comma-only line", nativeHeader + ",,,,\n", "Row 2: missing producer_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validate(t, seededStore(), tt.text)
			if got.IsValid {
				t.Error("IsValid = true, want false")
			}
			if diff := cmp.Diff([]string{tt.want}, got.Errors); diff != "" {
				t.Errorf("Errors mismatch (-want +got):\n%s", diff)
			}
			if len(got.ProcessedRows) != 0 {
				t.Errorf("ProcessedRows = %d, want 0", len(got.ProcessedRows))
			}
		})
	}
}

func TestValidateValidRow(t *testing.T) {
	text := nativeHeader + "PAT@example.com,2024-03-05,40,95,3,2,4,1,3,3,2\n"

	got := validate(t, seededStore(), text)

	if !got.IsValid {
		t.Fatalf("IsValid = false, errors: %v", got.Errors)
	}
	if got.Format != FormatNative || got.RowCount != 1 {
		t.Errorf("Format/RowCount = %q/%d, want native/1", got.Format, got.RowCount)
	}

	want := []CanonicalEntry{{
		ProducerEmail: "pat@example.com",
		EntryDate:     "2024-03-05",
		OutboundDials: 40,
		TalkMinutes:   95,
		ItemsTotal:    3,
		QHHTotal:      5,
		Sources: []SourceBreakdown{
			{SourceName: "Referral", QHH: 2, Quotes: 4, Items: 1},
			{SourceName: "Google Ads", QHH: 3, Quotes: 3, Items: 2},
		},
	}}
	if diff := cmp.Diff(want, got.ProcessedRows, ignoreSourceIDs); diff != "" {
		t.Errorf("ProcessedRows mismatch (-want +got):\n%s", diff)
	}
	if got.ProcessedRows[0].QuotesTotal() != 7 {
		t.Errorf("QuotesTotal() = %d, want 7", got.ProcessedRows[0].QuotesTotal())
	}
}

func TestValidateRowErrors(t *testing.T) {
	tests := []struct {
		name       string
		row        string
		wantErrors []string
		wantRows   int
	}{
		{
			name:       "missing email",
			row:        ",2024-03-05,1,1,0,,,,,,",
			wantErrors: []string{"Row 2: missing producer_email"},
		},
		{
			name:       "missing date",
			row:        "pat@example.com,,1,1,0,,,,,,",
			wantErrors: []string{"Row 2: missing entry_date"},
		},
		{
			name:       "unknown producer without name",
			row:        "ghost@example.com,2024-03-05,1,1,0,,,,,,",
			wantErrors: []string{"Row 2: unknown producer ghost@example.com"},
		},
		{
			name:       "invalid calendar date",
			row:        "pat@example.com,2024-02-30,1,1,0,,,,,,",
			wantErrors: []string{`Row 2: invalid entry_date "2024-02-30" (expected YYYY-MM-DD)`},
		},
		{
			name:       "future date accepted",
			row:        "pat@example.com,2099-01-01,1,1,0,,,,,,",
			wantErrors: nil,
			wantRows:   1,
		},
		{
			name:       "negative dials",
			row:        "pat@example.com,2024-03-05,-1,1,0,,,,,,",
			wantErrors: []string{"Row 2: outbound_dials cannot be negative (-1)"},
		},
		{
			name:       "negative items total",
			row:        "pat@example.com,2024-03-05,1,1,-2,,,,,,",
			wantErrors: []string{"Row 2: items_total cannot be negative (-2)"},
		},
		{
			name:       "non-numeric counts parse as zero",
			row:        "pat@example.com,2024-03-05,abc,,0,,,,,,",
			wantErrors: nil,
			wantRows:   1,
		},
		{
			name:       "oversized items total",
			row:        "pat@example.com,2024-03-05,1,1,99999999999999999999,,,,,,",
			wantErrors: []string{"Row 2: items_total is out of range (99999999999999999999)"},
		},
		{
			name:       "oversized source column is reported",
			row:        "pat@example.com,2024-03-05,1,1,0,99999999999999999999,0,0,0,0,0",
			wantErrors: []string{"Row 2: referral_qhh is out of range (99999999999999999999)"},
			wantRows:   1,
		},
		{
			name:       "totals mismatch cites both numbers",
			row:        "pat@example.com,2024-03-05,1,1,3,0,0,2,0,0,0",
			wantErrors: []string{"Row 2: items_total (3) does not match sum of source items (2)"},
		},
		{
			name: "negative source column drops only that column",
			row:  "pat@example.com,2024-03-05,1,1,2,-1,0,2,0,0,0",
			wantErrors: []string{
				"Row 2: referral_qhh cannot be negative (-1)",
			},
			wantRows: 1,
		},
		{
			name: "dropped column can cause a totals mismatch",
			row:  "pat@example.com,2024-03-05,1,1,3,0,0,2,0,0,-1",
			wantErrors: []string{
				"Row 2: google_ads_items cannot be negative (-1)",
				"Row 2: items_total (3) does not match sum of source items (2)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := validate(t, seededStore(), nativeHeader+tt.row+"\n")

			if diff := cmp.Diff(tt.wantErrors, got.Errors, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Errors mismatch (-want +got):\n%s", diff)
			}
			if got.IsValid != (len(tt.wantErrors) == 0) {
				t.Errorf("IsValid = %v with %d errors", got.IsValid, len(got.Errors))
			}
			if len(got.ProcessedRows) != tt.wantRows {
				t.Errorf("ProcessedRows = %d, want %d", len(got.ProcessedRows), tt.wantRows)
			}
		})
	}
}

// A dropped negative column still lets the row through on the partial sum.
func TestValidateDroppedColumnKeepsPartialSum(t *testing.T) {
	text := nativeHeader + "pat@example.com,2024-03-05,1,1,2,-1,0,2,0,0,0\n"

	got := validate(t, seededStore(), text)

	if len(got.ProcessedRows) != 1 {
		t.Fatalf("ProcessedRows = %d, want 1", len(got.ProcessedRows))
	}
	entry := got.ProcessedRows[0]
	if entry.QHHTotal != 0 || entry.ItemsTotal != 2 {
		t.Errorf("QHHTotal/ItemsTotal = %d/%d, want 0/2", entry.QHHTotal, entry.ItemsTotal)
	}
}

func TestValidateContinuesAcrossRows(t *testing.T) {
	text := nativeHeader +
		"ghost@example.com,2024-03-05,1,1,0,,,,,,\n" +
		"pat@example.com,2024-03-05,1,1,0,,,,,,\n" +
		"pat@example.com,bad,1,1,0,,,,,,\n"

	got := validate(t, seededStore(), text)

	want := []string{
		"Row 2: unknown producer ghost@example.com",
		`Row 4: invalid entry_date "bad" (expected YYYY-MM-DD)`,
	}
	if diff := cmp.Diff(want, got.Errors); diff != "" {
		t.Errorf("Errors mismatch (-want +got):\n%s", diff)
	}
	if got.RowCount != 3 || len(got.ProcessedRows) != 1 {
		t.Errorf("RowCount/ProcessedRows = %d/%d, want 3/1", got.RowCount, len(got.ProcessedRows))
	}
}

func TestValidateSourceResolution(t *testing.T) {
	t.Run("new source created once across rows", func(t *testing.T) {
		store := seededStore()
		text := "producer_email,entry_date,items_total,tik_tok_items,TIK_TOK_qhh\n" +
			"pat@example.com,2024-03-05,1,1,2\n" +
			"pat@example.com,2024-03-06,0,0,1\n"

		got := validate(t, store, text)

		if !got.IsValid {
			t.Fatalf("IsValid = false, errors: %v", got.Errors)
		}
		if diff := cmp.Diff([]string{"Tik Tok"}, store.createdSources); diff != "" {
			t.Errorf("created sources mismatch (-want +got):\n%s", diff)
		}
		if n := len(got.ProcessedRows[0].Sources); n != 1 {
			t.Errorf("row 2 has %d source groups, want 1", n)
		}
	})

	t.Run("creation failure falls back to Other", func(t *testing.T) {
		store := seededStore()
		store.failCreateSource["tiktok"] = true
		store.failCreateSource["snap"] = true
		text := "producer_email,entry_date,items_total,tiktok_items,snap_items\n" +
			"pat@example.com,2024-03-05,2,1,1\n"

		got := validate(t, store, text)

		if !got.IsValid {
			t.Fatalf("IsValid = false, errors: %v", got.Errors)
		}
		want := []SourceBreakdown{{SourceName: "Other", Items: 2}}
		if diff := cmp.Diff(want, got.ProcessedRows[0].Sources, ignoreSourceIDs); diff != "" {
			t.Errorf("Sources mismatch (-want +got):\n%s", diff)
		}
		wantWarnings := []string{
			`Could not create source "Tiktok"; using "Other"`,
			`Could not create source "Snap"; using "Other"`,
		}
		if diff := cmp.Diff(wantWarnings, got.Warnings); diff != "" {
			t.Errorf("Warnings mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unresolvable fallback is a row error", func(t *testing.T) {
		store := newMemStore().withProducer("pat@example.com", "Pat")
		store.failCreateSource["tiktok"] = true
		text := "producer_email,entry_date,items_total,tiktok_items\n" +
			"pat@example.com,2024-03-05,0,0\n"

		got := validate(t, store, text)

		want := []string{`Row 2: could not resolve source "Tiktok"`}
		if diff := cmp.Diff(want, got.Errors); diff != "" {
			t.Errorf("Errors mismatch (-want +got):\n%s", diff)
		}
		if len(got.ProcessedRows) != 1 || len(got.ProcessedRows[0].Sources) != 0 {
			t.Errorf("want the row kept without the unresolved group, got %+v", got.ProcessedRows)
		}
	})
}

// Scenario A: one valid row and one with negative talk minutes.
func TestValidateScenarioNativeWithNegativeTalk(t *testing.T) {
	text := nativeHeader +
		"pat@example.com,2024-03-05,40,95,1,1,1,1,0,0,0\n" +
		"pat@example.com,2024-03-06,40,-5,0,0,0,0,0,0,0\n"

	got := validate(t, seededStore(), text)

	if got.IsValid {
		t.Error("IsValid = true, want false")
	}
	if diff := cmp.Diff([]string{"Row 3: talk_minutes cannot be negative (-5)"}, got.Errors); diff != "" {
		t.Errorf("Errors mismatch (-want +got):\n%s", diff)
	}
	if len(got.ProcessedRows) != 1 {
		t.Errorf("ProcessedRows = %d, want 1", len(got.ProcessedRows))
	}
}

// Scenario B: alternate export row with a single LS column.
func TestValidateScenarioAlternateFormat(t *testing.T) {
	store := seededStore()
	text := "Name,Today's Date,LS - Referral\nJane Doe,03/05/2024,2\n"

	got := validate(t, store, text)

	if !got.IsValid {
		t.Fatalf("IsValid = false, errors: %v", got.Errors)
	}
	if got.Format != FormatAlternate {
		t.Errorf("Format = %q, want alternate", got.Format)
	}

	want := []CanonicalEntry{{
		ProducerEmail: "jane.doe@temp.com",
		EntryDate:     "2024-03-05",
		QHHTotal:      2,
		Sources:       []SourceBreakdown{{SourceName: "Referral", QHH: 2}},
	}}
	if diff := cmp.Diff(want, got.ProcessedRows, ignoreSourceIDs); diff != "" {
		t.Errorf("ProcessedRows mismatch (-want +got):\n%s", diff)
	}

	wantWarnings := []string{
		"Detected alternate export format; mapped 1 rows to canonical fields",
		"Row 2: created historical producer Jane Doe (jane.doe@temp.com) as inactive",
	}
	if diff := cmp.Diff(wantWarnings, got.Warnings); diff != "" {
		t.Errorf("Warnings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"jane.doe@temp.com"}, store.createdProducers); diff != "" {
		t.Errorf("created producers mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateAlternateCollidingSourceHeaders(t *testing.T) {
	text := "Name,Today's Date,Items Sold,IS - Google Ads,IS - Google-Ads\n" +
		"Jane Doe,03/05/2024,3,1,2\n"

	// Map iteration order must not decide which header wins.
	for i := 0; i < 20; i++ {
		got := validate(t, seededStore(), text)
		if !got.IsValid {
			t.Fatalf("run %d: IsValid = false, errors: %v", i, got.Errors)
		}
		want := []CanonicalEntry{{
			ProducerEmail: "jane.doe@temp.com",
			EntryDate:     "2024-03-05",
			ItemsTotal:    3,
			Sources:       []SourceBreakdown{{SourceName: "Google Ads", Items: 3}},
		}}
		if diff := cmp.Diff(want, got.ProcessedRows, ignoreSourceIDs); diff != "" {
			t.Fatalf("run %d: ProcessedRows mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestValidateAlternateReusesHistoricalProducer(t *testing.T) {
	store := seededStore()
	text := "Name,Today's Date,Items Sold,IS - Referral\n" +
		"Jane Doe,03/05/2024,1,1\n" +
		"Jane Doe,03/06/2024,0,0\n" +
		"Jane Doe,03-07-2024,0,0\n"

	got := validate(t, store, text)

	if len(store.createdProducers) != 1 {
		t.Errorf("created %d producers, want 1", len(store.createdProducers))
	}
	if diff := cmp.Diff([]string{"Row 4: missing entry_date"}, got.Errors); diff != "" {
		t.Errorf("Errors mismatch (-want +got):\n%s", diff)
	}
	if len(got.ProcessedRows) != 2 {
		t.Errorf("ProcessedRows = %d, want 2", len(got.ProcessedRows))
	}
}

// Scenario C: two sessions loaded before either creates the source each
// create their own copy. There is no cross-session dedup.
func TestValidateScenarioConcurrentSessionsDuplicateSources(t *testing.T) {
	ctx := context.Background()
	store := seededStore()
	text := "producer_email,entry_date,items_total,brand_new_items\n" +
		"pat@example.com,2024-03-05,1,1\n"

	first, err := NewSession(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewSession(ctx, store)
	if err != nil {
		t.Fatal(err)
	}

	for _, s := range []*Session{first, second} {
		if got := s.Validate(ctx, text); !got.IsValid {
			t.Fatalf("IsValid = false, errors: %v", got.Errors)
		}
	}

	if diff := cmp.Diff([]string{"Brand New", "Brand New"}, store.createdSources); diff != "" {
		t.Errorf("created sources mismatch (-want +got):\n%s", diff)
	}

	// A later session sees the existing record and creates nothing.
	third := validate(t, store, text)
	if !third.IsValid || len(store.createdSources) != 2 {
		t.Errorf("third session created sources: %v", store.createdSources)
	}
}
