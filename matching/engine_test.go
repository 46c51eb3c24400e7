package matching

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func line(sku, qty, price string) Line {
	return Line{Sku: sku, Name: "Product " + sku, Quantity: d(qty), UnitPrice: d(price)}
}

func scenarioA() Input {
	return Input{
		PurchaseOrderId: 1,
		POLines:         []Line{line("SKU-1", "10", "5.00")},
		Invoice: Invoice{
			Id:            11,
			DeclaredTotal: dp("50"),
			Lines:         []Line{line("SKU-1", "10", "5.00")},
		},
		Receipts: []Receipt{{Sku: "SKU-1", Quantity: d("10")}},
	}
}

func TestReconcile_ScenarioA_PerfectMatch(t *testing.T) {
	r := Reconcile(scenarioA(), DefaultPolicy())

	if len(r.LineMatches) != 1 {
		t.Fatalf("expected 1 line match, got %d", len(r.LineMatches))
	}
	if !r.LineMatches[0].QuantityMatch || !r.LineMatches[0].PriceMatch {
		t.Fatalf("expected line to match, got %+v", r.LineMatches[0])
	}
	if len(r.Discrepancies) != 0 {
		t.Fatalf("expected no discrepancies, got %+v", r.Discrepancies)
	}
	if r.Score != 100 {
		t.Fatalf("expected score 100, got %d", r.Score)
	}
	if r.Status != MatchStatusMatched {
		t.Fatalf("expected matched, got %s", r.Status)
	}
	if !r.AutoApproved || !r.InvoiceVerified {
		t.Fatalf("expected auto approved and verified, got approved=%v verified=%v", r.AutoApproved, r.InvoiceVerified)
	}
	if !r.ReceiptTotal.Equal(d("50")) {
		t.Fatalf("expected receipt total 50, got %s", r.ReceiptTotal)
	}
}

func TestReconcile_ScenarioB_MinorPriceDriftWithinTolerance(t *testing.T) {
	in := scenarioA()
	in.Invoice.Lines = []Line{line("SKU-1", "10", "5.30")}

	r := Reconcile(in, DefaultPolicy())

	if !r.LineMatches[0].QuantityMatch || !r.LineMatches[0].PriceMatch {
		t.Fatalf("expected qty and price match, got %+v", r.LineMatches[0])
	}
	if len(r.Discrepancies) != 0 {
		t.Fatalf("expected no discrepancies, got %+v", r.Discrepancies)
	}
	if r.Status != MatchStatusMatched {
		t.Fatalf("expected matched, got %s", r.Status)
	}
}

func TestReconcile_ScenarioC_CriticalQuantityMiss(t *testing.T) {
	in := Input{
		PurchaseOrderId: 3,
		POLines:         []Line{line("SKU-1", "100", "5")},
		Invoice: Invoice{
			DeclaredTotal: dp("500"),
			Lines:         []Line{line("SKU-1", "80", "5")},
		},
	}

	r := Reconcile(in, DefaultPolicy())

	if len(r.Discrepancies) != 1 {
		t.Fatalf("expected 1 discrepancy, got %+v", r.Discrepancies)
	}
	got := r.Discrepancies[0]
	if got.Kind != DiscrepancyKindQuantity || got.Severity != SeverityCritical {
		t.Fatalf("expected critical quantity discrepancy, got %+v", got)
	}
	if !got.Variance.Equal(d("-20")) {
		t.Fatalf("expected variance -20, got %s", got.Variance)
	}
	if r.Status != MatchStatusDiscrepancy {
		t.Fatalf("expected discrepancy, got %s", r.Status)
	}
	if r.AutoApproved {
		t.Fatalf("expected no auto approval")
	}
}

func TestReconcile_ScenarioD_PhantomInvoiceLine(t *testing.T) {
	in := scenarioA()
	in.Invoice.Lines = append(in.Invoice.Lines, line("SKU-2", "3", "1"))

	r := Reconcile(in, DefaultPolicy())

	if len(r.LineMatches) != 1 {
		t.Fatalf("expected only SKU-1 line match, got %+v", r.LineMatches)
	}
	var found bool
	for _, disc := range r.Discrepancies {
		if disc.Kind == DiscrepancyKindMissingItem && disc.Sku == "SKU-2" {
			found = true
			if disc.Severity != SeverityCritical {
				t.Fatalf("expected critical, got %s", disc.Severity)
			}
			if !disc.Expected.IsZero() || !disc.Actual.Equal(d("3")) {
				t.Fatalf("expected 0 -> 3, got %s -> %s", disc.Expected, disc.Actual)
			}
		}
	}
	if !found {
		t.Fatalf("expected missing_item for SKU-2, got %+v", r.Discrepancies)
	}
	if r.Status != MatchStatusDiscrepancy {
		t.Fatalf("expected discrepancy, got %s", r.Status)
	}
}

func TestReconcile_ScenarioE_TotalOnlyDrift(t *testing.T) {
	in := scenarioA()
	in.POLines = []Line{line("SKU-1", "10", "10")}
	in.Invoice.Lines = []Line{line("SKU-1", "10", "10")}
	in.Invoice.DeclaredTotal = dp("103")

	r := Reconcile(in, DefaultPolicy())

	if len(r.Discrepancies) != 1 {
		t.Fatalf("expected 1 discrepancy, got %+v", r.Discrepancies)
	}
	got := r.Discrepancies[0]
	if got.Kind != DiscrepancyKindTotal || got.Severity != SeverityMajor || got.Sku != "" {
		t.Fatalf("expected major total discrepancy, got %+v", got)
	}
	if !got.Variance.Equal(d("3")) {
		t.Fatalf("expected variance 3, got %s", got.Variance)
	}
	if r.Status != MatchStatusPartial {
		t.Fatalf("expected partial, got %s", r.Status)
	}
	if r.AutoApproved || r.InvoiceVerified {
		t.Fatalf("expected no approval and no verification")
	}
	if r.Score != 91 {
		t.Fatalf("expected score 91, got %d", r.Score)
	}
}

func TestReconcile_QuantityBoundary(t *testing.T) {
	cases := []struct {
		name      string
		invoiced  string
		wantMatch bool
	}{
		{"exactly at tolerance", "102", true},
		{"one unit over tolerance", "103", false},
		{"below order at tolerance", "98", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := Input{
				POLines: []Line{line("SKU-1", "100", "1")},
				Invoice: Invoice{DeclaredTotal: dp("100"), Lines: []Line{line("SKU-1", tc.invoiced, "1")}},
			}
			r := Reconcile(in, DefaultPolicy())
			if r.LineMatches[0].QuantityMatch != tc.wantMatch {
				t.Fatalf("expected quantity match=%v, got %v", tc.wantMatch, r.LineMatches[0].QuantityMatch)
			}
			if !tc.wantMatch && r.Discrepancies[0].Severity != SeverityMinor {
				t.Fatalf("expected minor severity at 3%%, got %s", r.Discrepancies[0].Severity)
			}
		})
	}
}

func TestReconcile_POOnlyLine(t *testing.T) {
	in := scenarioA()
	in.POLines = append(in.POLines, line("SKU-9", "4", "2"))

	r := Reconcile(in, DefaultPolicy())
	for _, disc := range r.Discrepancies {
		if disc.Kind == DiscrepancyKindMissingItem {
			t.Fatalf("unreceived unbilled line must not be flagged, got %+v", disc)
		}
	}

	in.Receipts = append(in.Receipts, Receipt{Sku: "SKU-9", Quantity: d("1")}, Receipt{Sku: "SKU-9", Quantity: d("2")})
	r = Reconcile(in, DefaultPolicy())

	var got *Discrepancy
	for i := range r.Discrepancies {
		if r.Discrepancies[i].Kind == DiscrepancyKindMissingItem {
			got = &r.Discrepancies[i]
		}
	}
	if got == nil {
		t.Fatalf("expected missing_item for received PO-only line, got %+v", r.Discrepancies)
	}
	if got.Severity != SeverityMajor || !got.Expected.Equal(d("4")) || !got.Actual.IsZero() || !got.Variance.Equal(d("-4")) {
		t.Fatalf("unexpected discrepancy %+v", got)
	}
	if len(r.LineMatches) != 1 {
		t.Fatalf("PO-only line must not produce a line match, got %d", len(r.LineMatches))
	}
	if !r.ReceiptTotal.Equal(d("56")) {
		t.Fatalf("expected receipt total 56, got %s", r.ReceiptTotal)
	}
}

func TestReconcile_DegenerateInputs(t *testing.T) {
	r := Reconcile(Input{Invoice: Invoice{DeclaredTotal: dp("0")}}, DefaultPolicy())

	if len(r.LineMatches) != 0 {
		t.Fatalf("expected no line matches, got %d", len(r.LineMatches))
	}
	// zero PO total is a full variance; line score falls back to 100
	if !r.TotalVariancePct.Equal(d("100")) {
		t.Fatalf("expected 100%% total variance, got %s", r.TotalVariancePct)
	}
	if r.Score != 85 {
		t.Fatalf("expected score 85, got %d", r.Score)
	}
	if r.Status != MatchStatusDiscrepancy {
		t.Fatalf("expected discrepancy, got %s", r.Status)
	}
}

func TestReconcile_DuplicateSkusAreMerged(t *testing.T) {
	in := Input{
		POLines: []Line{line("SKU-1", "5", "4"), line("SKU-1", "5", "6")},
		Invoice: Invoice{Lines: []Line{line("SKU-1", "10", "5")}},
	}

	r := Reconcile(in, DefaultPolicy())

	if len(r.LineMatches) != 1 {
		t.Fatalf("expected merged line, got %d", len(r.LineMatches))
	}
	m := r.LineMatches[0]
	if !m.OrderedQty.Equal(d("10")) || !m.OrderedUnitPrice.Equal(d("5")) {
		t.Fatalf("expected 10 @ 5, got %s @ %s", m.OrderedQty, m.OrderedUnitPrice)
	}
	if r.Status != MatchStatusMatched {
		t.Fatalf("expected matched, got %s", r.Status)
	}
}

func TestReconcile_IsIdempotent(t *testing.T) {
	in := mixedInput()
	first := Reconcile(in, DefaultPolicy())
	second := Reconcile(in, DefaultPolicy())

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestReconcile_DiscrepanciesAreOrderIndependent(t *testing.T) {
	in := mixedInput()
	want := discrepancyKeys(Reconcile(in, DefaultPolicy()).Discrepancies)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := in
		shuffled.POLines = append([]Line(nil), in.POLines...)
		shuffled.Invoice.Lines = append([]Line(nil), in.Invoice.Lines...)
		rng.Shuffle(len(shuffled.POLines), func(a, b int) {
			shuffled.POLines[a], shuffled.POLines[b] = shuffled.POLines[b], shuffled.POLines[a]
		})
		rng.Shuffle(len(shuffled.Invoice.Lines), func(a, b int) {
			shuffled.Invoice.Lines[a], shuffled.Invoice.Lines[b] = shuffled.Invoice.Lines[b], shuffled.Invoice.Lines[a]
		})

		got := discrepancyKeys(Reconcile(shuffled, DefaultPolicy()).Discrepancies)
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("iteration %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestReconcile_PolicyOverrides(t *testing.T) {
	in := scenarioA()
	in.Invoice.Lines = []Line{line("SKU-1", "10", "5.30")}

	strict := DefaultPolicy()
	strict.PriceTolerance = d("0.10")
	r := Reconcile(in, strict)
	if r.LineMatches[0].PriceMatch {
		t.Fatalf("expected price mismatch under strict policy")
	}
	if r.Status != MatchStatusPartial {
		t.Fatalf("expected partial, got %s", r.Status)
	}

	lenient := DefaultPolicy()
	lenient.MinScoreForApproval = 101
	if err := lenient.Validate(); err == nil {
		t.Fatalf("expected validation error for min score 101")
	}
}

func TestDecideVerdict(t *testing.T) {
	policy := DefaultPolicy()
	cases := []struct {
		name         string
		severities   []Severity
		score        int
		wantStatus   MatchStatus
		wantApproved bool
	}{
		{"clean high score", nil, 100, MatchStatusMatched, true},
		{"clean below threshold", nil, 94, MatchStatusMatched, false},
		{"minor only", []Severity{SeverityMinor}, 97, MatchStatusPartial, false},
		{"major", []Severity{SeverityMinor, SeverityMajor}, 90, MatchStatusPartial, false},
		{"critical wins", []Severity{SeverityMajor, SeverityCritical}, 99, MatchStatusDiscrepancy, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ds []Discrepancy
			for _, s := range tc.severities {
				ds = append(ds, Discrepancy{Kind: DiscrepancyKindPrice, Severity: s})
			}
			v := DecideVerdict(ds, tc.score, policy)
			if v.Status != tc.wantStatus || v.AutoApproved != tc.wantApproved {
				t.Fatalf("expected %s/%v, got %s/%v", tc.wantStatus, tc.wantApproved, v.Status, v.AutoApproved)
			}
			if v.InvoiceVerified != (tc.wantStatus == MatchStatusMatched) {
				t.Fatalf("invoice verified must follow matched status")
			}
		})
	}
}

func TestCalculateScore_RoundsHalfAwayFromZero(t *testing.T) {
	// one of two lines matching: 50*0.7 + (100-5)*0.3 = 63.5
	lines := []LineItemMatch{
		{QuantityMatch: true, PriceMatch: true},
		{QuantityMatch: true, PriceMatch: false},
	}
	if got := CalculateScore(lines, d("0.5")); got != 64 {
		t.Fatalf("expected 64, got %d", got)
	}
	if got := CalculateScore(nil, d("1000")); got != 85 {
		t.Fatalf("expected capped penalty score 85, got %d", got)
	}
}

func TestParseEnums(t *testing.T) {
	if s, err := ParseMatchStatus(" Partial "); err != nil || s != MatchStatusPartial {
		t.Fatalf("expected partial, got %q err=%v", s, err)
	}
	if _, err := ParseDiscrepancyKind("freight"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if s, err := ParseSeverity("critical"); err != nil || s != SeverityCritical {
		t.Fatalf("expected critical, got %q err=%v", s, err)
	}
}

func mixedInput() Input {
	return Input{
		PurchaseOrderId: 42,
		POLines: []Line{
			line("A", "10", "2"),
			line("B", "100", "1"),
			line("C", "5", "20"),
			line("D", "1", "9"),
		},
		Invoice: Invoice{
			Lines: []Line{
				line("A", "10", "2"),
				line("B", "90", "1"),
				line("C", "5", "23"),
				line("E", "2", "4"),
			},
		},
		Receipts: []Receipt{
			{Sku: "A", Quantity: d("10")},
			{Sku: "D", Quantity: d("1")},
		},
	}
}

func discrepancyKeys(ds []Discrepancy) []string {
	keys := make([]string, 0, len(ds))
	for _, disc := range ds {
		keys = append(keys, string(disc.Kind)+"|"+disc.Sku+"|"+string(disc.Severity))
	}
	sort.Strings(keys)
	return keys
}
