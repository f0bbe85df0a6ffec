package querybuilder

import "testing"

func TestSelectBuilder(t *testing.T) {
	query, args, err := Select("entity_key", "payload").
		From("upstream_payloads").
		Where(Eq("entity_key", "/rankings/softball/d1"), Expr("fetched_at > ?", "2026-01-01")).
		OrderBy("fetched_at DESC").
		Limit(10).
		ToSQL()
	if err != nil {
		t.Fatalf("build select query: %v", err)
	}

	wantQuery := "SELECT entity_key, payload FROM upstream_payloads WHERE entity_key = $1 AND fetched_at > $2 ORDER BY fetched_at DESC LIMIT 10"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 2 || args[0] != "/rankings/softball/d1" || args[1] != "2026-01-01" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder_MultipleRows(t *testing.T) {
	query, args, err := InsertInto("upstream_payloads").
		Columns("source", "entity_key").
		Values("ncaa", "/p1").
		Values("ncaa", "/p2").
		Suffix("ON CONFLICT DO NOTHING").
		ToSQL()
	if err != nil {
		t.Fatalf("build insert query: %v", err)
	}

	wantQuery := "INSERT INTO upstream_payloads (source, entity_key) VALUES ($1, $2), ($3, $4) ON CONFLICT DO NOTHING"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 4 || args[3] != "/p2" {
		t.Fatalf("unexpected args: %+v", args)
	}
}

func TestInsertBuilder_RejectsRaggedRows(t *testing.T) {
	_, _, err := InsertInto("t").Columns("a", "b").Values(1).ToSQL()
	if err == nil {
		t.Fatalf("expected error for row with missing values")
	}
}

type payloadRow struct {
	Source    string `db:"source"`
	EntityKey string `db:"entity_key"`
	internal  string
	Skipped   string `db:"-"`
}

func TestInsertModels(t *testing.T) {
	rows := []payloadRow{
		{Source: "ncaa", EntityKey: "/a", internal: "x"},
		{Source: "ncaa", EntityKey: "/b"},
	}

	query, args, err := InsertModels("upstream_payloads", rows, "")
	if err != nil {
		t.Fatalf("build insert models query: %v", err)
	}

	wantQuery := "INSERT INTO upstream_payloads (source, entity_key) VALUES ($1, $2), ($3, $4)"
	if query != wantQuery {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", wantQuery, query)
	}
	if len(args) != 4 || args[1] != "/a" {
		t.Fatalf("unexpected args: %+v", args)
	}

	if _, _, err := InsertModels[payloadRow]("upstream_payloads", nil, ""); err == nil {
		t.Fatalf("expected error for empty model list")
	}
}

func TestColumns(t *testing.T) {
	got := Columns(payloadRow{})
	if len(got) != 2 || got[0] != "source" || got[1] != "entity_key" {
		t.Fatalf("unexpected columns: %+v", got)
	}
}

func TestInsertBuilder_RejectsTooManyParams(t *testing.T) {
	b := InsertInto("upstream_payloads").Columns("a", "b", "c")
	for i := 0; i < MaxBindParams/3+1; i++ {
		b.Values(i, i, i)
	}
	if _, _, err := b.ToSQL(); err == nil {
		t.Fatalf("expected error above %d parameters", MaxBindParams)
	}
}

func TestExpr_SurplusPlaceholdersStayLiteral(t *testing.T) {
	query, args, err := Select("id").From("t").
		Where(Eq("source", "ncaa"), Expr("fetched_at BETWEEN ? AND ?", "2026-01-01")).
		ToSQL()
	if err != nil {
		t.Fatalf("build select: %v", err)
	}
	want := "SELECT id FROM t WHERE source = $1 AND fetched_at BETWEEN $2 AND ?"
	if query != want || len(args) != 2 {
		t.Fatalf("unexpected query %q args %v", query, args)
	}
}

func TestBatches(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	got := Batches(items, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 || got[2][0] != 5 {
		t.Fatalf("unexpected batches: %v", got)
	}
	// appending to a batch must not clobber the next one
	_ = append(got[0], 99)
	if got[1][0] != 3 {
		t.Fatalf("batch capacity leaked into neighbour: %v", got)
	}

	if got := Batches(items, 0); len(got) != 1 || len(got[0]) != 5 {
		t.Fatalf("expected single batch for size 0, got %v", got)
	}
	if got := Batches([]int(nil), 3); got != nil {
		t.Fatalf("expected nil for no items, got %v", got)
	}
}
