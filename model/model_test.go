package model

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"tagsql/clause"
	"tagsql/gateway"
)

type Dog struct {
	Name  string `tagsql:"Name,id" check:"required,simple"`
	Age   int    `check:"min=0,max=40"`
	Owner string
	Born  time.Time `tagsql:"BornOn"`
}

func (*Dog) TableName() string { return "tblDog" }

type Product struct {
	SKU   string  `tagsql:"SKU,id" clean:"simplify" check:"required,simple"`
	Price float64 `clean:"decimals=2"`
}

func (*Product) TableName() string { return "tblProduct" }

type Sticker struct {
	ID    string `tagsql:"ID,id"`
	Label string `clean:"decimals=1"`
}

func (*Sticker) TableName() string { return "tblSticker" }

type Ghost struct {
	ID   int     `tagsql:"ID,id,auto"`
	Note *string `tagsql:"Note,optional"`
}

func (*Ghost) TableName() string { return "tblGhost" }

type captureLog struct {
	errors []string
}

func (c *captureLog) Infof(format string, v ...interface{}) {}

func (c *captureLog) Errorf(format string, v ...interface{}) {
	c.errors = append(c.errors, fmt.Sprintf(format, v...))
}

func openTestDB(t *testing.T, name string) *gateway.DB {
	t.Helper()
	db, err := gateway.Open(gateway.Config{
		Driver: "sqlite3",
		Source: "file:" + name + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Execute("create table tblDog (Name text, Age integer, Owner text, BornOn datetime)", false, nil, false); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestValuesRoundTrip(t *testing.T) {
	record := map[string]interface{}{"Name": "Spot", "Age": 3}
	e, err := FromRecord(&Dog{}, record)
	if err != nil {
		t.Fatalf("FromRecord err = %v", err)
	}
	values := e.Values(false)
	for column, want := range record {
		if values[column] != want {
			t.Errorf("Values[%s] = %v, want %v", column, values[column], want)
		}
	}
	if _, ok := values["Owner"]; !ok {
		t.Error("Values must snapshot unset fields too")
	}
}

func TestGetSet(t *testing.T) {
	dog := &Dog{}
	e, err := New(dog)
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	if err := e.Set("Age", int64(7)); err != nil {
		t.Fatalf("Set err = %v", err)
	}
	if dog.Age != 7 {
		t.Errorf("Set did not reach the struct: Age = %d", dog.Age)
	}
	// Direct field assignment is visible through the column view.
	dog.Owner = "Ann"
	if v, _ := e.Get("Owner"); v != "Ann" {
		t.Errorf("Get(Owner) = %v, want Ann", v)
	}
	if err := e.Set("Fleas", 12); err == nil {
		t.Error("setting an unmapped column must fail")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		desc      string
		dog       Dog
		wantField string
		wantMsg   string
	}{
		{
			desc:      "missing name",
			dog:       Dog{Name: "", Age: 3},
			wantField: "Name",
			wantMsg:   "required",
		},
		{
			desc:      "invalid character",
			dog:       Dog{Name: "Sp!ot", Age: 3},
			wantField: "Name",
			wantMsg:   "'!'",
		},
		{
			desc:      "age below minimum",
			dog:       Dog{Name: "Spot", Age: -1},
			wantField: "Age",
			wantMsg:   "minimum",
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			dog := tC.dog
			e, err := New(&dog)
			if err != nil {
				t.Fatalf("New err = %v", err)
			}
			verr := e.Validate()
			if verr == nil {
				t.Fatal("Validate accepted an invalid entity")
			}
			var ve *ValidationError
			if !errors.As(verr, &ve) {
				t.Fatalf("Validate err = %T, want *ValidationError", verr)
			}
			if ve.Field != tC.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tC.wantField)
			}
			if !strings.Contains(ve.Message, tC.wantMsg) {
				t.Errorf("Message = %q, want mention of %q", ve.Message, tC.wantMsg)
			}
		})
	}

	good := Dog{Name: "Spot", Age: 3}
	e, _ := New(&good)
	if err := e.Validate(); err != nil {
		t.Errorf("Validate rejected a valid entity: %v", err)
	}
}

func TestClean(t *testing.T) {
	p := Product{SKU: "A B!c", Price: 3.14159}
	e, err := New(&p)
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	if err := e.Clean(); err != nil {
		t.Fatalf("Clean err = %v", err)
	}
	if p.SKU != "A-B-c" {
		t.Errorf("SKU = %q, want A-B-c", p.SKU)
	}
	if p.Price != 3.14 {
		t.Errorf("Price = %v, want 3.14", p.Price)
	}
}

func TestCleanFailFast(t *testing.T) {
	p := Sticker{ID: "ok", Label: "not-a-number"}
	e, _ := New(&p)
	err := e.Clean()
	if err == nil {
		t.Fatal("Clean accepted an uncleanable value")
	}
	if !strings.Contains(err.Error(), "Label") {
		t.Errorf("Clean err = %v, want mention of the offending column", err)
	}
}

func TestLoadValuesBestEffort(t *testing.T) {
	dog := &Dog{}
	e, _ := New(dog)
	logger := &captureLog{}
	e.SetLogger(logger)

	e.LoadValues(map[string]interface{}{
		"Name": "Rex",
		"Age":  "elderly",
	})
	if dog.Name != "Rex" {
		t.Errorf("Name = %q; a bad sibling cell must not block other fields", dog.Name)
	}
	if dog.Age != 0 {
		t.Errorf("Age = %d, want untouched zero", dog.Age)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "Age") {
		t.Errorf("skip log = %v, want one entry naming Age", logger.errors)
	}
}

func TestCreateLoadUpdateDelete(t *testing.T) {
	db := openTestDB(t, "model_crud")

	dog := &Dog{Name: "Spot", Age: 3, Owner: "Ann", Born: time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)}
	e, err := New(dog)
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	if err := e.Create(db, true); err != nil {
		t.Fatalf("Create err = %v", err)
	}

	loaded := &Dog{}
	if _, err := Load(db, loaded, "Spot"); err != nil {
		t.Fatalf("Load err = %v", err)
	}
	if loaded.Age != 3 || loaded.Owner != "Ann" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Born.Format("2006-01-02") != "2019-05-01" {
		t.Errorf("Born = %v, want 2019-05-01", loaded.Born)
	}

	dog.Age = 4
	if err := e.Update(db, true); err != nil {
		t.Fatalf("Update err = %v", err)
	}
	again := &Dog{}
	if _, err := Load(db, again, "Spot"); err != nil {
		t.Fatalf("reload err = %v", err)
	}
	if again.Age != 4 {
		t.Errorf("Age after update = %d, want 4", again.Age)
	}

	n, err := Count(db, &Dog{}, nil)
	if err != nil || n != 1 {
		t.Errorf("Count = %d, %v, want 1", n, err)
	}

	if err := e.Delete(db); err != nil {
		t.Fatalf("Delete err = %v", err)
	}
	if _, err := Load(db, &Dog{}, "Spot"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete err = %v, want ErrNotFound", err)
	}
}

func TestLoadWhere(t *testing.T) {
	db := openTestDB(t, "model_loadwhere")
	seed(t, db, &Dog{Name: "Spot", Age: 3, Owner: "Ann"})

	dog := &Dog{}
	if _, err := LoadWhere(db, dog, "Owner", "Ann"); err != nil {
		t.Fatalf("LoadWhere err = %v", err)
	}
	if dog.Name != "Spot" {
		t.Errorf("Name = %q", dog.Name)
	}
	if _, err := LoadWhere(db, &Dog{}, "Fleas", 12); err == nil {
		t.Error("LoadWhere on an unmapped column must fail")
	}
}

func TestFind(t *testing.T) {
	db := openTestDB(t, "model_find")
	seed(t, db, &Dog{Name: "Spot", Age: 3, Owner: "Ann"})
	seed(t, db, &Dog{Name: "Rex", Age: 5, Owner: "Ann"})
	seed(t, db, &Dog{Name: "Fido", Age: 2, Owner: "Bob"})

	dogs, err := Find[*Dog](db, Query{
		Where:   clause.Where("Owner", "Ann"),
		OrderBy: "Age",
	})
	if err != nil {
		t.Fatalf("Find err = %v", err)
	}
	if len(dogs) != 2 || dogs[0].Name != "Spot" || dogs[1].Name != "Rex" {
		t.Errorf("Find = %+v", dogs)
	}

	ranged, err := Find[*Dog](db, Query{
		Where: clause.Where("Owner", "Ann").SetBetween("Age", 3, 5),
	})
	if err != nil {
		t.Fatalf("Find range err = %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("range matched %d dogs, want 2", len(ranged))
	}
}

// Read-path gateway failures are absorbed: Find logs and hands back an
// empty set instead of an error.
func TestFindReadFailurePolicy(t *testing.T) {
	db := openTestDB(t, "model_findfail")
	if _, err := db.Execute("drop table tblDog", false, nil, false); err != nil {
		t.Fatalf("drop: %v", err)
	}
	dogs, err := Find[*Dog](db, Query{})
	if err != nil {
		t.Fatalf("Find err = %v, the read path must not propagate", err)
	}
	if len(dogs) != 0 {
		t.Errorf("Find = %+v, want empty", dogs)
	}
}

// Write-path failures are never swallowed.
func TestCreateWriteFailurePolicy(t *testing.T) {
	db := openTestDB(t, "model_createfail")
	if _, err := db.Execute("drop table tblDog", false, nil, false); err != nil {
		t.Fatalf("drop: %v", err)
	}
	e, _ := New(&Dog{Name: "Spot", Age: 3})
	if err := e.Create(db, true); err == nil {
		t.Error("Create against a missing table must fail")
	}
}

func TestCreateEmptyIsNoOp(t *testing.T) {
	// Every field is generated or unset-optional, so there is nothing
	// to insert; the gateway must not even be touched.
	e, err := New(&Ghost{})
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	if err := e.Create(nil, false); err != nil {
		t.Errorf("empty Create err = %v, want no-op", err)
	}
}

func TestValidationBlocksWrite(t *testing.T) {
	e, _ := New(&Dog{Name: "Sp!ot"})
	err := e.Create(nil, true)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Create err = %v, want a ValidationError before any execution", err)
	}
}

func TestCreateContextCancellation(t *testing.T) {
	db := openTestDB(t, "model_cancel")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e, _ := New(&Dog{Name: "Spot", Age: 3})
	if err := e.CreateContext(ctx, db, true); err == nil {
		t.Error("a canceled context must surface through the write path")
	}
}

func TestFindPartial(t *testing.T) {
	db := openTestDB(t, "model_partial")
	seed(t, db, &Dog{Name: "Spot", Age: 3, Owner: "Ann"})

	partials, err := FindPartial(db, "tblDog", Query{Columns: []string{"Name", "Age"}})
	if err != nil {
		t.Fatalf("FindPartial err = %v", err)
	}
	if len(partials) != 1 {
		t.Fatalf("got %d partials, want 1", len(partials))
	}
	p := partials[0]
	if v, _ := p.Value("Name"); v != "Spot" {
		t.Errorf("Value(Name) = %v", v)
	}
	if len(p.Columns()) != 2 {
		t.Errorf("Columns = %v, want the full projection", p.Columns())
	}
}

func seed(t *testing.T, db *gateway.DB, dog *Dog) {
	t.Helper()
	e, err := New(dog)
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	if err := e.Create(db, true); err != nil {
		t.Fatalf("seed %s: %v", dog.Name, err)
	}
}

func TestNewNilModel(t *testing.T) {
	if _, err := New((*Dog)(nil)); err == nil {
		t.Error("New on a nil model pointer must fail, not panic")
	}
}

// fakeGateway records the last execution and plays back a canned result.
type fakeGateway struct {
	command  string
	wantRows bool
	result   *gateway.Result
}

func (f *fakeGateway) Execute(command string, procedure bool, params map[string]interface{}, wantRows bool) (*gateway.Result, error) {
	return f.ExecuteContext(context.Background(), command, procedure, params, wantRows)
}

func (f *fakeGateway) ExecuteContext(_ context.Context, command string, _ bool, _ map[string]interface{}, wantRows bool) (*gateway.Result, error) {
	f.command = command
	f.wantRows = wantRows
	return f.result, nil
}

type Badge struct {
	ID    int    `tagsql:"ID,id,auto"`
	Label string `check:"required"`
}

func (*Badge) TableName() string { return "tblBadge" }

func TestCreateAutoIdentityReload(t *testing.T) {
	gw := &fakeGateway{result: &gateway.Result{
		Rows: []map[string]interface{}{{"ID": int64(7), "Label": "gold"}},
	}}
	badge := &Badge{Label: "gold"}
	e, err := New(badge)
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	if err := e.Create(gw, true); err != nil {
		t.Fatalf("Create err = %v", err)
	}
	want := "INSERT INTO tblBadge (Label) OUTPUT INSERTED.ID, INSERTED.Label VALUES ('gold')"
	if gw.command != want {
		t.Errorf("command = %q, want %q", gw.command, want)
	}
	if !gw.wantRows {
		t.Error("an insert with output must request the row back")
	}
	if badge.ID != 7 {
		t.Errorf("ID = %d, want the generated key 7", badge.ID)
	}
}

func TestUpdateClearsOptional(t *testing.T) {
	gw := &fakeGateway{}
	e, err := New(&Ghost{ID: 7})
	if err != nil {
		t.Fatalf("New err = %v", err)
	}
	if err := e.Update(gw, false); err != nil {
		t.Fatalf("Update err = %v", err)
	}
	// Unlike the insert path, an unset optional renders into the SET
	// list so the update can null the column out.
	want := "UPDATE tblGhost SET Note = null WHERE ID=7"
	if gw.command != want {
		t.Errorf("command = %q, want %q", gw.command, want)
	}
}

func TestFindSetAfterOrConstrainsWholeTree(t *testing.T) {
	db := openTestDB(t, "model_predtree")
	seed(t, db, &Dog{Name: "Spot", Age: 3, Owner: "Ann"})
	seed(t, db, &Dog{Name: "Rex", Age: 5, Owner: "Ann"})
	seed(t, db, &Dog{Name: "Fido", Age: 2, Owner: "Bob"})

	// Age=2 must filter every owner branch, not just Bob's.
	where := clause.Where("Owner", "Ann").Or(clause.Where("Owner", "Bob")).Set("Age", 2)
	n, err := Count(db, &Dog{}, where)
	if err != nil {
		t.Fatalf("Count err = %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want only the age-2 dog", n)
	}
}
