package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentmanager/talentmanager/pkg/types"
)

const sampleCSV = `EmployeeNumber,Age,JobRole,Attrition,PerformanceRating,JobSatisfaction,WorkLifeBalance,OverTime,MonthlyIncome
001,41,Sales Executive,Yes,3,4,1,Yes,5993.5
002,49,Research Scientist,No,4,2,3,No,5130
004,37,Laboratory Technician,Yes,3,3,3,Yes,2090
005,33,Research Scientist,No,3,3,3,No,2909
007,27,Laboratory Technician,No,2,2,3,No,3468
`

// writeCSV writes content to a fresh temp dir and returns its path.
func writeCSV(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "employees.csv")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func open(t *testing.T, content string, opts Options) *Table {
	t.Helper()
	tbl, err := Open(writeCSV(t, content), opts)
	require.NoError(t, err)
	return tbl
}

func ids(recs []types.Record, col string) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		v, _ := r.Get(col)
		out[i] = types.Text(v)
	}
	return out
}

func get(t *testing.T, rec types.Record, col string) any {
	t.Helper()
	v, ok := rec.Get(col)
	require.True(t, ok, "column %s missing", col)
	return v
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingFile))
}

func TestOpen_EmptyFile(t *testing.T) {
	_, err := Open(writeCSV(t, ""), Options{})
	assert.Error(t, err)
}

func TestOpen_TooManyFields(t *testing.T) {
	_, err := Open(writeCSV(t, "a,b\n1,2,3\n"), Options{})
	assert.Error(t, err)
}

func TestOpen_TypesColumns(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	require.Equal(t, 5, tbl.Len())

	rec, err := tbl.Get("001")
	require.NoError(t, err)

	assert.Equal(t, "001", get(t, rec, "EmployeeNumber"), "identifier keeps leading zeros")
	assert.Equal(t, int64(41), get(t, rec, "Age"))
	assert.Equal(t, "Sales Executive", get(t, rec, "JobRole"))
	assert.Equal(t, 5993.5, get(t, rec, "MonthlyIncome"), "mixed int/float column is float")

	rec, err = tbl.Get("002")
	require.NoError(t, err)
	assert.Equal(t, float64(5130), get(t, rec, "MonthlyIncome"))
}

func TestOpen_ShortRowsAndBOM(t *testing.T) {
	tbl := open(t, "\ufeffEmployeeNumber,Age,JobRole\n1,30\n2,,Analyst\n", Options{})
	assert.Equal(t, []string{"EmployeeNumber", "Age", "JobRole"}, tbl.Columns())

	rec, err := tbl.Get("1")
	require.NoError(t, err)
	assert.Nil(t, get(t, rec, "JobRole"))

	rec, err = tbl.Get("2")
	require.NoError(t, err)
	assert.Nil(t, get(t, rec, "Age"))
}

func TestOpen_MissingMarkersLoadAsEmpty(t *testing.T) {
	tbl := open(t, `EmployeeNumber,Attrition,PerformanceRating,JobSatisfaction,WorkLifeBalance,OverTime,JobRole
1,Yes,1,4,3,No,NA
2,No,NA,N/A,3,No,#N/A
3,No,4,null,NaN,No,Analyst
`, Options{})

	rec, err := tbl.Get("1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), get(t, rec, "PerformanceRating"), "column stays numeric")
	assert.Nil(t, get(t, rec, "JobRole"))

	rec, err = tbl.Get("2")
	require.NoError(t, err)
	assert.Nil(t, get(t, rec, "PerformanceRating"))
	assert.Nil(t, get(t, rec, "JobSatisfaction"))

	s := tbl.Stats()
	assert.Equal(t, 2.5, s.AvgPerformance)
	assert.Equal(t, 4.0, s.AvgSatisfaction)
	assert.Equal(t, []string{"1"}, ids(tbl.Alerts(), "EmployeeNumber"))
}

func TestList(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	total := tbl.Len()

	cases := []struct {
		skip, limit int
	}{
		{0, 50}, {0, 2}, {1, 2}, {3, 10}, {5, 1}, {10, 5}, {0, 0}, {4, 1},
	}
	all := ids(tbl.List(0, total), "EmployeeNumber")
	for _, c := range cases {
		got := tbl.List(c.skip, c.limit)
		want := c.limit
		if rem := total - c.skip; rem < want {
			want = rem
		}
		if want < 0 {
			want = 0
		}
		require.Len(t, got, want, "List(%d, %d)", c.skip, c.limit)
		if want > 0 {
			assert.Equal(t, all[c.skip:c.skip+want], ids(got, "EmployeeNumber"), "List(%d, %d)", c.skip, c.limit)
		}
		assert.NotNil(t, got)
	}
}

func TestList_KeepsColumnOrder(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	recs := tbl.List(0, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, tbl.Columns(), recs[0].Names())
}

func TestList_ReturnsCopies(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	recs := tbl.List(0, 1)
	recs[0].Set("JobRole", "Changed")

	rec, err := tbl.Get("001")
	require.NoError(t, err)
	assert.Equal(t, "Sales Executive", get(t, rec, "JobRole"))
}

func TestGet_FirstMatchWins(t *testing.T) {
	tbl := open(t, "EmployeeNumber,JobRole\n1,First\n1,Second\n", Options{})
	rec, err := tbl.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "First", get(t, rec, "JobRole"))
}

func TestGet_NotFound(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	_, err := tbl.Get("1")
	assert.True(t, errors.Is(err, ErrNotFound), "ids are compared as text: 1 != 001")

	empty := open(t, "EmployeeNumber,JobRole\n", Options{})
	_, err = empty.Get("001")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStats_Scenario(t *testing.T) {
	tbl := open(t, `id,Attrition,PerformanceRating,JobSatisfaction
1,Yes,3,4
2,No,2,3
`, Options{IDColumn: "id"})

	assert.Equal(t, Stats{
		TotalEmployees:  2,
		AttritionRate:   0.5,
		AvgPerformance:  2.5,
		AvgSatisfaction: 3.5,
	}, tbl.Stats())
}

func TestStats_Rounding(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	s := tbl.Stats()

	assert.Equal(t, 5, s.TotalEmployees)
	assert.Equal(t, 0.4, s.AttritionRate)
	assert.Equal(t, 3.0, s.AvgPerformance)
	assert.Equal(t, 2.8, s.AvgSatisfaction)

	third := open(t, "EmployeeNumber,Attrition,PerformanceRating,JobSatisfaction\n1,Yes,1,1\n2,No,1,1\n3,No,2,1\n", Options{})
	s = third.Stats()
	assert.Equal(t, 0.33, s.AttritionRate)
	assert.Equal(t, 1.33, s.AvgPerformance)
}

func TestStats_RoundsHalfToEven(t *testing.T) {
	// 1 of 8 leaves is 0.125; performance mean 17/8 = 2.125; satisfaction 21/8 = 2.625.
	tbl := open(t, `EmployeeNumber,Attrition,PerformanceRating,JobSatisfaction
1,Yes,3,3
2,No,3,3
3,No,3,3
4,No,2,3
5,No,2,3
6,No,2,2
7,No,1,2
8,No,1,2
`, Options{})
	s := tbl.Stats()
	assert.Equal(t, 0.12, s.AttritionRate)
	assert.Equal(t, 2.12, s.AvgPerformance)
	assert.Equal(t, 2.62, s.AvgSatisfaction)

	assert.Equal(t, 0.38, round2(0.375))
	assert.Equal(t, 0.33, round2(1.0/3))
	assert.Equal(t, 2.68, round2(2.6750001))
}

func TestStats_EmptyTableIsZero(t *testing.T) {
	tbl := open(t, "EmployeeNumber,Attrition,PerformanceRating,JobSatisfaction\n", Options{})
	assert.Equal(t, Stats{}, tbl.Stats())
}

func TestStats_SkipsEmptyCells(t *testing.T) {
	tbl := open(t, "EmployeeNumber,Attrition,PerformanceRating,JobSatisfaction\n1,Yes,4,\n2,No,,2\n", Options{})
	s := tbl.Stats()
	assert.Equal(t, 2, s.TotalEmployees)
	assert.Equal(t, 4.0, s.AvgPerformance)
	assert.Equal(t, 2.0, s.AvgSatisfaction)
}

func TestAlerts(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	got := tbl.Alerts()

	// low performance (007), low work-life balance (001), overtime (001 dup, 004).
	assert.Equal(t, []string{"007", "001", "004"}, ids(got, "EmployeeNumber"))
	for _, rec := range got {
		assert.Equal(t, []string{"EmployeeNumber", "JobRole", "PerformanceRating", "WorkLifeBalance", "OverTime"}, rec.Names())
	}
}

func TestAlerts_EveryEntryMatchesACriterion(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	seen := map[string]bool{}
	for _, rec := range tbl.Alerts() {
		b, err := json.Marshal(rec)
		require.NoError(t, err)
		assert.False(t, seen[string(b)], "duplicate alert %s", b)
		seen[string(b)] = true

		perf, _ := types.Number(get(t, rec, "PerformanceRating"))
		wlb, _ := types.Number(get(t, rec, "WorkLifeBalance"))
		ot := get(t, rec, "OverTime")
		assert.True(t, perf <= 2 || wlb <= 2 || ot == "Yes", "entry %s matches no criterion", b)
	}
}

func TestAlerts_IdenticalRowsCollapse(t *testing.T) {
	tbl := open(t, "EmployeeNumber,JobRole,PerformanceRating,WorkLifeBalance,OverTime\n1,A,1,1,Yes\n1,A,1,1,Yes\n1,B,1,1,Yes\n", Options{})
	got := tbl.Alerts()
	require.Len(t, got, 2)
	assert.Equal(t, "A", get(t, got[0], "JobRole"))
	assert.Equal(t, "B", get(t, got[1], "JobRole"))
}

func TestAdd_Scenario(t *testing.T) {
	tbl := open(t, "id,JobRole,Age\n1,Manager,40\n2,Sales,31\n", Options{IDColumn: "id"})

	require.NoError(t, tbl.Add(types.Record{{Name: "id", Value: "3"}, {Name: "JobRole", Value: "Analyst"}}))
	assert.Equal(t, 3, tbl.Len())

	rec, err := tbl.Get("3")
	require.NoError(t, err)
	assert.Equal(t, "Analyst", get(t, rec, "JobRole"))
	assert.Nil(t, get(t, rec, "Age"))

	last := tbl.List(2, 1)
	require.Len(t, last, 1)
	assert.Equal(t, "3", get(t, last[0], "id"))
}

func TestAdd_RewritesFileThatReloadsToSameTable(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	require.NoError(t, tbl.Add(types.Record{
		{Name: "EmployeeNumber", Value: "010"},
		{Name: "Age", Value: int64(29)},
		{Name: "JobRole", Value: "Analyst"},
		{Name: "PerformanceRating", Value: int64(1)},
		{Name: "MonthlyIncome", Value: 4200.25},
		{Name: "Remote", Value: "Yes"},
	}))

	reloaded, err := Open(tbl.Path(), Options{})
	require.NoError(t, err)

	assert.Equal(t, tbl.Columns(), reloaded.Columns())
	want, _ := json.Marshal(tbl.List(0, 100))
	got, _ := json.Marshal(reloaded.List(0, 100))
	assert.JSONEq(t, string(want), string(got))

	assert.Equal(t, "Remote", tbl.Columns()[len(tbl.Columns())-1], "new columns are appended to the header")
}

func TestAdd_NumericIDStoredAsText(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	require.NoError(t, tbl.Add(types.Record{{Name: "EmployeeNumber", Value: int64(99)}}))

	rec, err := tbl.Get("99")
	require.NoError(t, err)
	assert.Equal(t, "99", get(t, rec, "EmployeeNumber"))
}

func TestAdd_FailureLeavesTableUnchanged(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "employees.csv")
	require.NoError(t, os.WriteFile(p, []byte(sampleCSV), 0o644))
	tbl, err := Open(p, Options{})
	require.NoError(t, err)

	// Removing the directory makes the temp file creation fail.
	require.NoError(t, os.RemoveAll(dir))

	err = tbl.Add(types.Record{{Name: "EmployeeNumber", Value: "999"}})
	require.Error(t, err)
	assert.Equal(t, 5, tbl.Len())
	_, err = tbl.Get("999")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAdd_PublishesEvent(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	var events []Event
	tbl.Subscribe(func(ev Event) { events = append(events, ev) })

	require.NoError(t, tbl.Add(types.Record{{Name: "EmployeeNumber", Value: "100"}}))

	require.Len(t, events, 1)
	assert.Equal(t, EventAdded, events[0].Kind)
	assert.Equal(t, 6, events[0].Count)
	assert.Equal(t, "100", get(t, events[0].Record, "EmployeeNumber"))
}

func TestReload(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	var events []Event
	tbl.Subscribe(func(ev Event) { events = append(events, ev) })

	changed, err := tbl.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "unchanged file is not reloaded")

	require.NoError(t, tbl.Add(types.Record{{Name: "EmployeeNumber", Value: "100"}}))
	changed, err = tbl.Reload()
	require.NoError(t, err)
	assert.False(t, changed, "own write is not reloaded")

	require.NoError(t, os.WriteFile(tbl.Path(), []byte("EmployeeNumber,JobRole\n9,Solo\n"), 0o644))
	changed, err = tbl.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, tbl.Len())

	require.NoError(t, os.WriteFile(tbl.Path(), []byte("a,b\n1,2,3\n"), 0o644))
	_, err = tbl.Reload()
	assert.Error(t, err)
	assert.Equal(t, 1, tbl.Len(), "failed reload keeps previous table")

	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{EventAdded, EventReloaded, EventReloadFailed}, kinds)
}

func TestConcurrentAddsAndReads(t *testing.T) {
	tbl := open(t, sampleCSV, Options{})
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, tbl.Add(types.Record{{Name: "EmployeeNumber", Value: fmt.Sprintf("c%d", n)}}))
		}(i)
		go func() {
			defer wg.Done()
			tbl.Stats()
			tbl.Alerts()
			tbl.List(0, 50)
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, tbl.Len())
	reloaded, err := Open(tbl.Path(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 25, reloaded.Len(), "no lost updates in the file")
}
