package calai

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/yazinsai/cal-ai/internal/clock"
)

// resetFlags puts every flag back to its default so one Execute does not
// leak values into the next.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func useFakeClock(t *testing.T, now time.Time) *clock.Fake {
	t.Helper()
	fake := clock.NewFake(now, time.UTC)
	prev := newClock
	newClock = func(*time.Location) clock.Clock { return fake }
	t.Cleanup(func() { newClock = prev })
	t.Setenv("CALAI_TIMEZONE", "UTC")
	return fake
}

func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	full := append([]string{
		"--db", filepath.Join(dir, "calai.db"),
		"--config", filepath.Join(dir, "calai.yaml"),
		"--env-file", filepath.Join(dir, ".env"),
	}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, args...)
	if err != nil {
		t.Fatalf("calai %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func expectContains(t *testing.T, out, want string) {
	t.Helper()
	if !strings.Contains(out, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, out)
	}
}

var addedID = regexp.MustCompile(`Added entry (\S+)`)

func entryID(t *testing.T, out string) string {
	t.Helper()
	m := addedID.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no entry id in output:\n%s", out)
	}
	return m[1]
}

func TestRootHelp(t *testing.T) {
	resetFlags(rootCmd)
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"--help"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute root help: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected help output")
	}
}

func TestInitCommandIdempotent(t *testing.T) {
	useFakeClock(t, time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC))
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		out := mustRun(t, dir, "init")
		expectContains(t, out, "Initialized calai database at")
	}
	if _, err := os.Stat(filepath.Join(dir, "calai.yaml")); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	expectContains(t, mustRun(t, dir, "config", "show"), "storage.driver\tsqlite")
}

func TestDayInTheLifeFlow(t *testing.T) {
	useFakeClock(t, time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC))
	dir := t.TempDir()

	mustRun(t, dir, "target", "set", "--calories", "2000", "--protein", "150", "--carbs", "200", "--fat", "65", "--sugar", "30")
	oats := entryID(t, mustRun(t, dir, "entry", "add", "--name", "Oatmeal", "--calories", "300", "--protein", "10", "--carbs", "50", "--fat", "6", "--sugar", "8", "--meal", "breakfast"))
	mustRun(t, dir, "entry", "add", "--name", "Salad", "--calories", "250", "--protein", "12", "--carbs", "10", "--fat", "18")

	out := mustRun(t, dir, "today")
	expectContains(t, out, "Date: 2026-03-05")
	expectContains(t, out, "Intake: 550 kcal")
	expectContains(t, out, "Remaining: 1450 kcal")

	out = mustRun(t, dir, "entry", "list", "--meal", "lunch")
	expectContains(t, out, "Salad")
	if strings.Contains(out, "Oatmeal") {
		t.Fatalf("meal filter leaked breakfast entry:\n%s", out)
	}

	expectContains(t, mustRun(t, dir, "quicklog", "log", "oatmeal", "--servings", "2"), "600 kcal")
	expectContains(t, mustRun(t, dir, "today"), "Intake: 1150 kcal")

	expectContains(t, mustRun(t, dir, "entry", "adjust", oats, "--delta", "-100"), "to 200 kcal")
	expectContains(t, mustRun(t, dir, "entry", "update", oats, "--portion", "1 bowl"), "Updated entry "+oats)

	expectContains(t, mustRun(t, dir, "entry", "remove", oats), "Removed Oatmeal")
	expectContains(t, mustRun(t, dir, "today"), "Intake: 850 kcal")
	expectContains(t, mustRun(t, dir, "entry", "undo"), "Restored Oatmeal")
	expectContains(t, mustRun(t, dir, "today"), "Intake: 1050 kcal")

	out = mustRun(t, dir, "quicklog", "list")
	expectContains(t, out, "Oatmeal")
	expectContains(t, mustRun(t, dir, "quicklog", "star", "salad"), "Starred Salad")

	out = mustRun(t, dir, "history", "--days", "3")
	expectContains(t, out, "2026-03-03\t0\t0")
	expectContains(t, out, "2026-03-05\t3\t1050")

	out = mustRun(t, dir, "stats", "--days", "7")
	expectContains(t, out, "Streak: 1")
	expectContains(t, out, "Weekly adherence: 0%")

	out = mustRun(t, dir, "suggest", "--limit", "2")
	expectContains(t, out, "Remaining: 950 kcal")
	expectContains(t, out, "SCORE")
}

func TestUndoWindowExpires(t *testing.T) {
	fake := useFakeClock(t, time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	id := entryID(t, mustRun(t, dir, "entry", "add", "--name", "Toast", "--calories", "90"))
	mustRun(t, dir, "entry", "remove", id)
	fake.Advance(6 * time.Second)
	if _, err := runCLI(t, dir, "entry", "undo"); err == nil {
		t.Fatalf("expected undo after the window to fail")
	}
}

func TestResetCheckAndStatus(t *testing.T) {
	fake := useFakeClock(t, time.Date(2026, 3, 5, 23, 59, 0, 0, time.UTC))
	dir := t.TempDir()

	expectContains(t, mustRun(t, dir, "reset", "check"), "Rolled over from - to 2026-03-05")
	expectContains(t, mustRun(t, dir, "reset", "check"), "Already current")
	expectContains(t, mustRun(t, dir, "reset", "status"), "State: CURRENT")

	fake.Advance(2 * time.Minute)
	expectContains(t, mustRun(t, dir, "reset", "status"), "State: STALE")
	expectContains(t, mustRun(t, dir, "reset", "check"), "Rolled over from 2026-03-05 to 2026-03-06")
}

func TestExportImportRoundTrip(t *testing.T) {
	useFakeClock(t, time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC))
	src := t.TempDir()
	dst := t.TempDir()

	mustRun(t, src, "entry", "add", "--name", "Eggs", "--calories", "155", "--date", "2026-03-04", "--time", "08:00")
	mustRun(t, src, "entry", "add", "--name", "Rice", "--calories", "200")

	snapshot := filepath.Join(src, "export.json")
	expectContains(t, mustRun(t, src, "export", "--out", snapshot), "Exported 2 day(s)")

	out := mustRun(t, dst, "import", snapshot, "--dry-run")
	expectContains(t, out, "Dry run")
	expectContains(t, mustRun(t, dst, "today"), "Entries: 0")

	out = mustRun(t, dst, "import", snapshot, "--mode", "merge")
	expectContains(t, out, "Days inserted: 2")
	expectContains(t, out, "Entries: 2")
	expectContains(t, mustRun(t, dst, "today", "--date", "2026-03-04"), "Intake: 155 kcal")

	if _, err := runCLI(t, dst, "import", snapshot, "--mode", "fail"); err == nil {
		t.Fatalf("expected fail mode to reject non-empty days")
	}

	out = mustRun(t, src, "export", "--format", "csv")
	expectContains(t, out, "Date,Meal,Food,Calories,Protein,Carbs,Fat,Sugar")
	expectContains(t, out, "2026-03-04 08:00,breakfast,Eggs,155")
}

func TestBackupReportAndDoctor(t *testing.T) {
	useFakeClock(t, time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	mustRun(t, dir, "entry", "add", "--name", "Apple", "--calories", "95")

	backups := filepath.Join(dir, "bk")
	expectContains(t, mustRun(t, dir, "backup", "create", "--dir", backups, "--compress"), ".db.xz")
	expectContains(t, mustRun(t, dir, "backup", "list", "--dir", backups), ".db.xz")

	pdf := filepath.Join(dir, "report.pdf")
	expectContains(t, mustRun(t, dir, "report", "--days", "7", "--out", pdf, "--entries"), "Wrote report")
	if info, err := os.Stat(pdf); err != nil || info.Size() == 0 {
		t.Fatalf("expected a non-empty report, err=%v", err)
	}

	expectContains(t, mustRun(t, dir, "doctor"), "Malformed records: 0")
}

func TestProfileAndOfflineTargetEstimate(t *testing.T) {
	useFakeClock(t, time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC))
	dir := t.TempDir()

	if _, err := runCLI(t, dir, "suggest"); err == nil {
		t.Fatalf("expected suggest without a target to fail")
	}
	mustRun(t, dir, "profile", "set", "--age", "30", "--gender", "male", "--activity", "sedentary", "--goal", "maintain", "--weight", "80", "--height", "180", "--units", "metric")
	expectContains(t, mustRun(t, dir, "profile", "show"), "Weight: 80")
	expectContains(t, mustRun(t, dir, "target", "estimate", "--offline"), "Target set: 2150 kcal")
	expectContains(t, mustRun(t, dir, "target", "show"), "P 160.0g")

	if _, err := runCLI(t, dir, "profile", "set", "--gender", "robot"); err == nil {
		t.Fatalf("expected invalid gender to fail")
	}
}

func TestSettings(t *testing.T) {
	useFakeClock(t, time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	mustRun(t, dir, "settings", "set", "dark_mode", "false")
	if out := mustRun(t, dir, "settings", "get", "dark_mode"); strings.TrimSpace(out) != "false" {
		t.Fatalf("expected dark_mode=false, got %q", out)
	}
	if _, err := runCLI(t, dir, "settings", "set", "volume", "11"); err == nil {
		t.Fatalf("expected unknown setting to fail")
	}
}

func TestEstimateTextLogsEntry(t *testing.T) {
	useFakeClock(t, time.Date(2026, 3, 5, 15, 30, 0, 0, time.UTC))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"name":"Banana","calories":105,"protein":1.3,"carbs":27,"fat":0.4,"sugar":14,"portion":"1 medium","confidence":0.8}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	defer ts.Close()
	t.Setenv("CALAI_ESTIMATOR_BASE_URL", ts.URL)
	t.Setenv("CALAI_TEST_ESTIMATOR_KEY", "secret")
	t.Setenv("CALAI_ESTIMATOR_API_KEY_ENV", "CALAI_TEST_ESTIMATOR_KEY")
	dir := t.TempDir()

	out := mustRun(t, dir, "estimate", "text", "a banana", "--log", "--meal", "snack")
	expectContains(t, out, "Food: Banana")
	expectContains(t, out, "Confidence: 80%")
	expectContains(t, out, "Added entry")
	expectContains(t, mustRun(t, dir, "entry", "list"), "snack\tBanana\t105")
}
