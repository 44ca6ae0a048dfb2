package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"themescore/internal/logging"
	"themescore/internal/progress"
	"themescore/internal/prompts"
	"themescore/internal/proposals"
	"themescore/internal/scorestore"
	"themescore/internal/services"
	"themescore/internal/themes"
)

const verdictJSON = `{"score": 5, "verdict": "strong", "rationale": "natural progression"}`

type memCatalog struct {
	themes  []themes.Theme
	lookups map[string]int
}

func newMemCatalog(ids ...string) *memCatalog {
	c := &memCatalog{lookups: map[string]int{}}
	for _, id := range ids {
		c.themes = append(c.themes, themes.Theme{ID: id, Name: strings.ToUpper(id[:1]) + id[1:], Data: map[string]any{}})
	}
	return c
}

func (c *memCatalog) Load(context.Context, []string) ([]themes.Theme, error) {
	return c.themes, nil
}

func (c *memCatalog) Lookup(_ context.Context, idOrName string) (themes.Theme, error) {
	c.lookups[themes.Key(idOrName)]++
	for _, theme := range c.themes {
		if themes.Key(theme.ID) == themes.Key(idOrName) || themes.Key(theme.Name) == themes.Key(idOrName) {
			return theme, nil
		}
	}
	return themes.Theme{}, fmt.Errorf("%q: %w", idOrName, themes.ErrThemeNotFound)
}

func (c *memCatalog) List(ctx context.Context) ([]themes.Theme, error) { return c.Load(ctx, nil) }

type generateCall struct {
	model     string
	prompt    string
	opts      services.GenerateOptions
	requestID string
}

type scriptedGenerator struct {
	calls     []generateCall
	responses []string
	errs      map[int]error
}

func (g *scriptedGenerator) Generate(ctx context.Context, model, prompt string, opts services.GenerateOptions) (string, error) {
	n := len(g.calls)
	rid, _ := services.RequestIDFromContext(ctx)
	g.calls = append(g.calls, generateCall{model: model, prompt: prompt, opts: opts, requestID: rid})
	if err := g.errs[n]; err != nil {
		return "", err
	}
	if len(g.responses) == 0 {
		return verdictJSON, nil
	}
	return g.responses[n%len(g.responses)], nil
}

type harness struct {
	t         *testing.T
	catalog   *memCatalog
	generator *scriptedGenerator
	store     *scorestore.Store
	logPath   string
	cfg       RunConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{
		t:         t,
		catalog:   newMemCatalog("obedience", "trance", "mind_control", "hypnosis"),
		generator: &scriptedGenerator{},
		store:     scorestore.New(filepath.Join(dir, "scored")),
		logPath:   filepath.Join(dir, "progress.log"),
		cfg: RunConfig{
			Options:      Options{Model: "llama3.1:8b", Temperature: 0.2, TopP: 0.9, RepeatPenalty: 1.1, Passes: 2},
			RunID:        "run-1",
			SkipExisting: true,
			Limit:        proposals.NoLimit,
		},
	}
}

func (h *harness) run(ctx context.Context, batches []proposals.Batch) (Summary, error) {
	h.t.Helper()
	registry := themes.NewRegistry(h.catalog, logging.NewNop())
	if _, err := registry.Load(ctx, nil); err != nil {
		h.t.Fatalf("load registry: %v", err)
	}
	renderer, err := prompts.NewScoringRenderer("")
	if err != nil {
		h.t.Fatal(err)
	}
	progressLog, err := progress.Open(h.logPath)
	if err != nil {
		h.t.Fatal(err)
	}
	orch, err := New(h.cfg, Dependencies{
		Resolver:  registry,
		Renderer:  renderer,
		Generator: h.generator,
		Store:     h.store,
		Progress:  progressLog,
		Logger:    logging.NewNop(),
	})
	if err != nil {
		h.t.Fatalf("New: %v", err)
	}
	return orch.Run(ctx, batches)
}

func (h *harness) files() []string {
	h.t.Helper()
	entries, err := h.store.List()
	if err != nil {
		h.t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	sort.Strings(names)
	return names
}

func (h *harness) progressLines() []string {
	h.t.Helper()
	data, err := os.ReadFile(h.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		h.t.Fatal(err)
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		// Drop the timestamp prefix.
		if _, msg, ok := strings.Cut(line, " "); ok {
			lines = append(lines, msg)
		}
	}
	return lines
}

func (h *harness) readRecord(name string) map[string]any {
	h.t.Helper()
	var record map[string]any
	if err := h.store.Read(name, &record); err != nil {
		h.t.Fatal(err)
	}
	return record
}

func proposal(targetID, targetName string) proposals.Proposal {
	raw, _ := json.Marshal(map[string]string{"target_id": targetID, "target_name": targetName})
	return proposals.Proposal{TargetID: targetID, TargetName: targetName, Rationale: "they blend", Raw: raw}
}

func batch(combo string, props ...proposals.Proposal) proposals.Batch {
	return proposals.Batch{
		ComboID:    combo,
		Sources:    []string{"obedience", "trance"},
		Proposals:  props,
		SourcePath: "/raw/" + combo + ".json",
	}
}

func countPrefix(lines []string, prefix string) int {
	n := 0
	for _, line := range lines {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}

func TestRunEndToEndTwoPasses(t *testing.T) {
	h := newHarness(t)
	summary, err := h.run(context.Background(), []proposals.Batch{batch("obedience_trance", proposal("mind_control", "Mind Control"))})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"obedience_trance__sample0__0__pass0.json", "obedience_trance__sample0__0__pass1.json"}
	if got := h.files(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", got, want)
	}
	for pass, name := range want {
		record := h.readRecord(name)
		parsed := record["parsed"].(map[string]any)
		if parsed["score"] != float64(5) || parsed["verdict"] != "strong" {
			t.Fatalf("%s parsed = %v", name, parsed)
		}
		if record["pass_index"] != float64(pass) {
			t.Fatalf("%s pass_index = %v", name, record["pass_index"])
		}
		if record["target"] != "mind_control" || record["scoring_model"] != "llama3.1:8b" {
			t.Fatalf("%s unexpected record %v", name, record)
		}
		if record["prompt_version"] != prompts.Version || record["run_id"] != "run-1" {
			t.Fatalf("%s missing run metadata: %v", name, record)
		}
		if _, ok := record["prompt"]; ok {
			t.Fatalf("%s should not include prompt", name)
		}
		snapshot := record["proposal"].(map[string]any)
		if snapshot["source_record"] != "/raw/obedience_trance.json" || snapshot["proposal_index"] != float64(0) {
			t.Fatalf("%s proposal snapshot = %v", name, snapshot)
		}
		options := record["options"].(map[string]any)
		if options["temperature"] != 0.2 || options["top_p"] != 0.9 || options["repeat_penalty"] != 1.1 {
			t.Fatalf("%s options = %v", name, options)
		}
	}

	if summary.Written != 2 || summary.Batches != 1 || summary.Proposals != 1 || summary.Degraded != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(h.generator.calls) != 2 {
		t.Fatalf("expected 2 backend calls, got %d", len(h.generator.calls))
	}
	call := h.generator.calls[1]
	if call.model != "llama3.1:8b" || call.opts.Temperature != 0.2 || call.opts.TopP != 0.9 || call.opts.RepeatPenalty != 1.1 {
		t.Fatalf("unexpected call %+v", call)
	}
	if call.requestID != "run-1/obedience_trance__sample0__0__pass1.json" {
		t.Fatalf("request id = %q", call.requestID)
	}
	if h.generator.calls[0].prompt != h.generator.calls[1].prompt {
		t.Fatal("passes should share one rendered prompt")
	}

	lines := h.progressLines()
	wantLines := []string{
		"START 1/1 obedience_trance",
		"WRITE obedience_trance proposal 0 pass 0 -> obedience_trance__sample0__0__pass0.json",
		"WRITE obedience_trance proposal 0 pass 1 -> obedience_trance__sample0__0__pass1.json",
		"DONE wrote results to " + h.store.Dir(),
	}
	if strings.Join(lines, "\n") != strings.Join(wantLines, "\n") {
		t.Fatalf("progress lines:\n%s\nwant:\n%s", strings.Join(lines, "\n"), strings.Join(wantLines, "\n"))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	batches := []proposals.Batch{batch("combo", proposal("mind_control", ""), proposal("", "Hypnosis"))}
	if _, err := h.run(context.Background(), batches); err != nil {
		t.Fatal(err)
	}
	first := h.files()
	before := map[string][]byte{}
	for _, name := range first {
		data, err := os.ReadFile(filepath.Join(h.store.Dir(), name))
		if err != nil {
			t.Fatal(err)
		}
		before[name] = data
	}

	h.generator = &scriptedGenerator{responses: []string{`{"score": 1, "verdict": "weak", "rationale": "changed"}`}}
	summary, err := h.run(context.Background(), batches)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.generator.calls) != 0 {
		t.Fatalf("rerun made %d backend calls", len(h.generator.calls))
	}
	if summary.SkippedExisting != 4 || summary.Written != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := h.files(); strings.Join(got, ",") != strings.Join(first, ",") {
		t.Fatalf("file set changed: %v -> %v", first, got)
	}
	for name, data := range before {
		after, err := os.ReadFile(filepath.Join(h.store.Dir(), name))
		if err != nil {
			t.Fatal(err)
		}
		if string(after) != string(data) {
			t.Fatalf("%s was rewritten", name)
		}
	}
}

func TestRunWithoutSkipExistingOverwrites(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 1
	batches := []proposals.Batch{batch("combo", proposal("mind_control", ""))}
	if _, err := h.run(context.Background(), batches); err != nil {
		t.Fatal(err)
	}

	h.cfg.SkipExisting = false
	h.generator = &scriptedGenerator{responses: []string{`{"score": 2, "verdict": "weak", "rationale": "second"}`}}
	if _, err := h.run(context.Background(), batches); err != nil {
		t.Fatal(err)
	}
	if len(h.generator.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(h.generator.calls))
	}
	parsed := h.readRecord("combo__sample0__0__pass0.json")["parsed"].(map[string]any)
	if parsed["score"] != float64(2) {
		t.Fatalf("record not overwritten: %v", parsed)
	}
}

func TestRunSkipsProposalWithoutTarget(t *testing.T) {
	h := newHarness(t)
	empty := proposals.Proposal{Raw: json.RawMessage(`{"rationale":"no target"}`)}
	summary, err := h.run(context.Background(), []proposals.Batch{batch("combo", empty)})
	if err != nil {
		t.Fatal(err)
	}
	if files := h.files(); len(files) != 0 {
		t.Fatalf("expected no records, got %v", files)
	}
	if len(h.generator.calls) != 0 {
		t.Fatal("backend should not be called")
	}
	lines := h.progressLines()
	if countPrefix(lines, "SKIP") != 1 || !containsLine(lines, "SKIP missing target fields combo proposal 0") {
		t.Fatalf("progress lines = %v", lines)
	}
	if summary.SkippedProposals != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunThreePassesProduceThreeRecords(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 3
	h.generator.responses = []string{
		`{"score": 3, "verdict": "plausible", "rationale": "a"}`,
		`{"score": 4, "verdict": "plausible", "rationale": "b"}`,
		`{"score": 5, "verdict": "strong", "rationale": "c"}`,
	}
	if _, err := h.run(context.Background(), []proposals.Batch{batch("combo", proposal("hypnosis", "Hypnosis"))}); err != nil {
		t.Fatal(err)
	}
	files := h.files()
	if len(files) != 3 {
		t.Fatalf("expected 3 records, got %v", files)
	}
	for pass, name := range files {
		if want := fmt.Sprintf("combo__sample0__0__pass%d.json", pass); name != want {
			t.Fatalf("file %d = %s, want %s", pass, name, want)
		}
		parsed := h.readRecord(name)["parsed"].(map[string]any)
		if parsed["score"] != float64(pass+3) {
			t.Fatalf("pass %d parsed = %v", pass, parsed)
		}
	}
}

func TestRunWritesDegradedRecordOnParseFailure(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 1
	raw := "I think this is a strong match, maybe a 5?"
	h.generator.responses = []string{raw}
	summary, err := h.run(context.Background(), []proposals.Batch{batch("combo", proposal("mind_control", ""))})
	if err != nil {
		t.Fatal(err)
	}
	record := h.readRecord("combo__sample0__0__pass0.json")
	if record["raw_response"] != raw {
		t.Fatalf("raw_response = %v", record["raw_response"])
	}
	parsed := record["parsed"].(map[string]any)
	if parsed["raw_response"] != raw || parsed["error"] == "" || parsed["error"] == nil {
		t.Fatalf("parsed = %v", parsed)
	}
	if _, ok := parsed["score"]; ok {
		t.Fatal("degraded record must not carry a score")
	}
	if summary.Degraded != 1 || summary.Written != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestRunKeepsWordScoreInsteadOfDegrading(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 1
	h.generator.responses = []string{`{"score": "high", "verdict": "strong", "rationale": "same focus"}`}
	summary, err := h.run(context.Background(), []proposals.Batch{batch("combo", proposal("mind_control", ""))})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Degraded != 0 || summary.Written != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	parsed := h.readRecord("combo__sample0__0__pass0.json")["parsed"].(map[string]any)
	if parsed["score"] != "high" || parsed["verdict"] != "strong" {
		t.Fatalf("parsed = %v", parsed)
	}
	if _, ok := parsed["error"]; ok {
		t.Fatalf("record should not carry an error: %v", parsed)
	}
}

func TestRunGenerationFailureAbandonsRemainingPasses(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 3
	h.generator.errs = map[int]error{1: services.Wrap(services.ErrTimeout, "ollama", "generate", "deadline", nil)}
	batches := []proposals.Batch{batch("combo", proposal("mind_control", ""), proposal("hypnosis", ""))}
	summary, err := h.run(context.Background(), batches)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"combo__sample0__0__pass0.json",
		"combo__sample0__1__pass0.json",
		"combo__sample0__1__pass1.json",
		"combo__sample0__1__pass2.json",
	}
	if got := h.files(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("files = %v, want %v", got, want)
	}
	if len(h.generator.calls) != 5 {
		t.Fatalf("expected 5 backend calls, got %d", len(h.generator.calls))
	}
	if summary.GenerationFailures != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if !containsLine(h.progressLines(), "SKIP generation failed combo proposal 0 pass 1: timeout") {
		t.Fatalf("progress lines = %v", h.progressLines())
	}
}

func TestRunResumesAfterPartialFailure(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 2
	h.generator.errs = map[int]error{1: errors.New("connection reset")}
	batches := []proposals.Batch{batch("combo", proposal("mind_control", ""))}
	if _, err := h.run(context.Background(), batches); err != nil {
		t.Fatal(err)
	}
	if len(h.files()) != 1 {
		t.Fatalf("expected 1 record after failure, got %v", h.files())
	}

	h.generator = &scriptedGenerator{}
	summary, err := h.run(context.Background(), batches)
	if err != nil {
		t.Fatal(err)
	}
	if len(h.generator.calls) != 1 || summary.SkippedExisting != 1 || summary.Written != 1 {
		t.Fatalf("calls=%d summary=%+v", len(h.generator.calls), summary)
	}
}

func TestRunSkipsBatchWithUnknownSource(t *testing.T) {
	h := newHarness(t)
	bad := batch("bad", proposal("mind_control", ""))
	bad.Sources = []string{"obedience", "ghost"}
	good := batch("good", proposal("mind_control", ""))
	summary, err := h.run(context.Background(), []proposals.Batch{bad, good})
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range h.files() {
		if strings.HasPrefix(name, "bad__") {
			t.Fatalf("unexpected record %s", name)
		}
	}
	if summary.SkippedBatches != 1 || summary.Written != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	lines := h.progressLines()
	if countPrefix(lines, "SKIP unknown source /raw/bad.json") != 1 || !containsLine(lines, "START 2/2 good") {
		t.Fatalf("progress lines = %v", lines)
	}
}

func TestRunMissingTargetThemeDoesNotHideLaterMatch(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 1
	batches := []proposals.Batch{
		batch("one", proposal("x", "Nowhere")),
		batch("two", proposal("x", "Hypnosis")),
	}
	summary, err := h.run(context.Background(), batches)
	if err != nil {
		t.Fatal(err)
	}
	if summary.SkippedProposals != 1 || summary.Written != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	lines := h.progressLines()
	if countPrefix(lines, "SKIP missing target theme") != 1 || !containsLine(lines, "SKIP missing target theme one proposal 0: Nowhere") {
		t.Fatalf("progress lines = %v", lines)
	}
	if !containsLine(lines, "WRITE two proposal 0 pass 0 -> two__sample0__0__pass0.json") {
		t.Fatalf("progress lines = %v", lines)
	}
}

func TestRunWindowUsesAbsolutePositions(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 1
	h.cfg.StartIndex = 3
	h.cfg.Limit = 4
	var batches []proposals.Batch
	for i := 0; i < 10; i++ {
		batches = append(batches, batch(fmt.Sprintf("c%02d", i), proposal("mind_control", "")))
	}
	summary, err := h.run(context.Background(), batches)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Batches != 4 || summary.TotalBatches != 10 {
		t.Fatalf("summary = %+v", summary)
	}
	var starts []string
	for _, line := range h.progressLines() {
		if strings.HasPrefix(line, "START") {
			starts = append(starts, line)
		}
	}
	want := []string{"START 4/10 c03", "START 5/10 c04", "START 6/10 c05", "START 7/10 c06"}
	if strings.Join(starts, ",") != strings.Join(want, ",") {
		t.Fatalf("starts = %v, want %v", starts, want)
	}
}

func TestRunZeroLimitProcessesNothing(t *testing.T) {
	h := newHarness(t)
	h.cfg.Limit = 0
	summary, err := h.run(context.Background(), []proposals.Batch{
		batch("one", proposal("mind_control", "")),
		batch("two", proposal("trance", "")),
	})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Batches != 0 || summary.Written != 0 || summary.TotalBatches != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(h.generator.calls) != 0 {
		t.Fatalf("expected no backend calls, got %d", len(h.generator.calls))
	}
	if files := h.files(); len(files) != 0 {
		t.Fatalf("files = %v", files)
	}
}

func TestRunEmptyBatchIsSilent(t *testing.T) {
	h := newHarness(t)
	summary, err := h.run(context.Background(), []proposals.Batch{batch("empty")})
	if err != nil {
		t.Fatal(err)
	}
	if summary.EmptyBatches != 1 || summary.Batches != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if countPrefix(h.progressLines(), "SKIP") != 0 || countPrefix(h.progressLines(), "START") != 0 {
		t.Fatalf("progress lines = %v", h.progressLines())
	}
}

func TestRunIncludesPromptWhenRequested(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 1
	h.cfg.IncludePrompt = true
	if _, err := h.run(context.Background(), []proposals.Batch{batch("combo", proposal("mind_control", ""))}); err != nil {
		t.Fatal(err)
	}
	record := h.readRecord("combo__sample0__0__pass0.json")
	prompt, _ := record["prompt"].(string)
	if prompt == "" || prompt != h.generator.calls[0].prompt {
		t.Fatalf("prompt not persisted verbatim")
	}
}

func TestRunUsesSampleIndexInNames(t *testing.T) {
	h := newHarness(t)
	h.cfg.Options.Passes = 1
	b := batch("combo", proposal("mind_control", ""))
	b.SampleIndex = 3
	if _, err := h.run(context.Background(), []proposals.Batch{b}); err != nil {
		t.Fatal(err)
	}
	if files := h.files(); len(files) != 1 || files[0] != "combo__sample3__0__pass0.json" {
		t.Fatalf("files = %v", files)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.run(ctx, []proposals.Batch{batch("combo", proposal("mind_control", ""))})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(h.generator.calls) != 0 || len(h.files()) != 0 {
		t.Fatal("cancelled run should do no work")
	}
}

func TestNewValidatesConfiguration(t *testing.T) {
	deps := Dependencies{
		Resolver:  themes.NewRegistry(newMemCatalog(), nil),
		Renderer:  mustRenderer(t),
		Generator: &scriptedGenerator{},
		Store:     scorestore.New(t.TempDir()),
	}
	if _, err := New(RunConfig{Options: Options{Model: "m", Passes: 0}}, deps); err == nil {
		t.Fatal("expected error for zero passes")
	}
	if _, err := New(RunConfig{Options: Options{Passes: 1}}, deps); err == nil {
		t.Fatal("expected error for missing model")
	}
	deps.Generator = nil
	if _, err := New(RunConfig{Options: Options{Model: "m", Passes: 1}}, deps); err == nil {
		t.Fatal("expected error for missing generator")
	}
}

func mustRenderer(t *testing.T) *prompts.Renderer {
	t.Helper()
	r, err := prompts.NewScoringRenderer("")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func containsLine(lines []string, want string) bool {
	for _, line := range lines {
		if line == want {
			return true
		}
	}
	return false
}
