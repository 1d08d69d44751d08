package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/askdoc/askdoc/internal/log"
	"github.com/askdoc/askdoc/internal/vector"
)

type fakeStore struct {
	ensured []string
	dropped []string
	dropErr error
	added   map[string][]vector.Document
	results map[string][]vector.Result
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		added:   make(map[string][]vector.Document),
		results: make(map[string][]vector.Result),
	}
}

func (f *fakeStore) EnsureCollection(_ context.Context, name string) (uuid.UUID, error) {
	f.ensured = append(f.ensured, name)
	return uuid.New(), nil
}

func (f *fakeStore) AddDocuments(_ context.Context, collection string, docs []vector.Document) error {
	f.added[collection] = append(f.added[collection], docs...)
	return nil
}

func (f *fakeStore) DropCollection(_ context.Context, name string) error {
	f.dropped = append(f.dropped, name)
	return f.dropErr
}

func (f *fakeStore) Search(_ context.Context, collection, _ string, _ ...vector.SearchOption) ([]vector.Result, error) {
	return f.results[collection], nil
}

// scriptedLLM answers by prompt shape so one fake serves condensing,
// answering, overviews and summaries.
type scriptedLLM struct {
	answer   string
	rewrite  string
	overview string
	prompts  []string
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	switch {
	case strings.Contains(prompt, "Search query:"):
		return s.rewrite, nil
	case strings.Contains(prompt, "Overview:"):
		return s.overview, nil
	case strings.Contains(prompt, "New summary:"):
		return "summary of earlier turns", nil
	default:
		return s.answer, nil
	}
}

type recordingChain struct {
	calls []string
}

func (r *recordingChain) Run(_ context.Context, _ uuid.UUID, input string) (*ChainResult, error) {
	r.calls = append(r.calls, input)
	return &ChainResult{Answer: "recorded"}, nil
}

func testConfig(store Store, generator Generator) Config {
	return Config{
		LLM:              generator,
		Store:            store,
		Logger:           log.NewNop(),
		CorpusCollection: "corpus_global",
		CorpusK:          3,
		SessionK:         1,
		CorpusWeight:     0.7,
		SessionWeight:    0.3,
		ChunkSize:        1200,
		ChunkOverlap:     150,
		MemoryTokenLimit: 3000,
		MaxContextTokens: 32000,
		ContextBudget:    2000,
		HistoryBudget:    1000,
		TemplateBudget:   500,
	}
}

func writeDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewEnsuresCollectionsAndIngestsDocument(t *testing.T) {
	store := newFakeStore()
	cfg := testConfig(store, &scriptedLLM{})
	cfg.DocumentPath = writeDocument(t, "pgvector stores embeddings inside Postgres tables.")

	agent, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if len(store.ensured) != 2 || store.ensured[0] != "corpus_global" {
		t.Fatalf("ensured collections = %v", store.ensured)
	}
	tmpName := "tmp_" + agent.SessionID().String()
	if store.ensured[1] != tmpName {
		t.Errorf("session collection = %q, want %q", store.ensured[1], tmpName)
	}

	docs := store.added[tmpName]
	if len(docs) != 1 {
		t.Fatalf("got %d ingested chunks, want 1", len(docs))
	}
	doc := docs[0]
	if doc.Metadata["type"] != "user_upload" {
		t.Errorf("metadata type = %q", doc.Metadata["type"])
	}
	if doc.Metadata["session_id"] != agent.SessionID().String() {
		t.Errorf("metadata session_id = %q", doc.Metadata["session_id"])
	}
	if !strings.HasSuffix(doc.Metadata["source"], "#0") {
		t.Errorf("metadata source = %q", doc.Metadata["source"])
	}
	if doc.ID != doc.Metadata["source"] {
		t.Errorf("document ID %q differs from source %q", doc.ID, doc.Metadata["source"])
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(newFakeStore(), &scriptedLLM{})
	cfg.LLM = nil
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("New accepted a config without an llm client")
	}

	cfg = testConfig(newFakeStore(), &scriptedLLM{})
	cfg.CorpusCollection = ""
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("New accepted a config without a corpus collection")
	}
}

func TestChatOversizedQueryFailsBeforeChain(t *testing.T) {
	agent, err := New(context.Background(), testConfig(newFakeStore(), &scriptedLLM{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	recorder := &recordingChain{}
	agent.chain = recorder

	// 100000 chars estimate to 28571 tokens; with the 3500 fixed budget
	// that lands over the 32000 window.
	_, err = agent.Chat(context.Background(), strings.Repeat("x", 100000))

	var budgetErr *BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("err = %v, want *BudgetError", err)
	}
	if budgetErr.Max != 32000 {
		t.Errorf("Max = %d, want 32000", budgetErr.Max)
	}
	if budgetErr.Estimated <= budgetErr.Max {
		t.Errorf("Estimated = %d, want > %d", budgetErr.Estimated, budgetErr.Max)
	}
	if len(recorder.calls) != 0 {
		t.Errorf("chain invoked %d times for a rejected query", len(recorder.calls))
	}
}

func TestChatEmptyQueryPassesGuard(t *testing.T) {
	agent, err := New(context.Background(), testConfig(newFakeStore(), &scriptedLLM{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	recorder := &recordingChain{}
	agent.chain = recorder

	answer, err := agent.Chat(context.Background(), "")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "recorded" {
		t.Errorf("answer = %q", answer)
	}
	if len(recorder.calls) != 1 {
		t.Errorf("chain invoked %d times, want 1", len(recorder.calls))
	}
}

func TestChatAnswersFromRetrievedContext(t *testing.T) {
	store := newFakeStore()
	store.results["corpus_global"] = []vector.Result{
		{
			Document:   vector.Document{ID: "c1", Content: "The capital of the koopa kingdom is Bowser Castle."},
			Similarity: 0.92,
		},
	}
	llm := &scriptedLLM{answer: "Bowser Castle."}

	agent, err := New(context.Background(), testConfig(store, llm))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	answer, err := agent.Chat(context.Background(), "What is the capital?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "Bowser Castle." {
		t.Errorf("answer = %q", answer)
	}

	// First turn has no history, so the question goes to retrieval as-is
	// and the only prompt is the answer prompt with the chunk inlined.
	if len(llm.prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[0], "Bowser Castle") {
		t.Errorf("answer prompt missing retrieved chunk:\n%s", llm.prompts[0])
	}
	if !strings.Contains(llm.prompts[0], `say "I don't know"`) {
		t.Errorf("answer prompt missing refusal instruction:\n%s", llm.prompts[0])
	}
}

func TestChatSecondTurnCondensesAgainstHistory(t *testing.T) {
	store := newFakeStore()
	llm := &scriptedLLM{answer: "an answer", rewrite: "standalone query"}

	agent, err := New(context.Background(), testConfig(store, llm))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := agent.Chat(context.Background(), "first question"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if _, err := agent.Chat(context.Background(), "and then?"); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	var condense string
	for _, p := range llm.prompts {
		if strings.Contains(p, "Search query:") {
			condense = p
		}
	}
	if condense == "" {
		t.Fatal("second turn never condensed the question")
	}
	if !strings.Contains(condense, "first question") {
		t.Errorf("condense prompt missing history:\n%s", condense)
	}
	if !strings.Contains(condense, "and then?") {
		t.Errorf("condense prompt missing follow-up:\n%s", condense)
	}
}

func TestOverviewSeedsConversationMemory(t *testing.T) {
	store := newFakeStore()
	store.results["corpus_global"] = []vector.Result{
		{Document: vector.Document{ID: "c1", Content: "A document about retrieval."}, Similarity: 0.8},
	}
	llm := &scriptedLLM{answer: "an answer", rewrite: "rewritten", overview: "It describes a retrieval pipeline."}

	agent, err := New(context.Background(), testConfig(store, llm))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	overview, err := agent.Overview(context.Background(), "What is this document about?")
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if overview != "It describes a retrieval pipeline." {
		t.Errorf("overview = %q", overview)
	}

	// The seeded memory makes the next turn take the condense path.
	if _, err := agent.Chat(context.Background(), "tell me more"); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	var condensed bool
	for _, p := range llm.prompts {
		if strings.Contains(p, "Search query:") && strings.Contains(p, "It describes a retrieval pipeline.") {
			condensed = true
		}
	}
	if !condensed {
		t.Error("overview exchange missing from the condense prompt history")
	}
}

func TestCloseDropsSessionCollection(t *testing.T) {
	store := newFakeStore()
	agent, err := New(context.Background(), testConfig(store, &scriptedLLM{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	agent.Close(context.Background())

	tmpName := "tmp_" + agent.SessionID().String()
	if len(store.dropped) != 1 || store.dropped[0] != tmpName {
		t.Errorf("dropped = %v, want [%s]", store.dropped, tmpName)
	}
}

func TestCloseSwallowsDropError(t *testing.T) {
	store := newFakeStore()
	store.dropErr = errors.New("connection lost")
	agent, err := New(context.Background(), testConfig(store, &scriptedLLM{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Must not panic or surface the error.
	agent.Close(context.Background())
}

func TestChatUnrelatedQuestionSaysIDontKnow(t *testing.T) {
	store := newFakeStore()
	llm := &scriptedLLM{answer: "I don't know"}

	agent, err := New(context.Background(), testConfig(store, llm))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	answer, err := agent.Chat(context.Background(), "What is the airspeed of an unladen swallow?")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if answer != "I don't know" {
		t.Errorf("answer = %q", answer)
	}
}
