package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/youruser/parley/internal/api"
	"github.com/youruser/parley/internal/ingest"
	"github.com/youruser/parley/internal/logging"
)

var (
	ErrBusy          = errors.New("a request is already in flight")
	ErrNothingToSend = errors.New("nothing to send")
	ErrModelNotReady = errors.New("no model selected")
	log              = logging.Get()
)

const modelNotReadyMsg = "select a model before sending (model list is still loading or unavailable)"

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	HistoryPairs    int   // role-pairs of past context per request (default 5)
	UploadThreshold int64 // text payloads above this are offloaded via /api/upload (default 256 KiB)
}

// Controller owns the canonical conversation state for one session: the
// message log, the draft input, the pending attachment payloads, and the
// model directory. It is the single writer of all of them; the view layer
// only reads snapshots and dispatches intents. Strict turn-taking is
// enforced: at most one backend request is in flight at a time.
type Controller struct {
	mu     sync.Mutex
	client *api.Client
	store  *Store
	dir    ModelDirectory

	// payloads holds decoded file content keyed by the placeholder message
	// id, consumed when the placeholder is confirmed. uploadRefs caches
	// server-side references so a rolled-back send does not re-upload.
	payloads   map[string]ingest.PendingFile
	uploadRefs map[string]string

	draft     string
	loading   bool
	lastError string

	// generation invalidates in-flight completions after Clear. A stale
	// completion must not mutate a store that has already moved on.
	generation int

	historyPairs    int
	uploadThreshold int64
}

// NewController creates a controller bound to a backend client.
func NewController(client *api.Client, opts Options) *Controller {
	if opts.HistoryPairs <= 0 {
		opts.HistoryPairs = 5
	}
	if opts.UploadThreshold <= 0 {
		opts.UploadThreshold = 256 * 1024
	}
	return &Controller{
		client:          client,
		store:           NewStore(),
		payloads:        make(map[string]ingest.PendingFile),
		uploadRefs:      make(map[string]string),
		historyPairs:    opts.HistoryPairs,
		uploadThreshold: opts.UploadThreshold,
	}
}

// ModelState is a read-only snapshot of the model directory.
type ModelState struct {
	Available []string
	Selected  string
	Loading   bool
}

// SessionState is the read-only snapshot exposed to the view layer.
type SessionState struct {
	Messages  []Message
	Draft     string
	IsLoading bool
	LastError string
	Models    ModelState
}

// State returns a snapshot of the full session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SessionState{
		Messages:  c.store.Messages(),
		Draft:     c.draft,
		IsLoading: c.loading,
		LastError: c.lastError,
		Models: ModelState{
			Available: c.dir.Models(),
			Selected:  c.dir.Selected(),
			Loading:   c.dir.Loading(),
		},
	}
}

// SetDraft replaces the draft input text.
func (c *Controller) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// SelectModel updates the selected model. Empty ids are ignored.
func (c *Controller) SelectModel(modelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir.Select(modelID)
}

// RefreshModels fetches the backend's model list. Single-flight and
// idempotent: a fetch in progress or an already-populated directory makes
// this a no-op. A failed or empty fetch leaves sending disabled but is not
// fatal; refresh may be retried until it succeeds.
func (c *Controller) RefreshModels(ctx context.Context) error {
	c.mu.Lock()
	if c.dir.loading || c.dir.fetched {
		c.mu.Unlock()
		return nil
	}
	c.dir.loading = true
	c.mu.Unlock()

	models, err := c.client.Models(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir.loading = false
	if err != nil {
		c.dir.populate(nil)
		c.lastError = fmt.Sprintf("failed to fetch available models: %v", err)
		log.Error("model refresh failed: %v", err)
		return err
	}
	c.dir.populate(models)
	if len(models) == 0 {
		log.Info("backend advertised no models; sending stays disabled")
	} else {
		log.Debug("model directory populated: %d models, selected %s", len(models), c.dir.selected)
	}
	return nil
}

// AttachFiles ingests the given file handles. Successful decodes become
// pending attachment placeholders; failures become terminal in-log entries.
// A failing file never blocks its siblings.
func (c *Controller) AttachFiles(ctx context.Context, handles []ingest.Handle) error {
	if len(handles) == 0 {
		return nil
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.loading = true
	c.lastError = ""
	gen := c.generation
	c.mu.Unlock()

	results := ingest.Process(ctx, handles)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// Session was cleared while decoding; drop the batch.
		return nil
	}
	c.loading = false
	for _, f := range results {
		if f.OK() {
			msg := c.store.AppendPlaceholder(f.Name)
			c.payloads[msg.ID] = f
		} else {
			c.store.AppendFailedFile(f.Name, f.Err)
			log.Debug("ingestion failed for %s: %s", f.Name, f.Err)
		}
	}
	return nil
}

// Clear resets the session to its initial state: fresh seed log, empty
// draft, no error, not loading. Pending attachment payloads are dropped.
// An in-flight request is not aborted; its completion is discarded via the
// generation counter.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.store.Clear()
	c.payloads = make(map[string]ingest.PendingFile)
	c.uploadRefs = make(map[string]string)
	c.draft = ""
	c.lastError = ""
	c.loading = false
}

// Send runs the full send sequence: guard, upload offload, composition,
// optimistic commit, history windowing, backend call, reconciliation.
// Precondition failures are no-ops; transport and backend failures roll the
// optimistic commit back and surface a user-facing error.
func (c *Controller) Send(ctx context.Context) error {
	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}

	draft := strings.TrimSpace(c.draft)
	files, placeholderIDs := c.pendingPayloadsLocked()

	hasContent := draft != "" || len(files) > 0
	modelReady := !c.dir.Loading() && c.dir.Selected() != ""
	if !hasContent || !modelReady {
		if hasContent {
			// Distinct from "nothing to send": the user did act, the
			// model directory just is not ready yet.
			c.lastError = modelNotReadyMsg
			c.mu.Unlock()
			return ErrModelNotReady
		}
		c.mu.Unlock()
		return ErrNothingToSend
	}

	c.loading = true
	c.lastError = ""
	gen := c.generation
	model := c.dir.Selected()
	c.mu.Unlock()

	// Offload oversized text payloads before committing the turn; a failed
	// upload fails only that file.
	files, placeholderIDs = c.offloadLargeFiles(ctx, gen, files, placeholderIDs)

	if draft == "" && len(files) == 0 {
		c.mu.Lock()
		if gen == c.generation {
			c.loading = false
		}
		c.mu.Unlock()
		return ErrNothingToSend
	}

	// Optimistic commit: the user's turn is visible and marked in-flight
	// before the network call, and the draft clears immediately.
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return nil
	}
	composed := c.composeLocked(draft, files)
	sentIDs := make([]string, 0, len(placeholderIDs)+1)
	if draft != "" {
		// A rolled-back turn with the same content is reused rather than
		// duplicated; only an explicit new send reaches this point.
		msg, ok := c.store.FindPendingUser(draft)
		if !ok {
			msg = c.store.AppendUser(draft)
		}
		sentIDs = append(sentIDs, msg.ID)
	}
	sentIDs = append(sentIDs, placeholderIDs...)
	c.store.MarkSent(sentIDs)
	c.draft = ""

	exclude := make(map[string]bool, len(sentIDs))
	for _, id := range sentIDs {
		exclude[id] = true
	}
	request := append(window(c.store.Messages(), exclude, c.historyPairs), composed.currentTurn())
	c.mu.Unlock()

	reply, err := c.client.Chat(ctx, model, request)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// Cleared mid-flight; the store has moved on. Discard.
		log.Debug("discarding stale completion (generation %d != %d)", gen, c.generation)
		return nil
	}
	c.loading = false

	if err != nil {
		c.store.Rollback(sentIDs)
		c.lastError = fmt.Sprintf("failed to send message: %v", err)
		return err
	}

	c.store.Confirm(sentIDs)
	for _, id := range placeholderIDs {
		if f, ok := c.payloads[id]; ok {
			delete(c.uploadRefs, f.ID)
		}
		delete(c.payloads, id)
	}
	c.store.AppendAssistant(reply.Content, reply.ReasoningText(), reply.ToolCalls, reply.ExecutedTools)
	c.lastError = ""
	return nil
}

// EstimateTokens approximates the token count of the request the next send
// would issue: windowed context plus the turn composed from the current
// draft and pending attachments.
func (c *Controller) EstimateTokens() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	draft := strings.TrimSpace(c.draft)
	files, _ := c.pendingPayloadsLocked()
	composed := c.composeLocked(draft, files)

	total := 0
	for _, m := range window(c.store.Messages(), nil, c.historyPairs) {
		total += api.EstimateTokensSimple(m.Content)
	}
	if !composed.Empty() {
		total += api.EstimateTokensSimple(composed.Text)
	}
	return total
}

// pendingPayloadsLocked returns the decoded payloads for the pending
// attachment placeholders, in selection order, with their placeholder ids.
func (c *Controller) pendingPayloadsLocked() ([]ingest.PendingFile, []string) {
	var files []ingest.PendingFile
	var ids []string
	for _, p := range c.store.PendingAttachments() {
		if f, ok := c.payloads[p.ID]; ok {
			files = append(files, f)
			ids = append(ids, p.ID)
		}
	}
	return files, ids
}

func (c *Controller) composeLocked(draft string, files []ingest.PendingFile) Composed {
	return compose(draft, files, c.uploadRefs)
}

// offloadLargeFiles uploads text payloads above the threshold and caches
// the server-side reference. An upload failure marks only that file's
// placeholder as terminally failed; the rest of the batch proceeds.
func (c *Controller) offloadLargeFiles(ctx context.Context, gen int, files []ingest.PendingFile, ids []string) ([]ingest.PendingFile, []string) {
	keptFiles := files[:0]
	keptIDs := ids[:0]
	for i, f := range files {
		if f.Class != ingest.ClassText || int64(len(f.Text)) <= c.uploadThreshold {
			keptFiles = append(keptFiles, f)
			keptIDs = append(keptIDs, ids[i])
			continue
		}

		c.mu.Lock()
		_, uploaded := c.uploadRefs[f.ID]
		c.mu.Unlock()
		if uploaded {
			keptFiles = append(keptFiles, f)
			keptIDs = append(keptIDs, ids[i])
			continue
		}

		resp, err := c.client.Upload(ctx, f.Name, strings.NewReader(f.Text))

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return nil, nil
		}
		if err != nil {
			c.store.failPending(ids[i], fmt.Sprintf("upload failed: %v", err))
			delete(c.payloads, ids[i])
			log.Error("upload of %s failed: %v", f.Name, err)
		} else {
			c.uploadRefs[f.ID] = uploadRef(resp)
			keptFiles = append(keptFiles, f)
			keptIDs = append(keptIDs, ids[i])
		}
		c.mu.Unlock()
	}
	return keptFiles, keptIDs
}

func uploadRef(resp *api.UploadResponse) string {
	if resp.GroqFileID != "" {
		return resp.GroqFileID
	}
	if resp.SavedPath != "" {
		return resp.SavedPath
	}
	return resp.Filename
}
