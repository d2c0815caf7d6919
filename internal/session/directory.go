package session

// ModelDirectory holds the backend-advertised model list for one session.
// It is populated by a single successful fetch and mutated only by user
// selection afterwards. Sending stays gated while it is loading or while no
// model is selected. Synchronized by the owning Controller.
type ModelDirectory struct {
	available []string
	selected  string
	loading   bool
	fetched   bool
}

// Models returns a snapshot of the advertised model identifiers.
func (d *ModelDirectory) Models() []string {
	out := make([]string, len(d.available))
	copy(out, d.available)
	return out
}

// Selected returns the currently selected model id, or "" when none.
func (d *ModelDirectory) Selected() string { return d.selected }

// Loading reports whether a fetch is in progress.
func (d *ModelDirectory) Loading() bool { return d.loading }

// Select sets the selected model. Empty ids are ignored; no further
// validation is performed.
func (d *ModelDirectory) Select(modelID string) {
	if modelID == "" {
		return
	}
	d.selected = modelID
}

// populate records a fetch result. On success the first entry becomes the
// default selection; an empty list is a valid, reportable outcome that
// leaves sending disabled.
func (d *ModelDirectory) populate(models []string) {
	d.available = models
	d.fetched = len(models) > 0
	if len(models) > 0 {
		d.selected = models[0]
	} else {
		d.selected = ""
	}
}
