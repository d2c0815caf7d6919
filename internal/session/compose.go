package session

import (
	"strings"

	"github.com/youruser/parley/internal/api"
	"github.com/youruser/parley/internal/ingest"
)

// Composed is the single outbound content value built from the draft text
// and the pending attachments. Parts is non-nil only when images are
// attached; the backend then receives the parts form of the final turn.
type Composed struct {
	Text  string
	Parts []api.ContentPart
}

// Empty reports whether there is nothing to send.
func (c Composed) Empty() bool { return c.Text == "" && len(c.Parts) == 0 }

// compose merges the trimmed draft with the decoded files, in selection
// order. The delimiter format is stable and covered by tests:
//
//	draft
//	[attached: NAME]
//	```
//	CONTENT
//	```
//
// Text files offloaded server-side are referenced as
// "[uploaded: NAME -> REF]" instead of inlined; images contribute an
// "[attached image: NAME]" line plus an out-of-band image_url part.
func compose(draft string, files []ingest.PendingFile, uploadRefs map[string]string) Composed {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(draft))

	var imageParts []api.ContentPart
	for _, f := range files {
		if !f.OK() {
			continue
		}
		switch f.Class {
		case ingest.ClassText:
			if ref, ok := uploadRefs[f.ID]; ok {
				b.WriteString("\n[uploaded: " + f.Name + " -> " + ref + "]")
				continue
			}
			b.WriteString("\n[attached: " + f.Name + "]\n```\n" + f.Text + "\n```")
		case ingest.ClassImage:
			b.WriteString("\n[attached image: " + f.Name + "]")
			imageParts = append(imageParts, api.ContentPart{
				Type:     "image_url",
				ImageURL: &api.ImageURL{URL: f.DataURI},
			})
		}
	}

	out := Composed{Text: strings.TrimPrefix(b.String(), "\n")}
	if len(imageParts) > 0 {
		out.Parts = append([]api.ContentPart{{Type: "text", Text: out.Text}}, imageParts...)
	}
	return out
}

// currentTurn renders the composed content as the final user turn of a
// request.
func (c Composed) currentTurn() api.ChatMessage {
	return api.ChatMessage{Role: string(RoleUser), Content: c.Text, Parts: c.Parts}
}
