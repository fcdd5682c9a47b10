package models

// Note is the title/content pair handed to the note API.
type Note struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NoteRequest is the body of a note creation call, minus the credential.
type NoteRequest struct {
	Content string   `json:"content"`
	Title   string   `json:"title,omitempty"`
	State   string   `json:"state,omitempty"`
	Type    string   `json:"type,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Pin     bool     `json:"pin"`
}

// NewNoteRequest builds the request used for every note this system writes:
// private, of type "rote", never pinned.
func NewNoteRequest(n Note, tags []string) NoteRequest {
	return NoteRequest{
		Title:   n.Title,
		Content: n.Content,
		State:   "private",
		Type:    "rote",
		Tags:    tags,
		Pin:     false,
	}
}

// CreatedNote is what the note API returns on success.
type CreatedNote struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}
