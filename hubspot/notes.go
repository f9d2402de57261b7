package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"

	"github.com/cfernandes-muhimbi/nutrient-hubspot-viewer-sdk/internal/metrics"
)

// noteToContactAssociation is HubSpot's built-in association type id for a
// note attached to a contact.
const noteToContactAssociation = 202

// ListNoteAttachmentIDs returns the ids of every file attached to any note on
// the contact, in note order, deduplicated. A contact with no notes, or notes
// with no attachments, yields an empty slice.
func (c *Client) ListNoteAttachmentIDs(ctx context.Context, accessToken, contactID string) ([]string, error) {
	var assoc struct {
		Results []struct {
			ToObjectID int64 `json:"toObjectId"`
		} `json:"results"`
	}
	err := requests.URL(c.APIBase).
		Pathf("/crm/v4/objects/contacts/%s/associations/notes", contactID).
		Bearer(accessToken).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK).
		ToJSON(&assoc).
		Fetch(ctx)
	metrics.HubSpotCall("crm.note_associations", err)
	if err != nil {
		return nil, fmt.Errorf("listing notes for contact %s: %w", contactID, err)
	}
	if len(assoc.Results) == 0 {
		return nil, nil
	}

	type input struct {
		ID string `json:"id"`
	}
	batch := struct {
		Inputs     []input  `json:"inputs"`
		Properties []string `json:"properties"`
	}{
		Properties: []string{"hs_attachment_ids"},
	}
	for _, r := range assoc.Results {
		batch.Inputs = append(batch.Inputs, input{ID: strconv.FormatInt(r.ToObjectID, 10)})
	}

	var notes struct {
		Results []struct {
			ID         string `json:"id"`
			Properties struct {
				AttachmentIDs string `json:"hs_attachment_ids"`
			} `json:"properties"`
		} `json:"results"`
	}
	// 207 is a partial result; archived notes are reported as errors but the
	// rest still come back.
	err = requests.URL(c.APIBase).
		Path("/crm/v3/objects/notes/batch/read").
		Bearer(accessToken).
		BodyJSON(&batch).
		Client(c.HTTPClient).
		CheckStatus(http.StatusOK, http.StatusMultiStatus).
		ToJSON(&notes).
		Fetch(ctx)
	metrics.HubSpotCall("crm.notes_batch_read", err)
	if err != nil {
		return nil, fmt.Errorf("reading notes for contact %s: %w", contactID, err)
	}

	var ids []string
	seen := make(map[string]bool)
	for _, note := range notes.Results {
		for _, id := range strings.Split(note.Properties.AttachmentIDs, ";") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AttachFileToContact creates a note on the contact carrying the file as an
// attachment, which is how the files tool surfaces uploads on a CRM record.
func (c *Client) AttachFileToContact(ctx context.Context, accessToken, contactID, fileID string) error {
	type associationType struct {
		Category string `json:"associationCategory"`
		TypeID   int    `json:"associationTypeId"`
	}
	type association struct {
		To struct {
			ID string `json:"id"`
		} `json:"to"`
		Types []associationType `json:"types"`
	}
	note := struct {
		Properties   map[string]string `json:"properties"`
		Associations []association     `json:"associations"`
	}{
		Properties: map[string]string{
			"hs_timestamp":      time.Now().UTC().Format(time.RFC3339),
			"hs_attachment_ids": fileID,
		},
	}
	var assoc association
	assoc.To.ID = contactID
	assoc.Types = []associationType{{
		Category: "HUBSPOT_DEFINED",
		TypeID:   noteToContactAssociation,
	}}
	note.Associations = append(note.Associations, assoc)

	err := requests.URL(c.APIBase).
		Path("/crm/v3/objects/notes").
		Bearer(accessToken).
		BodyJSON(&note).
		Client(c.HTTPClient).
		CheckStatus(http.StatusCreated).
		Fetch(ctx)
	metrics.HubSpotCall("crm.note_create", err)
	if err != nil {
		return fmt.Errorf("attaching file %s to contact %s: %w", fileID, contactID, err)
	}
	return nil
}
