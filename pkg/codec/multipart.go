package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/zkintents/taralli/pkg/errs"
	"github.com/zkintents/taralli/pkg/systems"
)

// partFieldName returns the `partial_{kind}` field name for kind ("request"
// or "offer"), per spec.md §4.A/§4.F.
func partFieldName(kind string) string { return "partial_" + kind }

// EncodeSubmission builds the two-part multipart/form-data body a client
// posts to /submit/{request,offer}: `partial_{kind}` (JSON text) and
// `system_bytes` (Brotli-compressed octet-stream). Returns the body and the
// Content-Type header value a caller must set on the request.
func EncodeSubmission(kind string, partialJSON []byte, systemBytes []byte) (body *bytes.Buffer, contentType string, err error) {
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)

	partialWriter, err := w.CreateFormField(partFieldName(kind))
	if err != nil {
		return nil, "", fmt.Errorf("codec: create %s field: %w", partFieldName(kind), err)
	}
	if _, err := partialWriter.Write(partialJSON); err != nil {
		return nil, "", fmt.Errorf("codec: write %s field: %w", partFieldName(kind), err)
	}

	systemWriter, err := w.CreateFormFile("system_bytes", "system_bytes")
	if err != nil {
		return nil, "", fmt.Errorf("codec: create system_bytes field: %w", err)
	}
	if _, err := systemWriter.Write(systemBytes); err != nil {
		return nil, "", fmt.Errorf("codec: write system_bytes field: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("codec: close multipart writer: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

// DecodedSubmission holds the two parts of a parsed submission.
type DecodedSubmission struct {
	PartialJSON []byte
	SystemBytes []byte
}

// DecodeSubmission parses a multipart/form-data request body for the given
// kind ("request" or "offer"), returning its two parts.
func DecodeSubmission(r *http.Request, kind string) (*DecodedSubmission, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("codec: %w: not a multipart request: %w", errs.ErrParse, err)
	}

	var out DecodedSubmission
	haveJSON, haveSystem := false, false
	field := partFieldName(kind)

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("codec: %w: read multipart part: %w", errs.ErrParse, err)
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("codec: %w: read part %s: %w", errs.ErrParse, part.FormName(), err)
		}
		switch part.FormName() {
		case field:
			out.PartialJSON = data
			haveJSON = true
		case "system_bytes":
			out.SystemBytes = data
			haveSystem = true
		}
	}

	if !haveJSON || !haveSystem {
		return nil, fmt.Errorf("codec: %w: submission missing %s or system_bytes part", errs.ErrParse, field)
	}
	return &out, nil
}

// systemIDFromPartial peeks at a partial JSON blob's system_id field without
// fully decoding the commitment. Nothing in the module calls it.
func systemIDFromPartial(data []byte) (systems.SystemId, error) {
	var probe struct {
		SystemID systems.SystemId `json:"system_id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("codec: %w: %w", errs.ErrParse, err)
	}
	return probe.SystemID, nil
}
