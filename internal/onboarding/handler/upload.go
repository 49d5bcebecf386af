package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"onboard/internal/onboarding/kyc"
	"onboard/internal/onboarding/models"
	dErrors "onboard/pkg/domain-errors"
)

var docField = regexp.MustCompile(`^docs\[(\d+)\]\[(doc_id|expires_on|file)\]$`)

// readAttachments parses the indexed multipart form of a KYC submission. A
// request without a multipart body carries no attachments.
func (h *Handler) readAttachments(w http.ResponseWriter, r *http.Request) ([]kyc.Attachment, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart upload")
	}
	defer r.MultipartForm.RemoveAll()

	byIndex := make(map[int]*kyc.Attachment)
	entry := func(key string) (*kyc.Attachment, string, bool) {
		m := docField.FindStringSubmatch(key)
		if m == nil {
			return nil, "", false
		}
		i, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, "", false
		}
		if byIndex[i] == nil {
			byIndex[i] = &kyc.Attachment{}
		}
		return byIndex[i], m[2], true
	}

	for key, values := range r.MultipartForm.Value {
		a, field, ok := entry(key)
		if !ok || len(values) == 0 {
			continue
		}
		switch field {
		case "doc_id":
			a.DocTypeID = values[0]
		case "expires_on":
			a.ExpiresOn = values[0]
		}
	}
	for key, headers := range r.MultipartForm.File {
		a, field, ok := entry(key)
		if !ok || field != "file" || len(headers) == 0 {
			continue
		}
		fh := headers[0]
		f, err := fh.Open()
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unreadable file "+fh.Filename)
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unreadable file "+fh.Filename)
		}
		a.File = &models.LocalFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		}
	}

	indexes := make([]int, 0, len(byIndex))
	for i := range byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	out := make([]kyc.Attachment, 0, len(indexes))
	for _, i := range indexes {
		a := byIndex[i]
		if a.DocTypeID == "" {
			return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("docs[%d][doc_id] is required", i))
		}
		out = append(out, *a)
	}
	return out, nil
}
