package backend

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	"onboard/internal/onboarding/ports"
)

// encodeUpload writes the batched KYC form: business_id plus, per document
// index, docs[i][doc_id], an optional docs[i][file] and an optional
// docs[i][expires_on].
func encodeUpload(req ports.UploadRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("business_id", req.BusinessID.String()); err != nil {
		return nil, "", err
	}
	for i, doc := range req.Docs {
		prefix := fmt.Sprintf("docs[%d]", i)
		if err := w.WriteField(prefix+"[doc_id]", doc.DocID); err != nil {
			return nil, "", err
		}
		if doc.ExpiresOn != "" {
			if err := w.WriteField(prefix+"[expires_on]", doc.ExpiresOn); err != nil {
				return nil, "", err
			}
		}
		if doc.File == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s[file]"; filename="%s"`,
			prefix, escapeQuotes(doc.File.Name)))
		contentType := doc.File.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(doc.File.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
