package handler

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/sakif/userdesk/internal/apperror"
)

// maxBodyBytes caps request bodies. Every form here is a handful of short
// strings.
const maxBodyBytes = 1 << 20

// fields is a decoded request body. A key is present only if the caller
// sent it, which lets partial updates tell "absent" from "empty".
type fields map[string]string

func (f fields) get(key string) string {
	return f[key]
}

// ptr returns nil for an absent key.
func (f fields) ptr(key string) *string {
	v, ok := f[key]
	if !ok {
		return nil
	}
	return &v
}

// readFields decodes a JSON object or a urlencoded form.
//
// JSON values that are not strings are rendered with fmt so a number sent
// for "name" still arrives as text; nulls count as absent.
func readFields(w http.ResponseWriter, r *http.Request) (fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, apperror.ValidationFailed("", "Invalid request body")
		}

		out := make(fields, len(raw))
		for k, v := range raw {
			switch v := v.(type) {
			case nil:
				continue
			case string:
				out[k] = v
			default:
				out[k] = fmt.Sprint(v)
			}
		}
		return out, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, apperror.ValidationFailed("", "Invalid request body")
	}
	out := make(fields, len(r.PostForm))
	for k := range r.PostForm {
		out[k] = r.PostForm.Get(k)
	}
	return out, nil
}
