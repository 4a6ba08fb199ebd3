// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/render"
)

const (
	mediaJSON      = "application/json"
	mediaForm      = "application/x-www-form-urlencoded"
	mediaMultipart = "multipart/form-data"

	// multipartMemory is the share of a multipart body kept in memory
	// before parts spill to temporary files.
	multipartMemory = 1 << 20
)

// formBinder is implemented by request types that can also be submitted as
// HTML form fields.
type formBinder interface {
	bindForm(values url.Values)
}

// decode reads a JSON, urlencoded or multipart body into dst. An absent
// Content-Type is treated as JSON.
func decode(w http.ResponseWriter, r *http.Request, dst formBinder, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType := mediaJSON
	if header := r.Header.Get("Content-Type"); header != "" {
		parsed, _, err := mime.ParseMediaType(header)
		if err != nil {
			return badRequest("unreadable content type")
		}
		mediaType = parsed
	}

	switch mediaType {
	case mediaJSON:
		if err := render.DecodeJSON(r.Body, dst); err != nil {
			return bodyError(err, "invalid JSON body")
		}
	case mediaForm:
		if err := r.ParseForm(); err != nil {
			return bodyError(err, "invalid form body")
		}
		dst.bindForm(r.PostForm)
	case mediaMultipart:
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return bodyError(err, "invalid multipart body")
		}
		dst.bindForm(r.MultipartForm.Value)
	default:
		return badRequest("unsupported content type " + mediaType)
	}
	return nil
}

func bodyError(err error, reason string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return badRequest("request body too large")
	}
	return badRequest(reason)
}
