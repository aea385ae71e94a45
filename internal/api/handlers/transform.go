package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/yourusername/jejecipher/internal/cipher"
	"github.com/yourusername/jejecipher/internal/db"
	"github.com/yourusername/jejecipher/internal/transform"
)

type transformRequest struct {
	Text    string `json:"text"`
	Explain bool   `json:"explain"`
}

type transformResponse struct {
	*transform.Result
	Tokens [][]string `json:"tokens,omitempty"`
}

// Encode handles POST /api/v1/encode.
func (h *Handler) Encode(w http.ResponseWriter, r *http.Request) {
	h.runTransform(w, r, db.ModeEncode)
}

// Decode handles POST /api/v1/decode.
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	h.runTransform(w, r, db.ModeDecode)
}

func (h *Handler) runTransform(w http.ResponseWriter, r *http.Request, mode string) {
	// JSON escaping can grow the text up to six bytes per input byte.
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.config.MaxInputBytes)*6+1024)

	var req transformRequest
	if err := decode(r, &req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			fail(w, http.StatusRequestEntityTooLarge, "text too large")
			return
		}
		fail(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	res, err := h.svc.Run(r.Context(), mode, transform.Request{Text: req.Text, Source: transform.SourceAPI})
	switch {
	case errors.Is(err, transform.ErrInputTooLarge):
		fail(w, http.StatusRequestEntityTooLarge, "text too large")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(w, http.StatusServiceUnavailable, "request cancelled")
		return
	case err != nil:
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := transformResponse{Result: res}
	if req.Explain {
		out.Tokens = explain(mode, req.Text)
	}
	ok(w, out)
}

// explain returns, per word, the token sequence the transform worked on:
// the forward tokens for encode and the tokenizer's split for decode.
func explain(mode, text string) [][]string {
	if text == "" {
		return nil
	}
	words := strings.Split(text, " ")
	out := make([][]string, len(words))
	for i, word := range words {
		var toks []string
		if mode == db.ModeEncode {
			toks = cipher.WordTokens(word)
		} else {
			toks = cipher.Tokenize(word)
		}
		if toks == nil {
			toks = []string{}
		}
		out[i] = toks
	}
	return out
}

// Legend handles GET /api/v1/legend.
func (h *Handler) Legend(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]interface{}{
		"letters": cipher.Legend(),
		"markers": map[string]string{
			"consonant_prefix": cipher.PrefixConsonant,
			"vowel_prefix":     cipher.PrefixVowel,
			"length_suffix":    cipher.LengthSuffix,
			"vowel_marker":     cipher.VowelMarker,
		},
		"vocabulary": cipher.Vocabulary(),
	})
}
