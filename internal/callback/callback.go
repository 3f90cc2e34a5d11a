// Package callback builds and parses the webhook URLs handed to the image
// provider. The provider echoes nothing of ours back, so every id the
// receiver needs travels in the query string.
package callback

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/digkill/photostudio/internal/models"
)

// Path is where the provider delivers callbacks.
const Path = "/api/webhooks/astria"

type Kind string

const (
	KindGeneration Kind = "generation"
	KindTraining   Kind = "training"
)

var ErrBadToken = errors.New("callback token mismatch")

// Target identifies the record a callback should finalize.
type Target struct {
	Kind         Kind
	UserID       int64
	ModelRef     string
	GenerationID int64
	ModelID      int64
}

type Builder struct {
	baseURL string
	secret  string
}

func NewBuilder(publicBaseURL, secret string) *Builder {
	return &Builder{
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		secret:  secret,
	}
}

func (b *Builder) Generation(generationID, userID int64, modelRef string) string {
	q := url.Values{}
	q.Set("type", string(KindGeneration))
	q.Set("user_id", strconv.FormatInt(userID, 10))
	q.Set("model_id", modelRef)
	q.Set("generation_id", strconv.FormatInt(generationID, 10))
	return b.build(q)
}

func (b *Builder) Training(modelID int64) string {
	q := url.Values{}
	q.Set("type", string(KindTraining))
	q.Set("model_id", strconv.FormatInt(modelID, 10))
	return b.build(q)
}

func (b *Builder) build(q url.Values) string {
	if b.secret != "" {
		q.Set("token", b.secret)
	}
	return b.baseURL + Path + "?" + q.Encode()
}

// Parse validates the query of an inbound callback.
func (b *Builder) Parse(q url.Values) (Target, error) {
	if b.secret != "" {
		if subtle.ConstantTimeCompare([]byte(q.Get("token")), []byte(b.secret)) != 1 {
			return Target{}, ErrBadToken
		}
	}

	kind := Kind(q.Get("type"))
	switch kind {
	case KindTraining:
		id, err := models.ParseID(q.Get("model_id"))
		if err != nil {
			return Target{}, fmt.Errorf("training callback model_id: %w", err)
		}
		return Target{Kind: kind, ModelID: id}, nil
	case KindGeneration:
		genID, err := models.ParseID(q.Get("generation_id"))
		if err != nil {
			return Target{}, fmt.Errorf("generation callback generation_id: %w", err)
		}
		userID, err := models.ParseID(q.Get("user_id"))
		if err != nil {
			return Target{}, fmt.Errorf("generation callback user_id: %w", err)
		}
		ref := q.Get("model_id")
		if ref == "" {
			return Target{}, fmt.Errorf("generation callback without model_id")
		}
		return Target{Kind: kind, UserID: userID, ModelRef: ref, GenerationID: genID}, nil
	default:
		return Target{}, fmt.Errorf("unknown callback type %q", kind)
	}
}
