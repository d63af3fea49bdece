package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/aretw0/companion/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// ErrUnknownIntent is returned for an envelope whose type names no intent.
var ErrUnknownIntent = errors.New("unknown intent type")

// appendPayload is what a client sends to append an entry. The server
// always assigns the id and the creation date, so a client cannot collide
// with an entry that already exists.
type appendPayload struct {
	Query string            `mapstructure:"query"`
	Kind  domain.EffectKind `mapstructure:"kind"`
}

// DecodeIntents converts envelopes into typed intents, in order. An envelope is
// the wire form of one intent: {"type": "...", "payload": {...}}.
// now and newID complete appended entries.
func DecodeIntents(envs []IntentEnvelope, now func() time.Time, newID func() string) ([]domain.Intent, error) {
	out := make([]domain.Intent, 0, len(envs))
	for i, env := range envs {
		intent, err := decodeIntent(env, now, newID)
		if err != nil {
			return nil, fmt.Errorf("intent %d (%s): %w", i, env.Type, err)
		}
		out = append(out, intent)
	}
	return out, nil
}

func decodeIntent(env IntentEnvelope, now func() time.Time, newID func() string) (domain.Intent, error) {
	switch env.Type {
	case domain.IntentRefreshUI:
		return domain.RefreshUI{}, nil
	case domain.IntentShowHistory:
		return domain.ShowHistory{}, nil
	case domain.IntentTogglePopover:
		return domain.TogglePopover{}, nil
	case domain.IntentHidePopover:
		return domain.HidePopover{}, nil
	case domain.IntentCreateConversation:
		return domain.CreateConversation{}, nil

	case domain.IntentUpdateSettings:
		v := domain.UpdateSettings{Settings: domain.DefaultAPISettings()}
		if err := decodePayload(env.Payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	case domain.IntentUpdateQueryText:
		var v domain.UpdateQueryText
		if err := decodePayload(env.Payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	case domain.IntentFinalizeEntry:
		var v domain.FinalizeEntry
		if err := decodePayload(env.Payload, &v); err != nil {
			return nil, err
		}
		if v.EntryID == "" {
			return nil, errors.New("entry_id is required")
		}
		return v, nil
	case domain.IntentDisplayEntry:
		var v domain.DisplayEntry
		if err := decodeRequiredID(env.Payload, &v, &v.ID); err != nil {
			return nil, err
		}
		return v, nil
	case domain.IntentToggleFavorite:
		var v domain.ToggleFavorite
		if err := decodeRequiredID(env.Payload, &v, &v.ID); err != nil {
			return nil, err
		}
		return v, nil

	case domain.IntentAppendEntry:
		p := appendPayload{Kind: domain.EffectText}
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Kind != domain.EffectText && p.Kind != domain.EffectImage {
			return nil, fmt.Errorf("unknown entry kind %q", p.Kind)
		}
		return domain.AppendEntry{Entry: domain.NewEntry(newID(), p.Query, p.Kind, now())}, nil

	default:
		return nil, ErrUnknownIntent
	}
}

// decodeRequiredID decodes payload into out and checks that *id is set.
func decodeRequiredID(payload map[string]any, out any, id *string) error {
	if err := decodePayload(payload, out); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("id is required")
	}
	return nil
}

func decodePayload(payload map[string]any, out any) error {
	if payload == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  base64ToBytes,
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(payload)
}

var bytesType = reflect.TypeOf([]byte(nil))

// base64ToBytes lets image payloads travel as base64 strings, like encoding/json does.
func base64ToBytes(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != bytesType {
		return data, nil
	}
	return base64.StdEncoding.DecodeString(data.(string))
}
