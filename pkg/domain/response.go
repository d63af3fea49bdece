package domain

import (
	"bytes"
	"errors"
)

// ResponseKind is the top-level shape of an entry's response.
type ResponseKind string

const (
	ResponseFailure ResponseKind = "failure"
	ResponseText    ResponseKind = "text"
	ResponseImages  ResponseKind = "images"
)

// ResponseStatus is the lifecycle of a text or images response.
type ResponseStatus string

const (
	StatusOngoing   ResponseStatus = "ongoing"
	StatusSucceeded ResponseStatus = "succeeded"
	StatusFailed    ResponseStatus = "failed"
)

// Image is a decoded image payload kept as its original encoded bytes.
type Image struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Equal compares two images by content.
func (i Image) Equal(o Image) bool {
	return i.MIMEType == o.MIMEType && i.Width == o.Width && i.Height == o.Height &&
		bytes.Equal(i.Data, o.Data)
}

// Response is the outcome attached to an Entry.
// Status is meaningless for ResponseFailure. Err is set only when Status is StatusFailed.
type Response struct {
	Kind   ResponseKind   `json:"kind"`
	Status ResponseStatus `json:"status,omitempty"`
	Text   string         `json:"text,omitempty"`
	Image  *Image         `json:"image,omitempty"`
	Err    error          `json:"-"`
}

// FailureResponse is the terminal response of a failed side effect.
func FailureResponse() Response { return Response{Kind: ResponseFailure} }

// OngoingText is the response of a text entry awaiting its side effect.
func OngoingText() Response { return Response{Kind: ResponseText, Status: StatusOngoing} }

// OngoingImages is the response of an images entry awaiting its side effect.
func OngoingImages() Response { return Response{Kind: ResponseImages, Status: StatusOngoing} }

// TextSucceeded wraps generated text.
func TextSucceeded(text string) Response {
	return Response{Kind: ResponseText, Status: StatusSucceeded, Text: text}
}

// TextFailed records a text payload that could not be decoded.
func TextFailed(err error) Response {
	return Response{Kind: ResponseText, Status: StatusFailed, Err: err}
}

// ImageSucceeded wraps a generated image.
func ImageSucceeded(img Image) Response {
	return Response{Kind: ResponseImages, Status: StatusSucceeded, Image: &img}
}

// ImageFailed records an image payload that could not be decoded.
func ImageFailed(err error) Response {
	return Response{Kind: ResponseImages, Status: StatusFailed, Err: err}
}

// IsOngoing reports whether the response still waits to be finalized.
func (r Response) IsOngoing() bool {
	return r.Kind != ResponseFailure && r.Status == StatusOngoing
}

// Equal compares two responses. Errors match when errors.Is holds either way.
func (r Response) Equal(o Response) bool {
	if r.Kind != o.Kind || r.Status != o.Status || r.Text != o.Text {
		return false
	}
	if (r.Image == nil) != (o.Image == nil) {
		return false
	}
	if r.Image != nil && !r.Image.Equal(*o.Image) {
		return false
	}
	if (r.Err == nil) != (o.Err == nil) {
		return false
	}
	return r.Err == nil || errors.Is(r.Err, o.Err) || errors.Is(o.Err, r.Err)
}

// APIResponse is the payload of a FinalizeEntry intent.
type APIResponse struct {
	Kind   ResponseKind `json:"kind" mapstructure:"kind"`
	Text   string       `json:"text,omitempty" mapstructure:"text"`
	Images []Image      `json:"images,omitempty" mapstructure:"images"`
}

// APIFailure is the finalize payload for any unrecoverable side-effect error.
func APIFailure() APIResponse { return APIResponse{Kind: ResponseFailure} }

// APIText is the finalize payload for a successful text generation.
func APIText(text string) APIResponse { return APIResponse{Kind: ResponseText, Text: text} }

// APIImages is the finalize payload for a successful image generation.
func APIImages(images ...Image) APIResponse {
	return APIResponse{Kind: ResponseImages, Images: images}
}

// Resolve maps the payload onto the entry response it finalizes to.
// Only the first image is kept. An images payload without images resolves to failure.
func (a APIResponse) Resolve() Response {
	switch a.Kind {
	case ResponseText:
		return TextSucceeded(a.Text)
	case ResponseImages:
		if len(a.Images) == 0 {
			return FailureResponse()
		}
		return ImageSucceeded(a.Images[0])
	default:
		return FailureResponse()
	}
}
