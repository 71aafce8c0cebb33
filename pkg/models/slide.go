package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OverlayElementType discriminates the tagged-union OverlayElement variants.
type OverlayElementType string

const (
	OverlayText  OverlayElementType = "text"
	OverlayImage OverlayElementType = "image"
	OverlayShape OverlayElementType = "shape"
	OverlayVideo OverlayElementType = "video"
)

// OverlayElement is a positioned element layered on a slide or page. Rather
// than probing a loosely-typed attribute bag at render time, every variant
// is its own struct and the common envelope dispatches on Type.
type OverlayElement interface {
	Type() OverlayElementType
	Geometry() OverlayGeometry
}

// OverlayGeometry is the position/size/stacking shared by every overlay variant.
type OverlayGeometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	ZIndex int     `json:"z_index"`
}

// TextOverlay renders a styled text block.
type TextOverlay struct {
	Geo       OverlayGeometry `json:"geometry"`
	Content   string          `json:"content"`
	FontFamily string         `json:"font_family,omitempty"`
	FontSize  float64         `json:"font_size,omitempty"`
	Color     string          `json:"color,omitempty"`
}

func (t *TextOverlay) Type() OverlayElementType   { return OverlayText }
func (t *TextOverlay) Geometry() OverlayGeometry  { return t.Geo }

// ImageOverlay renders an image asset by URL.
type ImageOverlay struct {
	Geo     OverlayGeometry `json:"geometry"`
	URL     string          `json:"url"`
	AltText string          `json:"alt_text,omitempty"`
}

func (i *ImageOverlay) Type() OverlayElementType  { return OverlayImage }
func (i *ImageOverlay) Geometry() OverlayGeometry { return i.Geo }

// ShapeOverlay renders a vector primitive.
type ShapeOverlay struct {
	Geo       OverlayGeometry `json:"geometry"`
	ShapeKind string          `json:"shape_kind"`
	FillColor string          `json:"fill_color,omitempty"`
}

func (s *ShapeOverlay) Type() OverlayElementType  { return OverlayShape }
func (s *ShapeOverlay) Geometry() OverlayGeometry { return s.Geo }

// VideoOverlay embeds a video asset.
type VideoOverlay struct {
	Geo      OverlayGeometry `json:"geometry"`
	URL      string          `json:"url"`
	AutoPlay bool            `json:"auto_play,omitempty"`
}

func (v *VideoOverlay) Type() OverlayElementType  { return OverlayVideo }
func (v *VideoOverlay) Geometry() OverlayGeometry { return v.Geo }

// BackgroundKind discriminates the tagged-union BackgroundConfig variants.
type BackgroundKind string

const (
	BackgroundColor    BackgroundKind = "color"
	BackgroundGradient BackgroundKind = "gradient"
	BackgroundImage    BackgroundKind = "image"
)

// BackgroundConfig is a slide or page background, one of three variants.
type BackgroundConfig interface {
	Kind() BackgroundKind
}

// SolidBackground paints a flat color.
type SolidBackground struct {
	Color string `json:"color"`
}

func (b *SolidBackground) Kind() BackgroundKind { return BackgroundColor }

// GradientBackground paints a two-stop linear gradient.
type GradientBackground struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Angle int    `json:"angle_degrees"`
}

func (b *GradientBackground) Kind() BackgroundKind { return BackgroundGradient }

// ImageBackground paints a background image, optionally blurred/dimmed.
type ImageBackground struct {
	URL       string  `json:"url"`
	BlurLevel float64 `json:"blur_level,omitempty"`
	Dim       float64 `json:"dim,omitempty"`
}

func (b *ImageBackground) Kind() BackgroundKind { return BackgroundImage }

// Narration is the optional generated audio/subtitle pair attached to a slide.
type Narration struct {
	AudioURL     string `json:"audio_url"`
	SubtitleURL  string `json:"subtitle_url,omitempty"`
	DurationSecs float64 `json:"duration_secs,omitempty"`
}

// Slide is one slide of a deck.
type Slide struct {
	Index           int              `json:"index"`
	HTMLContent     string           `json:"html_content"`
	Background      BackgroundConfig `json:"-"`
	OverlayElements []OverlayElement `json:"-"`
	Narration       *Narration       `json:"narration,omitempty"`
}

// taggedOverlay/taggedBackground are the wire envelopes used to round-trip
// the OverlayElement/BackgroundConfig tagged unions through JSON, since
// encoding/json cannot marshal or unmarshal an interface field on its own.
type taggedOverlay struct {
	Type    OverlayElementType `json:"type"`
	Payload json.RawMessage    `json:"payload"`
}

type taggedBackground struct {
	Kind    BackgroundKind  `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func marshalOverlay(o OverlayElement) (taggedOverlay, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return taggedOverlay{}, err
	}
	return taggedOverlay{Type: o.Type(), Payload: payload}, nil
}

func unmarshalOverlay(t taggedOverlay) (OverlayElement, error) {
	var o OverlayElement
	switch t.Type {
	case OverlayText:
		o = &TextOverlay{}
	case OverlayImage:
		o = &ImageOverlay{}
	case OverlayShape:
		o = &ShapeOverlay{}
	case OverlayVideo:
		o = &VideoOverlay{}
	default:
		return nil, ErrInvalidOverlayType
	}
	if err := json.Unmarshal(t.Payload, o); err != nil {
		return nil, fmt.Errorf("unmarshal overlay payload: %w", err)
	}
	return o, nil
}

func marshalBackground(b BackgroundConfig) (*taggedBackground, error) {
	if b == nil {
		return nil, nil
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return &taggedBackground{Kind: b.Kind(), Payload: payload}, nil
}

func unmarshalBackground(t *taggedBackground) (BackgroundConfig, error) {
	if t == nil {
		return nil, nil
	}
	var b BackgroundConfig
	switch t.Kind {
	case BackgroundColor:
		b = &SolidBackground{}
	case BackgroundGradient:
		b = &GradientBackground{}
	case BackgroundImage:
		b = &ImageBackground{}
	default:
		return nil, fmt.Errorf("unrecognized background kind %q", t.Kind)
	}
	if err := json.Unmarshal(t.Payload, b); err != nil {
		return nil, fmt.Errorf("unmarshal background payload: %w", err)
	}
	return b, nil
}

func marshalOverlays(elems []OverlayElement) ([]taggedOverlay, error) {
	out := make([]taggedOverlay, len(elems))
	for i, o := range elems {
		t, err := marshalOverlay(o)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func unmarshalOverlays(tagged []taggedOverlay) ([]OverlayElement, error) {
	out := make([]OverlayElement, len(tagged))
	for i, t := range tagged {
		o, err := unmarshalOverlay(t)
		if err != nil {
			return nil, err
		}
		out[i] = o
	}
	return out, nil
}

type slideWire struct {
	Index       int             `json:"index"`
	HTMLContent string          `json:"html_content"`
	Background  *taggedBackground `json:"background,omitempty"`
	Overlays    []taggedOverlay `json:"overlay_elements,omitempty"`
	Narration   *Narration      `json:"narration,omitempty"`
}

// MarshalJSON serializes a Slide, encoding its tagged-union fields explicitly.
func (s Slide) MarshalJSON() ([]byte, error) {
	bg, err := marshalBackground(s.Background)
	if err != nil {
		return nil, err
	}
	overlays, err := marshalOverlays(s.OverlayElements)
	if err != nil {
		return nil, err
	}
	return json.Marshal(slideWire{
		Index:       s.Index,
		HTMLContent: s.HTMLContent,
		Background:  bg,
		Overlays:    overlays,
		Narration:   s.Narration,
	})
}

// UnmarshalJSON deserializes a Slide, dispatching its tagged-union fields by
// their discriminator before decoding each concrete variant.
func (s *Slide) UnmarshalJSON(data []byte) error {
	var w slideWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	bg, err := unmarshalBackground(w.Background)
	if err != nil {
		return err
	}
	overlays, err := unmarshalOverlays(w.Overlays)
	if err != nil {
		return err
	}
	s.Index = w.Index
	s.HTMLContent = w.HTMLContent
	s.Background = bg
	s.OverlayElements = overlays
	s.Narration = w.Narration
	return nil
}

// OutlineEntry is one planned slide in the deck's outline, the source of
// truth used when regenerating a subset of slides.
type OutlineEntry struct {
	Index   int    `json:"index"`
	Summary string `json:"summary"`
	Notes   string `json:"notes,omitempty"`
}

// SlideDeck is the kind-specific content of a slide-deck artifact.
type SlideDeck struct {
	ArtifactID    string         `json:"artifact_id"`
	SlidesOutline []OutlineEntry `json:"slides_outline"`
	Slides        []Slide        `json:"slides"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Validate enforces the outline/slide-count invariant.
func (d *SlideDeck) Validate() error {
	if len(d.SlidesOutline) != len(d.Slides) {
		return &ValidationError{Field: "slides", Message: "slide count must match outline length"}
	}
	return nil
}

// ChunkSlideIndices splits slide indices into ordered chunks of at most size,
// the unit of independently-retried AI generation.
func ChunkSlideIndices(indices []int, size int) [][]int {
	if size <= 0 {
		size = 10
	}
	var chunks [][]int
	for i := 0; i < len(indices); i += size {
		end := i + size
		if end > len(indices) {
			end = len(indices)
		}
		chunks = append(chunks, indices[i:end])
	}
	return chunks
}
