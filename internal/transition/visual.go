package transition

// Visual is the transform applied to the full representation.
// Scale is applied about the centre of the art; TranslateY moves the art down
// by the amount the base rose so the anchor stays pinned to its coordinate.
type Visual struct {
	Scale        float64 `json:"scale"`
	Opacity      float64 `json:"opacity"`
	TranslateY   float64 `json:"translate_y"`
	LabelVisible bool    `json:"label_visible"`
}

// BaseOffset is the vertical distance in pixels between the anchor and the
// bottom edge of art of height h after the transform. Zero means no drift.
func (v Visual) BaseOffset(h float64) float64 {
	return -h/2 + v.Scale*h/2 + v.TranslateY
}

func easeOutCubic(f float64) float64 {
	inv := 1 - f
	return 1 - inv*inv*inv
}

func (m *Machine) visual(phase Phase, progress float64) Visual {
	fullness := 1.0
	switch phase {
	case Promoting:
		fullness = progress
	case Demoting:
		fullness = 1 - progress
	}

	e := easeOutCubic(fullness)
	scale := 1.0
	if e < 1 {
		scale = m.opts.MinScale + (1-m.opts.MinScale)*e
	}

	v := Visual{
		Scale:      scale,
		Opacity:    e,
		TranslateY: (1 - scale) * m.opts.ArtHeightPx / 2,
	}
	switch phase {
	case Promoting:
		v.LabelVisible = progress >= m.opts.LabelRevealAt
	case Demoting:
		v.LabelVisible = false
	default:
		v.LabelVisible = true
	}
	return v
}
