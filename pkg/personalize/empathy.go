package personalize

// Context is the signals observed during the current interaction that the
// empathy modulator reacts to.
type Context struct {
	Sentiment float64
	Urgency   float64
	Energy    float64
}

// Modulation is the tone/tempo/style adjustment vector computed for one
// turn, keyed the same way style signals are recorded ("style::X").
type Modulation struct {
	Tone  float64
	Tempo float64
	Style map[string]float64
}

// Modulate computes tone/tempo/style adjustments from a profile and the
// current interaction context, per spec section 4.9's exact formulas.
func Modulate(profile Profile, ctx Context) Modulation {
	tone := clamp(profile.TonePreference+0.5*ctx.Sentiment-0.2*ctx.Urgency, -1, 1)
	tempo := clamp(profile.TempoPreference+0.4*ctx.Urgency+0.3*ctx.Energy, 0.2, 3.0)

	style := make(map[string]float64, len(profile.Style))
	for dim, weight := range profile.Style {
		style["style::"+dim] = clamp(weight+ctx.Energy*0.1, -1, 1)
	}

	return Modulation{Tone: tone, Tempo: tempo, Style: style}
}

func clamp(v, lower, upper float64) float64 {
	if v < lower {
		return lower
	}
	if v > upper {
		return upper
	}
	return v
}
