package gate

import (
	"fmt"
	"html/template"
	"io"
)

var fragments = template.Must(template.New("gate").Parse(`
{{- define "placeholder" -}}
<div class="gate gate-loading" aria-busy="true"></div>
{{- end -}}
{{- define "overlay" -}}
<div class="gate gate-locked" data-required-tier="{{.Tier}}">
<div class="gate-blur" aria-hidden="true">{{.Content}}</div>
<div class="gate-cta"><p>Available on the {{.TierName}} plan</p><a class="gate-upgrade" href="/pricing?tier={{.Tier}}">Upgrade to {{.TierName}}</a></div>
</div>
{{- end -}}
{{- define "badge" -}}
<span class="tier-badge tier-badge-{{.Outcome}}"{{if .Tier}} data-required-tier="{{.Tier}}"{{end}}>{{.Label}}</span>
{{- end -}}
`))

// Render writes the fragment for d. content and fallback are trusted HTML
// supplied by the calling screen.
func Render(w io.Writer, d Decision, content, fallback template.HTML) error {
	switch d.Outcome {
	case OutcomePlaceholder:
		return fragments.ExecuteTemplate(w, "placeholder", nil)
	case OutcomeContent:
		_, err := io.WriteString(w, string(content))
		return err
	case OutcomeFallback:
		_, err := io.WriteString(w, string(fallback))
		return err
	case OutcomeOverlay:
		return fragments.ExecuteTemplate(w, "overlay", struct {
			Tier     string
			TierName string
			Content  template.HTML
		}{
			Tier:     d.RequiredTier.String(),
			TierName: d.RequiredTier.DisplayName(),
			Content:  content,
		})
	case OutcomeNothing:
		return nil
	default:
		return fmt.Errorf("gate: unknown outcome %q", d.Outcome)
	}
}

// RenderBadge writes the compact badge fragment.
func RenderBadge(w io.Writer, b Badge) error {
	data := struct {
		Outcome string
		Tier    string
		Label   string
	}{
		Outcome: string(b.Outcome),
		Label:   b.Label,
	}
	if b.Outcome == BadgeRequired {
		data.Tier = b.RequiredTier.String()
	}
	return fragments.ExecuteTemplate(w, "badge", data)
}
