package jobengine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scribeflow/internal/domain"
)

const maxMetaDescription = 160

var (
	nonWordChars   = regexp.MustCompile(`[^\w\s-]`)
	separatorRuns  = regexp.MustCompile(`[\s_-]+`)
	edgeSeparators = regexp.MustCompile(`^[_-]+|[_-]+$`)
	topicWords     = regexp.MustCompile(`[a-z0-9]+`)
)

// Slugify is the service-side file name rule: lower case, punctuation
// dropped, runs of whitespace, "-" and "_" folded into one "_".
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = nonWordChars.ReplaceAllString(s, "")
	s = separatorRuns.ReplaceAllString(s, "_")
	s = edgeSeparators.ReplaceAllString(s, "")
	if s == "" {
		return "blog"
	}
	return s
}

func hasFailMarker(topic string) bool {
	return strings.Contains(strings.ToLower(topic), FailMarker)
}

// renderLocked writes the synthetic article and cover image for j.
func (e *Engine) renderLocked(ctx context.Context, j *job) error {
	title := cases.Title(language.English).String(j.topic)
	slug := Slugify(title) + "_" + shortID(j.id)
	plan := buildPlan(title, j.tone)
	keywords := topicKeywords(j.topic)

	cover, err := coverImage(j.id)
	if err != nil {
		return fmt.Errorf("jobengine: cover image: %w", err)
	}
	imageKey := "images/" + slug + "_cover.png"
	if _, err := e.files.Write(ctx, imageKey, cover); err != nil {
		return fmt.Errorf("jobengine: write image: %w", err)
	}
	imageURL := "/static/" + imageKey

	markdownKey := "blogs/" + slug + ".md"
	body := renderMarkdown(title, j.asOf, plan, imageURL)
	if _, err := e.files.Write(ctx, markdownKey, []byte(body)); err != nil {
		return fmt.Errorf("jobengine: write article: %w", err)
	}

	j.title = title
	j.slug = slug
	j.markdownKey = markdownKey
	j.downloadURL = "/static/" + markdownKey
	j.images = []string{imageURL}
	j.plan = plan
	j.keywords = strings.Join(keywords, ", ")
	j.metaDescription = truncate(fmt.Sprintf("A %s guide to %s.", strings.ToLower(string(j.tone)), j.topic), maxMetaDescription)
	return nil
}

func buildPlan(title string, tone domain.Tone) *domain.Plan {
	return &domain.Plan{
		BlogTitle: title,
		Audience:  "developers",
		Tone:      string(tone),
		BlogKind:  "explainer",
		Tasks: []domain.PlanTask{
			{ID: 1, Title: "Introduction", Goal: "Frame the problem " + title + " solves.", Bullets: []string{"Context", "Why it matters"}, TargetWords: 150},
			{ID: 2, Title: "Core Concepts", Goal: "Explain how " + title + " works.", Bullets: []string{"Building blocks", "Trade-offs"}, TargetWords: 400, RequiresCode: tone == domain.ToneTechnical},
			{ID: 3, Title: "Conclusion", Goal: "Summarise and point to next steps.", Bullets: []string{"Key takeaways"}, TargetWords: 120},
		},
	}
}

func renderMarkdown(title, asOf string, plan *domain.Plan, coverURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "![%s](%s)\n\n", title, coverURL)
	if asOf != "" {
		fmt.Fprintf(&b, "_As of %s._\n\n", asOf)
	}
	for _, task := range plan.Tasks {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", task.Title, task.Goal)
		for _, bullet := range task.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		b.WriteString("\n")
		if task.RequiresCode {
			b.WriteString("```go\nfmt.Println(\"hello\")\n```\n\n")
		}
	}
	return b.String()
}

func topicKeywords(topic string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, w := range topicWords.FindAllString(strings.ToLower(topic), -1) {
		if len(w) < 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// coverImage draws a small gradient seeded by the job id.
func coverImage(seed string) ([]byte, error) {
	const w, h = 64, 32
	var base uint8
	for _, r := range seed {
		base += uint8(r)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: base + uint8(x*3), G: uint8(y * 6), B: 200 - base/2, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
