package summarizer

import (
	"meetscribe/pkg/model"
	"regexp"
	"strings"
)

var (
	reBoldHeader  = regexp.MustCompile(`^\*\*([^*]+?)\*\*\s*(.*)$`)
	reHashHeader  = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	reColonHeader = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 &/'-]{1,60}):\s*(.*)$`)
	reNumbering   = regexp.MustCompile(`^\d+[.)]\s*`)
)

// Parse splits a model response into recognized sections. Text outside
// any recognized section is kept as unstructured content.
func Parse(raw string) *model.SummaryResult {
	res := &model.SummaryResult{Raw: raw}

	var (
		current     *model.SummarySection
		body        []string
		loose       []string
		sectionByID = make(map[model.SectionKind]int)
	)

	flush := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if i, ok := sectionByID[current.Kind]; ok {
			if text != "" {
				if res.Sections[i].Body != "" {
					text = res.Sections[i].Body + "\n" + text
				}
				res.Sections[i].Body = text
			}
		} else {
			current.Body = text
			sectionByID[current.Kind] = len(res.Sections)
			res.Sections = append(res.Sections, *current)
		}
		current, body = nil, nil
	}

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if title, rest, kind, ok := headerLine(line); ok {
			flush()
			current = &model.SummarySection{Kind: kind, Title: title}
			if rest != "" {
				body = append(body, rest)
			}
			continue
		}

		if current != nil {
			body = append(body, line)
		} else {
			loose = append(loose, line)
		}
	}
	flush()

	res.Structured = len(res.Sections) > 0
	res.Unstructured = strings.TrimSpace(strings.Join(loose, "\n"))
	if !res.Structured {
		res.Unstructured = strings.TrimSpace(raw)
	}

	return res
}

// headerLine reports whether line is a recognized section header and
// returns its title and any text following it on the same line.
func headerLine(line string) (title, rest string, kind model.SectionKind, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", "", "", false
	}

	switch {
	case reBoldHeader.MatchString(trimmed):
		m := reBoldHeader.FindStringSubmatch(trimmed)
		title, rest = m[1], m[2]
		// "**Executive Summary**: text" keeps the colon outside the bold
		rest = strings.TrimSpace(strings.TrimPrefix(rest, ":"))
		if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
			rest = ""
		}
	case reHashHeader.MatchString(trimmed):
		title = reHashHeader.FindStringSubmatch(trimmed)[1]
		title = strings.Trim(title, "*")
	case reColonHeader.MatchString(trimmed):
		m := reColonHeader.FindStringSubmatch(trimmed)
		title, rest = m[1], m[2]
		if len(strings.Fields(title)) > 5 {
			return "", "", "", false
		}
		// "Risk: the migration may slip" inside a section is prose, not a header
		if rest != "" && title != strings.ToUpper(title) {
			return "", "", "", false
		}
	default:
		return "", "", "", false
	}

	title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), ":"))
	title = reNumbering.ReplaceAllString(title, "")

	kind, ok = Classify(title)
	if !ok {
		return "", "", "", false
	}
	return title, strings.TrimSpace(rest), kind, true
}

// Classify maps a header title to a section kind by keyword
func Classify(title string) (model.SectionKind, bool) {
	t := strings.ToLower(title)

	switch {
	case strings.Contains(t, "decision"):
		return model.SectionDecisions, true
	case strings.Contains(t, "action item"), t == "actions", strings.HasPrefix(t, "action"):
		return model.SectionActionItems, true
	case strings.Contains(t, "technical"), strings.Contains(t, "discussion point"):
		return model.SectionTechnicalPoints, true
	case strings.Contains(t, "blocker"), strings.Contains(t, "risk"):
		return model.SectionRisks, true
	case strings.Contains(t, "next step"), strings.Contains(t, "follow-up"), strings.Contains(t, "follow up"):
		return model.SectionNextSteps, true
	case strings.Contains(t, "executive"), strings.Contains(t, "summary"), strings.Contains(t, "overview"):
		return model.SectionExecutiveSummary, true
	}
	return "", false
}
