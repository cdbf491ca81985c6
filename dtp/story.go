package dtp

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Content extraction from a story's paragraph/character-range tree.

// StoryContent is everything extracted from a single story: concatenated
// content, conditional segments in original order and applied default styles.
type StoryContent struct {
	ID               string
	AppliedCharStyle string
	AppliedParaStyle string
	// Character properties defined directly on a paragraph range.
	ParaProps *StyleProps
	Segments  []ConditionalSegment
	Content   string
}

// ExtractStory walks a story's paragraph ranges and their character ranges
// producing one conditional segment per run.
func ExtractStory(root *etree.Element, log *zap.Logger) (*StoryContent, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil story element", ErrInvalidMarkup)
	}
	if root.Tag != "Story" {
		return nil, fmt.Errorf("%w: unexpected root element %q", ErrInvalidMarkup, root.Tag)
	}

	story := &StoryContent{ID: root.SelectAttrValue("Self", "")}

	for _, para := range root.ChildElements() {
		switch para.Tag {
		case "ParagraphStyleRange":
			extractParagraphRange(story, para, log)
		case "Properties":
			// story-level property block carries nothing we consume
		default:
			log.Warn("Unexpected tag in story, ignoring", zap.String("story", story.ID), zap.String("tag", para.Tag))
		}
	}

	story.Segments = NormalizeInterRunSpaces(story.Segments)

	var sb strings.Builder
	for i := range story.Segments {
		sb.WriteString(story.Segments[i].Text)
	}
	story.Content = sb.String()

	log.Debug("Story extracted", zap.String("story", story.ID),
		zap.Int("segments", len(story.Segments)), zap.Int("content_len", len(story.Content)))
	return story, nil
}

func extractParagraphRange(story *StoryContent, para *etree.Element, log *zap.Logger) {
	if ref := para.SelectAttrValue("AppliedParagraphStyle", ""); len(ref) > 0 && len(story.AppliedParaStyle) == 0 {
		story.AppliedParaStyle = strings.TrimPrefix(ref, "ParagraphStyle/")
	}
	if props := parseStyleProps(para); !props.IsZero() && story.ParaProps == nil {
		story.ParaProps = &props
	}

	for _, run := range para.ChildElements() {
		switch run.Tag {
		case "CharacterStyleRange":
			seg := extractRun(story, run, log)
			story.Segments = append(story.Segments, seg)
		case "Properties":
		default:
			log.Warn("Unexpected tag in paragraph range, ignoring", zap.String("story", story.ID), zap.String("tag", run.Tag))
		}
	}
}

// extractRun turns one character range into a conditional segment. The run's
// literal text may come from direct text nodes, line-break markers or named
// variable instance tokens which are rendered back as {name} placeholders.
func extractRun(story *StoryContent, run *etree.Element, log *zap.Logger) ConditionalSegment {
	seg := ConditionalSegment{}

	if ref := run.SelectAttrValue("AppliedCharacterStyle", ""); len(ref) > 0 && len(story.AppliedCharStyle) == 0 {
		story.AppliedCharStyle = strings.TrimPrefix(ref, "CharacterStyle/")
	}

	if cond := run.SelectAttrValue("AppliedConditions", ""); len(cond) > 0 {
		seg.ConditionName = strings.TrimPrefix(cond, "Condition/")
		// parsed triple allows O(1) personalization matching, malformed
		// names keep the raw name only
		seg.Condition = ParseCondition(seg.ConditionName)
	}

	if props := parseStyleProps(run); !props.IsZero() {
		seg.Override = &props
	}

	var sb strings.Builder
	for _, child := range run.ChildElements() {
		switch child.Tag {
		case "Content":
			sb.WriteString(child.Text())
		case "Br":
			sb.WriteString("\n")
		case "TextVariableInstance":
			name := child.SelectAttrValue("Name", "")
			if len(name) == 0 {
				log.Warn("Variable instance without name, ignoring", zap.String("story", story.ID))
				continue
			}
			sb.WriteString("{" + name + "}")
			seg.Variables = append(seg.Variables, name)
		case "Properties":
		default:
			log.Warn("Unexpected tag in character range, ignoring", zap.String("story", story.ID), zap.String("tag", child.Tag))
		}
	}
	seg.Text = sb.String()
	return seg
}

// NormalizeInterRunSpaces applies a compensating heuristic for whitespace
// which upstream XML normalization may have stripped: an empty run with no
// break marker, immediately following a run whose text does not end in
// whitespace, stands for a single inter-run space. Other empty runs carry no
// information and are removed.
func NormalizeInterRunSpaces(segments []ConditionalSegment) []ConditionalSegment {
	out := make([]ConditionalSegment, 0, len(segments))
	for i := range segments {
		seg := segments[i]
		if len(seg.Text) == 0 && len(seg.Variables) == 0 {
			if len(out) == 0 {
				continue
			}
			prev := out[len(out)-1].Text
			if len(prev) == 0 || strings.HasSuffix(prev, " ") || strings.HasSuffix(prev, "\n") {
				continue
			}
			seg.Text = " "
		}
		out = append(out, seg)
	}
	return out
}
