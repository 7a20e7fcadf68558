package builder

import (
	"context"
	"fmt"
	"strings"

	"maml/internal/catalog"
	"maml/internal/knowledge"
	"maml/internal/logging"
	"maml/internal/maml"
)

// excludedPrefixes are step labels the generic route never keeps.
var excludedPrefixes = []string{"utilities.", "waste", "transportation."}

type flowList struct {
	ProcessFlowTypes []string `json:"process_flow_types" validate:"required,min=1,dive,required"`
}

// resolveFlow is pass one: feedstock, target and the ordered step list.
func (b *Builder) resolveFlow(ctx context.Context, m *maml.MAML, text string) error {
	head := knowledge.Truncate(text, b.classificationChars)
	m.ProcessFlow = nil

	feedstock, err := b.kb.AskChoice(ctx, head, feedstockInstruction, "feedstock", b.catalog.Feedstocks())
	if err != nil {
		return fmt.Errorf("feedstock: %w", err)
	}
	target, err := b.kb.AskChoice(ctx, head, targetInstruction, "output_target", b.catalog.Targets())
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	m.ProcessFeedstock, m.ProcessTarget = feedstock, target

	if tmpl, ok := b.catalog.TemplateFor(feedstock, target); ok {
		logging.Builder("Templated route %s for %s -> %s", tmpl.Name, feedstock, target)
		return b.templatedFlow(ctx, m, text, tmpl)
	}
	logging.Builder("Generic route for %s -> %s", feedstock, target)
	return b.genericFlow(ctx, m, text, head)
}

func (b *Builder) templatedFlow(ctx context.Context, m *maml.MAML, text string, tmpl catalog.Template) error {
	pretreatment, err := b.kb.AskChoice(ctx, text, pretreatmentInstruction, "method", b.catalog.SubtypesOf(tmpl.PretreatmentFamily))
	if err != nil {
		return fmt.Errorf("pretreatment: %w", err)
	}
	pre, err := b.seededStep(ctx, text, pretreatment)
	if err != nil {
		return err
	}

	fermentation, err := b.kb.AskChoice(ctx, text, fermentationInstruction, "method", b.catalog.SubtypesOf(tmpl.FermentationFamily))
	if err != nil {
		return fmt.Errorf("fermentation: %w", err)
	}
	kind, err := b.kb.AskChoice(ctx, text, fmt.Sprintf(fermentationKindInstruction, fermentation), "kind", b.catalog.FermentationMethodNames())
	if err != nil {
		return fmt.Errorf("fermentation kind: %w", err)
	}
	code, ok := b.catalog.FermentationCode(kind)
	if !ok {
		return &knowledge.MalformedResponseError{Query: "choice", Field: "kind", Reason: fmt.Sprintf("no code for %q", kind)}
	}
	ferm, err := b.seededStep(ctx, text, fermentation)
	if err != nil {
		return err
	}
	ferm.Options[catalog.OptionFermentationMethod] = &code

	// The terminal step keeps its catalog description; no query.
	terminal := b.catalog.Instantiate(tmpl.Terminal)

	m.ProcessFlow = []maml.ProcessFlowStep{pre, ferm, terminal}
	return nil
}

// seededStep instantiates a catalog step and replaces its description with a
// novelty description seeded by the catalog text.
func (b *Builder) seededStep(ctx context.Context, text, stepType string) (maml.ProcessFlowStep, error) {
	step := b.catalog.Instantiate(stepType)
	instruction := fmt.Sprintf(noveltyDescriptionInstruction, stepType) + fmt.Sprintf(noveltySeedSuffix, step.Description)
	desc, err := b.kb.AskText(ctx, text, instruction)
	if err != nil {
		return maml.ProcessFlowStep{}, fmt.Errorf("describe %s: %w", stepType, err)
	}
	step.Description = desc
	return step, nil
}

func (b *Builder) genericFlow(ctx context.Context, m *maml.MAML, text, head string) error {
	var feedstockTags, targetTags []string
	if m.Paper != nil {
		feedstockTags, targetTags = m.Paper.TagsFeedstocks, m.Paper.TagsTargetProduct
	}

	feedstock, err := b.fromTags(ctx, head, feedstockFromTagsInstruction, "feedstock", feedstockTags, m.ProcessFeedstock)
	if err != nil {
		return fmt.Errorf("feedstock from tags: %w", err)
	}
	target, err := b.fromTags(ctx, head, targetFromTagsInstruction, "output_target", targetTags, m.ProcessTarget)
	if err != nil {
		return fmt.Errorf("target from tags: %w", err)
	}
	m.ProcessFeedstock, m.ProcessTarget = feedstock, target

	var list flowList
	if err := b.kb.AskStructured(ctx, text, fmt.Sprintf(flowListInstruction, feedstock, target), &list); err != nil {
		return fmt.Errorf("step list: %w", err)
	}

	for _, label := range list.ProcessFlowTypes {
		label = strings.TrimSpace(label)
		if excluded(label) {
			logging.BuilderDebug("Dropping excluded step %s", label)
			continue
		}
		step := b.catalog.Instantiate(label)
		desc, err := b.kb.AskText(ctx, text, fmt.Sprintf(noveltyDescriptionInstruction, label))
		if err != nil {
			return fmt.Errorf("describe %s: %w", label, err)
		}
		step.Description = desc
		m.ProcessFlow = append(m.ProcessFlow, step)
	}
	if len(m.ProcessFlow) == 0 {
		return ErrNoSteps
	}
	return nil
}

// fromTags resolves a value from paper tags: one tag is taken as is, several
// are chosen between, none keeps the fallback.
func (b *Builder) fromTags(ctx context.Context, head, instruction, field string, tags []string, fallback string) (string, error) {
	switch len(tags) {
	case 0:
		return fallback, nil
	case 1:
		return tags[0], nil
	default:
		return b.kb.AskChoice(ctx, head, instruction, field, tags)
	}
}

func excluded(label string) bool {
	if label == "" {
		return true
	}
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(label, p) {
			return true
		}
	}
	return false
}
