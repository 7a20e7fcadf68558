package paper

import (
	"context"
	"fmt"
	"strings"

	"maml/internal/knowledge"
	"maml/internal/logging"
)

// Analyzer attaches type assessment, summaries and tags to a paper.
type Analyzer struct {
	kb              knowledge.KnowledgeBase
	assessmentChars int
}

// NewAnalyzer creates an analyzer. assessmentChars bounds the text used for the
// paper type assessment.
func NewAnalyzer(kb knowledge.KnowledgeBase, assessmentChars int) *Analyzer {
	return &Analyzer{kb: kb, assessmentChars: assessmentChars}
}

type paperMeta struct {
	Abstract            string `json:"abstract" validate:"required"`
	Novelty             string `json:"novelty"`
	IRR                 string `json:"irr"`
	HasIRR              bool   `json:"has_irr"`
	PriceSensitivity    string `json:"price_sensitivity"`
	HasPriceSensitivity bool   `json:"has_price_sensitivity"`
}

type paperTags struct {
	TagsDOE           []string `json:"tags_doe"`
	TagsFeedstocks    []string `json:"tags_feedstocks"`
	TagsTargetProduct []string `json:"tags_target_product"`
}

// Process assesses the paper and, for single-process papers, fills in summaries
// and tags. Papers already assessed are returned untouched unless force is set.
// The paper is modified in place.
func (a *Analyzer) Process(ctx context.Context, p *Paper, force bool) error {
	if p.Analyzed() && !force {
		logging.PaperDebug("Paper %s already analyzed (%s), skipping", p.ID, p.DescribesProcess)
		return nil
	}
	timer := logging.StartTimer(logging.CategoryPaper, "analyze "+p.ID)
	defer timer.StopWithInfo()

	text := p.FullText()
	kind, err := a.kb.AskChoice(ctx, knowledge.Truncate(text, a.assessmentChars), assessInstruction, "response",
		[]string{TypeSingleProcess, TypeReview, TypeUnsure})
	if err != nil {
		return fmt.Errorf("failed to assess paper type: %w", err)
	}
	p.DescribesProcess = kind

	if !p.IsSingleProcess() {
		logging.Paper("Paper %s assessed as %s, skipping summaries", p.ID, kind)
		return nil
	}

	var meta paperMeta
	if err := a.kb.AskStructured(ctx, text, metaInstruction, &meta); err != nil {
		return fmt.Errorf("failed to summarize paper: %w", err)
	}
	p.TextAbstract = meta.Abstract
	p.TextNovelty = meta.Novelty
	p.TextIRR, p.TextPriceSensitivity = "", ""
	if meta.HasIRR {
		p.TextIRR = meta.IRR
	}
	if meta.HasPriceSensitivity {
		p.TextPriceSensitivity = meta.PriceSensitivity
	}

	var tags paperTags
	instruction := fmt.Sprintf(tagsInstruction, "- "+strings.Join(DOETags(), "\n- "))
	if err := a.kb.AskStructured(ctx, text, instruction, &tags); err != nil {
		return fmt.Errorf("failed to tag paper: %w", err)
	}
	kept, rejected := filterDOETags(tags.TagsDOE)
	if len(rejected) > 0 {
		logging.PaperWarn("Dropped %d tags outside the DOE vocabulary: %v", len(rejected), rejected)
	}
	p.TagsDOE = kept
	p.TagsFeedstocks = cleanTags(tags.TagsFeedstocks)
	p.TagsTargetProduct = cleanTags(tags.TagsTargetProduct)

	logging.Paper("Paper %s tagged: feedstocks=%v targets=%v doe=%d", p.ID, p.TagsFeedstocks, p.TagsTargetProduct, len(p.TagsDOE))
	return nil
}

func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
