package paper

// =============================================================================
// DETAIL EXTRACTION
// =============================================================================

const detailInstruction = `Given a paper's text, provide an answer to the following question with the response in a JSON object, keyed on 'answer'
QUESTION: %s`

const titleQuestion = "What is the title of this paper?"

const doiQuestion = "What is the DOI for this paper? (Ex: https://doi.org/10.1038/srep20361, https://doi.org/10.4161/bioe.19874)"

// =============================================================================
// ASSESSMENT & SUMMARIES
// =============================================================================

const assessInstruction = `You are operating at the level of a senior process engineer familiar with practice and literature. Give your expert determination if the given paper describes a single biomanufacturing process or is a review of a sub-area of biomanufacturing. Return "single_process" or "review". In the case that you are unsure, return "unsure"`

const metaInstruction = `You have a few writing tasks.
First, on the JSON key 'abstract', write an abstract summarizing this paper as it relates to a bioindustrial process. Keep this shorter than 5 sentences.
Second, on the JSON key 'novelty', write how the processes or approach as described in this paper differ from similar approaches. Keep this shorter than 5 sentences.
Third, on the JSON key 'irr', write a summary of the paper's reflection on internal rate of return (IRR). Keep this shorter than 3 sentences.
Forth, on the JSON key 'has_irr', set a true or false for whether the paper had an internal rate of return (IRR) analysis.
Fifth, on the JSON key 'price_sensitivity', write a summary of the paper's reflection on price sensitivity. Keep this shorter than 3 sentences.
Sixth, on the JSON key 'has_price_sensitivity', set a true or false for whether the paper had a price sensitivity analysis.`

// =============================================================================
// TAGS
// =============================================================================

const tagsInstruction = `On key 'tags_doe', decide which tags for feedstocks, intermediate platforms, building blocks, etc. are mentioned in the technoeconomic analysis paper text provided.
The tags you are allowed to use are the following Department of Energy (DOE) enums. You must select from the given options. Be selective.

DOE TAGS/ENUMS:
%s

After that...
On key 'tags_feedstocks', list tags related to the focused on feedstock of the technoeconomic analysis paper text provided.
On key 'tags_target_product', list tags related to the output being examined in the technoeconomic analysis paper text provided.`
