package knowledge

// =============================================================================
// ORACLE PROMPTS
// =============================================================================
// Every prompt asks for a single JSON object. The system prompt names the keys;
// the user prompt carries the instruction and the source text.
// =============================================================================

const systemRole = "You are an assistant trained in biochemical process engineering."

const choiceSystemPrompt = systemRole + ` Provide a JSON response, within { '%s': str }`

const choiceUserPrompt = `Given the following manufacturing markup/text, %s.

Your choices for '%s' are: %s

Answer with exactly one of the choices, spelled as given.

---

Manufacturing Text/Markup:

%s

---

Response:`

const structuredSystemPrompt = systemRole + ` Provide a JSON response, within %s. Do not wrap numbers as strings.`

const structuredUserPrompt = `%s

---

Manufacturing Text/Markup:

%s

---

Response:`

const textSystemPrompt = systemRole + ` Provide a JSON response, within { 'text': str }`

const textUserPrompt = `%s

---

CONTENT:

%s

---

RESPONSE:`

const formulaSystemPrompt = `You are an expert biomanufacturing AI with broad familiarity with the techno-economic analyses (TEAs) and life-cycle analyses (LCAs) needed to deploy biotechnology.
From the provided context about a process step, define a single numeric formula computing the amount of the step's output product that feeds the next step.

Respond with a JSON object:
{ "function_name": str, "parameters": [str], "expression": str, "description": str }

Rules:
- "function_name" must be exactly the requested name.
- "parameters" lists the parameter names the expression uses, chosen from the requested parameters. input_product_amount is always included.
- "expression" may only use the listed parameters, numeric literals, + - * / ** ( ), comparisons with a ternary (cond ? a : b), and the functions min, max, abs, pow, sqrt, exp, log, ceil, floor, round.
- Percentages arrive as numbers between 1 and 100.
- Put any reasoning in "description", never in the expression.

Examples:

{"function_name": "process_function_output_num_soluble_sugars", "parameters": ["input_product_amount", "cellulose_conversion_efficiency"], "expression": "input_product_amount * (cellulose_conversion_efficiency / 100)", "description": "Soluble sugars (tonne/day) from biomass input at the given cellulose conversion efficiency (%)."}

{"function_name": "process_function_output_num_ethanol", "parameters": ["input_product_amount", "conversion_rate"], "expression": "input_product_amount * (conversion_rate / 100)", "description": "Ethanol (tonne/day) from soluble sugars at the given conversion rate (%)."}

{"function_name": "process_function_output_num_purified_ethanol", "parameters": ["input_product_amount", "distillation_extraction_rate"], "expression": "input_product_amount * (distillation_extraction_rate / 100)", "description": "Purified ethanol (tonne/day) after distillation at the given extraction rate (%)."}`

const formulaUserPrompt = `FUNCTION NAME: %s

PROCESS STEP: %s
STEP DESCRIPTION: %s
OUTPUT: %s (%s)

FUNCTION PARAMETERS:

%s`
