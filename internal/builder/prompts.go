package builder

// =============================================================================
// FEEDSTOCK / TARGET RESOLUTION
// =============================================================================

const (
	feedstockInstruction = "determine the starting feedstock for this process"
	targetInstruction    = "determine a single target product for this industrial process from a given list"

	feedstockFromTagsInstruction = "determine the starting feedstock for this process, here are some examples"
	targetFromTagsInstruction    = "determine a single target product for this industrial process, here are some examples"
)

// =============================================================================
// TEMPLATED ROUTE
// =============================================================================

const (
	pretreatmentInstruction     = "determine the pretreatment method for this cellulosic process"
	fermentationInstruction     = "determine the fermentation method for this cellulosic process"
	fermentationKindInstruction = "determine the kind of fermentation for this %s process will be"
)

// =============================================================================
// STEP DESCRIPTIONS
// =============================================================================

const noveltyDescriptionInstruction = "Within one paragraph describe the bio-industrial process %s. If there is novelty with this processing step mentioned in the text, briefly describe it."

const noveltySeedSuffix = " Here is a starting description for inspiration: %s"

// =============================================================================
// GENERIC ROUTE
// =============================================================================

const flowListInstruction = `Given the following biomanufacturing text, create a list of process flow steps types needed to execute the process going from %s to %s. ABSOLUTELY DO NOT include transportation, waste treatment, or utilities. Examples:

[
    'pretreatment.ammonia_fiber_expansion_pretreatment',
    'fermentation.simultaneous_saccharification_and_cofermentation',
    'separation.ethanol_purification',
]

[
    'pretreatment.acid_catalyzed_pretreatment',
    'fermentation.sugar_fermentation',
    'separation.lipid_extraction',
    'separation.sugar_and_acid_separation',
    'fermentation.ethanol_production',
    'separation.ethanol_purification',
    'conversion.lipids_to_fatty_acids_conversion',
    'conversion.fatty_acids_to_biodiesel'
]`

// =============================================================================
// OUTPUT & PARAMETER PASSES
// =============================================================================

const stepOutputInstruction = `Given the following manufacturing markup/text, determine the primary output and it's unit for '%s' process step that can be calculated in a technoeconomic model as an input for the '%s'.
If not specified, determine a sensible default which can be used in a technoeconomic model analysis.

For example,
- dry_biomass, tonne/day
- soluble_sugars, tonne/day
- ethanol, tonne/day`

const noveltyParameterInstruction = `As we build out a simple technoeconomic model, we need a critical parameter that can be adjusted determining efficiency of the process step '%s'. Choose one for our model.
If not specified, determine a sensible default which can be used in a technoeconomic model analysis.

For example,
- moisture_content, weight_percentage
- conversion_rate, %%
- distillation_extraction_rate, %%`
