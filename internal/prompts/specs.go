package prompts

const planningSpec = `Respond with a JSON object matching this exact structure:

{
  "accession_id": "<uniprot accession>",
  "target_name": "<full protein name>",
  "description": "<brief description of the protein's function>",
  "organism": "<organism name>",
  "confidence_score": 0.0,
  "validation_steps": ["<step1>", "<step2>"]
}

Field constraints:
- accession_id: The primary UniProtKB accession of the target, 6 to 10
  alphanumeric characters starting with a letter (e.g., "P10415").
- target_name: The recommended full name of the protein.
- description: One or two sentences on the function that matched the query.
- organism: Scientific or common organism name (e.g., "Homo sapiens").
- confidence_score: Number between 0 and 1 reflecting how certain the
  identification is.
- validation_steps: Non-empty array of checks specific to this protein
  that should be run against its structure.

Behavioral constraints:
- Always respond with a single valid JSON object, no markdown fencing
- Include every field; never add fields not listed above
- Do not include any text before or after the JSON object`

const reportingSpec = `Respond with plain prose of at most three short paragraphs.

Behavioral constraints:
- Do not repeat the report JSON
- Do not invent results that are not present in the report
- Refer to the target by name and accession`

var specs = map[Stage]string{
	StagePlanning:  planningSpec,
	StageReporting: reportingSpec,
}

// Spec returns the hardcoded specification for a stage.
// Specifications define the expected output format and behavioral constraints.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
