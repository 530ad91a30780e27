package parser

import "google.golang.org/genai"

// 评估结果的字段名
const (
	FieldCandidateName    = "candidate_name"
	FieldCandidateEmail   = "candidate_email"
	FieldSummary          = "summary"
	FieldStrengths        = "strengths"
	FieldWeaknesses       = "weaknesses"
	FieldSkills           = "skills"
	FieldMatchExplanation = "match_explanation"
	FieldScore            = "score"
)

// EvaluationFields 所有必填字段，顺序即 propertyOrdering
var EvaluationFields = []string{
	FieldCandidateName,
	FieldCandidateEmail,
	FieldSummary,
	FieldStrengths,
	FieldWeaknesses,
	FieldSkills,
	FieldMatchExplanation,
	FieldScore,
}

// EvaluationResponseSchema 要求模型输出的结构，Gemini 直接使用，OpenAI 兼容模型转成 JSON Schema
func EvaluationResponseSchema() *genai.Schema {
	minScore, maxScore := 0.0, 100.0
	stringList := func(desc string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Description: desc,
			Items:       &genai.Schema{Type: genai.TypeString},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			FieldCandidateName:    {Type: genai.TypeString, Description: "Full name of the candidate as written in the resume"},
			FieldCandidateEmail:   {Type: genai.TypeString, Description: "Contact email of the candidate, empty string if absent"},
			FieldSummary:          {Type: genai.TypeString, Description: "Short professional summary of the candidate"},
			FieldStrengths:        stringList("Strengths relevant to the job"),
			FieldWeaknesses:       stringList("Gaps or weaknesses relative to the job"),
			FieldSkills:           stringList("Key skills found in the resume"),
			FieldMatchExplanation: {Type: genai.TypeString, Description: "Why the candidate does or does not match the job"},
			FieldScore: {
				Type:        genai.TypeInteger,
				Description: "Overall match score from 0 to 100",
				Minimum:     &minScore,
				Maximum:     &maxScore,
			},
		},
		Required:         EvaluationFields,
		PropertyOrdering: EvaluationFields,
	}
}
