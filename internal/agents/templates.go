/**
 * Prompt templates for the analysis agent roles.
 *
 * Each role pairs a system prompt with a prompt builder that embeds the
 * retrieved contract context. The retrieval query is the role's prompt with
 * empty context, so retrieval and analysis stay aligned.
 */

package agents

import (
	"fmt"
	"strings"
)

// Role identifies one analysis agent.
type Role string

const (
	RoleContractReview Role = "contract_review"
	RoleRiskAssessment Role = "risk_assessment"
	RoleSummary        Role = "summary"
	RoleExtraction     Role = "extraction"
	RoleCustom         Role = "custom"
)

// Roles lists every built-in role.
func Roles() []Role {
	return []Role{RoleContractReview, RoleRiskAssessment, RoleSummary, RoleExtraction}
}

// ValidRole reports whether the role is known.
func ValidRole(role Role) bool {
	if role == RoleCustom {
		return true
	}
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

type template struct {
	system string
	body   string
}

var templates = map[Role]template{
	RoleContractReview: {
		system: "You are a senior contract analyst. You review legal agreements clause by clause, quote critical language exactly, and rate issues High/Medium/Low.",
		body: `Analyze the following contract comprehensively and extract all critical information:

%s

Please provide:
- Detailed analysis of each section with specific clause references
- Exact quotes of critical language
- Clear explanations of implications and concerns
- Specific recommendations for improvements or clarifications
- Risk ratings for significant issues (High/Medium/Low)
- Key defined terms, obligations of each party, and party details

Format the analysis with clear headers and bullet points.
Flag any missing or inadequate provisions that should be addressed.`,
	},
	RoleRiskAssessment: {
		system: "You are a contract risk assessor. You identify legal, financial, operational, compliance, reputational and strategic risks and propose mitigations.",
		body: `Assess the risks in the following contract:

%s

For each identified risk provide:
- Category (legal, financial, operational, compliance, reputational, strategic)
- Severity (critical, high, medium, low) with justification
- The exact contract language creating the risk
- Probability of occurrence and potential impact
- A concrete mitigation recommendation

Order the findings by severity, most severe first.`,
	},
	RoleSummary: {
		system: "You are a contract summarizer. You produce concise executive summaries readable by non-lawyers.",
		body: `Summarize the following contract:

%s

Include: the parties and their roles, the purpose of the agreement, key
commercial terms (price, duration, renewal, termination), the most important
obligations of each side, and anything unusual. Keep it under one page.`,
	},
	RoleExtraction: {
		system: "You are a contract data extractor. You return only structured JSON, no commentary.",
		body: `Extract structured information from the following contract:

%s

Return a single JSON object with these fields:
{
  "parties": [{"name": "", "role": ""}],
  "effective_date": "",
  "termination_date": "",
  "governing_law": "",
  "payment_terms": "",
  "key_obligations": [],
  "defined_terms": []
}

Use null for fields the contract does not specify.`,
	},
}

// SystemPrompt returns the role's system prompt, empty for custom roles.
func SystemPrompt(role Role) string {
	return templates[role].system
}

// BuildPrompt renders the role's prompt around the retrieved context. For
// RoleCustom the custom query is used verbatim with the context appended.
func BuildPrompt(role Role, context, customQuery string) (string, error) {
	if role == RoleCustom {
		if strings.TrimSpace(customQuery) == "" {
			return "", fmt.Errorf("custom role requires a query")
		}
		return fmt.Sprintf("%s\n\nContract context:\n\n%s", customQuery, context), nil
	}

	tpl, ok := templates[role]
	if !ok {
		return "", fmt.Errorf("unknown agent role: %s", role)
	}
	return fmt.Sprintf(tpl.body, context), nil
}

// RetrievalQuery returns the text used to pull context chunks for the role.
func RetrievalQuery(role Role, customQuery string) string {
	if role == RoleCustom {
		return customQuery
	}
	prompt, _ := BuildPrompt(role, "", "")
	return prompt
}
